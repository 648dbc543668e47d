// ABOUTME: Field-scoped validation errors and form validators
// ABOUTME: Aggregates predicate failures into user-correctable messages
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harperreed/kith/models"
)

// FieldError is a single user-correctable problem with one field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors collects every failing field of a form.
type Errors []*FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Add records a failure for field.
func (e *Errors) Add(field, format string, args ...interface{}) {
	*e = append(*e, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Check records message for field when ok is false.
func (e *Errors) Check(ok bool, field, message string) {
	if !ok {
		e.Add(field, "%s", message)
	}
}

// CheckLength records a length failure for field.
func (e *Errors) CheckLength(field, value string, max int) {
	if !MaxLength(value, max) {
		e.Add(field, "must be at most %d characters", max)
	}
}

// Err returns nil when nothing failed, so callers can return it directly.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// IsValidationError reports whether err is user-correctable input.
func IsValidationError(err error) bool {
	var fe *FieldError
	var errs Errors
	return errors.As(err, &fe) || errors.As(err, &errs)
}

// ValidateContactData checks every contact field of a relationship.
func ValidateContactData(cd models.ContactData) error {
	var errs Errors
	for i, p := range cd.Phones {
		errs.Check(Phone(p), fmt.Sprintf("phones[%d]", i), "invalid phone number")
	}
	for i, m := range cd.Emails {
		errs.Check(Email(m), fmt.Sprintf("emails[%d]", i), "invalid email address")
	}
	errs.Check(URL(cd.Website), "website", "invalid URL")
	if err := ValidateSocial(cd.Twitter, cd.Instagram); err != nil {
		errs = append(errs, err.(Errors)...)
	}
	errs.Check(Birthday(cd.Birthday), "birthday", "must be a real date in MM/DD/YYYY form")
	errs.CheckLength("company", cd.Company, MaxCompany)
	errs.CheckLength("jobTitle", cd.JobTitle, MaxJobTitle)
	errs.CheckLength("address", cd.Address, MaxAddress)
	errs.CheckLength("contactData.notes", cd.Notes, MaxContactNotes)
	return errs.Err()
}

// ValidateSocial checks X/Twitter and Instagram handles or profile URLs.
func ValidateSocial(twitter, instagram string) error {
	var errs Errors
	errs.Check(TwitterHandle(twitter), "twitter", "must be @handle (15 chars max) or a profile URL")
	errs.Check(InstagramHandle(instagram), "instagram", "must be @handle (30 chars max) or a profile URL")
	return errs.Err()
}

// ValidateRelationship checks the user-editable fields of a relationship.
func ValidateRelationship(r *models.Relationship) error {
	var errs Errors
	if strings.TrimSpace(r.ContactName) == "" {
		errs.Add("contactName", "is required")
	}
	errs.CheckLength("notes", r.Notes, MaxRelationshipNotes)
	if err := ValidateContactData(r.ContactData); err != nil {
		errs = append(errs, err.(Errors)...)
	}
	return errs.Err()
}
