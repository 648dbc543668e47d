// ABOUTME: Data models for engagement tracking entities
// ABOUTME: Defines Relationship, Activity, Reminder and the device contact shape
package models

import (
	"strings"
	"time"
)

// Frequency is the cadence at which the user intends to stay in touch.
type Frequency string

const (
	FrequencyNever   Frequency = "never"
	FrequencyWeek    Frequency = "week"
	FrequencyMonth   Frequency = "month"
	Frequency3Months Frequency = "3months"
	Frequency6Months Frequency = "6months"
	FrequencyYear    Frequency = "year"
	FrequencyYearly  Frequency = "yearly"
)

// Defaults applied to lazily created relationships.
const (
	DefaultFrequency     = FrequencyMonth
	DefaultContactMethod = ContactMethodOther
)

// Contact method constants.
const (
	ContactMethodCall     = "call"
	ContactMethodText     = "text"
	ContactMethodEmail    = "email"
	ContactMethodInPerson = "inPerson"
	ContactMethodOther    = "other"
)

// ActivityType is immutable once an activity is created.
type ActivityType string

const (
	ActivityNote        ActivityType = "note"
	ActivityInteraction ActivityType = "interaction"
	ActivityReminder    ActivityType = "reminder"
)

// Valid reports whether t is one of the three activity variants.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityNote, ActivityInteraction, ActivityReminder:
		return true
	}
	return false
}

// InteractionType constants.
const (
	InteractionCall     = "call"
	InteractionText     = "text"
	InteractionEmail    = "email"
	InteractionInPerson = "inPerson"
)

// ValidInteractionType reports whether s is a known interaction type.
func ValidInteractionType(s string) bool {
	switch s {
	case InteractionCall, InteractionText, InteractionEmail, InteractionInPerson:
		return true
	}
	return false
}

// Note category and reminder type defaults.
const (
	DefaultNoteCategory = "general"
	DefaultReminderType = "follow_up"
)

type FamilyInfo struct {
	Kids     string `json:"kids,omitempty"`
	Siblings string `json:"siblings,omitempty"`
	Spouse   string `json:"spouse,omitempty"`
}

type ContactData struct {
	Phones    []string `json:"phones"`
	Emails    []string `json:"emails"`
	Website   string   `json:"website,omitempty"`
	Twitter   string   `json:"twitter,omitempty"`
	Instagram string   `json:"instagram,omitempty"`
	Company   string   `json:"company,omitempty"`
	JobTitle  string   `json:"jobTitle,omitempty"`
	Address   string   `json:"address,omitempty"`
	Birthday  string   `json:"birthday,omitempty"` // MM/DD/YYYY
	Notes     string   `json:"notes,omitempty"`
}

// Relationship is the stored per-contact engagement record.
type Relationship struct {
	ID                string      `json:"id"`
	UserID            string      `json:"userId"`
	ContactID         string      `json:"contactId,omitempty"`
	ContactName       string      `json:"contactName"`
	LastContactDate   time.Time   `json:"lastContactDate"`
	LastContactMethod string      `json:"lastContactMethod"`
	ReminderFrequency Frequency   `json:"reminderFrequency"`
	NextReminderDate  *time.Time  `json:"nextReminderDate,omitempty"`
	Tags              []string    `json:"tags"`
	Notes             string      `json:"notes,omitempty"`
	FamilyInfo        FamilyInfo  `json:"familyInfo"`
	ContactData       ContactData `json:"contactData"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// Activity is a timestamped event attached to a relationship. The variant
// payload is flattened: only the fields of the activity's Type are populated.
type Activity struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Type        ActivityType `json:"type"`
	Description string       `json:"description,omitempty"`
	Tags        []string     `json:"tags"`
	IsArchived  bool         `json:"isArchived"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`

	ContactID      string `json:"contactId,omitempty"`
	ContactName    string `json:"contactName,omitempty"`
	RelationshipID string `json:"relationshipId,omitempty"`

	// note
	Content  string `json:"content,omitempty"`
	Category string `json:"category,omitempty"`

	// interaction
	InteractionType string     `json:"interactionType,omitempty"`
	Date            *time.Time `json:"date,omitempty"`
	Duration        int        `json:"duration,omitempty"` // minutes
	Location        string     `json:"location,omitempty"`

	// reminder
	ReminderDate *time.Time `json:"reminderDate,omitempty"`
	ReminderType string     `json:"reminderType,omitempty"`
	Frequency    Frequency  `json:"frequency,omitempty"`
	ReminderID   string     `json:"reminderId,omitempty"`
	IsCompleted  bool       `json:"isCompleted,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Reminder is the scheduled follow-up entity backing a reminder activity.
type Reminder struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"userId"`
	ContactName         string    `json:"contactName"`
	ContactID           string    `json:"contactId,omitempty"`
	RelationshipID      string    `json:"relationshipId,omitempty"`
	Type                string    `json:"type"`
	Date                time.Time `json:"date"`
	Frequency           Frequency `json:"frequency"`
	Tags                []string  `json:"tags"`
	Notes               string    `json:"notes,omitempty"`
	IsOverdue           bool      `json:"isOverdue"`
	IsThisWeek          bool      `json:"isThisWeek"`
	IsCompleted         bool      `json:"isCompleted,omitempty"`
	NotificationHandles []string  `json:"notificationHandles,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// RefreshFlags recomputes the cached IsOverdue and IsThisWeek booleans.
// A completed reminder is neither.
func (r *Reminder) RefreshFlags(now time.Time) {
	if r.IsCompleted {
		r.IsOverdue, r.IsThisWeek = false, false
		return
	}
	r.IsOverdue = r.Date.Before(now)
	r.IsThisWeek = !r.IsOverdue && r.Date.Before(now.AddDate(0, 0, 7))
}

// DeviceContact is a read-only record from a contact directory.
type DeviceContact struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Phones   []string `json:"phones"`
	Emails   []string `json:"emails"`
	Company  string   `json:"company,omitempty"`
	JobTitle string   `json:"jobTitle,omitempty"`
	Address  string   `json:"address,omitempty"`
	Birthday string   `json:"birthday,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// NormalizeName is the dedup key for relationships: trimmed and case-folded.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
