// ABOUTME: Google People API contact directory
// ABOUTME: Pages through people/me connections and maps them to device contacts
package contacts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/harperreed/kith/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

const personFields = "names,emailAddresses,phoneNumbers,organizations,addresses,birthdays,biographies"

// Google reads contacts from the People API.
type Google struct {
	service *people.Service
}

// NewGoogle builds a directory authenticated with token.
func NewGoogle(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*Google, error) {
	if token == nil {
		return nil, fmt.Errorf("%w: token cannot be nil", ErrPermissionDenied)
	}

	client := cfg.Client(ctx, token)
	service, err := people.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}
	return &Google{service: service}, nil
}

func (g *Google) Available(context.Context) bool {
	return g != nil && g.service != nil
}

// List fetches every connection, following page tokens.
func (g *Google) List(ctx context.Context) ([]models.DeviceContact, error) {
	if !g.Available(ctx) {
		return nil, ErrUnavailable
	}

	var out []models.DeviceContact
	pageToken := ""
	for {
		call := g.service.People.Connections.List("people/me").
			PageSize(1000).
			PersonFields(personFields).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, mapAPIError(err)
		}
		if resp == nil {
			break
		}
		for _, p := range resp.Connections {
			if c := convertPerson(p); c.Name != "" {
				out = append(out, c)
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	sortByName(out)
	return out, nil
}

// Get fetches one person by resource name.
func (g *Google) Get(ctx context.Context, id string) (*models.DeviceContact, error) {
	if !g.Available(ctx) {
		return nil, ErrUnavailable
	}
	p, err := g.service.People.Get(id).PersonFields(personFields).Context(ctx).Do()
	if err != nil {
		return nil, mapAPIError(err)
	}
	c := convertPerson(p)
	return &c, nil
}

func mapAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case http.StatusNotFound:
			return ErrNotFound
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// convertPerson maps a People API person, keeping every phone and email
// with the primary one first.
func convertPerson(p *people.Person) models.DeviceContact {
	c := models.DeviceContact{
		ID:     p.ResourceName,
		Phones: []string{},
		Emails: []string{},
	}

	if len(p.Names) > 0 {
		c.Name = p.Names[0].DisplayName
	}

	for _, e := range p.EmailAddresses {
		if e.Value == "" {
			continue
		}
		if e.Metadata != nil && e.Metadata.Primary {
			c.Emails = append([]string{e.Value}, c.Emails...)
		} else {
			c.Emails = append(c.Emails, e.Value)
		}
	}

	for _, ph := range p.PhoneNumbers {
		if ph.Value == "" {
			continue
		}
		if ph.Metadata != nil && ph.Metadata.Primary {
			c.Phones = append([]string{ph.Value}, c.Phones...)
		} else {
			c.Phones = append(c.Phones, ph.Value)
		}
	}

	if len(p.Organizations) > 0 {
		c.Company = p.Organizations[0].Name
		c.JobTitle = p.Organizations[0].Title
	}

	if len(p.Addresses) > 0 {
		c.Address = p.Addresses[0].FormattedValue
	}

	for _, b := range p.Birthdays {
		if b.Date != nil && b.Date.Year > 0 && b.Date.Month > 0 && b.Date.Day > 0 {
			c.Birthday = fmt.Sprintf("%02d/%02d/%04d", b.Date.Month, b.Date.Day, b.Date.Year)
			break
		}
	}

	if len(p.Biographies) > 0 {
		c.Note = p.Biographies[0].Value
	}

	return c
}
