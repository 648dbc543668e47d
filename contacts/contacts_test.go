// ABOUTME: Tests for contact directories
// ABOUTME: Static lookup, name search and Google permission mapping
package contacts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/people/v1"
)

func TestNoneDirectory(t *testing.T) {
	ctx := context.Background()
	assert.False(t, None{}.Available(ctx))
	_, err := None{}.List(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, FindByName(ctx, None{}, "Alex"))
}

func TestStaticDirectory(t *testing.T) {
	ctx := context.Background()
	dir := Static{
		{ID: "2", Name: "sam Lee", Phones: []string{"555-0101"}},
		{ID: "1", Name: "Alex Kim", Emails: []string{"alex@example.com"}},
	}

	all, err := dir.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alex Kim", all[0].Name)

	c, err := dir.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "sam Lee", c.Name)

	_, err = dir.Get(ctx, "3")
	assert.ErrorIs(t, err, ErrNotFound)

	found := FindByName(ctx, dir, "  SAM LEE ")
	require.NotNil(t, found)
	assert.Equal(t, "2", found.ID)

	hits, err := Search(ctx, dir, "kim")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].ID)
}

func TestConvertPerson(t *testing.T) {
	p := &people.Person{
		ResourceName: "people/c1",
		Names:        []*people.Name{{DisplayName: "Alex Kim"}},
		EmailAddresses: []*people.EmailAddress{
			{Value: "work@example.com"},
			{Value: "home@example.com", Metadata: &people.FieldMetadata{Primary: true}},
		},
		PhoneNumbers:  []*people.PhoneNumber{{Value: "+1 555 0100"}, {Value: ""}},
		Organizations: []*people.Organization{{Name: "Acme", Title: "Engineer"}},
		Addresses:     []*people.Address{{FormattedValue: "1 Main St"}},
		Birthdays:     []*people.Birthday{{Date: &people.Date{Month: 0, Day: 3}}, {Date: &people.Date{Year: 1990, Month: 1, Day: 15}}},
		Biographies:   []*people.Biography{{Value: "met at conf"}},
	}

	c := convertPerson(p)
	assert.Equal(t, models.DeviceContact{
		ID:       "people/c1",
		Name:     "Alex Kim",
		Phones:   []string{"+1 555 0100"},
		Emails:   []string{"home@example.com", "work@example.com"},
		Company:  "Acme",
		JobTitle: "Engineer",
		Address:  "1 Main St",
		Birthday: "01/15/1990",
		Note:     "met at conf",
	}, c)
}

func TestMapAPIError(t *testing.T) {
	denied := mapAPIError(&googleapi.Error{Code: 403})
	assert.ErrorIs(t, denied, ErrPermissionDenied)

	missing := mapAPIError(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 404}))
	assert.ErrorIs(t, missing, ErrNotFound)

	other := mapAPIError(errors.New("dial tcp: timeout"))
	assert.ErrorIs(t, other, ErrUnavailable)
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kith", "google-token.json")

	_, err := LoadToken(path)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	tok := &oauth2.Token{AccessToken: "abc", RefreshToken: "def", Expiry: time.Now().Add(time.Hour).Truncate(time.Second)}
	require.NoError(t, SaveToken(path, tok))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded.AccessToken)
	assert.Equal(t, "def", loaded.RefreshToken)
	assert.True(t, tok.Expiry.Equal(loaded.Expiry))
}

func TestOAuthConfigScopes(t *testing.T) {
	cfg := NewOAuthConfig("id", "secret")
	assert.Equal(t, []string{contactsScope}, cfg.Scopes)
	assert.Contains(t, cfg.AuthCodeURL("state"), "contacts.readonly")
}
