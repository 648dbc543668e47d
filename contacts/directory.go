// ABOUTME: Read-only access to the user's device address book
// ABOUTME: Directory contract plus the no-op and fixed-list implementations
package contacts

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/harperreed/kith/models"
)

var (
	// ErrUnavailable means no directory is configured or reachable.
	ErrUnavailable = errors.New("contact directory unavailable")
	// ErrPermissionDenied means the user has not granted access.
	ErrPermissionDenied = errors.New("contact directory permission denied")
	// ErrNotFound means the directory has no contact with that id.
	ErrNotFound = errors.New("contact not found")
)

// Directory is a read-only, permission-gated source of device contacts.
type Directory interface {
	Available(ctx context.Context) bool
	List(ctx context.Context) ([]models.DeviceContact, error)
	Get(ctx context.Context, id string) (*models.DeviceContact, error)
}

// None is the directory used when no address book is configured.
type None struct{}

func (None) Available(context.Context) bool { return false }

func (None) List(context.Context) ([]models.DeviceContact, error) {
	return nil, ErrUnavailable
}

func (None) Get(context.Context, string) (*models.DeviceContact, error) {
	return nil, ErrUnavailable
}

// Static serves a fixed list of contacts.
type Static []models.DeviceContact

func (s Static) Available(context.Context) bool { return true }

func (s Static) List(context.Context) ([]models.DeviceContact, error) {
	out := append([]models.DeviceContact(nil), s...)
	sortByName(out)
	return out, nil
}

func (s Static) Get(_ context.Context, id string) (*models.DeviceContact, error) {
	for i := range s {
		if s[i].ID == id {
			c := s[i]
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// FindByName returns the first contact whose normalized name matches, or
// nil. Directory failures are treated as no match.
func FindByName(ctx context.Context, d Directory, name string) *models.DeviceContact {
	if d == nil || !d.Available(ctx) {
		return nil
	}
	all, err := d.List(ctx)
	if err != nil {
		return nil
	}
	key := models.NormalizeName(name)
	for i := range all {
		if models.NormalizeName(all[i].Name) == key {
			return &all[i]
		}
	}
	return nil
}

// Search returns contacts whose name contains query, case-insensitively.
func Search(ctx context.Context, d Directory, query string) ([]models.DeviceContact, error) {
	all, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	q := models.NormalizeName(query)
	if q == "" {
		return all, nil
	}
	var out []models.DeviceContact
	for _, c := range all {
		if strings.Contains(models.NormalizeName(c.Name), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

func sortByName(cs []models.DeviceContact) {
	sort.SliceStable(cs, func(i, j int) bool {
		return models.NormalizeName(cs[i].Name) < models.NormalizeName(cs[j].Name)
	})
}
