// ABOUTME: Shared fixtures for crm tests
// ABOUTME: Fault-injecting store and a dispatcher that can be switched off
package crm

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/notify"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// faultyStore fails selected writes on demand.
type faultyStore struct {
	db.Store

	mu         sync.Mutex
	failCreate map[string]bool // by collection
	failDelete map[string]bool // by document id
}

func (f *faultyStore) FailCreate(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCreate[collection] = true
}

func (f *faultyStore) FailDelete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete[id] = true
}

func (f *faultyStore) Create(ctx context.Context, doc *db.Document) error {
	f.mu.Lock()
	fail := f.failCreate[doc.Collection]
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Store.Create(ctx, doc)
}

func (f *faultyStore) Delete(ctx context.Context, collection, userID, id string) error {
	f.mu.Lock()
	fail := f.failDelete[id]
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Store.Delete(ctx, collection, userID, id)
}

// switchDispatcher wraps a LocalDispatcher and can refuse to schedule.
type switchDispatcher struct {
	*notify.LocalDispatcher

	mu   sync.Mutex
	down bool
}

func (d *switchDispatcher) SetDown(down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = down
}

func (d *switchDispatcher) Schedule(ctx context.Context, due time.Time, leads []int, msg notify.Message) ([]notify.Handle, error) {
	d.mu.Lock()
	down := d.down
	d.mu.Unlock()
	if down {
		return nil, notify.ErrUnavailable
	}
	return d.LocalDispatcher.Schedule(ctx, due, leads, msg)
}

type fixture struct {
	svc        *Service
	store      *faultyStore
	dispatcher *switchDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sqlite, err := db.OpenSQLiteStore(filepath.Join(t.TempDir(), "kith.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	store := &faultyStore{Store: sqlite, failCreate: map[string]bool{}, failDelete: map[string]bool{}}
	dispatcher := &switchDispatcher{LocalDispatcher: notify.NewLocalDispatcher(nil, time.Second)}
	svc := NewService(store, identity.Static("user-1"), notify.NewScheduler(dispatcher, nil), nil)
	return &fixture{svc: svc, store: store, dispatcher: dispatcher}
}

// setClock pins every store's clock.
func (f *fixture) setClock(now time.Time) {
	clock := func() time.Time { return now }
	f.svc.now = clock
	f.svc.Relationships.now = clock
	f.svc.Activities.now = clock
	f.svc.Reminders.now = clock
}

func ptr(t time.Time) *time.Time {
	return &t
}

func fireTimes(ns []notify.Notification) []time.Time {
	out := make([]time.Time, len(ns))
	for i, n := range ns {
		out[i] = n.FireAt.UTC()
	}
	return out
}
