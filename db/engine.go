// ABOUTME: Backend-independent Store implementation
// ABOUTME: Adds ownership checks, patch merging and subscriptions over raw row access
package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// rows is the raw persistence a backend provides. Lookups are always
// scoped by collection and user, so foreign documents read as missing.
type rows interface {
	insert(ctx context.Context, doc *Document) error
	fetch(ctx context.Context, collection, userID, id string) (*Document, error)
	fetchAll(ctx context.Context, q Query) ([]*Document, error)
	replace(ctx context.Context, doc *Document) error
	remove(ctx context.Context, collection, userID, id string) error
	close() error
}

type engine struct {
	rows   rows
	broker *broker
	now    func() time.Time
}

func newEngine(r rows) engine {
	return engine{
		rows:   r,
		broker: newBroker(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create assigns an id and timestamps, then persists doc.
func (e *engine) Create(ctx context.Context, doc *Document) error {
	if doc == nil {
		return ErrInvalidDocument
	}
	if err := validateScope(doc.Collection, doc.UserID); err != nil {
		return err
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Fields == nil {
		doc.Fields = make(map[string]interface{})
	}
	now := e.now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if err := e.rows.insert(ctx, doc); err != nil {
		return err
	}
	e.broker.publish(doc.Collection, doc.UserID)
	return nil
}

// Get returns the document or ErrNotFound.
func (e *engine) Get(ctx context.Context, collection, userID, id string) (*Document, error) {
	if err := validateScope(collection, userID); err != nil {
		return nil, err
	}
	return e.rows.fetch(ctx, collection, userID, id)
}

// Query returns the user's matching documents.
func (e *engine) Query(ctx context.Context, q Query) ([]*Document, error) {
	if err := validateScope(q.Collection, q.UserID); err != nil {
		return nil, err
	}
	docs, err := e.rows.fetchAll(ctx, q)
	if err != nil {
		return nil, err
	}
	return q.apply(docs), nil
}

// Update merges patch and bumps updatedAt.
func (e *engine) Update(ctx context.Context, collection, userID, id string, patch map[string]interface{}) (*Document, error) {
	if err := validateScope(collection, userID); err != nil {
		return nil, err
	}
	doc, err := e.rows.fetch(ctx, collection, userID, id)
	if err != nil {
		return nil, err
	}
	doc.Fields = merge(doc.Fields, patch)
	doc.UpdatedAt = e.now()

	if err := e.rows.replace(ctx, doc); err != nil {
		return nil, err
	}
	e.broker.publish(collection, userID)
	return doc, nil
}

// Delete removes the document or returns ErrNotFound.
func (e *engine) Delete(ctx context.Context, collection, userID, id string) error {
	if err := validateScope(collection, userID); err != nil {
		return err
	}
	if err := e.rows.remove(ctx, collection, userID, id); err != nil {
		return err
	}
	e.broker.publish(collection, userID)
	return nil
}

// Subscribe delivers q's result set now and after each write in its scope.
func (e *engine) Subscribe(q Query, fn func([]*Document)) (func(), error) {
	if err := validateScope(q.Collection, q.UserID); err != nil {
		return nil, err
	}
	return e.broker.subscribe(q, fn, e.Query), nil
}

// Close stops subscriptions and releases the backend.
func (e *engine) Close() error {
	e.broker.close()
	return e.rows.close()
}
