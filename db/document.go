// ABOUTME: Schemaless per-user document model and store contract
// ABOUTME: Filtering, ordering and patch merging shared by every backend
package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound covers both missing documents and documents owned by
	// another user.
	ErrNotFound = errors.New("document not found")
	// ErrNoUser is returned when an operation has no owning user id.
	ErrNoUser          = errors.New("no user id")
	ErrInvalidDocument = errors.New("invalid document")
)

// Collections used by kith.
const (
	CollectionRelationships = "relationships"
	CollectionActivities    = "activities"
	CollectionReminders     = "reminders"
)

// Document is one stored record. Fields carries the domain payload using the
// persisted field names.
type Document struct {
	ID         string                 `json:"id"`
	Collection string                 `json:"collection"`
	UserID     string                 `json:"userId"`
	Fields     map[string]interface{} `json:"fields"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// Op is a filter comparison.
type Op int

const (
	// OpEq matches equal values.
	OpEq Op = iota
	// OpEqFold matches strings equal after trimming and case folding.
	OpEqFold
)

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Order sorts query results by Field.
type Order struct {
	Field string
	Desc  bool
}

// Query selects documents from one collection owned by one user.
type Query struct {
	Collection string
	UserID     string
	Filters    []Filter
	Order      *Order
	Limit      int
}

// Where appends an equality filter.
func (q Query) Where(field string, value interface{}) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: OpEq, Value: value})
	return q
}

// WhereFold appends a case-insensitive string filter.
func (q Query) WhereFold(field, value string) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: OpEqFold, Value: value})
	return q
}

// OrderBy sets the sort order.
func (q Query) OrderBy(field string, desc bool) Query {
	q.Order = &Order{Field: field, Desc: desc}
	return q
}

// Store is schemaless per-user document persistence with live subscriptions.
// Every operation is scoped by user id.
type Store interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, collection, userID, id string) (*Document, error)
	Query(ctx context.Context, q Query) ([]*Document, error)
	// Update merges patch into the document's fields. A nil value removes
	// the key.
	Update(ctx context.Context, collection, userID, id string, patch map[string]interface{}) (*Document, error)
	Delete(ctx context.Context, collection, userID, id string) error
	// Subscribe calls fn with the full result set of q now and after every
	// write to q's collection and user. The returned func stops delivery.
	Subscribe(q Query, fn func([]*Document)) (func(), error)
	Close() error
}

// Value returns a document field, including the id and timestamp columns.
func (d *Document) Value(field string) interface{} {
	switch field {
	case "id":
		return d.ID
	case "userId":
		return d.UserID
	case "createdAt":
		return d.CreatedAt.UTC().Format(time.RFC3339Nano)
	case "updatedAt":
		return d.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return d.Fields[field]
}

// Clone returns a copy whose Fields map can be mutated independently.
func (d *Document) Clone() *Document {
	c := *d
	c.Fields = make(map[string]interface{}, len(d.Fields))
	for k, v := range d.Fields {
		c.Fields[k] = v
	}
	return &c
}

// Matches reports whether d satisfies every filter.
func (f Filter) Matches(d *Document) bool {
	v := d.Value(f.Field)
	switch f.Op {
	case OpEqFold:
		a, ok1 := v.(string)
		b, ok2 := f.Value.(string)
		return ok1 && ok2 && foldKey(a) == foldKey(b)
	default:
		return equalValues(v, f.Value)
	}
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func equalValues(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// compareValues orders nil first, then numbers, then times, then strings.
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if ta, err := time.Parse(time.RFC3339Nano, as); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, bs); err == nil {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(as, bs)
}

// apply filters, orders and limits docs in place.
func (q Query) apply(docs []*Document) []*Document {
	out := docs[:0]
	for _, d := range docs {
		keep := true
		for _, f := range q.Filters {
			if !f.Matches(d) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, d)
		}
	}

	if q.Order != nil {
		field, desc := q.Order.Field, q.Order.Desc
		sort.SliceStable(out, func(i, j int) bool {
			c := compareValues(out[i].Value(field), out[j].Value(field))
			if c == 0 {
				return out[i].ID < out[j].ID
			}
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// merge applies patch to fields. Nil values delete keys.
func merge(fields, patch map[string]interface{}) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{}, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}
	return fields
}

func validateScope(collection, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	if collection == "" {
		return fmt.Errorf("%w: empty collection", ErrInvalidDocument)
	}
	return nil
}
