// ABOUTME: Converts domain models to and from schemaless documents
// ABOUTME: Field names on disk are the models' JSON names
package crm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/harperreed/kith/db"
)

// columns live on db.Document itself rather than in Fields.
var columns = []string{"id", "userId", "createdAt", "updatedAt"}

// encode flattens v into document fields.
func encode(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	for _, c := range columns {
		delete(fields, c)
	}
	return fields, nil
}

// decode fills v from doc, including the id and timestamp columns.
func decode(doc *db.Document, v interface{}) error {
	fields := make(map[string]interface{}, len(doc.Fields)+len(columns))
	for k, val := range doc.Fields {
		fields[k] = val
	}
	fields["id"] = doc.ID
	fields["userId"] = doc.UserID
	fields["createdAt"] = doc.CreatedAt.UTC().Format(time.RFC3339Nano)
	fields["updatedAt"] = doc.UpdatedAt.UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", doc.ID, err)
	}
	return nil
}

// diff returns the patch turning before into after. Keys missing from after
// map to nil so the store removes them.
func diff(before, after map[string]interface{}) map[string]interface{} {
	patch := make(map[string]interface{})
	for k, v := range after {
		if old, ok := before[k]; !ok || !reflect.DeepEqual(old, v) {
			patch[k] = v
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			patch[k] = nil
		}
	}
	return patch
}

// decodeAll decodes docs into a slice of T.
func decodeAll[T any](docs []*db.Document) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, d := range docs {
		v := new(T)
		if err := decode(d, v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
