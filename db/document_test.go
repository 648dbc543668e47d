package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, compareValues(nil, "a"))
	assert.Equal(t, 1, compareValues(2.0, 1))
	assert.Equal(t, 0, compareValues(int64(3), 3.0))
	// RFC3339 strings with different offsets compare as instants
	assert.Equal(t, -1, compareValues("2024-01-01T10:00:00+02:00", "2024-01-01T09:00:00Z"))
	assert.Equal(t, -1, compareValues("apple", "banana"))
}

func TestMergeDeletesNilKeys(t *testing.T) {
	fields := merge(map[string]interface{}{"a": 1, "b": 2}, map[string]interface{}{"a": nil, "c": 3})
	assert.Equal(t, map[string]interface{}{"b": 2, "c": 3}, fields)
}

func TestDocumentValueExposesColumns(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d := &Document{ID: "x", UserID: "u", CreatedAt: created, Fields: map[string]interface{}{"k": "v"}}
	assert.Equal(t, "x", d.Value("id"))
	assert.Equal(t, "u", d.Value("userId"))
	assert.Equal(t, "2024-01-02T03:04:05Z", d.Value("createdAt"))
	assert.Equal(t, "v", d.Value("k"))

	c := d.Clone()
	c.Fields["k"] = "changed"
	assert.Equal(t, "v", d.Fields["k"])
}
