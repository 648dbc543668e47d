// ABOUTME: SQLite-backed document store
// ABOUTME: Persists documents as JSON fields in a single table, scoped by user

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// SQLiteStore is a Store over a local SQLite database.
type SQLiteStore struct {
	engine
	db *sql.DB
}

// OpenSQLiteStore opens the database at path and returns a store over it.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	database, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(database), nil
}

// NewSQLiteStore wraps an already-initialized database.
func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		engine: newEngine(&sqliteRows{db: database}),
		db:     database,
	}
}

// DB exposes the underlying handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

type sqliteRows struct {
	db *sql.DB
}

const documentColumns = `id, collection, user_id, fields, created_at, updated_at`

func (r *sqliteRows) insert(ctx context.Context, doc *Document) error {
	fieldsJSON, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		doc.ID,
		doc.Collection,
		doc.UserID,
		string(fieldsJSON),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

func (r *sqliteRows) fetch(ctx context.Context, collection, userID, id string) (*Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE collection = ? AND user_id = ? AND id = ?
	`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, collection, userID, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return doc, err
}

// fetchAll pushes string equality filters into SQL. Query.apply re-checks
// every filter, so the pushdown only narrows the scan.
func (r *sqliteRows) fetchAll(ctx context.Context, q Query) ([]*Document, error) {
	var where strings.Builder
	where.WriteString("collection = ? AND user_id = ?")
	args := []interface{}{q.Collection, q.UserID}

	for _, f := range q.Filters {
		s, ok := f.Value.(string)
		if !ok || f.Op != OpEq || isColumnField(f.Field) {
			continue
		}
		where.WriteString(" AND json_extract(fields, ?) = ?")
		args = append(args, jsonPath(f.Field), s)
	}

	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE ` + where.String() + `
		ORDER BY created_at DESC
	`

	rs, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rs.Close() }()

	docs := make([]*Document, 0)
	for rs.Next() {
		doc, err := scanDocument(rs)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err = rs.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *sqliteRows) replace(ctx context.Context, doc *Document) error {
	fieldsJSON, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	query := `
		UPDATE documents
		SET fields = ?, updated_at = ?
		WHERE collection = ? AND user_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(fieldsJSON),
		doc.UpdatedAt,
		doc.Collection,
		doc.UserID,
		doc.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *sqliteRows) remove(ctx context.Context, collection, userID, id string) error {
	query := `DELETE FROM documents WHERE collection = ? AND user_id = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, query, collection, userID, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *sqliteRows) close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*Document, error) {
	var doc Document
	var fieldsJSON string

	err := row.Scan(
		&doc.ID,
		&doc.Collection,
		&doc.UserID,
		&fieldsJSON,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Fields = make(map[string]interface{})
	if fieldsJSON != "" && fieldsJSON != "null" {
		if err := json.Unmarshal([]byte(fieldsJSON), &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", doc.ID, err)
		}
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return &doc, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isColumnField(field string) bool {
	switch field {
	case "id", "userId", "createdAt", "updatedAt":
		return true
	}
	return false
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}
