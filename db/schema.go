// ABOUTME: Database schema definitions
// ABOUTME: One documents table holding every collection as JSON fields
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	user_id TEXT NOT NULL,
	fields TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_scope ON documents(collection, user_id);
CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(collection, user_id, updated_at DESC);
`

// InitSchema creates the documents table if it does not exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
