// ABOUTME: Copies one user's documents between stores
// ABOUTME: Used to move data from local SQLite to Charm and back, keeping ids and timestamps
package db

import (
	"context"
	"errors"
	"fmt"
)

// Restorer accepts documents that already carry an id and timestamps.
type Restorer interface {
	Store
	Restore(ctx context.Context, doc *Document) error
}

// Restore inserts doc as-is, keeping its id and timestamps.
func (e *engine) Restore(ctx context.Context, doc *Document) error {
	if doc == nil || doc.ID == "" {
		return ErrInvalidDocument
	}
	if err := validateScope(doc.Collection, doc.UserID); err != nil {
		return err
	}
	if doc.Fields == nil {
		doc.Fields = make(map[string]interface{})
	}
	if err := e.rows.insert(ctx, doc); err != nil {
		return err
	}
	e.broker.publish(doc.Collection, doc.UserID)
	return nil
}

// CopyStats counts documents per collection.
type CopyStats struct {
	Copied  map[string]int
	Skipped map[string]int
}

// Copy moves every document userID owns from src into dst. Documents whose
// id already exists in dst are skipped, so an interrupted copy can be
// rerun. With dryRun nothing is written.
func Copy(ctx context.Context, src Store, dst Restorer, userID string, dryRun bool) (CopyStats, error) {
	stats := CopyStats{Copied: map[string]int{}, Skipped: map[string]int{}}
	for _, collection := range []string{CollectionRelationships, CollectionActivities, CollectionReminders} {
		docs, err := src.Query(ctx, Query{Collection: collection, UserID: userID})
		if err != nil {
			return stats, fmt.Errorf("read %s: %w", collection, err)
		}
		for _, doc := range docs {
			_, err := dst.Get(ctx, collection, userID, doc.ID)
			switch {
			case err == nil:
				stats.Skipped[collection]++
				continue
			case !errors.Is(err, ErrNotFound):
				return stats, fmt.Errorf("check %s/%s: %w", collection, doc.ID, err)
			}
			if !dryRun {
				if err := dst.Restore(ctx, doc); err != nil {
					return stats, fmt.Errorf("write %s/%s: %w", collection, doc.ID, err)
				}
			}
			stats.Copied[collection]++
		}
	}
	return stats, nil
}
