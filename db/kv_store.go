// ABOUTME: Document store over a synced key/value client
// ABOUTME: Stores each document as JSON under doc/<collection>/<user>/<id>

package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// KV is the key/value surface of charm.Client.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	KeysWithPrefix(prefix []byte) ([][]byte, error)
}

// KVStore is a Store over a key/value client.
type KVStore struct {
	engine
}

// NewKVStore returns a store that keeps documents in kv.
func NewKVStore(kv KV) *KVStore {
	return &KVStore{engine: newEngine(&kvRows{kv: kv})}
}

type kvRows struct {
	kv KV
	// serializes read-modify-write cycles; the KV has no transactions
	mu sync.Mutex
}

// Segments are escaped so a "/" in a user id or document id cannot reach
// into another user's prefix.
func docKey(collection, userID, id string) []byte {
	return append(scopePrefix(collection, userID), url.PathEscape(id)...)
}

func scopePrefix(collection, userID string) []byte {
	return []byte(fmt.Sprintf("doc/%s/%s/", url.PathEscape(collection), url.PathEscape(userID)))
}

func (r *kvRows) insert(_ context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := docKey(doc.Collection, doc.UserID, doc.ID)
	if _, err := r.kv.Get(key); err == nil {
		return fmt.Errorf("%w: duplicate id %s", ErrInvalidDocument, doc.ID)
	}
	return r.put(doc)
}

func (r *kvRows) put(doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return r.kv.Set(docKey(doc.Collection, doc.UserID, doc.ID), data)
}

func (r *kvRows) fetch(_ context.Context, collection, userID, id string) (*Document, error) {
	doc, err := r.load(docKey(collection, userID, id))
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID || doc.ID != id {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (r *kvRows) load(key []byte) (*Document, error) {
	data, err := r.kv.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if doc.Fields == nil {
		doc.Fields = make(map[string]interface{})
	}
	return &doc, nil
}

func (r *kvRows) fetchAll(_ context.Context, q Query) ([]*Document, error) {
	keys, err := r.kv.KeysWithPrefix(scopePrefix(q.Collection, q.UserID))
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, len(keys))
	for _, k := range keys {
		doc, err := r.load(k)
		if errors.Is(err, ErrNotFound) {
			// deleted between listing and loading
			continue
		}
		if err != nil {
			return nil, err
		}
		if doc.UserID != q.UserID {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *kvRows) replace(_ context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.kv.Get(docKey(doc.Collection, doc.UserID, doc.ID)); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return r.put(doc)
}

func (r *kvRows) remove(_ context.Context, collection, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := docKey(collection, userID, id)
	if _, err := r.kv.Get(key); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return r.kv.Delete(key)
}

func (r *kvRows) close() error {
	return nil
}
