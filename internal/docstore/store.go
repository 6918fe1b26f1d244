// Package docstore is the remote document store: hierarchical documents
// addressed by slash-separated paths with snapshot listeners and transactions.
package docstore

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("docstore: document not found")
	ErrAlreadyExists = errors.New("docstore: document already exists")
	ErrInvalidPath   = errors.New("docstore: invalid path")
)

type deleteSentinel struct{}

// DeleteField removes a field when used as a value in Merge.
var DeleteField interface{} = deleteSentinel{}

// Snapshot is one document as seen by the store at a point in time.
type Snapshot struct {
	Path   string
	ID     string
	Exists bool
	Data   map[string]interface{}

	decode func(dst interface{}) error
}

// DataTo decodes the document into dst using `firestore` struct tags.
func (s *Snapshot) DataTo(dst interface{}) error {
	if s == nil || !s.Exists {
		return ErrNotFound
	}
	if s.decode != nil {
		return s.decode(dst)
	}
	return decodeMap(s.Data, dst)
}

type Filter struct {
	Field string
	Value interface{}
}

// Query selects the documents of one collection whose fields equal every filter value.
type Query struct {
	Collection string
	Filters    []Filter
}

func (q Query) Where(field string, value interface{}) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

func Collection(path string) Query {
	return Query{Collection: path}
}

type DocFunc func(snap *Snapshot, err error)

type QueryFunc func(snaps []*Snapshot, err error)

// Store is implemented by the Firestore, Postgres and in-memory backends.
//
// Watch calls deliver the current state first and then every change, in
// order, until ctx is cancelled. Listener errors are reported through the
// callback; the backend keeps retrying where it can.
type Store interface {
	Get(ctx context.Context, path string) (*Snapshot, error)
	Set(ctx context.Context, path string, data map[string]interface{}) error
	// Merge deep-merges nested maps and replaces every other value.
	Merge(ctx context.Context, path string, data map[string]interface{}) error
	Delete(ctx context.Context, path string) error
	Query(ctx context.Context, q Query) ([]*Snapshot, error)
	WatchDoc(ctx context.Context, path string, fn DocFunc)
	WatchQuery(ctx context.Context, q Query, fn QueryFunc)
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Tx reads must happen before writes.
type Tx interface {
	Get(path string) (*Snapshot, error)
	Create(path string, data map[string]interface{}) error
	Set(path string, data map[string]interface{}) error
	Merge(path string, data map[string]interface{}) error
	Delete(path string) error
}

// splitPath returns the parent collection path and document id.
func splitPath(path string) (string, string, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return "", "", ErrInvalidPath
	}
	for _, p := range parts {
		if p == "" {
			return "", "", ErrInvalidPath
		}
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

func validCollection(path string) bool {
	parts := strings.Split(path, "/")
	if len(parts)%2 != 1 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

var errReadAfterWrite = errors.New("docstore: transaction reads must precede writes")
