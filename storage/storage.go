// Package storage holds the persistence backends: a key/value store of JSON
// records and a blob store for document payloads.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/CharlyTlelo/abc-exprezo-contratos/config"
)

// ErrNotFound is returned when a key or object does not exist.
var ErrNotFound = errors.New("storage: not found")

// Record is a stored key and its raw JSON value.
type Record struct {
	Key   string
	Value []byte
}

// Op is one write of an atomic batch. A nil Value deletes the key.
type Op struct {
	Key   string
	Value []byte
}

// Put builds a write op.
func Put(key string, value []byte) Op { return Op{Key: key, Value: value} }

// Delete builds a delete op.
func Delete(key string) Op { return Op{Key: key} }

// Backend is a key/value store of JSON records addressable by key and
// filterable by key prefix.
type Backend interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put creates or replaces a single record.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a record. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every record whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Record, error)

	// Apply commits all ops or none of them.
	Apply(ctx context.Context, ops ...Op) error

	Close() error
}

// Open builds the backend selected by cfg.
func Open(cfg *config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.Path)
	case "sqlite":
		return NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
