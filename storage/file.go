package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// File is a Backend kept in memory and snapshotted to a single JSON file on
// every write. Snapshots are written to a temp file and renamed into place.
type File struct {
	path    string
	records map[string][]byte
	mu      sync.RWMutex
}

var _ Backend = (*File)(nil)

// NewFile opens the snapshot at path. A missing file starts an empty store; a
// snapshot that is not valid JSON is logged and also starts empty.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file store needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	f := &File{path: path, records: make(map[string][]byte)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var snapshot map[string]json.RawMessage
	if err := json.Unmarshal(data, &snapshot); err != nil {
		slog.Warn("discarding unreadable store snapshot", "path", path, "error", err)
		return f, nil
	}
	for k, v := range snapshot {
		f.records[k] = []byte(v)
	}
	return f, nil
}

func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (f *File) Put(ctx context.Context, key string, value []byte) error {
	return f.Apply(ctx, Put(key, value))
}

func (f *File) Delete(ctx context.Context, key string) error {
	return f.Apply(ctx, Delete(key))
}

func (f *File) List(ctx context.Context, prefix string) ([]Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var result []Record
	for k, v := range f.records {
		if strings.HasPrefix(k, prefix) {
			result = append(result, Record{Key: k, Value: clone(v)})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (f *File) Apply(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	next := make(map[string][]byte, len(f.records)+len(ops))
	for k, v := range f.records {
		next[k] = v
	}
	applyOps(next, ops)

	if err := f.write(next); err != nil {
		return err
	}
	f.records = next
	return nil
}

func (f *File) Close() error { return nil }

// write must be called with the lock held.
func (f *File) write(records map[string][]byte) error {
	snapshot := make(map[string]json.RawMessage, len(records))
	for k, v := range records {
		snapshot[k] = json.RawMessage(v)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".contratos-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}
