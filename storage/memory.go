package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Backend. Values are copied on the way in and out so
// callers never share buffers with the store.
type Memory struct {
	records map[string][]byte
	mu      sync.RWMutex
}

var _ Backend = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	return m.Apply(ctx, Put(key, value))
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	return m.Apply(ctx, Delete(key))
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Record
	for k, v := range m.records {
		if strings.HasPrefix(k, prefix) {
			result = append(result, Record{Key: k, Value: clone(v)})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *Memory) Apply(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	applyOps(m.records, ops)
	return nil
}

func (m *Memory) Close() error { return nil }

// applyOps mutates records in place. Must be called with the owner's lock held.
func applyOps(records map[string][]byte, ops []Op) {
	for _, op := range ops {
		if op.Value == nil {
			delete(records, op.Key)
			continue
		}
		records[op.Key] = clone(op.Value)
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
