package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/CharlyTlelo/abc-exprezo-contratos/config"
)

// BlobStore holds binary payloads by object name.
type BlobStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, objectName string) ([]byte, error)
	Remove(ctx context.Context, objectName string) error
}

// Presigner is implemented by blob stores that can hand out time-limited
// download URLs instead of streaming through the API.
type Presigner interface {
	PresignedURL(ctx context.Context, objectName string) (string, error)
}

// OpenBlobs builds the blob store selected by cfg.
func OpenBlobs(ctx context.Context, cfg *config.BlobConfig) (BlobStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryBlobs(), nil
	case "minio":
		blobs, err := NewMinioBlobs(&cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return blobs, nil
	default:
		return nil, fmt.Errorf("unknown blobs driver %q", cfg.Driver)
	}
}

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryBlobs is a BlobStore kept in a map.
type MemoryBlobs struct {
	objects map[string]memoryObject
	mu      sync.RWMutex
}

var _ BlobStore = (*MemoryBlobs)(nil)

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{objects: make(map[string]memoryObject)}
}

func (m *MemoryBlobs) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, reader); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = memoryObject{
		data:        buf.Bytes(),
		contentType: contentType,
		modified:    time.Now(),
	}
	return nil
}

func (m *MemoryBlobs) Download(ctx context.Context, objectName string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[objectName]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(obj.data), nil
}

func (m *MemoryBlobs) Remove(ctx context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	return nil
}

// Len returns the number of stored objects.
func (m *MemoryBlobs) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
