package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CharlyTlelo/abc-exprezo-contratos/storage"
)

const (
	contractPrefix = "contracts/"
	documentPrefix = "documents/"
	reviewPrefix   = "reviews/"
	draftPrefix    = "drafts/"
)

func contractKey(folio string) string { return contractPrefix + folio }

// Documents are keyed under their folio so listing one contract reads only
// its own records.
func documentFolioPrefix(folio string) string { return documentPrefix + folio + "/" }
func documentKey(folio, id string) string {
	return documentFolioPrefix(folio) + id
}
func reviewKey(folio, id string) string {
	return reviewPrefix + folio + "/" + id
}
func draftKey(folio, id string) string {
	return draftPrefix + folio + "/" + id
}

func getRecord[T any](ctx context.Context, b storage.Backend, key string) (T, error) {
	var v T
	data, err := b.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decoding %s: %w", key, err)
	}
	return v, nil
}

// listRecords decodes every record under prefix. Records that no longer
// decode are logged and skipped so one corrupt entry does not hide the rest.
func listRecords[T any](ctx context.Context, b storage.Backend, prefix string) ([]T, error) {
	records, err := b.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	result := make([]T, 0, len(records))
	for _, r := range records {
		var v T
		if err := json.Unmarshal(r.Value, &v); err != nil {
			slog.Warn("skipping unreadable record", "key", r.Key, "error", err)
			continue
		}
		result = append(result, v)
	}
	return result, nil
}

func putOp(key string, v any) (storage.Op, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return storage.Op{}, fmt.Errorf("encoding %s: %w", key, err)
	}
	return storage.Put(key, data), nil
}

func putRecord(ctx context.Context, b storage.Backend, key string, v any) error {
	op, err := putOp(key, v)
	if err != nil {
		return err
	}
	return b.Apply(ctx, op)
}
