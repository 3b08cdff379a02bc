package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/CharlyTlelo/abc-exprezo-contratos/model"
	"github.com/CharlyTlelo/abc-exprezo-contratos/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const exportConcurrency = 4

// ExportName is the file name offered for a contract's bundle.
func ExportName(folio string) string {
	return folio + "-modelado.zip"
}

// Export writes a ZIP of every document of the contract to out, one folder
// per section. Payloads are fetched concurrently; nothing is written to out
// until all of them are in memory, so a cancelled export writes nothing.
func (w *Workflow) Export(ctx context.Context, folio string, out io.Writer) (int, error) {
	if _, err := w.registry.Get(ctx, folio); err != nil {
		return 0, err
	}
	sections, err := w.docs.ListByFolio(ctx, folio)
	if err != nil {
		return 0, err
	}

	var docs []model.Document
	for _, sec := range model.Sections {
		docs = append(docs, sections[sec]...)
	}

	payloads := make([][]byte, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)
	for i, d := range docs {
		i, d := i, d
		g.Go(func() error {
			data, err := w.docs.payload(gctx, d)
			if err != nil {
				return err
			}
			payloads[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("exporting %s: %w", folio, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	zw := zip.NewWriter(out)
	names := make(map[string]int)
	for i, d := range docs {
		header := &zip.FileHeader{
			Name:     uniqueName(names, path.Join(string(d.Section), d.Name)),
			Method:   zip.Deflate,
			Modified: d.CreatedAt,
		}
		f, err := zw.CreateHeader(header)
		if err != nil {
			return 0, fmt.Errorf("exporting %s: %w", folio, err)
		}
		if _, err := f.Write(payloads[i]); err != nil {
			return 0, fmt.Errorf("exporting %s: %w", folio, err)
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("exporting %s: %w", folio, err)
	}

	logger.Info(logger.WithFolio(ctx, folio), "contract exported", "documents", len(docs))
	return len(docs), nil
}

// uniqueName returns name, or name with a " (n)" suffix before the extension
// when it was already used.
func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for {
		n++
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if used[candidate] == 0 {
			used[candidate] = 1
			return candidate
		}
	}
}
