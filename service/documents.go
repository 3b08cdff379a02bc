package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/CharlyTlelo/abc-exprezo-contratos/model"
	"github.com/CharlyTlelo/abc-exprezo-contratos/pkg/logger"
	"github.com/CharlyTlelo/abc-exprezo-contratos/storage"
	"github.com/google/uuid"
)

const pdfContentType = "application/pdf"

// DocumentStore keeps document metadata in the record backend and payloads in
// the blob store. Approved documents are frozen: every mutating method checks.
type DocumentStore struct {
	backend storage.Backend
	blobs   storage.BlobStore
	now     func() time.Time
}

func NewDocumentStore(backend storage.Backend, blobs storage.BlobStore) *DocumentStore {
	return &DocumentStore{backend: backend, blobs: blobs, now: time.Now}
}

// Get returns the document id of folio.
func (s *DocumentStore) Get(ctx context.Context, folio, id string) (model.Document, error) {
	doc, err := getRecord[model.Document](ctx, s.backend, documentKey(folio, id))
	if err != nil {
		return doc, fmt.Errorf("document %s in contract %s: %w", id, folio, err)
	}
	return doc, nil
}

// ListBySection returns the documents of one folio and section, oldest first.
func (s *DocumentStore) ListBySection(ctx context.Context, folio string, section model.Section) ([]model.Document, error) {
	all, err := s.listFolio(ctx, folio)
	if err != nil {
		return nil, err
	}
	var result []model.Document
	for _, d := range all {
		if d.Section == section {
			result = append(result, d)
		}
	}
	return result, nil
}

// ListByFolio groups a folio's documents by section. Every pipeline stage is
// present in the result, empty ones included.
func (s *DocumentStore) ListByFolio(ctx context.Context, folio string) (map[model.Section][]model.Document, error) {
	all, err := s.listFolio(ctx, folio)
	if err != nil {
		return nil, err
	}
	sections := make(map[model.Section][]model.Document, len(model.Sections))
	for _, sec := range model.Sections {
		sections[sec] = nil
	}
	for _, d := range all {
		if _, ok := sections[d.Section]; ok {
			sections[d.Section] = append(sections[d.Section], d)
		}
	}
	return sections, nil
}

func (s *DocumentStore) listFolio(ctx context.Context, folio string) ([]model.Document, error) {
	result, err := listRecords[model.Document](ctx, s.backend, documentFolioPrefix(folio))
	if err != nil {
		return nil, fmt.Errorf("listing documents of %s: %w", folio, err)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Add stores a new PDF under folio and section. The payload is written first;
// if the metadata cannot be committed the payload is removed again.
func (s *DocumentStore) Add(ctx context.Context, folio string, section model.Section, content model.Content) (model.Document, error) {
	if !section.Valid() {
		return model.Document{}, fmt.Errorf("%w: %q", ErrInvalidSection, section)
	}
	content = content.Normalized()
	if err := checkPDF(content); err != nil {
		return model.Document{}, err
	}

	doc := model.Document{
		ID:          uuid.NewString(),
		Folio:       folio,
		Section:     section,
		Name:        content.Name,
		Size:        int64(len(content.Data)),
		ContentType: pdfContentType,
		CreatedAt:   s.now().UTC(),
		Revision:    1,
		Review:      model.ReviewNone,
	}

	if err := s.commitWithPayload(ctx, doc, content.Data); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

// Replace swaps the payload of a document and restarts its review cycle.
func (s *DocumentStore) Replace(ctx context.Context, folio, id string, content model.Content) (model.Document, error) {
	doc, err := s.Get(ctx, folio, id)
	if err != nil {
		return doc, err
	}
	if doc.Approved() {
		return doc, fmt.Errorf("replace document %s: %w", id, ErrImmutable)
	}
	content = content.Normalized()
	if err := checkPDF(content); err != nil {
		return doc, err
	}

	previous := doc.ObjectName()
	doc.Name = content.Name
	doc.Size = int64(len(content.Data))
	doc.ContentType = pdfContentType
	doc.CreatedAt = s.now().UTC()
	doc.Revision++
	doc.Ready = false
	clearReview(&doc)

	if err := s.commitWithPayload(ctx, doc, content.Data); err != nil {
		return model.Document{}, err
	}
	s.removePayload(ctx, previous)
	return doc, nil
}

func (s *DocumentStore) commitWithPayload(ctx context.Context, doc model.Document, data []byte) error {
	object := doc.ObjectName()
	if err := s.blobs.Upload(ctx, object, bytes.NewReader(data), int64(len(data)), pdfContentType); err != nil {
		return fmt.Errorf("storing payload of %s: %w", doc.ID, err)
	}
	// The upload may have finished after the caller gave up.
	if err := ctx.Err(); err != nil {
		s.removePayload(context.WithoutCancel(ctx), object)
		return err
	}
	if err := putRecord(ctx, s.backend, documentKey(doc.Folio, doc.ID), doc); err != nil {
		s.removePayload(context.WithoutCancel(ctx), object)
		return fmt.Errorf("saving document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *DocumentStore) removePayload(ctx context.Context, object string) {
	if err := s.blobs.Remove(ctx, object); err != nil {
		logger.Warn(ctx, "failed to remove payload", "object", object, "error", err)
	}
}

// SetReady marks or unmarks a document as ready for review. Marking a
// rejected document ready clears its decision in the same write.
func (s *DocumentStore) SetReady(ctx context.Context, folio, id string, ready bool) (model.Document, error) {
	doc, err := s.Get(ctx, folio, id)
	if err != nil {
		return doc, err
	}
	op, updated, changed, err := s.readyOp(doc, ready)
	if err != nil || !changed {
		return doc, err
	}
	if err := s.backend.Apply(ctx, op); err != nil {
		return doc, fmt.Errorf("saving document %s: %w", id, err)
	}
	return updated, nil
}

// readyOp sets the ready flag on doc and returns the write that persists it.
// changed is false when doc already has that flag and no rejection to clear.
func (s *DocumentStore) readyOp(doc model.Document, ready bool) (op storage.Op, updated model.Document, changed bool, err error) {
	if doc.Approved() {
		return op, doc, false, fmt.Errorf("set ready on document %s: %w", doc.ID, ErrImmutable)
	}
	rejected := doc.Review == model.ReviewRejected
	if doc.Ready == ready && !(ready && rejected) {
		return op, doc, false, nil
	}
	doc.Ready = ready
	if ready && rejected {
		clearReview(&doc)
	}
	op, err = putOp(documentKey(doc.Folio, doc.ID), doc)
	return op, doc, err == nil, err
}

// SetReview records a reviewer decision on the document itself.
func (s *DocumentStore) SetReview(ctx context.Context, folio, id string, decision model.Review, reason string) (model.Document, error) {
	doc, err := s.Get(ctx, folio, id)
	if err != nil {
		return doc, err
	}
	op, doc, err := s.reviewOp(doc, decision, reason)
	if err != nil {
		return doc, err
	}
	if err := s.backend.Apply(ctx, op); err != nil {
		return doc, fmt.Errorf("saving document %s: %w", id, err)
	}
	return doc, nil
}

// reviewOp applies a decision to doc and returns the write that persists it.
func (s *DocumentStore) reviewOp(doc model.Document, decision model.Review, reason string) (storage.Op, model.Document, error) {
	if doc.Approved() {
		return storage.Op{}, doc, fmt.Errorf("review document %s: %w", doc.ID, ErrImmutable)
	}
	reason = strings.TrimSpace(reason)
	now := s.now().UTC()

	switch decision {
	case model.ReviewRejected:
		if reason == "" {
			return storage.Op{}, doc, fmt.Errorf("reject document %s: %w", doc.ID, ErrMissingReason)
		}
		doc.Review = model.ReviewRejected
		doc.ReviewReason = reason
		doc.Ready = false
	case model.ReviewApproved:
		doc.Review = model.ReviewApproved
		doc.ReviewReason = ""
	default:
		return storage.Op{}, doc, fmt.Errorf("document %s: %w %q", doc.ID, ErrInvalidDecision, decision)
	}
	doc.ReviewAt = &now

	op, err := putOp(documentKey(doc.Folio, doc.ID), doc)
	return op, doc, err
}

func clearReview(doc *model.Document) {
	doc.Review = model.ReviewNone
	doc.ReviewReason = ""
	doc.ReviewAt = nil
}

// Remove deletes a document that has not been approved.
func (s *DocumentStore) Remove(ctx context.Context, folio, id string) error {
	doc, err := s.Get(ctx, folio, id)
	if err != nil {
		return err
	}
	if doc.Approved() {
		return fmt.Errorf("remove document %s: %w", id, ErrImmutable)
	}
	if err := s.backend.Delete(ctx, documentKey(folio, id)); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	s.removePayload(ctx, doc.ObjectName())
	return nil
}

// Content returns the payload of the document's current revision.
func (s *DocumentStore) Content(ctx context.Context, folio, id string) ([]byte, error) {
	doc, err := s.Get(ctx, folio, id)
	if err != nil {
		return nil, err
	}
	return s.payload(ctx, doc)
}

func (s *DocumentStore) payload(ctx context.Context, doc model.Document) ([]byte, error) {
	data, err := s.blobs.Download(ctx, doc.ObjectName())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("payload of document %s: %w", doc.ID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("payload of document %s: %w", doc.ID, err)
	}
	return data, nil
}

// moveOps rewrites every document of from under to.
func (s *DocumentStore) moveOps(ctx context.Context, from, to string) ([]storage.Op, error) {
	docs, err := s.listFolio(ctx, from)
	if err != nil {
		return nil, err
	}
	ops := make([]storage.Op, 0, 2*len(docs))
	for _, d := range docs {
		ops = append(ops, storage.Delete(documentKey(from, d.ID)))
		d.Folio = to
		op, err := putOp(documentKey(to, d.ID), d)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// checkPDF accepts a declared PDF, or an undeclared upload whose bytes sniff
// as PDF.
func checkPDF(content model.Content) error {
	if len(content.Data) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidFormat, content.Name)
	}

	declared := strings.ToLower(strings.TrimSpace(content.ContentType))
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mt
	}

	switch declared {
	case pdfContentType, "application/x-pdf":
		return nil
	case "", "application/octet-stream", "binary/octet-stream":
		if http.DetectContentType(content.Data) == pdfContentType {
			return nil
		}
		return fmt.Errorf("%w: %s is not a PDF", ErrInvalidFormat, content.Name)
	default:
		return fmt.Errorf("%w: %s has type %s", ErrInvalidFormat, content.Name, declared)
	}
}
