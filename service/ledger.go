package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CharlyTlelo/abc-exprezo-contratos/model"
	"github.com/CharlyTlelo/abc-exprezo-contratos/storage"
)

// ReviewLedger is the audit trail of reviewer decisions plus the reviewers'
// unsent drafts. It never touches document records; keeping the two in step
// is the caller's job.
type ReviewLedger struct {
	backend storage.Backend
	now     func() time.Time
}

func NewReviewLedger(backend storage.Backend) *ReviewLedger {
	return &ReviewLedger{backend: backend, now: time.Now}
}

// RecordDecisions upserts one entry per document id. The batch is validated
// as a whole and committed in a single write, so a rejection without reason
// leaves the ledger untouched. Drafts of the decided documents are cleared.
func (l *ReviewLedger) RecordDecisions(ctx context.Context, folio string, entries []model.ReviewEntry) error {
	ops, err := l.decisionOps(folio, entries)
	if err != nil {
		return err
	}
	return l.backend.Apply(ctx, ops...)
}

func (l *ReviewLedger) decisionOps(folio string, entries []model.ReviewEntry) ([]storage.Op, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no decisions", ErrInvalidDecision)
	}

	now := l.now().UTC()
	// Later entries for the same id win.
	byID := make(map[string]model.ReviewEntry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		e.Folio = folio
		e.Reason = strings.TrimSpace(e.Reason)
		switch e.Decision {
		case model.ReviewRejected:
			if e.Reason == "" {
				return nil, fmt.Errorf("reject document %s: %w", e.ID, ErrMissingReason)
			}
		case model.ReviewApproved:
		default:
			return nil, fmt.Errorf("document %s: %w %q", e.ID, ErrInvalidDecision, e.Decision)
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		if _, seen := byID[e.ID]; !seen {
			order = append(order, e.ID)
		}
		byID[e.ID] = e
	}

	ops := make([]storage.Op, 0, 2*len(order))
	for _, id := range order {
		op, err := putOp(reviewKey(folio, id), byID[id])
		if err != nil {
			return nil, err
		}
		ops = append(ops, op, storage.Delete(draftKey(folio, id)))
	}
	return ops, nil
}

// ByFolio returns the folio's entries ordered by document id.
func (l *ReviewLedger) ByFolio(ctx context.Context, folio string) ([]model.ReviewEntry, error) {
	entries, err := listRecords[model.ReviewEntry](ctx, l.backend, reviewPrefix+folio+"/")
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	return entries, nil
}

// ClearFolio drops every ledger entry of the folio.
func (l *ReviewLedger) ClearFolio(ctx context.Context, folio string) error {
	ops, err := l.clearOps(ctx, reviewPrefix+folio+"/")
	if err != nil {
		return err
	}
	return l.backend.Apply(ctx, ops...)
}

func (l *ReviewLedger) SetDraft(ctx context.Context, folio, id, reason string) (model.Draft, error) {
	draft := model.Draft{
		ID:        id,
		Folio:     folio,
		Reason:    reason,
		UpdatedAt: l.now().UTC(),
	}
	if err := putRecord(ctx, l.backend, draftKey(folio, id), draft); err != nil {
		return draft, fmt.Errorf("saving draft: %w", err)
	}
	return draft, nil
}

// Draft returns the pending reason for a document, if any.
func (l *ReviewLedger) Draft(ctx context.Context, folio, id string) (string, bool, error) {
	draft, err := getRecord[model.Draft](ctx, l.backend, draftKey(folio, id))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return draft.Reason, true, nil
}

func (l *ReviewLedger) DeleteDraft(ctx context.Context, folio, id string) error {
	return l.backend.Delete(ctx, draftKey(folio, id))
}

func (l *ReviewLedger) ClearDraftsByFolio(ctx context.Context, folio string) error {
	ops, err := l.clearOps(ctx, draftPrefix+folio+"/")
	if err != nil {
		return err
	}
	return l.backend.Apply(ctx, ops...)
}

func (l *ReviewLedger) clearOps(ctx context.Context, prefix string) ([]storage.Op, error) {
	records, err := l.backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ops := make([]storage.Op, 0, len(records))
	for _, r := range records {
		ops = append(ops, storage.Delete(r.Key))
	}
	return ops, nil
}

// moveOps re-keys the entries and drafts of from under to.
func (l *ReviewLedger) moveOps(ctx context.Context, from, to string) ([]storage.Op, error) {
	var ops []storage.Op

	entries, err := l.ByFolio(ctx, from)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		e.Folio = to
		op, err := putOp(reviewKey(to, e.ID), e)
		if err != nil {
			return nil, err
		}
		ops = append(ops, storage.Delete(reviewKey(from, e.ID)), op)
	}

	drafts, err := listRecords[model.Draft](ctx, l.backend, draftPrefix+from+"/")
	if err != nil {
		return nil, err
	}
	for _, d := range drafts {
		d.Folio = to
		op, err := putOp(draftKey(to, d.ID), d)
		if err != nil {
			return nil, err
		}
		ops = append(ops, storage.Delete(draftKey(from, d.ID)), op)
	}
	return ops, nil
}

// purgeOps deletes every entry and draft of the folio.
func (l *ReviewLedger) purgeOps(ctx context.Context, folio string) ([]storage.Op, error) {
	entries, err := l.clearOps(ctx, reviewPrefix+folio+"/")
	if err != nil {
		return nil, err
	}
	drafts, err := l.clearOps(ctx, draftPrefix+folio+"/")
	if err != nil {
		return nil, err
	}
	return append(entries, drafts...), nil
}
