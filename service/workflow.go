package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/CharlyTlelo/abc-exprezo-contratos/model"
	"github.com/CharlyTlelo/abc-exprezo-contratos/pkg/logger"
	"github.com/CharlyTlelo/abc-exprezo-contratos/storage"
)

// DocumentResult is a document mutation together with the contract status it
// produced.
type DocumentResult struct {
	Document model.Document `json:"document"`
	Contract model.Contract `json:"contract"`
}

// ReviewResult is the outcome of a review submission.
type ReviewResult struct {
	Contract  model.Contract      `json:"contract"`
	Documents []model.Document    `json:"documents"`
	Entries   []model.ReviewEntry `json:"entries"`
}

// ProgressView is the progress of one contract.
type ProgressView struct {
	Contract model.Contract `json:"contract"`
	ProgressStats
}

// Workflow is the entry point for every contract operation. It serialises
// the mutations of a folio and re-derives the contract status after each of
// them, before returning.
//
// locks holds one mutex per folio ever touched. Entries are never pruned;
// the map grows with the number of contracts.
type Workflow struct {
	backend  storage.Backend
	blobs    storage.BlobStore
	registry *ContractRegistry
	docs     *DocumentStore
	ledger   *ReviewLedger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewWorkflow(backend storage.Backend, blobs storage.BlobStore) *Workflow {
	return &Workflow{
		backend:  backend,
		blobs:    blobs,
		registry: NewContractRegistry(backend),
		docs:     NewDocumentStore(backend, blobs),
		ledger:   NewReviewLedger(backend),
		locks:    make(map[string]*sync.Mutex),
	}
}

// lock takes the mutex of every folio given, in sorted order, and returns
// the function releasing them.
func (w *Workflow) lock(folios ...string) func() {
	sorted := append([]string(nil), folios...)
	sort.Strings(sorted)

	var held []*sync.Mutex
	for i, f := range sorted {
		if i > 0 && f == sorted[i-1] {
			continue
		}
		w.mu.Lock()
		m, ok := w.locks[f]
		if !ok {
			m = &sync.Mutex{}
			w.locks[f] = m
		}
		w.mu.Unlock()
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// CreateContract registers a contract. The folio is slugified; when empty it
// is derived from the name.
func (w *Workflow) CreateContract(ctx context.Context, c model.Contract) (model.Contract, error) {
	folio := strings.TrimSpace(c.Folio)
	if folio == "" {
		folio = c.Name
	}
	c.Folio = model.Slugify(folio)
	if c.Folio == "" {
		return c, fmt.Errorf("%w: empty folio", ErrInvalidFolio)
	}

	defer w.lock(c.Folio)()
	created, err := w.registry.Create(ctx, c)
	if err != nil {
		return created, err
	}
	logger.Info(logger.WithFolio(ctx, created.Folio), "contract created", "name", created.Name)
	return created, nil
}

func (w *Workflow) GetContract(ctx context.Context, folio string) (model.Contract, error) {
	return w.registry.Get(ctx, folio)
}

func (w *Workflow) ListContracts(ctx context.Context) ([]model.Contract, error) {
	return w.registry.List(ctx)
}

func (w *Workflow) UpdateContract(ctx context.Context, folio string, p Patch) (model.Contract, error) {
	defer w.lock(folio)()
	return w.registry.UpdateByFolio(ctx, folio, p)
}

// RenameContract moves a contract to a new folio. The old record is removed
// and a new one added with the same payload; documents, ledger entries and
// drafts move with it in the same write.
func (w *Workflow) RenameContract(ctx context.Context, from, to string) (model.Contract, error) {
	to = model.Slugify(to)
	if !model.ValidFolio(to) {
		return model.Contract{}, fmt.Errorf("%w: %q", ErrInvalidFolio, to)
	}

	defer w.lock(from, to)()

	c, err := w.registry.Get(ctx, from)
	if err != nil {
		return c, err
	}
	if from == to {
		return c, nil
	}
	if c.Status == model.StatusApproved {
		return c, fmt.Errorf("rename contract %s: %w", from, ErrImmutable)
	}
	if _, err := w.registry.Get(ctx, to); err == nil {
		return c, fmt.Errorf("%w: %s", ErrDuplicateFolio, to)
	} else if !errors.Is(err, ErrNotFound) {
		return c, err
	}

	c.Folio = to
	c.Version++
	c.UpdatedAt = w.registry.now().UTC()
	put, err := putOp(contractKey(to), c)
	if err != nil {
		return c, err
	}
	ops := []storage.Op{storage.Delete(contractKey(from)), put}

	docOps, err := w.docs.moveOps(ctx, from, to)
	if err != nil {
		return c, err
	}
	ledgerOps, err := w.ledger.moveOps(ctx, from, to)
	if err != nil {
		return c, err
	}
	ops = append(ops, docOps...)
	ops = append(ops, ledgerOps...)

	if err := w.backend.Apply(ctx, ops...); err != nil {
		return c, fmt.Errorf("renaming contract %s: %w", from, err)
	}
	logger.Info(logger.WithFolio(ctx, to), "contract renamed", "from", from)
	return c, nil
}

// DeleteContract removes a contract with its documents, ledger and drafts.
// A contract holding an approved document cannot be deleted.
func (w *Workflow) DeleteContract(ctx context.Context, folio string) error {
	defer w.lock(folio)()

	if _, err := w.registry.Get(ctx, folio); err != nil {
		return err
	}
	docs, err := w.docs.listFolio(ctx, folio)
	if err != nil {
		return err
	}

	ops := []storage.Op{storage.Delete(contractKey(folio))}
	for _, d := range docs {
		if d.Approved() {
			return fmt.Errorf("delete contract %s: document %s is approved: %w", folio, d.ID, ErrImmutable)
		}
		ops = append(ops, storage.Delete(documentKey(folio, d.ID)))
	}
	ledgerOps, err := w.ledger.purgeOps(ctx, folio)
	if err != nil {
		return err
	}
	ops = append(ops, ledgerOps...)

	if err := w.backend.Apply(ctx, ops...); err != nil {
		return fmt.Errorf("deleting contract %s: %w", folio, err)
	}
	for _, d := range docs {
		w.docs.removePayload(ctx, d.ObjectName())
	}
	logger.Info(logger.WithFolio(ctx, folio), "contract deleted", "documents", len(docs))
	return nil
}

// Upload adds a PDF to a section of the contract.
func (w *Workflow) Upload(ctx context.Context, folio string, section model.Section, content model.Content) (DocumentResult, error) {
	defer w.lock(folio)()

	c, err := w.registry.Get(ctx, folio)
	if err != nil {
		return DocumentResult{}, err
	}
	if c.Status == model.StatusApproved {
		return DocumentResult{Contract: c}, fmt.Errorf("upload to contract %s: %w", folio, ErrImmutable)
	}
	doc, err := w.docs.Add(ctx, folio, section, content)
	if err != nil {
		return DocumentResult{Contract: c}, err
	}
	return w.documentResult(ctx, doc)
}

// Replace swaps the payload of a document, restarting its review.
func (w *Workflow) Replace(ctx context.Context, folio, id string, content model.Content) (DocumentResult, error) {
	defer w.lock(folio)()

	if _, err := w.document(ctx, folio, id); err != nil {
		return DocumentResult{}, err
	}
	doc, err := w.docs.Replace(ctx, folio, id, content)
	if err != nil {
		return DocumentResult{}, err
	}
	return w.documentResult(ctx, doc)
}

// SetReady toggles the ready flag. Marking a rejected document ready clears
// its decision in the same write; the ledger still keeps the contract
// rejected until the document is replaced.
func (w *Workflow) SetReady(ctx context.Context, folio, id string, ready bool) (DocumentResult, error) {
	defer w.lock(folio)()

	doc, err := w.docs.SetReady(ctx, folio, id, ready)
	if err != nil {
		return DocumentResult{}, err
	}
	return w.documentResult(ctx, doc)
}

// RemoveDocument deletes a document. While the contract is rejected, a
// document carrying the rejection can only be replaced.
func (w *Workflow) RemoveDocument(ctx context.Context, folio, id string) (model.Contract, error) {
	defer w.lock(folio)()

	doc, err := w.document(ctx, folio, id)
	if err != nil {
		return model.Contract{}, err
	}
	c, err := w.registry.Get(ctx, folio)
	if err != nil {
		return c, err
	}
	if c.Status == model.StatusRejected && !doc.Approved() {
		entries, err := w.ledger.ByFolio(ctx, folio)
		if err != nil {
			return c, err
		}
		if effectiveDecision(doc, currentDecisions(entries)) == model.ReviewRejected {
			return c, fmt.Errorf("remove rejected document %s: replace it instead: %w", id, ErrInvalidTransition)
		}
	}
	if err := w.docs.Remove(ctx, folio, id); err != nil {
		return c, err
	}
	return w.refresh(ctx, folio)
}

// SubmitReview records a reviewer's decisions on documents of a contract that
// is in review. The batch is validated as a whole: a single bad decision
// leaves both the ledger and the documents untouched.
func (w *Workflow) SubmitReview(ctx context.Context, folio, reviewer string, decisions []model.Decision) (ReviewResult, error) {
	defer w.lock(folio)()

	c, err := w.registry.Get(ctx, folio)
	if err != nil {
		return ReviewResult{}, err
	}
	if c.Status != model.StatusInReview {
		return ReviewResult{Contract: c}, fmt.Errorf("review contract %s in status %s: %w", folio, c.Status, ErrInvalidTransition)
	}

	decisions = lastDecisions(decisions)
	entries := make([]model.ReviewEntry, 0, len(decisions))
	docs := make([]model.Document, 0, len(decisions))
	for _, d := range decisions {
		doc, err := w.document(ctx, folio, d.ID)
		if err != nil {
			return ReviewResult{Contract: c}, err
		}
		if doc.Approved() {
			return ReviewResult{Contract: c}, fmt.Errorf("review document %s: %w", d.ID, ErrImmutable)
		}
		docs = append(docs, doc)
		entries = append(entries, model.ReviewEntry{
			ID:       d.ID,
			Decision: d.Decision,
			Reason:   d.Reason,
			Revision: doc.Revision,
			Reviewer: reviewer,
		})
	}

	ops, err := w.ledger.decisionOps(folio, entries)
	if err != nil {
		return ReviewResult{Contract: c}, err
	}
	reviewed := make([]model.Document, 0, len(docs))
	for i, doc := range docs {
		op, doc, err := w.docs.reviewOp(doc, decisions[i].Decision, decisions[i].Reason)
		if err != nil {
			return ReviewResult{Contract: c}, err
		}
		ops = append(ops, op)
		reviewed = append(reviewed, doc)
	}

	if err := w.backend.Apply(ctx, ops...); err != nil {
		return ReviewResult{Contract: c}, fmt.Errorf("recording review of %s: %w", folio, err)
	}
	logger.Info(logger.WithFolio(ctx, folio), "review submitted", "reviewer", reviewer, "decisions", len(decisions))

	c, err = w.refresh(ctx, folio)
	if err != nil {
		return ReviewResult{Contract: c}, err
	}
	recorded, err := w.ledger.ByFolio(ctx, folio)
	if err != nil {
		return ReviewResult{Contract: c}, err
	}
	return ReviewResult{Contract: c, Documents: reviewed, Entries: recorded}, nil
}

// lastDecisions keeps the last decision per document id, in the order ids
// first appear.
func lastDecisions(decisions []model.Decision) []model.Decision {
	index := make(map[string]int, len(decisions))
	result := make([]model.Decision, 0, len(decisions))
	for _, d := range decisions {
		if i, ok := index[d.ID]; ok {
			result[i] = d
			continue
		}
		index[d.ID] = len(result)
		result = append(result, d)
	}
	return result
}

// SaveDraft keeps a reviewer's unsent reason for a document.
func (w *Workflow) SaveDraft(ctx context.Context, folio, id, reason string) (model.Draft, error) {
	defer w.lock(folio)()

	if _, err := w.document(ctx, folio, id); err != nil {
		return model.Draft{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return model.Draft{ID: id, Folio: folio}, w.ledger.DeleteDraft(ctx, folio, id)
	}
	return w.ledger.SetDraft(ctx, folio, id, reason)
}

func (w *Workflow) Draft(ctx context.Context, folio, id string) (string, bool, error) {
	if _, err := w.document(ctx, folio, id); err != nil {
		return "", false, err
	}
	return w.ledger.Draft(ctx, folio, id)
}

// Reviews returns the ledger of the contract.
func (w *Workflow) Reviews(ctx context.Context, folio string) ([]model.ReviewEntry, error) {
	if _, err := w.registry.Get(ctx, folio); err != nil {
		return nil, err
	}
	return w.ledger.ByFolio(ctx, folio)
}

// Documents returns the documents of the contract grouped by section.
func (w *Workflow) Documents(ctx context.Context, folio string) (map[model.Section][]model.Document, error) {
	if _, err := w.registry.Get(ctx, folio); err != nil {
		return nil, err
	}
	return w.docs.ListByFolio(ctx, folio)
}

// SectionDocuments returns the documents of one section of the contract.
func (w *Workflow) SectionDocuments(ctx context.Context, folio string, section model.Section) ([]model.Document, error) {
	if !section.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSection, section)
	}
	if _, err := w.registry.Get(ctx, folio); err != nil {
		return nil, err
	}
	return w.docs.ListBySection(ctx, folio, section)
}

func (w *Workflow) Progress(ctx context.Context, folio string) (ProgressView, error) {
	c, err := w.registry.Get(ctx, folio)
	if err != nil {
		return ProgressView{}, err
	}
	sections, err := w.docs.ListByFolio(ctx, folio)
	if err != nil {
		return ProgressView{}, err
	}
	entries, err := w.ledger.ByFolio(ctx, folio)
	if err != nil {
		return ProgressView{}, err
	}
	return ProgressView{Contract: c, ProgressStats: Progress(sections, entries)}, nil
}

// Content returns a document and its payload.
func (w *Workflow) Content(ctx context.Context, folio, id string) (model.Document, []byte, error) {
	doc, err := w.document(ctx, folio, id)
	if err != nil {
		return doc, nil, err
	}
	data, err := w.docs.payload(ctx, doc)
	return doc, data, err
}

// DownloadURL returns a presigned URL for the document when the blob store
// can issue one. ok is false otherwise.
func (w *Workflow) DownloadURL(ctx context.Context, folio, id string) (url string, ok bool, err error) {
	p, isPresigner := w.blobs.(storage.Presigner)
	if !isPresigner {
		return "", false, nil
	}
	doc, err := w.document(ctx, folio, id)
	if err != nil {
		return "", false, err
	}
	url, err = p.PresignedURL(ctx, doc.ObjectName())
	if err != nil {
		return "", false, fmt.Errorf("presigning document %s: %w", id, err)
	}
	return url, true, nil
}

func (w *Workflow) document(ctx context.Context, folio, id string) (model.Document, error) {
	return w.docs.Get(ctx, folio, id)
}

func (w *Workflow) documentResult(ctx context.Context, doc model.Document) (DocumentResult, error) {
	c, err := w.refresh(ctx, doc.Folio)
	return DocumentResult{Document: doc, Contract: c}, err
}

// refresh derives the status of the contract and stores it. When the derived
// status is not one step away, the registry is walked through the shortest
// path of the state machine.
func (w *Workflow) refresh(ctx context.Context, folio string) (model.Contract, error) {
	c, err := w.registry.Get(ctx, folio)
	if err != nil {
		return c, err
	}
	sections, err := w.docs.ListByFolio(ctx, folio)
	if err != nil {
		return c, err
	}
	entries, err := w.ledger.ByFolio(ctx, folio)
	if err != nil {
		return c, err
	}

	derived := DeriveStatus(sections, entries)
	if derived == c.Status {
		return c, nil
	}

	ctx = logger.WithFolio(ctx, folio)
	path := statusPath(c.Status, derived)
	if path == nil {
		logger.Warn(ctx, "derived status unreachable", "from", c.Status.String(), "to", derived.String())
		return c, fmt.Errorf("contract %s from %s to %s: %w", folio, c.Status, derived, ErrInvalidTransition)
	}
	from := c.Status
	for _, step := range path {
		if c, err = w.registry.ApplyDerivedStatus(ctx, folio, step); err != nil {
			return c, err
		}
	}
	logger.Info(ctx, "contract status changed", "from", from.String(), "to", c.Status.String())
	return c, nil
}

// statusPath returns the statuses to apply, in order, to move from one status
// to another. It is nil when to cannot be reached.
func statusPath(from, to model.Status) []model.Status {
	prev := map[model.Status]model.Status{from: from}
	queue := []model.Status{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			var path []model.Status
			for s := to; s != from; s = prev[s] {
				path = append([]model.Status{s}, path...)
			}
			return path
		}
		for _, next := range transitions[cur] {
			if _, seen := prev[next]; !seen {
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return nil
}
