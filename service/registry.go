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

// transitions is the contract state machine. Approved has no way out.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:  {model.StatusInReview},
	model.StatusInReview: {model.StatusPending, model.StatusApproved, model.StatusRejected},
	model.StatusRejected: {model.StatusPending},
}

// CanTransition reports whether the registry accepts a change from one status
// to another. Staying in the same status is always allowed.
func CanTransition(from, to model.Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Patch is a partial update of a contract. Nil fields are left alone.
type Patch struct {
	Name        *string       `json:"contrato,omitempty"`
	Description *string       `json:"descripcion,omitempty"`
	Status      *model.Status `json:"estatus,omitempty"`
	IfVersion   int64         `json:"version,omitempty"`
}

// ContractRegistry stores contracts keyed by folio.
type ContractRegistry struct {
	backend storage.Backend
	now     func() time.Time
}

func NewContractRegistry(backend storage.Backend) *ContractRegistry {
	return &ContractRegistry{backend: backend, now: time.Now}
}

// Create registers a new contract. The status always starts at Pending.
func (r *ContractRegistry) Create(ctx context.Context, c model.Contract) (model.Contract, error) {
	op, c, err := r.createOp(ctx, c)
	if err != nil {
		return c, err
	}
	if err := r.backend.Apply(ctx, op); err != nil {
		return c, fmt.Errorf("saving contract %s: %w", c.Folio, err)
	}
	return c, nil
}

func (r *ContractRegistry) createOp(ctx context.Context, c model.Contract) (storage.Op, model.Contract, error) {
	if !model.ValidFolio(c.Folio) {
		return storage.Op{}, c, fmt.Errorf("%w: %q", ErrInvalidFolio, c.Folio)
	}
	if _, err := r.Get(ctx, c.Folio); err == nil {
		return storage.Op{}, c, fmt.Errorf("%w: %s", ErrDuplicateFolio, c.Folio)
	} else if !errors.Is(err, ErrNotFound) {
		return storage.Op{}, c, err
	}

	now := r.now().UTC()
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	c.Status = model.StatusPending
	c.Version = 1
	c.CreatedAt = now
	c.UpdatedAt = now

	op, err := putOp(contractKey(c.Folio), c)
	return op, c, err
}

// Get returns the contract registered under folio.
func (r *ContractRegistry) Get(ctx context.Context, folio string) (model.Contract, error) {
	c, err := getRecord[model.Contract](ctx, r.backend, contractKey(folio))
	if err != nil {
		return c, fmt.Errorf("contract %s: %w", folio, err)
	}
	return c, nil
}

// List returns every contract ordered by folio.
func (r *ContractRegistry) List(ctx context.Context) ([]model.Contract, error) {
	contracts, err := listRecords[model.Contract](ctx, r.backend, contractPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing contracts: %w", err)
	}
	return contracts, nil
}

// UpdateByFolio applies a partial update. The folio cannot change here and
// the status can only be restated, never set.
func (r *ContractRegistry) UpdateByFolio(ctx context.Context, folio string, p Patch) (model.Contract, error) {
	c, err := r.Get(ctx, folio)
	if err != nil {
		return c, err
	}
	if p.IfVersion != 0 && p.IfVersion != c.Version {
		return c, fmt.Errorf("contract %s at version %d, got %d: %w", folio, c.Version, p.IfVersion, ErrConflict)
	}
	if p.Status != nil && *p.Status != c.Status {
		return c, fmt.Errorf("contract %s: status is derived: %w", folio, ErrInvalidTransition)
	}

	changed := false
	if p.Name != nil {
		if name := strings.TrimSpace(*p.Name); name != c.Name {
			c.Name = name
			changed = true
		}
	}
	if p.Description != nil {
		if desc := strings.TrimSpace(*p.Description); desc != c.Description {
			c.Description = desc
			changed = true
		}
	}
	if !changed {
		return c, nil
	}
	return r.save(ctx, c)
}

// RemoveByFolio deletes the contract record only.
func (r *ContractRegistry) RemoveByFolio(ctx context.Context, folio string) error {
	if _, err := r.Get(ctx, folio); err != nil {
		return err
	}
	if err := r.backend.Delete(ctx, contractKey(folio)); err != nil {
		return fmt.Errorf("deleting contract %s: %w", folio, err)
	}
	return nil
}

// ApplyDerivedStatus stores a status computed by the aggregator. Restating
// the current status is a no-op.
func (r *ContractRegistry) ApplyDerivedStatus(ctx context.Context, folio string, status model.Status) (model.Contract, error) {
	c, err := r.Get(ctx, folio)
	if err != nil {
		return c, err
	}
	if c.Status == status {
		return c, nil
	}
	if !CanTransition(c.Status, status) {
		return c, fmt.Errorf("contract %s from %s to %s: %w", folio, c.Status, status, ErrInvalidTransition)
	}
	c.Status = status
	return r.save(ctx, c)
}

func (r *ContractRegistry) save(ctx context.Context, c model.Contract) (model.Contract, error) {
	c.Version++
	c.UpdatedAt = r.now().UTC()
	if err := putRecord(ctx, r.backend, contractKey(c.Folio), c); err != nil {
		return c, fmt.Errorf("saving contract %s: %w", c.Folio, err)
	}
	return c, nil
}
