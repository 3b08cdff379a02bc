package service

import "errors"

// Workflow errors. Callers match them with errors.Is; the messages carry the
// id or folio through wrapping.
var (
	// ErrInvalidFormat indicates an upload that is not a PDF.
	ErrInvalidFormat = errors.New("invalid format: only PDF files are accepted")

	// ErrInvalidSection indicates a section outside the five pipeline stages.
	ErrInvalidSection = errors.New("invalid section")

	// ErrInvalidFolio indicates a folio that is not a URL-safe slug.
	ErrInvalidFolio = errors.New("invalid folio")

	// ErrNotFound indicates an unknown document id or contract folio.
	ErrNotFound = errors.New("not found")

	// ErrImmutable indicates a mutation of an approved document or contract.
	ErrImmutable = errors.New("immutable: approved records cannot change")

	// ErrMissingReason indicates a rejection without a reason.
	ErrMissingReason = errors.New("missing reason for rejection")

	// ErrInvalidDecision indicates a review decision other than approve or
	// reject, or an empty submission.
	ErrInvalidDecision = errors.New("invalid review decision")

	// ErrDuplicateFolio indicates a contract with the same folio exists.
	ErrDuplicateFolio = errors.New("duplicate folio")

	// ErrInvalidTransition indicates a status change outside the contract
	// state machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict indicates a stale version on an optimistic update.
	ErrConflict = errors.New("version conflict")
)
