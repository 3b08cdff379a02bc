package model

import (
	"fmt"
	"strings"
	"time"
)

// Contract represents a registered contrato
type Contract struct {
	Folio       string    `json:"folio"`
	Name        string    `json:"contrato"`
	Description string    `json:"descripcion"`
	Status      Status    `json:"estatus"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Status is the derived state of a contract.
type Status int

// Status values. The zero value is Pending.
const (
	StatusPending Status = iota
	StatusInReview
	StatusApproved
	StatusRejected
)

var statusNames = [...]string{
	StatusPending:  "Pending",
	StatusInReview: "InReview",
	StatusApproved: "Approved",
	StatusRejected: "Rejected",
}

// statusAliases maps folded labels to statuses. Keys have no accents, no
// separators and are lowercase.
var statusAliases = map[string]Status{
	"pending":    StatusPending,
	"pendiente":  StatusPending,
	"inreview":   StatusInReview,
	"enrevision": StatusInReview,
	"approved":   StatusApproved,
	"aprobado":   StatusApproved,
	"rejected":   StatusRejected,
	"rechazado":  StatusRejected,
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	return s >= StatusPending && s <= StatusRejected
}

// ParseStatus normalises a free-form status label. It accepts the canonical
// names and the Spanish labels used by older clients, with or without accents.
func ParseStatus(label string) (Status, error) {
	key := Fold(label)
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	if s, ok := statusAliases[key]; ok {
		return s, nil
	}
	return StatusPending, fmt.Errorf("unknown status %q", label)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
