package model

import (
	"fmt"
	"strings"
	"time"
)

// Section is one of the five fixed pipeline stages of a contract.
type Section string

const (
	SectionCollection Section = "recoleccion"
	SectionConceptual Section = "conceptual"
	SectionLogical    Section = "logico"
	SectionPhysical   Section = "fisico"
	SectionValidation Section = "validacion"
)

// Sections lists the pipeline stages in order.
var Sections = []Section{
	SectionCollection,
	SectionConceptual,
	SectionLogical,
	SectionPhysical,
	SectionValidation,
}

var sectionTitles = map[Section]string{
	SectionCollection: "Recolección de requerimiento",
	SectionConceptual: "Modelado Conceptual",
	SectionLogical:    "Modelo Lógico",
	SectionPhysical:   "Modelo Físico",
	SectionValidation: "Validación y pruebas",
}

// Valid reports whether s is one of the five pipeline stages.
func (s Section) Valid() bool {
	_, ok := sectionTitles[s]
	return ok
}

// Title returns the display title of the section.
func (s Section) Title() string {
	return sectionTitles[s]
}

// ParseSection accepts the wire key in any case and with or without accents.
func ParseSection(key string) (Section, error) {
	s := Section(Fold(key))
	if !s.Valid() {
		return "", fmt.Errorf("unknown section %q", key)
	}
	return s, nil
}

// Review is a reviewer's decision on a single document.
type Review string

const (
	ReviewNone     Review = "none"
	ReviewApproved Review = "approved"
	ReviewRejected Review = "rejected"
)

// ParseReview accepts the wire values and the Spanish labels.
func ParseReview(label string) (Review, error) {
	switch Fold(label) {
	case "", "none":
		return ReviewNone, nil
	case "approved", "aprobado":
		return ReviewApproved, nil
	case "rejected", "rechazado":
		return ReviewRejected, nil
	}
	return ReviewNone, fmt.Errorf("unknown review decision %q", label)
}

func (r *Review) UnmarshalText(text []byte) error {
	parsed, err := ParseReview(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Document is the metadata of an uploaded deliverable. The payload itself is
// held by the blob store.
type Document struct {
	ID           string     `json:"id"`
	Folio        string     `json:"folio"`
	Section      Section    `json:"section"`
	Name         string     `json:"name"`
	Size         int64      `json:"size"`
	ContentType  string     `json:"contentType"`
	CreatedAt    time.Time  `json:"createdAt"`
	Revision     int        `json:"revision"`
	Ready        bool       `json:"ready"`
	Review       Review     `json:"review"`
	ReviewReason string     `json:"reviewReason,omitempty"`
	ReviewAt     *time.Time `json:"reviewAt,omitempty"`
}

// Approved reports whether the document is frozen by an approval.
func (d *Document) Approved() bool {
	return d.Review == ReviewApproved
}

// ObjectName is the blob key holding the payload of the current revision.
func (d *Document) ObjectName() string {
	return fmt.Sprintf("documents/%s/r%d.pdf", d.ID, d.Revision)
}

// Content is an upload as received from the client.
type Content struct {
	Name        string
	ContentType string
	Data        []byte
}

// Normalized returns a copy with the name stripped of any path.
func (c Content) Normalized() Content {
	name := strings.TrimSpace(c.Name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = "documento.pdf"
	}
	c.Name = name
	return c
}
