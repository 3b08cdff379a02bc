package model

import (
	"encoding/json"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		label    string
		expected Status
	}{
		{"Pending", StatusPending},
		{"Pendiente", StatusPending},
		{"InReview", StatusInReview},
		{"En revision", StatusInReview},
		{"En revisión", StatusInReview},
		{"EN REVISIÓN", StatusInReview},
		{"in_review", StatusInReview},
		{"Aprobado", StatusApproved},
		{"approved", StatusApproved},
		{"Rechazado", StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseStatus(tt.label)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}

	if _, err := ParseStatus("archivado"); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestContractJSON(t *testing.T) {
	contract := Contract{
		Folio:       "c1",
		Name:        "Push notification",
		Description: "Envio de notificaciones",
		Status:      StatusInReview,
	}

	data, err := json.Marshal(contract)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if raw["estatus"] != "InReview" {
		t.Errorf("Expected estatus 'InReview', got '%v'", raw["estatus"])
	}
	if raw["contrato"] != "Push notification" {
		t.Errorf("Expected contrato 'Push notification', got '%v'", raw["contrato"])
	}

	// Older records carry the Spanish label.
	var legacy Contract
	if err := json.Unmarshal([]byte(`{"folio":"c2","estatus":"En revisión"}`), &legacy); err != nil {
		t.Fatalf("Failed to parse legacy record: %v", err)
	}
	if legacy.Status != StatusInReview {
		t.Errorf("Expected InReview, got %s", legacy.Status)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Contrato 01", "contrato-01"},
		{"  Módulo de Clientes ", "modulo-de-clientes"},
		{"push_notification", "push-notification"},
		{"a -- b", "a-b"},
		{"¡Hola!", "hola"},
	}

	for _, tt := range tests {
		if got := Slugify(tt.input); got != tt.expected {
			t.Errorf("Slugify(%q): expected '%s', got '%s'", tt.input, tt.expected, got)
		}
		if !ValidFolio(Slugify(tt.input)) {
			t.Errorf("Slugify(%q) produced invalid folio", tt.input)
		}
	}

	if ValidFolio("Not A Slug") {
		t.Error("Expected 'Not A Slug' to be invalid")
	}
}

func TestParseSection(t *testing.T) {
	s, err := ParseSection("Lógico")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s != SectionLogical {
		t.Errorf("Expected %s, got %s", SectionLogical, s)
	}
	if _, err := ParseSection("diagramas"); err == nil {
		t.Error("Expected error for unknown section")
	}
	if len(Sections) != 5 {
		t.Errorf("Expected 5 sections, got %d", len(Sections))
	}
}

func TestParseReview(t *testing.T) {
	r, err := ParseReview("Rechazado")
	if err != nil || r != ReviewRejected {
		t.Errorf("Expected rejected, got %s (%v)", r, err)
	}
	r, err = ParseReview("")
	if err != nil || r != ReviewNone {
		t.Errorf("Expected none, got %s (%v)", r, err)
	}
}
