package handler

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/CharlyTlelo/abc-exprezo-contratos/model"
	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/gin-gonic/gin"
)

func TestDocumentHandlerUploadValidation(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, s.editor, "POST", "/api/contratos", gin.H{"folio": "c1", "contrato": "Uno"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	tests := []struct {
		name           string
		path           string
		contentType    string
		data           []byte
		expectedStatus int
	}{
		{"pdf", "/api/contratos/c1/sections/logico/documents", "application/pdf", pdfData, http.StatusCreated},
		{"accented section", "/api/contratos/c1/sections/L%C3%B3gico/documents", "application/pdf", pdfData, http.StatusCreated},
		{"sniffed pdf", "/api/contratos/c1/sections/fisico/documents", "application/octet-stream", pdfData, http.StatusCreated},
		{"plain text", "/api/contratos/c1/sections/logico/documents", "text/plain", []byte("hola"), http.StatusBadRequest},
		{"unknown section", "/api/contratos/c1/sections/diseno/documents", "application/pdf", pdfData, http.StatusBadRequest},
		{"unknown contract", "/api/contratos/c9/sections/logico/documents", "application/pdf", pdfData, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.upload(t, "POST", tt.path, "doc.pdf", tt.contentType, tt.data)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}

	w = s.do(t, s.editor, "GET", "/api/contratos/c1/documents?section=logico", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	listed := decode[struct {
		Documents []model.Document `json:"documents"`
	}](t, w)
	if len(listed.Documents) != 2 {
		t.Errorf("Expected 2 logico documents, got %d", len(listed.Documents))
	}
}

func TestDocumentHandlerMissingFile(t *testing.T) {
	s := newTestServer(t)
	s.do(t, s.editor, "POST", "/api/contratos", gin.H{"folio": "c1", "contrato": "Uno"})

	w := s.do(t, s.editor, "POST", "/api/contratos/c1/sections/logico/documents", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestDocumentHandlerLifecycle(t *testing.T) {
	s := newTestServer(t)
	ids := s.seedContract(t, "c1")
	logical := ids[2]

	w := s.do(t, s.editor, "GET", "/api/contratos/c1/documents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	grouped := decode[struct {
		Sections map[model.Section][]model.Document `json:"sections"`
	}](t, w)
	if len(grouped.Sections) != len(model.Sections) {
		t.Errorf("Expected %d sections, got %d", len(model.Sections), len(grouped.Sections))
	}

	w = s.do(t, s.editor, "GET", "/api/contratos/c1/documents/"+logical+"/content", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Content: expected status 200, got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), pdfData) {
		t.Error("Expected the uploaded payload back")
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "logico.pdf") {
		t.Errorf("Expected file name in Content-Disposition, got %s", cd)
	}

	w = s.upload(t, "PUT", "/api/contratos/c1/documents/"+logical, "logico-v2.pdf", "application/pdf", pdfData)
	if w.Code != http.StatusOK {
		t.Fatalf("Replace: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[service.DocumentResult](t, w)
	if res.Document.Revision != 2 || res.Document.Ready {
		t.Errorf("Expected revision 2 and not ready, got %+v", res.Document)
	}
	if res.Contract.Status != model.StatusPending {
		t.Errorf("Expected Pending after replace, got %s", res.Contract.Status)
	}

	w = s.do(t, s.editor, "PATCH", "/api/contratos/c1/documents/"+logical+"/ready", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing ready: expected status 400, got %d", w.Code)
	}

	w = s.do(t, s.editor, "DELETE", "/api/contratos/c1/documents/"+logical, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Delete: expected status 200, got %d", w.Code)
	}

	w = s.do(t, s.editor, "DELETE", "/api/contratos/c1/documents/"+logical, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Second delete: expected status 404, got %d", w.Code)
	}

	w = s.do(t, s.editor, "GET", "/api/contratos/c1/documents/"+ids[0]+"/content", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Content of other document: expected status 200, got %d", w.Code)
	}
}

func TestDocumentHandlerApprovedIsImmutable(t *testing.T) {
	s := newTestServer(t)
	ids := s.seedContract(t, "c1")

	decisions := make([]model.Decision, 0, len(ids))
	for _, id := range ids {
		decisions = append(decisions, model.Decision{ID: id, Decision: model.ReviewApproved})
	}
	w := s.do(t, s.reviewer, "POST", "/api/contratos/c1/reviews", gin.H{"decisions": decisions})
	if w.Code != http.StatusOK {
		t.Fatalf("Review: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(t, s.editor, "DELETE", "/api/contratos/c1/documents/"+ids[0], nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Delete approved: expected status 422, got %d", w.Code)
	}

	w = s.upload(t, "PUT", "/api/contratos/c1/documents/"+ids[0], "x.pdf", "application/pdf", pdfData)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Replace approved: expected status 422, got %d", w.Code)
	}

	w = s.do(t, s.editor, "DELETE", "/api/contratos/c1", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Delete approved contract: expected status 422, got %d", w.Code)
	}
}
