package handler

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/CharlyTlelo/abc-exprezo-contratos/config"
	"github.com/CharlyTlelo/abc-exprezo-contratos/middleware"
	"github.com/CharlyTlelo/abc-exprezo-contratos/model"
	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/CharlyTlelo/abc-exprezo-contratos/storage"
	"github.com/gin-gonic/gin"
)

type testServer struct {
	router   *gin.Engine
	editor   string
	reviewer string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.RateLimit.Requests = 10000

	editor, _, err := middleware.GenerateToken("ana", config.RoleEditor, &cfg.Auth)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	reviewer, _, err := middleware.GenerateToken("luis", config.RoleReviewer, &cfg.Auth)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	workflow := service.NewWorkflow(storage.NewMemory(), storage.NewMemoryBlobs())
	return &testServer{
		router:   NewRouter(cfg, workflow),
		editor:   editor,
		reviewer: reviewer,
	}
}

func (s *testServer) do(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, method, path, name, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("Failed to create part: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.editor)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return v
}

var pdfData = []byte("%PDF-1.4\n% test\n")

// seedContract creates folio with one ready document per section and returns
// their ids in section order.
func (s *testServer) seedContract(t *testing.T, folio string) []string {
	t.Helper()
	w := s.do(t, s.editor, "POST", "/api/contratos", gin.H{"folio": folio, "contrato": "Contrato " + folio})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var ids []string
	for _, sec := range model.Sections {
		w := s.upload(t, "POST", "/api/contratos/"+folio+"/sections/"+string(sec)+"/documents", string(sec)+".pdf", "application/pdf", pdfData)
		if w.Code != http.StatusCreated {
			t.Fatalf("Upload to %s: expected status 201, got %d: %s", sec, w.Code, w.Body.String())
		}
		res := decode[service.DocumentResult](t, w)

		w = s.do(t, s.editor, "PATCH", "/api/contratos/"+folio+"/documents/"+res.Document.ID+"/ready", gin.H{"ready": true})
		if w.Code != http.StatusOK {
			t.Fatalf("Ready %s: expected status 200, got %d: %s", sec, w.Code, w.Body.String())
		}
		ids = append(ids, res.Document.ID)
	}
	return ids
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidFormat, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", service.ErrMissingReason), http.StatusBadRequest},
		{service.ErrInvalidFolio, http.StatusBadRequest},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrDuplicateFolio, http.StatusConflict},
		{service.ErrConflict, http.StatusConflict},
		{service.ErrImmutable, http.StatusUnprocessableEntity},
		{service.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "", "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestContractRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "", "GET", "/api/contratos", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestContractHandlerCRUD(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, s.editor, "POST", "/api/contratos", gin.H{"folio": "Contrato Uno", "contrato": "Uno"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[model.Contract](t, w)
	if created.Folio != "contrato-uno" {
		t.Errorf("Expected folio contrato-uno, got %s", created.Folio)
	}
	if created.Status != model.StatusPending {
		t.Errorf("Expected status Pending, got %s", created.Status)
	}

	w = s.do(t, s.editor, "POST", "/api/contratos", gin.H{"folio": "contrato-uno", "contrato": "Otra vez"})
	if w.Code != http.StatusConflict {
		t.Errorf("Duplicate: expected status 409, got %d", w.Code)
	}

	w = s.do(t, s.editor, "POST", "/api/contratos", gin.H{"folio": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing name: expected status 400, got %d", w.Code)
	}

	w = s.do(t, s.editor, "PATCH", "/api/contratos/contrato-uno", gin.H{"descripcion": "Nueva", "version": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if updated := decode[model.Contract](t, w); updated.Description != "Nueva" {
		t.Errorf("Expected description Nueva, got %s", updated.Description)
	}

	w = s.do(t, s.editor, "PATCH", "/api/contratos/contrato-uno", gin.H{"descripcion": "Vieja", "version": 1})
	if w.Code != http.StatusConflict {
		t.Errorf("Stale version: expected status 409, got %d", w.Code)
	}

	w = s.do(t, s.editor, "PATCH", "/api/contratos/contrato-uno", gin.H{"estatus": "Aprobado"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Direct status: expected status 422, got %d", w.Code)
	}

	w = s.do(t, s.editor, "GET", "/api/contratos/contrato-uno", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	w = s.do(t, s.editor, "POST", "/api/contratos/contrato-uno/rename", gin.H{"folio": "contrato-dos"})
	if w.Code != http.StatusOK {
		t.Fatalf("Rename: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(t, s.editor, "GET", "/api/contratos/contrato-uno", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Old folio: expected status 404, got %d", w.Code)
	}

	w = s.do(t, s.editor, "DELETE", "/api/contratos/contrato-dos", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Delete: expected status 200, got %d", w.Code)
	}

	w = s.do(t, s.editor, "GET", "/api/contratos", nil)
	list := decode[map[string][]model.Contract](t, w)
	if len(list["contracts"]) != 0 {
		t.Errorf("Expected no contracts, got %d", len(list["contracts"]))
	}
}

func TestContractHandlerListFilter(t *testing.T) {
	s := newTestServer(t)
	s.seedContract(t, "c1")
	w := s.do(t, s.editor, "POST", "/api/contratos", gin.H{"folio": "c2", "contrato": "Dos"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	w = s.do(t, s.editor, "GET", "/api/contratos?estatus=En%20revisi%C3%B3n", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	list := decode[map[string][]model.Contract](t, w)
	if len(list["contracts"]) != 1 || list["contracts"][0].Folio != "c1" {
		t.Errorf("Expected only c1 in review, got %+v", list["contracts"])
	}

	w = s.do(t, s.editor, "GET", "/api/contratos?estatus=archivado", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Unknown status: expected status 400, got %d", w.Code)
	}
}

func TestContractHandlerProgress(t *testing.T) {
	s := newTestServer(t)
	s.seedContract(t, "c1")

	w := s.do(t, s.editor, "GET", "/api/contratos/c1/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	progress := decode[service.ProgressView](t, w)
	if !progress.CanApprove || progress.Percent != 100 {
		t.Errorf("Expected complete progress, got %+v", progress.ProgressStats)
	}
	if progress.Contract.Status != model.StatusInReview {
		t.Errorf("Expected InReview, got %s", progress.Contract.Status)
	}

	w = s.do(t, s.editor, "GET", "/api/contratos/missing/progress", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestContractHandlerExport(t *testing.T) {
	s := newTestServer(t)
	s.seedContract(t, "c1")

	w := s.do(t, s.editor, "GET", "/api/contratos/c1/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Expected application/zip, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="c1-modelado.zip"` {
		t.Errorf("Unexpected Content-Disposition %s", cd)
	}

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("Failed to open zip: %v", err)
	}
	if len(zr.File) != len(model.Sections) {
		t.Errorf("Expected %d files, got %d", len(model.Sections), len(zr.File))
	}
}
