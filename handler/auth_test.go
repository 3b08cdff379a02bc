package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CharlyTlelo/abc-exprezo-contratos/config"
	"github.com/CharlyTlelo/abc-exprezo-contratos/middleware"
	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/CharlyTlelo/abc-exprezo-contratos/storage"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.RateLimit.Requests = 10000
	cfg.Users = []config.User{
		{Username: "ana", Password: "editora", Role: config.RoleEditor},
		{Username: "luis", Password: "revisor", Role: config.RoleReviewer},
	}
	return cfg
}

func login(t *testing.T, router *gin.Engine, username, password string) LoginResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Login %s: expected status 200, got %d: %s", username, w.Code, w.Body.String())
	}
	var response LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	return response
}

func TestAuthHandlerLogin(t *testing.T) {
	handler := NewAuthHandler(authConfig())

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
		expectedRole   string
	}{
		{
			name:           "editor",
			body:           map[string]string{"username": "ana", "password": "editora"},
			expectedStatus: http.StatusOK,
			expectedRole:   config.RoleEditor,
		},
		{
			name:           "reviewer",
			body:           map[string]string{"username": "luis", "password": "revisor"},
			expectedStatus: http.StatusOK,
			expectedRole:   config.RoleReviewer,
		},
		{
			name:           "password of another user",
			body:           map[string]string{"username": "ana", "password": "revisor"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown user",
			body:           map[string]string{"username": "pedro", "password": "editora"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing password",
			body:           map[string]string{"username": "ana"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/login", handler.Login)

			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var response LoginResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}
			if response.Token == "" {
				t.Error("Expected token in response")
			}
			if response.Username != tt.body["username"] {
				t.Errorf("Expected username '%s', got '%s'", tt.body["username"], response.Username)
			}
			if response.Role != tt.expectedRole {
				t.Errorf("Expected role '%s', got '%s'", tt.expectedRole, response.Role)
			}
		})
	}
}

func TestAuthHandlerCurrentUserCarriesRole(t *testing.T) {
	router := NewRouter(authConfig(), service.NewWorkflow(storage.NewMemory(), storage.NewMemoryBlobs()))

	for _, user := range []struct{ username, password, role string }{
		{"ana", "editora", config.RoleEditor},
		{"luis", "revisor", config.RoleReviewer},
	} {
		token := login(t, router, user.username, user.password).Token

		req := httptest.NewRequest("GET", "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", user.username, w.Code)
		}
		var response map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if response["username"] != user.username || response["role"] != user.role {
			t.Errorf("Expected %s/%s, got %s/%s", user.username, user.role, response["username"], response["role"])
		}
	}
}

func TestAuthRolesOnReviewRoute(t *testing.T) {
	cfg := authConfig()
	router := NewRouter(cfg, service.NewWorkflow(storage.NewMemory(), storage.NewMemoryBlobs()))
	s := &testServer{
		router:   router,
		editor:   login(t, router, "ana", "editora").Token,
		reviewer: login(t, router, "luis", "revisor").Token,
	}
	ids := s.seedContract(t, "c1")
	body := gin.H{"decisions": []gin.H{{"id": ids[0], "decision": "approved"}}}

	forged, _, err := middleware.GenerateToken("ana", config.RoleReviewer, &config.AuthConfig{JWTSecret: "other-secret", TokenExpireHours: 1})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"reviewer role signed with another secret", forged, http.StatusUnauthorized},
		{"editor", s.editor, http.StatusForbidden},
		{"reviewer", s.reviewer, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.token, "POST", "/api/contratos/c1/reviews", body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}

	// Editors still read the ledger the reviewer wrote.
	w := s.do(t, s.editor, "GET", "/api/contratos/c1/reviews", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Editor reading reviews: expected status 200, got %d", w.Code)
	}
}

func TestAuthHandlerLoginInvalidJSON(t *testing.T) {
	handler := NewAuthHandler(authConfig())

	router := gin.New()
	router.POST("/login", handler.Login)

	req := httptest.NewRequest("POST", "/login", bytes.NewBufferString("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
