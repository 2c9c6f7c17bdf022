package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddleware_Logging(t *testing.T) {
	t.Parallel()
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	handler := LoggingMiddleware()(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Error("Inner handler was not called")
	}
}

func TestMiddleware_Recovery(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware()(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestMiddleware_Auth(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := AuthMiddleware("secret")(inner)

	tests := []struct {
		name     string
		token    string
		expected int
	}{
		{"valid token", "secret", http.StatusOK},
		{"wrong token", "wrong", http.StatusUnauthorized},
		{"missing token", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/delivery_only/X", nil)
			if tt.token != "" {
				req.Header.Set("X-Authorization", tt.token)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestMiddleware_AuthDisabled(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Empty token disables the check (the test-harness default).
	handler := AuthMiddleware("")(inner)

	req := httptest.NewRequest(http.MethodPost, "/delivery_only/X", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestRouter_AuthGuardsIngestAndStatusRoutes(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "secret")

	// No token: rejected before any mailbox mutation.
	w := tr.post(t, "/delivery_only/ABC123?req=T1", []byte("blob"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", w.Code)
	}
	if tr.boxes.Len("ABC123") != 0 {
		t.Error("expected no mailbox mutation on auth failure")
	}

	w = tr.post(t, "/500/X?req=T1", []byte("blob"))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 on status-simulation route, got %d", w.Code)
	}

	// Info stays reachable without the token.
	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	rec := httptest.NewRecorder()
	tr.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected /info to answer 200 without token, got %d", rec.Code)
	}

	// With the token the ingest goes through.
	reqAuth := httptest.NewRequest(http.MethodPost, "/delivery_only/ABC123?req=T1", strings.NewReader("blob"))
	reqAuth.Header.Set("X-Authorization", "secret")
	rec = httptest.NewRecorder()
	tr.router.ServeHTTP(rec, reqAuth)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 with token, got %d", rec.Code)
	}
	if tr.boxes.Len("ABC123") != 1 {
		t.Errorf("expected 1 queued message, got %d", tr.boxes.Len("ABC123"))
	}
}
