package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServerCORSHeaders(t *testing.T) {
	server := NewServer(&Handler{}, "")

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected CORS allow-origin header, got %q", got)
	}
}

func TestServerCORSPreflight(t *testing.T) {
	server := NewServer(&Handler{}, "")

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/", nil))

	if w.Code != 204 {
		t.Errorf("Expected status 204 for a preflight request, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("Expected allowed methods advertised on preflight")
	}
}

func TestAuthMiddleware(t *testing.T) {
	server := NewServer(&Handler{}, "secret")

	// Missing key
	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/api/feeds", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a key, got %d", w.Code)
	}

	// Wrong key
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/feeds", nil)
	req.Header.Set("X-API-Key", "wrong")
	server.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a wrong key, got %d", w.Code)
	}

	// Wrong bearer token
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/feeds", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	server.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a wrong bearer token, got %d", w.Code)
	}
}

func TestAPIDisabledWithoutAccessKey(t *testing.T) {
	server := NewServer(&Handler{}, "")

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/api/feeds", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when the API is disabled, got %d", w.Code)
	}
}
