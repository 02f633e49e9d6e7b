package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	dummyHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := SecurityHeadersMiddleware(dummyHandler)

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	middleware.ServeHTTP(rr, req)

	expectedHeaders := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "SAMEORIGIN",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}

	for key, expectedValue := range expectedHeaders {
		if value := rr.Header().Get(key); value != expectedValue {
			t.Errorf("Header %s: expected %s, got %s", key, expectedValue, value)
		}
	}

	csp := rr.Header().Get("Content-Security-Policy")
	expectedDirectives := []string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net",
		"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com",
		"font-src 'self' https://fonts.gstatic.com",
	}
	for _, directive := range expectedDirectives {
		if !strings.Contains(csp, directive) {
			t.Errorf("CSP missing directive: %s. Got: %s", directive, csp)
		}
	}

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status OK, got %v", rr.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	dummyHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	middleware := CORSMiddleware(dummyHandler)

	req := httptest.NewRequest("OPTIONS", "/api/activities", nil)
	req.Header.Set("Origin", "http://example.com")
	rr := httptest.NewRecorder()
	middleware.ServeHTTP(rr, req)

	if val := rr.Header().Get("Access-Control-Allow-Origin"); val != "http://example.com" {
		t.Errorf("Expected Access-Control-Allow-Origin to be http://example.com, got %s", val)
	}
	if val := rr.Header().Get("Access-Control-Allow-Credentials"); val != "" {
		t.Errorf("Preflight must not allow credentials, got %s", val)
	}
	if val := rr.Header().Get("Access-Control-Allow-Methods"); val != "POST, GET, OPTIONS, PUT, DELETE" {
		t.Errorf("Unexpected Access-Control-Allow-Methods: %s", val)
	}
	if called {
		t.Errorf("Preflight requests should not reach the handler")
	}

	req = httptest.NewRequest("GET", "/", nil)
	rr = httptest.NewRecorder()
	middleware.ServeHTTP(rr, req)
	if val := rr.Header().Get("Access-Control-Allow-Origin"); val != "*" {
		t.Errorf("Expected wildcard origin without an Origin header, got %s", val)
	}
	if !called {
		t.Errorf("Expected handler to be called")
	}
}

func TestRequestLogger(t *testing.T) {
	var seen string
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestID(r)
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/x", nil))

	id := rr.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("Expected a uuid request id, got %q", id)
	}
	if seen != id {
		t.Errorf("Handler saw request id %q, response carries %q", seen, id)
	}
	if rr.Code != http.StatusTeapot {
		t.Errorf("Expected status to pass through, got %d", rr.Code)
	}

	rr2 := httptest.NewRecorder()
	h.ServeHTTP(rr2, httptest.NewRequest("GET", "/x", nil))
	if rr2.Header().Get(RequestIDHeader) == id {
		t.Errorf("Expected a new id per request")
	}
}

func TestChainSetsHeaders(t *testing.T) {
	app := newTestApp(t)
	w := app.serve("GET", "/api/current-user", nil, "127.0.0.1")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	for _, h := range []string{RequestIDHeader, "X-Frame-Options", "Access-Control-Allow-Origin"} {
		if w.Header().Get(h) == "" {
			t.Errorf("Expected %s to be set by the middleware chain", h)
		}
	}
}

func TestCORSForeignOriginWithSession(t *testing.T) {
	app := newTestApp(t)
	c := app.signedUp(t, "alice")

	resp := c.do("GET", "/api/activities", nil, "Origin", "https://evil.example")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if val := resp.Header.Get("Access-Control-Allow-Credentials"); val != "" {
		t.Errorf("Expected no Access-Control-Allow-Credentials for a foreign origin, got %s", val)
	}
}
