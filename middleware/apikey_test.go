package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIKeyMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		configured string
		header     string
		value      string
		expected   int
	}{
		{"valid X-API-Key", "secret", "X-API-Key", "secret", http.StatusOK},
		{"valid Authorization", "secret", "Authorization", "secret", http.StatusOK},
		{"missing key", "secret", "", "", http.StatusUnauthorized},
		{"wrong key", "secret", "X-API-Key", "guess", http.StatusUnauthorized},
		{"no key configured", "", "X-API-Key", "anything", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyMiddleware(tt.configured)(ok)
			req := httptest.NewRequest("GET", "/cache", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rec.Code)
			}
			if tt.expected == http.StatusUnauthorized && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Expected JSON error body, got Content-Type %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}
