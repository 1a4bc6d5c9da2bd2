package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"jine-api-go/stats"

	log "github.com/sirupsen/logrus"
)

// captureLog redirects logrus output into a buffer for the test
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.StandardLogger().Out
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestGetStatusColor(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   string
	}{
		{"search results", http.StatusOK, "\033[32m"},
		{"session created", http.StatusCreated, "\033[32m"},
		{"session deleted", http.StatusNoContent, "\033[32m"},
		{"not modified", http.StatusNotModified, "\033[36m"},
		{"missing query", http.StatusBadRequest, "\033[33m"},
		{"bad admin key", http.StatusUnauthorized, "\033[33m"},
		{"unknown session", http.StatusNotFound, "\033[33m"},
		{"rate limited", http.StatusTooManyRequests, "\033[33m"},
		{"provider failed", http.StatusBadGateway, "\033[31m"},
		{"breaker open", http.StatusServiceUnavailable, "\033[31m"},
		{"provider timeout", http.StatusGatewayTimeout, "\033[31m"},
		{"informational", http.StatusContinue, "\033[0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getStatusColor(tt.statusCode); got != tt.expected {
				t.Errorf("Expected color code %q for status %d, got %q", tt.expected, tt.statusCode, got)
			}
		})
	}
}

func TestResponseRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := NewResponseRecorder(w)

	if rec.StatusCode != http.StatusOK || rec.BodySize != 0 {
		t.Fatalf("Expected 200 and empty body before writing, got %d and %d", rec.StatusCode, rec.BodySize)
	}

	rec.WriteHeader(http.StatusCreated)
	for _, chunk := range []string{`{"sessionId":`, `"3f2a"}`} {
		if _, err := rec.Write([]byte(chunk)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if rec.StatusCode != http.StatusCreated || w.Code != http.StatusCreated {
		t.Errorf("Expected 201 recorded and forwarded, got %d and %d", rec.StatusCode, w.Code)
	}
	if want := len(`{"sessionId":"3f2a"}`); rec.BodySize != want {
		t.Errorf("Expected body size %d, got %d", want, rec.BodySize)
	}
}

func TestResponseRecorder_ImplicitOK(t *testing.T) {
	rec := NewResponseRecorder(httptest.NewRecorder())
	rec.Write([]byte(`{"status":"ok"}`))

	if rec.StatusCode != http.StatusOK {
		t.Errorf("Expected status %d without WriteHeader, got %d", http.StatusOK, rec.StatusCode)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		status int
		body   string
	}{
		{"song search", http.MethodGet, "/search/songs?query=kesariya", http.StatusOK, `{"results":[]}`},
		{"create session", http.MethodPost, "/sessions", http.StatusCreated, `{"sessionId":"abc"}`},
		{"end session", http.MethodDelete, "/sessions/abc", http.StatusNoContent, ""},
		{"like song", http.MethodPost, "/likes/songs", http.StatusCreated, `{"liked":true}`},
		{"rate limited", http.MethodGet, "/songs/5WXAlMNt", http.StatusTooManyRequests, `{"error":"rate limit exceeded"}`},
		{"provider down", http.MethodGet, "/albums/1142502", http.StatusBadGateway, `{"error":"upstream"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLog(t)
			handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			if rec.Code != tt.status || rec.Body.String() != tt.body {
				t.Errorf("Expected %d %q passed through, got %d %q", tt.status, tt.body, rec.Code, rec.Body.String())
			}

			line := logs.String()
			for _, want := range []string{tt.method, tt.target, strconv.Itoa(tt.status)} {
				if !strings.Contains(line, want) {
					t.Errorf("Expected log line to contain %q, got %q", want, line)
				}
			}
		})
	}
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		group  string
		status int
		count  func(*stats.Stats) int64
		class  func(*stats.Stats) int64
	}{
		{
			name:   "lyrics served",
			group:  "lyrics",
			status: http.StatusOK,
			count:  func(s *stats.Stats) int64 { return s.LyricsRequests.Load() },
			class:  func(s *stats.Stats) int64 { return s.Status2xx.Load() },
		},
		{
			name:   "unknown session",
			group:  "session",
			status: http.StatusNotFound,
			count:  func(s *stats.Stats) int64 { return s.SessionRequests.Load() },
			class:  func(s *stats.Stats) int64 { return s.Status4xx.Load() },
		},
		{
			name:   "provider failed",
			group:  "metadata",
			status: http.StatusBadGateway,
			count:  func(s *stats.Stats) int64 { return s.MetadataRequests.Load() },
			class:  func(s *stats.Stats) int64 { return s.Status5xx.Load() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := stats.New()
			handler := MetricsMiddleware(st, func(r *http.Request) string { return tt.group })(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
				}),
			)

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			if st.TotalRequests.Load() != 1 {
				t.Errorf("Expected 1 total request, got %d", st.TotalRequests.Load())
			}
			if tt.count(st) != 1 {
				t.Errorf("Expected 1 %s request, got %d", tt.group, tt.count(st))
			}
			if tt.class(st) != 1 {
				t.Errorf("Expected status %d counted in its class", tt.status)
			}
		})
	}
}
