package middleware

import (
	"net/http"
	"time"

	"jine-api-go/logcolors"
	"jine-api-go/stats"

	log "github.com/sirupsen/logrus"
)

// ResponseRecorder captures the status code and body size written by a
// handler
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
	BodySize   int
}

// NewResponseRecorder wraps w. The status defaults to 200 for handlers that
// never call WriteHeader.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (r *ResponseRecorder) WriteHeader(statusCode int) {
	r.StatusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.BodySize += n
	return n, err
}

func getStatusColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "\033[32m"
	case statusCode >= 300 && statusCode < 400:
		return "\033[36m"
	case statusCode >= 400 && statusCode < 500:
		return "\033[33m"
	case statusCode >= 500:
		return "\033[31m"
	default:
		return logcolors.Reset
	}
}

// LoggingMiddleware logs method, path, status, size and latency of every
// request
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewResponseRecorder(w)

		next.ServeHTTP(rec, r)

		color := getStatusColor(rec.StatusCode)
		log.Infof("%s %s %s %s%d%s %dB %v",
			logcolors.LogHTTP,
			r.Method,
			r.URL.RequestURI(),
			color, rec.StatusCode, logcolors.Reset,
			rec.BodySize,
			time.Since(start),
		)
	})
}

// MetricsMiddleware records request counts, status classes and response
// times. group maps a request to its stats bucket.
func MetricsMiddleware(st *stats.Stats, group func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewResponseRecorder(w)

			next.ServeHTTP(rec, r)

			st.RecordRequest(group(r))
			st.RecordStatusCode(rec.StatusCode)
			st.RecordResponseTime(time.Since(start))
		})
	}
}
