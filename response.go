package main

import (
	"encoding/json"
	"net/http"

	"jine-api-go/middleware"
)

// Envelope is the JSON body shape shared by every data endpoint
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
}

// APIResponse handles consistent header setting and JSON responses.
// It sets X-Cache-Status and X-RateLimit-Type alongside the body.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	cacheStatus string
	retryAfter  string
}

// Respond creates a response helper from request context
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetCacheStatus sets the X-Cache-Status header value
func (a *APIResponse) SetCacheStatus(status string) *APIResponse {
	a.cacheStatus = status
	return a
}

// SetCacheHit sets X-Cache-Status to HIT or MISS
func (a *APIResponse) SetCacheHit(hit bool) *APIResponse {
	if hit {
		return a.SetCacheStatus("HIT")
	}
	return a.SetCacheStatus("MISS")
}

// SetRetryAfter sets the Retry-After header (seconds)
func (a *APIResponse) SetRetryAfter(seconds string) *APIResponse {
	a.retryAfter = seconds
	return a
}

// writeHeaders sets all standard headers based on context
func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")

	if a.cacheStatus != "" {
		a.w.Header().Set("X-Cache-Status", a.cacheStatus)
	}
	if a.retryAfter != "" {
		a.w.Header().Set("Retry-After", a.retryAfter)
	}
	if rateLimitType := middleware.RateLimitType(a.r.Context()); rateLimitType != "" {
		a.w.Header().Set("X-RateLimit-Type", rateLimitType)
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	a.writeHeaders()
	return json.NewEncoder(a.w).Encode(data)
}

// Status writes headers with statusCode and encodes data
func (a *APIResponse) Status(statusCode int, data interface{}) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(data)
}

// Error writes headers, sets status code, and encodes error response
func (a *APIResponse) Error(statusCode int, data interface{}) error {
	return a.Status(statusCode, data)
}

// OK wraps data in a successful envelope
func (a *APIResponse) OK(data interface{}) error {
	return a.JSON(Envelope{Success: true, Data: data})
}

// Fail writes a failed envelope carrying message and the fallback data
func (a *APIResponse) Fail(statusCode int, message string, data interface{}) error {
	return a.Status(statusCode, Envelope{Success: false, Message: message, Data: data})
}

// NoContent writes headers and a 204
func (a *APIResponse) NoContent() {
	a.writeHeaders()
	a.w.Header().Del("Content-Type")
	a.w.WriteHeader(http.StatusNoContent)
}
