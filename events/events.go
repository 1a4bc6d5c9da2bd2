// Package events carries in-process notifications between components: song
// changes reported by a listener, circuit breaker transitions and cache
// invalidations.
package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventSongChanged             EventType = "song_changed"
	EventLyricsLoaded            EventType = "lyrics_loaded"
	EventCircuitBreakerOpen      EventType = "circuit_breaker_open"
	EventCircuitBreakerRecovered EventType = "circuit_breaker_recovered"
	EventHighFailureRate         EventType = "high_failure_rate"
	EventCacheInvalidated        EventType = "cache_invalidated"
	EventServerStarted           EventType = "server_started"
)

// Severity represents the severity level of an event
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, severity Severity, message string) *Event {
	return &Event{
		Type:      eventType,
		Severity:  severity,
		Message:   message,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// WithData adds data to the event (chainable)
func (e *Event) WithData(key string, value interface{}) *Event {
	e.Data[key] = value
	return e
}

// Handler is a function that handles events
type Handler func(event *Event)

// Bus manages event publishing and subscription. A nil *Bus is valid and
// drops every event.
type Bus struct {
	handlers    map[EventType][]Handler
	allHandlers []Handler
	mu          sync.RWMutex
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll adds a handler that receives all events
func (b *Bus) SubscribeAll(handler Handler) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, handler)
}

// Publish sends an event to all subscribed handlers. Each handler runs on
// its own goroutine so a slow subscriber never blocks the publisher.
func (b *Bus) Publish(event *Event) {
	if b == nil || event == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, handler := range b.handlers[event.Type] {
		go handler(event)
	}
	for _, handler := range b.allHandlers {
		go handler(event)
	}
}

// HandlerCount returns the number of handlers for an event type, including
// the catch-all handlers
func (b *Bus) HandlerCount(eventType EventType) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType]) + len(b.allHandlers)
}

// PublishSongChanged announces that a listener switched songs
func (b *Bus) PublishSongChanged(sessionID, songID string) {
	b.Publish(NewEvent(EventSongChanged, SeverityInfo, "Listener changed song").
		WithData("session", sessionID).
		WithData("song", songID))
}

// PublishLyricsLoaded announces that lyrics were applied to a session
func (b *Bus) PublishLyricsLoaded(sessionID, songID string, lines int) {
	b.Publish(NewEvent(EventLyricsLoaded, SeverityInfo, "Lyrics loaded for session").
		WithData("session", sessionID).
		WithData("song", songID).
		WithData("lines", lines))
}

// PublishCircuitBreakerOpen publishes a circuit breaker open event
func (b *Bus) PublishCircuitBreakerOpen(name string, failures int, cooldown time.Duration) {
	b.Publish(NewEvent(EventCircuitBreakerOpen, SeverityCritical,
		"Circuit breaker has opened due to consecutive failures").
		WithData("name", name).
		WithData("failures", failures).
		WithData("cooldown", cooldown.String()))
}

// PublishCircuitBreakerRecovered publishes a circuit breaker recovery event
func (b *Bus) PublishCircuitBreakerRecovered(name string) {
	b.Publish(NewEvent(EventCircuitBreakerRecovered, SeverityInfo,
		"Circuit breaker has recovered and is operational").
		WithData("name", name))
}

// PublishHighFailureRate publishes a high failure rate warning
func (b *Bus) PublishHighFailureRate(name string, failures, threshold int) {
	b.Publish(NewEvent(EventHighFailureRate, SeverityWarning,
		"High failure rate detected, circuit breaker may trip soon").
		WithData("name", name).
		WithData("failures", failures).
		WithData("threshold", threshold))
}

// PublishCacheInvalidated publishes when response cache entries are dropped.
// An empty key list means the whole cache was cleared.
func (b *Bus) PublishCacheInvalidated(keys []string) {
	b.Publish(NewEvent(EventCacheInvalidated, SeverityInfo, "Response cache invalidated").
		WithData("keys", keys).
		WithData("all", len(keys) == 0))
}

// PublishServerStarted publishes when the server starts listening
func (b *Bus) PublishServerStarted(port string) {
	b.Publish(NewEvent(EventServerStarted, SeverityInfo, "Server started successfully").
		WithData("port", port))
}
