package events

import (
	"sync"
	"time"

	"jine-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultAlertCooldown is the minimum gap between two alerts of the same
	// type
	DefaultAlertCooldown = 15 * time.Minute

	defaultHistorySize = 50
)

// AlertHandler logs warning and critical events, at most once per cooldown
// per event type, and keeps a short history of every event for the admin
// endpoint
type AlertHandler struct {
	cooldowns        map[EventType]time.Time
	cooldownDuration time.Duration
	history          []Event
	historySize      int
	now              func() time.Time
	mu               sync.Mutex
}

// NewAlertHandler creates a handler. A zero cooldown means
// DefaultAlertCooldown.
func NewAlertHandler(cooldown time.Duration) *AlertHandler {
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	return &AlertHandler{
		cooldowns:        make(map[EventType]time.Time),
		cooldownDuration: cooldown,
		historySize:      defaultHistorySize,
		now:              time.Now,
	}
}

// Start subscribes the handler to every event on bus
func (h *AlertHandler) Start(bus *Bus) {
	if bus == nil {
		return
	}
	bus.SubscribeAll(h.handleEvent)
	log.Infof("%s Alert handler started (cooldown: %v)", logcolors.LogEvents, h.cooldownDuration)
}

func (h *AlertHandler) handleEvent(event *Event) {
	h.remember(event)

	if event.Severity == SeverityInfo {
		log.Debugf("%s %s: %s %v", logcolors.LogEvents, event.Type, event.Message, event.Data)
		return
	}

	if !h.shouldAlert(event.Type) {
		log.Debugf("%s Skipping alert for %s (cooldown active)", logcolors.LogEvents, event.Type)
		return
	}

	entry := log.WithFields(log.Fields{
		"event":    string(event.Type),
		"severity": string(event.Severity),
	})
	for k, v := range event.Data {
		entry = entry.WithField(k, v)
	}
	if event.Severity == SeverityCritical {
		entry.Errorf("%s %s", logcolors.LogEvents, event.Message)
	} else {
		entry.Warnf("%s %s", logcolors.LogEvents, event.Message)
	}
}

func (h *AlertHandler) shouldAlert(eventType EventType) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	lastAlert, exists := h.cooldowns[eventType]
	if !exists || now.Sub(lastAlert) >= h.cooldownDuration {
		h.cooldowns[eventType] = now
		return true
	}
	return false
}

func (h *AlertHandler) remember(event *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history, *event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
}

// Recent returns the retained events, newest first
func (h *AlertHandler) Recent() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, len(h.history))
	for i, e := range h.history {
		out[len(h.history)-1-i] = e
	}
	return out
}

// ResetCooldown forgets the last alert time for eventType
func (h *AlertHandler) ResetCooldown(eventType EventType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.cooldowns, eventType)
}
