package events

import (
	"testing"
	"time"
)

func TestAlertHandler_Cooldown(t *testing.T) {
	h := NewAlertHandler(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	if !h.shouldAlert(EventCircuitBreakerOpen) {
		t.Fatal("Expected first alert to pass")
	}
	if h.shouldAlert(EventCircuitBreakerOpen) {
		t.Error("Expected second alert within cooldown to be suppressed")
	}
	if !h.shouldAlert(EventHighFailureRate) {
		t.Error("Expected a different event type to have its own cooldown")
	}

	now = now.Add(time.Minute)
	if !h.shouldAlert(EventCircuitBreakerOpen) {
		t.Error("Expected alert to pass once the cooldown elapsed")
	}

	h.ResetCooldown(EventCircuitBreakerOpen)
	if !h.shouldAlert(EventCircuitBreakerOpen) {
		t.Error("Expected alert to pass after ResetCooldown")
	}
}

func TestAlertHandler_RecentNewestFirst(t *testing.T) {
	h := NewAlertHandler(0)
	h.historySize = 3

	for _, typ := range []EventType{EventServerStarted, EventSongChanged, EventLyricsLoaded, EventCacheInvalidated} {
		h.handleEvent(NewEvent(typ, SeverityInfo, string(typ)))
	}

	recent := h.Recent()
	want := []EventType{EventCacheInvalidated, EventLyricsLoaded, EventSongChanged}
	if len(recent) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(recent))
	}
	for i, typ := range want {
		if recent[i].Type != typ {
			t.Errorf("Position %d: expected %s, got %s", i, typ, recent[i].Type)
		}
	}
}

func TestAlertHandler_StartSubscribes(t *testing.T) {
	bus := NewBus()
	h := NewAlertHandler(0)
	h.Start(bus)

	if bus.HandlerCount(EventCircuitBreakerOpen) != 1 {
		t.Errorf("Expected handler to receive all event types")
	}

	bus.PublishCircuitBreakerOpen("saavn", 5, time.Minute)
	deadline := time.Now().Add(time.Second)
	for len(h.Recent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(h.Recent()) != 1 {
		t.Errorf("Expected published event to be recorded")
	}

	// nil bus is ignored
	NewAlertHandler(0).Start(nil)
}
