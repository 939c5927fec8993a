// Package telemetry fans out structured run-progress events to subscribers.
// The upgrade engine only publishes; rendering and persistence belong to
// whatever consumes the hub (CLI printer, log sink, test harness).
package telemetry

import (
	"sync"
	"time"
)

// EventType identifies the kind of progress event.
type EventType string

const (
	EventRunStarted        EventType = "run.started"
	EventRunCompleted      EventType = "run.completed"
	EventRunFailed         EventType = "run.failed"
	EventModuleStarted     EventType = "module.started"
	EventModuleCompleted   EventType = "module.completed"
	EventModuleFailed      EventType = "module.failed"
	EventModuleSkipped     EventType = "module.skipped"
	EventStepStarted       EventType = "step.started"
	EventStepParallel      EventType = "step.parallel"
	EventStepCompleted     EventType = "step.completed"
	EventWinnerSelected    EventType = "step.winner"
	EventMergeApplied      EventType = "merge.applied"
	EventMergeFallback     EventType = "merge.fallback"
	EventWorkspaceCreated  EventType = "workspace.created"
	EventWorkspaceFallback EventType = "workspace.fallback"
	EventWorkspaceSynced   EventType = "workspace.synced"
	EventWorkspaceCleaned  EventType = "workspace.cleaned"
)

// Event describes run progress that UIs and log sinks can consume.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"runId,omitempty"`
	ModuleID  string         `json:"moduleId,omitempty"`
	Step      string         `json:"step,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Hub fan-outs progress events to any number of subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
}

// NewHub constructs a telemetry hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Publish notifies all subscribers of an event. Non-blocking; drops if buffer full.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Drop if subscriber can't keep up; prevents blocking the run.
		}
	}
}

// Subscribe returns a channel that will receive future events and a cleanup func.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		empty := make(chan Event)
		close(empty)
		return empty, func() {}
	}
	ch := make(chan Event, 64)
	h.subscribers[ch] = struct{}{}
	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Close unsubscribes all listeners and prevents future publications.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}
