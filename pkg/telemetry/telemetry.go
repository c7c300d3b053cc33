package telemetry

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies the kind of telemetry event.
type EventType string

const (
	EventSessionLoading         EventType = "session.loading"
	EventSessionAuthenticated   EventType = "session.authenticated"
	EventSessionUnauthenticated EventType = "session.unauthenticated"
	EventSessionLogout          EventType = "session.logout"
	EventUnauthorized           EventType = "api.unauthorized"
	EventRequestFailed          EventType = "api.request_failed"
	EventCallbackReceived       EventType = "callback.received"
	EventReposLoaded            EventType = "repos.loaded"
	EventAnalysisCompleted      EventType = "analysis.completed"
	EventScanCompleted          EventType = "scan.completed"
	EventWorkflowGenerated      EventType = "workflow.generated"
)

// Event describes client activity that local listeners and the relay consume.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"runId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Hub fan-outs telemetry events to any number of subscribers.
// A nil *Hub drops everything.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
	runID       string
}

// NewHub constructs a telemetry hub. Events published without a run id are
// stamped with runID.
func NewHub(runID string) *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{}), runID: runID}
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
	if event.ID == "" {
		event.ID = strings.ToLower(ulid.Make().String())
	}
	if event.RunID == "" {
		event.RunID = h.runID
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Emit is shorthand for publishing an event of the given type.
func (h *Hub) Emit(eventType EventType, data map[string]any) {
	h.Publish(Event{Type: eventType, Data: data})
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
	if h == nil {
		return
	}
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
