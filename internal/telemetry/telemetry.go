package telemetry

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType identifies a telemetry event emitted by the cognition pipeline.
type EventType string

const (
	EventPatternLearned      EventType = "pattern_learned"
	EventSingleShot          EventType = "single_shot"
	EventLoopCrystallized    EventType = "loop_crystallized"
	EventLoopTriggered       EventType = "loop_triggered"
	EventDiscoveryMade       EventType = "discovery_made"
	EventCuriositySpike      EventType = "curiosity_spike"
	EventReflectionCompleted EventType = "reflection_completed"
	EventMemoryConsolidated  EventType = "memory_consolidated"
)

// Event is a fire-and-forget notification for dashboards and gateways.
// Events carry no delivery guarantee and are never part of the core contract.
type Event struct {
	Type      EventType      `json:"type"`
	OwnerID   string         `json:"owner_id,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives emitted events. Implementations must not block.
type Sink interface {
	Publish(ev *Event)
}

// Hub fans events out to in-process subscribers and registered sinks.
// Slow subscribers are dropped-to, never blocked on.
type Hub struct {
	subs   []chan *Event
	sinks  []Sink
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates an event hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{logger: logger}
}

// AddSink registers an external sink (e.g. a Redis stream publisher).
func (h *Hub) AddSink(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, s)
}

// Subscribe returns a buffered channel of events. Events are dropped when
// the buffer is full.
func (h *Hub) Subscribe() <-chan *Event {
	ch := make(chan *Event, 64)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

// Emit publishes an event to all subscribers and sinks.
func (h *Hub) Emit(ev *Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	h.mu.RLock()
	subs := h.subs
	sinks := h.sinks
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is behind; telemetry is lossy by contract.
		}
	}
	for _, s := range sinks {
		s.Publish(ev)
	}
}
