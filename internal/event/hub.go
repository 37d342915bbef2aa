// Package event provides the in-process hub for robot lifecycle events.
package event

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	// DefaultBufferSize is the default per-subscriber channel buffer.
	DefaultBufferSize = 16
)

// Type identifies the event category.
type Type string

const (
	// TypeConnected is published when the adapter's transport connects.
	TypeConnected Type = "connected"
	// TypeError carries an adapter error that scripts may want to handle.
	TypeError Type = "error"
	// TypeBrainLoaded is published each time the brain finishes loading from its store.
	TypeBrainLoaded Type = "brain_loaded"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Type Type
	Err  error
	Data any
}

// Publisher publishes events to subscribers.
type Publisher interface {
	Publish(event Event)
}

// Subscriber subscribes to events of one type.
type Subscriber interface {
	Subscribe(t Type, buffer int) (string, <-chan Event, func())
}

// Hub is an in-process pub/sub dispatcher keyed by event type.
type Hub struct {
	mu      sync.RWMutex
	streams map[Type]map[string]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		streams: map[Type]map[string]chan Event{},
	}
}

// Publish broadcasts one event to every subscriber of its type.
// Full subscriber buffers drop the event instead of blocking the publisher.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	if strings.TrimSpace(string(event.Type)) == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.streams[event.Type] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers one subscriber for t.
// It returns a stream ID, read-only event channel, and a cancel function.
func (h *Hub) Subscribe(t Type, buffer int) (string, <-chan Event, func()) {
	if h == nil || strings.TrimSpace(string(t)) == "" {
		ch := make(chan Event)
		close(ch)
		return "", ch, func() {}
	}
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	streamID := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	streams, ok := h.streams[t]
	if !ok {
		streams = map[string]chan Event{}
		h.streams[t] = streams
	}
	streams[streamID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			streams := h.streams[t]
			if streams != nil {
				if current, ok := streams[streamID]; ok {
					delete(streams, streamID)
					close(current)
				}
				if len(streams) == 0 {
					delete(h.streams, t)
				}
			}
			h.mu.Unlock()
		})
	}

	return streamID, ch, cancel
}
