// Package sse is the fan-out hub between the device manager and HTTP
// Server-Sent-Events subscribers: one bounded queue per subscriber,
// broadcast on device lifecycle, state changes, and raw events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/anova4all/gateway/internal/anovawifi"
	"github.com/anova4all/gateway/internal/anovawifi/event"
	"github.com/anova4all/gateway/internal/metrics"
	"github.com/google/uuid"
)

// EventType is the SSE wire event name sent on the "event:" line.
type EventType string

const (
	TypeDeviceConnected    EventType = "device_connected"
	TypeDeviceDisconnected EventType = "device_disconnected"
	TypeStateChanged       EventType = "state_changed"
	TypeEvent              EventType = "event"
	TypePing               EventType = "ping"
)

// queueSize bounds each subscriber's queue; once full, the oldest queued
// event is dropped to make room for the new one.
const queueSize = 64

// idlePingInterval is how long a subscriber loop waits for a queued event
// before emitting a ping to keep the connection alive.
const idlePingInterval = time.Second

// Event is one notification broadcast to a device's subscribers.
type Event struct {
	Type     EventType
	DeviceID string
	Payload  interface{}
}

type wireEvent struct {
	EventType string      `json:"event_type"`
	DeviceID  string      `json:"device_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Hub holds one map of subscriber queues per device.
type Hub struct {
	mu        sync.Mutex
	listeners map[string]map[string]chan Event
	metrics   *metrics.Metrics
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[string]map[string]chan Event)}
}

// SetMetrics wires the gateway's counters into this hub's broadcast path.
// Nil-safe when unset.
func (h *Hub) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// Connect allocates a fresh subscriber for deviceID and returns its ID and
// receive-only queue. Call Disconnect with the same pair when done.
func (h *Hub) Connect(deviceID string) (string, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listeners[deviceID] == nil {
		h.listeners[deviceID] = make(map[string]chan Event)
	}
	id := uuid.NewString()
	queue := make(chan Event, queueSize)
	h.listeners[deviceID][id] = queue
	return id, queue
}

// Disconnect removes a subscriber, cleaning up the device entry once it
// has no subscribers left.
func (h *Hub) Disconnect(deviceID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.listeners[deviceID]
	if !ok {
		return
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(h.listeners, deviceID)
	}
}

// SubscriberCount reports how many subscribers deviceID currently has.
func (h *Hub) SubscriberCount(deviceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[deviceID])
}

// Broadcast pushes a copy of evt to every subscriber of evt.DeviceID, if
// any are registered.
func (h *Hub) Broadcast(evt Event) {
	h.mu.Lock()
	subs := h.listeners[evt.DeviceID]
	queues := make([]chan Event, 0, len(subs))
	for _, q := range subs {
		queues = append(queues, q)
	}
	h.mu.Unlock()

	for _, q := range queues {
		enqueue(q, evt)
		if h.metrics != nil {
			h.metrics.SSEEventBroadcast()
		}
	}
}

// enqueue performs a non-blocking send, dropping the oldest queued event
// to make room when the subscriber's queue is full.
func enqueue(q chan Event, evt Event) {
	select {
	case q <- evt:
		return
	default:
	}
	select {
	case <-q:
	default:
	}
	select {
	case q <- evt:
	default:
	}
}

// RegisterWithManager subscribes the hub to every manager-wide lifecycle
// stream: connected, disconnected, state changes, and raw events.
func (h *Hub) RegisterWithManager(m *anovawifi.Manager) {
	m.OnConnected(func(id string) {
		h.Broadcast(Event{Type: TypeDeviceConnected, DeviceID: id})
	})
	m.OnDisconnected("*", func(id string) {
		h.Broadcast(Event{Type: TypeDeviceDisconnected, DeviceID: id})
	})
	m.OnStateChange("*", func(id string, state anovawifi.DeviceState) {
		h.Broadcast(Event{Type: TypeStateChanged, DeviceID: id, Payload: state})
	})
	m.OnEvent("*", func(id string, evt event.Event) {
		h.Broadcast(Event{Type: TypeEvent, DeviceID: id, Payload: evt})
	})
}

// WriteEvent writes one SSE frame: "event: <type>\ndata: <json>\n\n".
func WriteEvent(w io.Writer, evt Event) error {
	data, err := json.Marshal(wireEvent{
		EventType: string(evt.Type),
		DeviceID:  evt.DeviceID,
		Payload:   evt.Payload,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
	return err
}

// Stream runs one subscriber's loop against deviceID: on each iteration it
// waits up to idlePingInterval for a queued event, emitting a ping on
// timeout, and returns when ctx is cancelled (the HTTP client disconnected).
// flush is called after every write, if non-nil.
func (h *Hub) Stream(ctx context.Context, deviceID string, w io.Writer, flush func()) error {
	subscriberID, queue := h.Connect(deviceID)
	defer h.Disconnect(deviceID, subscriberID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-queue:
			if err := WriteEvent(w, evt); err != nil {
				return err
			}
		case <-time.After(idlePingInterval):
			if err := WriteEvent(w, Event{Type: TypePing, DeviceID: deviceID}); err != nil {
				return err
			}
		}
		if flush != nil {
			flush()
		}
	}
}
