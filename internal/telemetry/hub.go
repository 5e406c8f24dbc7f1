// Package telemetry distributes transmitter events to in-process
// subscribers.
//
// Events get monotonic IDs per transmitter and are kept in a bounded
// per-transmitter buffer, so a subscriber that reconnects with the last ID
// it saw receives what it missed. Slow subscribers lose events rather than
// stall the publisher.
package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types published by the control layer.
const (
	EventState   = "state"
	EventTimeout = "timeout"
	EventLatency = "latency"
	EventCommand = "command"
)

const subscriberQueueSize = 100

// ErrHubStopped is returned when publishing to or subscribing on a stopped
// hub.
var ErrHubStopped = errors.New("telemetry hub stopped")

// Event is a telemetry event.
type Event struct {
	ID          int64                  `json:"id,omitempty"`
	Type        string                 `json:"type"`
	Transmitter string                 `json:"transmitter,omitempty"`
	Timestamp   time.Time              `json:"ts"`
	Data        map[string]interface{} `json:"data"`
}

// Subscriber receives events on Events until it is unsubscribed or its
// context ends; Events is then closed.
type Subscriber struct {
	ID          string
	Transmitter string // empty receives every transmitter
	Events      <-chan Event

	events  chan Event
	mu      sync.Mutex
	closed  bool
	dropped atomic.Int64
	cancel  context.CancelFunc
}

// Dropped returns how many events were discarded because the subscriber
// did not keep up.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscriber) deliver(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func (s *Subscriber) wants(event Event) bool {
	return s.Transmitter == "" || event.Transmitter == "" || s.Transmitter == event.Transmitter
}

// Hub manages telemetry distribution with per-transmitter buffering.
//
// Lock ordering: h.mu before EventBuffer.mu before Subscriber.mu.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	ids         map[string]*int64
	buffers     map[string]*EventBuffer
	bufferSize  int
	stopped     bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates a hub keeping bufferSize events per transmitter.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 50
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		ids:         make(map[string]*int64),
		buffers:     make(map[string]*EventBuffer),
		bufferSize:  bufferSize,
		done:        make(chan struct{}),
	}
}

// Subscribe registers a subscriber for transmitter ("" for all). When
// lastEventID is positive, buffered events of transmitter after that ID are
// queued first. The subscription ends when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, transmitter string, lastEventID int64) (*Subscriber, error) {
	subCtx, cancel := context.WithCancel(ctx)

	var replay []Event
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		cancel()
		return nil, ErrHubStopped
	}
	if lastEventID > 0 {
		if buffer, ok := h.buffers[transmitter]; ok {
			replay = buffer.GetEventsAfter(lastEventID)
		}
	}

	events := make(chan Event, subscriberQueueSize+len(replay))
	sub := &Subscriber{
		ID:          uuid.NewString(),
		Transmitter: transmitter,
		Events:      events,
		events:      events,
		cancel:      cancel,
	}
	for _, e := range replay {
		sub.events <- e
	}
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"subscriber":  sub.ID,
		"transmitter": transmitter,
		"replayed":    len(replay),
	}).Debug("Telemetry subscriber added")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		select {
		case <-subCtx.Done():
		case <-h.done:
		}
		h.Unsubscribe(sub.ID)
	}()

	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channel. Unknown IDs are
// ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()

	if ok {
		sub.cancel()
		sub.close()
	}
}

// Publish assigns the event an ID, buffers it and offers it to every
// interested subscriber without blocking.
func (h *Hub) Publish(event Event) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrHubStopped
	}
	if event.ID == 0 {
		event.ID = h.nextEventID(event.Transmitter)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Transmitter != "" {
		buffer, ok := h.buffers[event.Transmitter]
		if !ok {
			buffer = NewEventBuffer(h.bufferSize)
			h.buffers[event.Transmitter] = buffer
		}
		buffer.AddEvent(event)
	}
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		if sub.wants(event) {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(event)
	}
	return nil
}

// PublishTransmitter publishes event for transmitter.
func (h *Hub) PublishTransmitter(transmitter string, event Event) error {
	event.Transmitter = transmitter
	return h.Publish(event)
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Buffer returns the event buffer of transmitter, or nil.
func (h *Hub) Buffer(transmitter string) *EventBuffer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buffers[transmitter]
}

// nextEventID returns the next monotonic ID for transmitter. Caller holds
// h.mu.
func (h *Hub) nextEventID(transmitter string) int64 {
	if transmitter == "" {
		transmitter = "global"
	}
	counter, ok := h.ids[transmitter]
	if !ok {
		counter = new(int64)
		h.ids[transmitter] = counter
	}
	*counter++
	return *counter
}

// Stop closes every subscriber and rejects further use. Stop is idempotent.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	close(h.done)
	h.mu.Unlock()

	h.wg.Wait()
}

// EventBuffer keeps the most recent events of one transmitter.
type EventBuffer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewEventBuffer creates a buffer holding at most capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// AddEvent appends event, evicting the oldest when full.
func (b *EventBuffer) AddEvent(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)
	if len(b.events) > b.capacity {
		b.events = b.events[len(b.events)-b.capacity:]
	}
}

// GetEventsAfter returns the buffered events with an ID above lastID.
func (b *EventBuffer) GetEventsAfter(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, event := range b.events {
		if event.ID > lastID {
			result = append(result, event)
		}
	}
	return result
}

// GetCapacity returns the buffer capacity.
func (b *EventBuffer) GetCapacity() int {
	return b.capacity
}

// GetSize returns the current buffer size.
func (b *EventBuffer) GetSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
