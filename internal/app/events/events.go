// Package events records structured game lifecycle events. Services publish
// to a shared ring buffer; the HTTP layer and tests read recent history, and
// subscribers receive events as they happen.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type classifies a game event.
type Type string

const (
	GameStarted     Type = "game.started"
	TicketPurchased Type = "game.ticket_purchased"
	PotAssetAdded   Type = "game.pot_asset_added"
	PotAssetRemoved Type = "game.pot_asset_removed"
	GameEnded       Type = "game.ended"
	TreasuryChanged Type = "treasury.changed"
	OracleSeeded    Type = "oracle.seeded"
)

// Event is a single recorded occurrence. GameNumber is set for game-scoped
// events; engine-scoped events (treasury, oracle) leave HasGame false.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	GameNumber uint64 `json:"game_number,omitempty"`
	HasGame    bool   `json:"-"`

	Actor    string            `json:"actor,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// String returns the event as JSON.
func (e Event) String() string {
	data, _ := json.Marshal(e)
	return string(data)
}

// Handler processes events as they are logged.
type Handler func(Event)

// Log is the publishing side used by services.
type Log interface {
	Publish(event Event)
}

type handlerEntry struct {
	id      int64
	handler Handler
}

// RingBuffer keeps the most recent events in a fixed-size circular buffer.
type RingBuffer struct {
	mu       sync.RWMutex
	events   []Event
	size     int
	head     int
	count    int
	handlers []handlerEntry
	nextID   int64
}

var _ Log = (*RingBuffer)(nil)

// NewRingBuffer creates a buffer holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1000
	}
	return &RingBuffer{
		events: make([]Event, size),
		size:   size,
	}
}

// Publish stores the event and notifies subscribers. ID and timestamp are
// filled in when empty.
func (rb *RingBuffer) Publish(event Event) {
	rb.mu.Lock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	rb.events[rb.head] = event
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}

	handlers := make([]handlerEntry, len(rb.handlers))
	copy(handlers, rb.handlers)
	rb.mu.Unlock()

	// Notify outside the lock so a slow subscriber cannot block publishers.
	for _, h := range handlers {
		h.handler(event)
	}
}

// Subscribe registers a handler for all future events and returns an
// unsubscribe function.
func (rb *RingBuffer) Subscribe(handler Handler) func() {
	rb.mu.Lock()
	id := rb.nextID
	rb.nextID++
	rb.handlers = append(rb.handlers, handlerEntry{id: id, handler: handler})
	rb.mu.Unlock()

	return func() {
		rb.mu.Lock()
		defer rb.mu.Unlock()
		for i, h := range rb.handlers {
			if h.id == id {
				rb.handlers = append(rb.handlers[:i], rb.handlers[i+1:]...)
				return
			}
		}
	}
}

// Recent returns up to n events, newest first.
func (rb *RingBuffer) Recent(n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || rb.count == 0 {
		return nil
	}
	if n > rb.count {
		n = rb.count
	}

	result := make([]Event, n)
	for i := 0; i < n; i++ {
		idx := (rb.head - 1 - i + rb.size) % rb.size
		result[i] = rb.events[idx]
	}
	return result
}

// RecentByGame returns up to n events for one game, newest first.
func (rb *RingBuffer) RecentByGame(gameNumber uint64, n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || rb.count == 0 {
		return nil
	}

	var result []Event
	for i := 0; i < rb.count && len(result) < n; i++ {
		idx := (rb.head - 1 - i + rb.size) % rb.size
		if rb.events[idx].HasGame && rb.events[idx].GameNumber == gameNumber {
			result = append(result, rb.events[idx])
		}
	}
	return result
}

// Count returns the number of buffered events.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Game builds a game-scoped event.
func Game(t Type, gameNumber uint64, actor string, metadata map[string]string) Event {
	return Event{
		Type:       t,
		GameNumber: gameNumber,
		HasGame:    true,
		Actor:      actor,
		Metadata:   metadata,
	}
}

// NoOp discards all events.
type NoOp struct{}

func (NoOp) Publish(Event) {}
