// Package hub is the per-lot subscription hub (§4.8): an in-memory pub/sub
// attached after a bidding-engine transaction commits. Publishers never
// block on a slow subscriber, and a new subscriber always receives a
// snapshot event before any incremental ones.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
)

// EventKind is the `kind` field of a subscription event (§6).
type EventKind string

const (
	EventSnapshot  EventKind = "snapshot"
	EventBid       EventKind = "bid"
	EventSoftClose EventKind = "soft_close"
	EventLotClosed EventKind = "lot_closed"
	EventHeartbeat EventKind = "heartbeat"
)

// Event is one frame delivered to a subscriber (§6: "{ kind, lot, at }").
type Event struct {
	Kind EventKind   `json:"kind"`
	Lot  *models.Lot `json:"lot,omitempty"`
	At   int64       `json:"at"` // epoch millis
}

// MarshalSSE renders the event as one `data: ...` SSE frame.
func (e Event) MarshalSSE() ([]byte, error) {
	return json.Marshal(e)
}

const heartbeatInterval = 30 * time.Second

// subscriberBuffer bounds how many undelivered events a slow subscriber may
// accumulate before it is detached, so a stalled client cannot grow the
// hub's memory without bound (§5 "bounded memory").
const subscriberBuffer = 32

type subscriber struct {
	id uuid.UUID
	ch chan Event
}

type topic struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*subscriber
}

// Hub holds one topic per lot. The zero value is not usable; use New.
type Hub struct {
	mu     sync.Mutex
	topics map[uuid.UUID]*topic
}

// New constructs an empty Hub.
func New() *Hub {
	return &Hub{topics: make(map[uuid.UUID]*topic)}
}

func (h *Hub) topicFor(lotID uuid.UUID) *topic {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[lotID]
	if !ok {
		t = &topic{subs: make(map[uuid.UUID]*subscriber)}
		h.topics[lotID] = t
	}
	return t
}

// Subscribe registers a new subscriber for lotID and returns a channel of
// events plus an unsubscribe function. The first event delivered is always
// a snapshot of lot's current state (§4.8); there is no replay of history
// before that. The returned channel is closed when ctx is done or Detach is
// called, whichever comes first — callers should range over it.
func (h *Hub) Subscribe(ctx context.Context, lotID uuid.UUID, snapshot *models.Lot, now time.Time) (<-chan Event, func()) {
	t := h.topicFor(lotID)
	sub := &subscriber{id: uuid.New(), ch: make(chan Event, subscriberBuffer)}

	// Deliver the initial snapshot before the subscriber is registered, so no
	// Publish can reach the channel first; the buffer is empty at this point
	// so this send cannot block.
	sub.ch <- Event{Kind: EventSnapshot, Lot: snapshot, At: now.UnixMilli()}

	t.mu.Lock()
	t.subs[sub.id] = sub
	t.mu.Unlock()

	detach := func() {
		t.mu.Lock()
		if _, ok := t.subs[sub.id]; ok {
			delete(t.subs, sub.id)
			close(sub.ch)
		}
		t.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		detach()
	}()

	return sub.ch, detach
}

// Publish fans out ev to every live subscriber of lotID without blocking:
// a subscriber whose buffer is full is detached instead of stalling the
// publisher (§4.8, §5). Publish is called only after the engine's
// transaction has committed (§4.8: "the hub is an observer, never a gate").
func (h *Hub) Publish(lotID uuid.UUID, ev Event) {
	t := h.topicFor(lotID)
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, sub := range t.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(t.subs, id)
			close(sub.ch)
		}
	}
}

// Heartbeat sends a heartbeat frame to every current subscriber of lotID; it
// does not check when each subscriber last received a frame. Callers (the API layer's
// SSE handler) are expected to call this on a ticker no more often than
// heartbeatInterval per connection.
func (h *Hub) Heartbeat(lotID uuid.UUID, now time.Time) {
	h.Publish(lotID, Event{Kind: EventHeartbeat, At: now.UnixMilli()})
}

// HeartbeatInterval exposes the constant above for the API layer's ticker.
func HeartbeatInterval() time.Duration { return heartbeatInterval }

// SubscriberCount reports how many live subscribers a lot's topic has,
// primarily for tests.
func (h *Hub) SubscriberCount(lotID uuid.UUID) int {
	t := h.topicFor(lotID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
