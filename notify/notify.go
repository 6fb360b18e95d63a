// Package notify is the email/push delivery collaborator (§1 Non-goals).
// Its implementation is explicitly out of scope; this package only defines
// the contract the engine calls after a transaction commits, plus a no-op
// and an in-memory recording implementation for tests.
package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
)

// Event is what the engine hands the notifier after commit (§4.3, §9: "the
// engine never holds a transaction across an external collaborator call").
type Event struct {
	Kind     models.AuditKind
	Lot      models.Lot
	BidderID uuid.UUID
}

// Notifier delivers a bid event to whatever external channel (email, push,
// SMS) a production deployment wires up. Called only after the engine's
// transaction has committed — never inside it.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NoOp discards every event. It is the default when no notifier is wired.
type NoOp struct{}

func (NoOp) Notify(context.Context, Event) {}

// Recorder is a test double that appends every event it receives, guarded
// by a mutex since the engine may call it from multiple goroutines.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
}

// All returns a snapshot copy of the recorded events.
func (r *Recorder) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.Events))
	copy(out, r.Events)
	return out
}
