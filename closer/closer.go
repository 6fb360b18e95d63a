// Package closer closes lots and auctions once their clock has run out
// (§4.5), and carries the admin-facing lifecycle transitions that move an
// auction from draft through published and active before any lot in it can
// receive a bid. Closing a lot is idempotent and crash-safe: re-running it
// on an already-closed lot is a no-op, and the lot_closed audit event is
// deduped by looking up an existing (lot_id, kind=lot_closed) audit event.
package closer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/clock"
	"github.com/cloudforge/auctionhouse/hub"
	"github.com/cloudforge/auctionhouse/invoicer"
	"github.com/cloudforge/auctionhouse/models"
	"github.com/cloudforge/auctionhouse/notify"
	"github.com/cloudforge/auctionhouse/store"
)

// ErrNoLots is returned by PublishAuction when an admin tries to publish a
// draft auction that has no lots yet (§3: "published (requires >= 1 lot)").
var ErrNoLots = errors.New("closer: auction has no lots")

// Runner is the per-lot transaction surface the closer needs — identical to
// what the engine needs, and satisfied by the same *store.Storage.
type Runner interface {
	RunInLotTx(ctx context.Context, lotID uuid.UUID, fn func(ctx context.Context, tx store.LotTx, lot *models.Lot) error) error
}

// AuctionStore is the non-transactional auction-level surface the closer
// needs to decide when every lot is closed and to flip the auction itself.
type AuctionStore interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	UpdateAuctionStatus(ctx context.Context, id uuid.UUID, status models.AuctionStatus) error
	CountOpenLots(ctx context.Context, auctionID uuid.UUID) (int, error)
	CountLotsForAuction(ctx context.Context, auctionID uuid.UUID) (int, error)
	ListActiveLotIDs(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error)
	PublishLots(ctx context.Context, auctionID uuid.UUID, closeAt time.Time) error
}

// Invoicer is the narrow surface the closer needs from the invoicer package,
// kept as an interface here rather than importing it directly so closer and
// invoicer don't form an import cycle (the invoicer never needs to close a
// lot).
type Invoicer interface {
	GenerateInvoices(ctx context.Context, auctionID uuid.UUID) error
}

// Closer ties the Store, Clock, Hub, Notifier and Invoicer collaborators
// together the way Engine does.
type Closer struct {
	store    Runner
	auctions AuctionStore
	clk      clock.Clock
	hub      *hub.Hub
	notifier notify.Notifier
	invoicer Invoicer
}

// New constructs a Closer. hub, notifier and invoicer may be nil; a nil
// invoicer means CloseAuction never attempts invoice generation (useful for
// tests that only exercise lot closing).
func New(s Runner, auctions AuctionStore, clk clock.Clock, h *hub.Hub, n notify.Notifier, inv Invoicer) *Closer {
	if n == nil {
		n = notify.NoOp{}
	}
	return &Closer{store: s, auctions: auctions, clk: clk, hub: h, notifier: n, invoicer: inv}
}

// CloseLot closes one lot if it is due and still active (§4.5 steps 1-5). A
// lot that is not active is left untouched. A lot whose close time has not
// arrived is also left untouched, unless force is true — an admin-forced
// auction close (§3, §4.5 "or admin forces auction close") bypasses the due
// time but still leaves non-active lots alone and is still deduped by the
// lot_closed audit event, so forcing an already-closed lot is a no-op too.
func (c *Closer) CloseLot(ctx context.Context, lotID uuid.UUID, force bool) error {
	var events []notify.Event
	err := c.store.RunInLotTx(ctx, lotID, func(ctx context.Context, tx store.LotTx, lot *models.Lot) error {
		evs, err := c.closeLotTx(ctx, tx, lot, force)
		if err != nil {
			return err
		}
		events = evs
		return nil
	})
	if err != nil {
		return err
	}
	c.publish(lotID, events)
	return nil
}

func (c *Closer) closeLotTx(ctx context.Context, tx store.LotTx, lot *models.Lot, force bool) ([]notify.Event, error) {
	if lot.Status != models.LotActive {
		return nil, nil
	}
	now := c.clk.Now()
	if !force && now.Before(lot.CurrentCloseAt) {
		return nil, nil
	}

	already, err := tx.HasAuditEvent(ctx, lot.ID, models.EventLotClosed)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, nil
	}

	var winningBidID *uuid.UUID
	if lot.CurrentBidderID != nil {
		if winning, err := tx.GetWinningBid(ctx, lot.ID); err == nil {
			winningBidID = &winning.ID
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if lot.CurrentBidderID != nil && lot.MeetsReserve() {
		lot.Status = models.LotSold
	} else {
		lot.Status = models.LotUnsold
	}
	closedAt := now
	lot.ClosedAt = &closedAt

	if err := tx.CloseLotBids(ctx, lot.ID, winningBidID); err != nil {
		return nil, err
	}
	if err := tx.UpdateLot(ctx, lot); err != nil {
		return nil, err
	}

	snapshot, _ := json.Marshal(lot)
	ev := &models.AuditEvent{
		LotID: lot.ID, AuctionID: lot.AuctionID, Kind: models.EventLotClosed,
		NewAmount: &lot.CurrentBid, ResultCode: string(lot.Status), Snapshot: snapshot,
	}
	if err := tx.InsertAudit(ctx, ev); err != nil {
		return nil, err
	}

	return []notify.Event{{Kind: models.EventLotClosed, Lot: *lot}}, nil
}

// CloseAuction closes every due active lot of an auction, and — once no lot
// remains open — transitions the auction to closed and invokes the
// Invoicer. Admins calling this with lots still mid-bidding simply close
// whatever is currently due; it is meant to be re-run by a scheduler until
// every lot has passed its close time.
//
// If force is true this is the admin-forced close (§3 "closed (admin action
// or all lots closed)", §4.5 "or admin forces auction close"): every active
// lot is closed immediately regardless of its close time, and the auction
// transitions to closed regardless of whether any lot is still open —
// nothing left open after a forced close blocks the transition.
func (c *Closer) CloseAuction(ctx context.Context, auctionID uuid.UUID, force bool) error {
	lotIDs, err := c.auctions.ListActiveLotIDs(ctx, auctionID)
	if err != nil {
		return err
	}
	for _, lotID := range lotIDs {
		if err := c.CloseLot(ctx, lotID, force); err != nil {
			return err
		}
	}

	if !force {
		open, err := c.auctions.CountOpenLots(ctx, auctionID)
		if err != nil {
			return err
		}
		if open > 0 {
			return nil
		}
	}

	if err := c.auctions.UpdateAuctionStatus(ctx, auctionID, models.AuctionClosed); err != nil {
		return err
	}

	if c.invoicer == nil {
		return nil
	}
	if err := c.invoicer.GenerateInvoices(ctx, auctionID); err != nil {
		if errors.Is(err, invoicer.ErrAlreadyGenerated) {
			return nil
		}
		return err
	}
	return nil
}

// PublishAuction transitions a draft auction to published (§3: "draft ->
// published (requires >= 1 lot)"). Called on an auction that is already
// published, active or closed, it is a no-op — the same idempotent shape as
// CloseLot. Called on a draft auction with no lots yet, it returns ErrNoLots.
func (c *Closer) PublishAuction(ctx context.Context, auctionID uuid.UUID) error {
	auction, err := c.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction.Status != models.AuctionDraft {
		return nil
	}
	lots, err := c.auctions.CountLotsForAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if lots == 0 {
		return ErrNoLots
	}
	return c.auctions.UpdateAuctionStatus(ctx, auctionID, models.AuctionPublished)
}

// ActivateAuction transitions a published auction to active once its
// start_at has arrived (§3: "published -> active (when now >= start_at)"),
// flipping every pending lot to active in the same step (§3: "pending ->
// active"). Called on an auction that is not published, or whose start_at
// has not arrived yet, it is a no-op, the same idempotent shape as CloseLot
// — meant to be re-run by a scheduler the way CloseAuction is.
func (c *Closer) ActivateAuction(ctx context.Context, auctionID uuid.UUID) error {
	auction, err := c.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction.Status != models.AuctionPublished {
		return nil
	}
	now := c.clk.Now()
	if now.Before(auction.StartAt) {
		return nil
	}
	if err := c.auctions.PublishLots(ctx, auctionID, now); err != nil {
		return err
	}
	return c.auctions.UpdateAuctionStatus(ctx, auctionID, models.AuctionActive)
}

func (c *Closer) publish(lotID uuid.UUID, events []notify.Event) {
	for _, ev := range events {
		lotCopy := ev.Lot
		if c.hub != nil {
			c.hub.Publish(lotID, hub.Event{Kind: hub.EventLotClosed, Lot: &lotCopy, At: c.clk.Now().UnixMilli()})
		}
		c.notifier.Notify(context.Background(), ev)
	}
}
