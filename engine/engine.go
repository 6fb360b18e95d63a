// Package engine is the bidding engine (§4.3-§4.4): it validates and
// applies bids, runs the proxy auto-bidder, triggers soft close, and
// executes buy-now. Every mutating call runs inside one per-lot Store
// transaction (§4.2, §5) and publishes to the subscription hub only after
// that transaction commits (§4.8, §9).
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cloudforge/auctionhouse/clock"
	"github.com/cloudforge/auctionhouse/hub"
	"github.com/cloudforge/auctionhouse/models"
	"github.com/cloudforge/auctionhouse/notify"
	"github.com/cloudforge/auctionhouse/rules"
	"github.com/cloudforge/auctionhouse/store"
)

// retryBackoffs are the §5 retry delays for a lot transaction that aborts on
// a serialization conflict: 1ms, 5ms, 25ms, then give up.
var retryBackoffs = []time.Duration{time.Millisecond, 5 * time.Millisecond, 25 * time.Millisecond}

// Runner is the narrow store surface the engine needs: a single per-lot
// transaction. *store.Storage satisfies it; tests pass a fake.
type Runner interface {
	RunInLotTx(ctx context.Context, lotID uuid.UUID, fn func(ctx context.Context, tx store.LotTx, lot *models.Lot) error) error
}

// Engine ties the Store, Clock, subscription Hub and Notifier collaborators
// together. It holds no bidding state itself — every field is either
// stateless (Clock, Rules) or owns its own internal synchronization (Store,
// Hub).
type Engine struct {
	store    Runner
	clk      clock.Clock
	hub      *hub.Hub
	notifier notify.Notifier
}

// New constructs an Engine. hub and notifier may be nil, in which case
// publish/notify become no-ops (useful for tests that only care about
// persisted state).
func New(s Runner, clk clock.Clock, h *hub.Hub, n notify.Notifier) *Engine {
	if n == nil {
		n = notify.NoOp{}
	}
	return &Engine{store: s, clk: clk, hub: h, notifier: n}
}

// PlaceBidResult is the structured outcome of one PlaceBid call (§6).
type PlaceBidResult struct {
	Lot             models.Lot
	ProxyTriggered  bool
	OutbidOccurred  bool
	ResultCode      ResultCode
	Floor           *decimal.Decimal // set only on BID_TOO_LOW, per §4.3 step 4
}

// PlaceBid validates and applies one bid, resolving proxy auto-bidding and
// soft close as specified in §4.3. It retries the whole operation up to
// len(retryBackoffs) times on a store.ErrAborted serialization conflict
// (§5); after the final retry it returns CodeTransientConflict with no
// state change and no bid_placed audit.
func (e *Engine) PlaceBid(ctx context.Context, lotID, bidderID uuid.UUID, amount decimal.Decimal, maxBid *decimal.Decimal) (*PlaceBidResult, error) {
	var (
		result *PlaceBidResult
		events []notify.Event
	)

	run := func() error {
		return e.store.RunInLotTx(ctx, lotID, func(ctx context.Context, tx store.LotTx, lot *models.Lot) error {
			res, evs, err := e.placeBidTx(ctx, tx, lot, bidderID, amount, maxBid)
			if err != nil {
				return err
			}
			result, events = res, evs
			return nil
		})
	}

	if err := e.retryOnAbort(run); err != nil {
		if errors.Is(err, store.ErrAborted) {
			return &PlaceBidResult{ResultCode: CodeTransientConflict}, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return &PlaceBidResult{ResultCode: CodeLotNotActive}, nil
		}
		return nil, err
	}

	e.publishAndNotify(lotID, events)
	return result, nil
}

// retryOnAbort runs fn, retrying on store.ErrAborted per the §5 backoff
// schedule. Any other error, or exhausting the schedule, is returned as-is.
func (e *Engine) retryOnAbort(fn func() error) error {
	var err error
	for i := 0; ; i++ {
		err = fn()
		if err == nil || !errors.Is(err, store.ErrAborted) {
			return err
		}
		if i >= len(retryBackoffs) {
			return err
		}
		time.Sleep(retryBackoffs[i])
	}
}

// placeBidTx implements §4.3 steps 1-5 plus cases A-D and the soft-close
// check, entirely inside the caller's lot transaction. A non-nil error here
// means an infrastructure failure — the transaction rolls back and no audit
// is written. A policy rejection (BID_TOO_LOW, SELF_OUTBID, ...) still
// returns (result, events, nil) so the bid_rejected audit it wrote commits.
func (e *Engine) placeBidTx(ctx context.Context, tx store.LotTx, lot *models.Lot, bidderID uuid.UUID, amount decimal.Decimal, maxBid *decimal.Decimal) (*PlaceBidResult, []notify.Event, error) {
	now := e.clk.Now()

	reject := func(code ResultCode, floor *decimal.Decimal) (*PlaceBidResult, []notify.Event, error) {
		ev := &models.AuditEvent{
			LotID:         lot.ID,
			AuctionID:     lot.AuctionID,
			BidderID:      &bidderID,
			Kind:          models.EventBidRejected,
			ResultCode:    string(code),
			ResultMessage: string(code),
		}
		if err := tx.InsertAudit(ctx, ev); err != nil {
			return nil, nil, err
		}
		return &PlaceBidResult{Lot: *lot, ResultCode: code, Floor: floor}, nil, nil
	}

	// 1. amount/max_bid shape.
	if amount.Sign() <= 0 {
		return reject(CodeInvalidAmount, nil)
	}
	if maxBid != nil && maxBid.LessThan(amount) {
		return reject(CodeInvalidMaxBid, nil)
	}

	// 2. lot must be active.
	if lot.Status != models.LotActive {
		return reject(CodeLotNotActive, nil)
	}

	// 3. auction clock check (§I-L7).
	if !now.Before(lot.CurrentCloseAt) {
		return reject(CodeAuctionClosed, nil)
	}

	auction, err := tx.GetAuction(ctx, lot.AuctionID)
	if err != nil {
		return nil, nil, err
	}
	tiers := lot.EffectiveIncrementRules(auction)

	// 4. increment floor.
	floor := rules.MinNextBid(lot.CurrentBid, lot.StartingBid, tiers)
	if amount.LessThan(floor) {
		return reject(CodeBidTooLow, &floor)
	}

	// 5. can't outbid yourself.
	if lot.CurrentBidderID != nil && *lot.CurrentBidderID == bidderID {
		return reject(CodeSelfOutbid, nil)
	}

	step := rules.Increment(lot.CurrentBid, tiers)
	prevAmount := lot.CurrentBid
	prevBidderID := lot.CurrentBidderID

	var hMax *models.Bid
	if lot.CurrentBidderID != nil {
		hMax, err = tx.GetHighBidderMax(ctx, lot.ID, *lot.CurrentBidderID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, nil, err
		}
		if errors.Is(err, store.ErrNotFound) {
			hMax = nil
		}
	}

	var (
		proxyTriggered bool
		outbidOccurred bool
		resultCode     ResultCode
		events         []notify.Event
	)

	switch {
	case hMax == nil:
		// Case A: no defender. Accept the bid outright.
		if lot.CurrentBidderID != nil {
			outbidOccurred = true
			if prevWinning, err := tx.GetWinningBid(ctx, lot.ID); err == nil {
				if err := tx.SetBidWinning(ctx, prevWinning.ID, false, &now); err != nil {
					return nil, nil, err
				}
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, nil, err
			}
		}
		newBid := &models.Bid{
			LotID: lot.ID, BidderID: bidderID, Amount: amount, Type: models.BidManual,
			MaxBid: maxBid, MaxBidActive: maxBid != nil, IsWinning: true, Status: models.BidOpen,
			PreviousAmount: prevAmount, PreviousBidderID: prevBidderID,
		}
		if err := tx.InsertBid(ctx, newBid); err != nil {
			return nil, nil, err
		}
		lot.CurrentBid = amount
		lot.CurrentBidderID = &bidderID
		lot.BidCount++
		resultCode = CodeAccepted
		events = append(events, notify.Event{Kind: models.EventBidPlaced, Lot: *lot, BidderID: bidderID})

	case maxBid != nil && maxBid.GreaterThan(*hMax.MaxBid):
		// Case B: new bidder's cap beats the defender's; defender exhausted.
		proxyTriggered = true
		outbidOccurred = true
		newCurrent := decimal.Min(*maxBid, hMax.MaxBid.Add(step))

		proxyBid := &models.Bid{
			LotID: lot.ID, BidderID: hMax.BidderID, Amount: *hMax.MaxBid, Type: models.BidProxy,
			MaxBid: hMax.MaxBid, MaxBidActive: false, IsWinning: false, Status: models.BidOpen,
			PreviousAmount: prevAmount, PreviousBidderID: prevBidderID,
		}
		if err := tx.InsertBid(ctx, proxyBid); err != nil {
			return nil, nil, err
		}
		if prevWinning, err := tx.GetWinningBid(ctx, lot.ID); err == nil {
			if err := tx.SetBidWinning(ctx, prevWinning.ID, false, &now); err != nil {
				return nil, nil, err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, nil, err
		}
		if err := tx.SetBidMaxActive(ctx, hMax.ID, false); err != nil {
			return nil, nil, err
		}

		newBid := &models.Bid{
			LotID: lot.ID, BidderID: bidderID, Amount: newCurrent, Type: models.BidManual,
			MaxBid: maxBid, MaxBidActive: true, IsWinning: true, Status: models.BidOpen,
			PreviousAmount: prevAmount, PreviousBidderID: prevBidderID,
		}
		if err := tx.InsertBid(ctx, newBid); err != nil {
			return nil, nil, err
		}

		lot.CurrentBid = newCurrent
		lot.CurrentBidderID = &bidderID
		lot.BidCount += 2
		resultCode = CodeAccepted
		events = append(events,
			notify.Event{Kind: models.EventProxyTriggered, Lot: *lot, BidderID: hMax.BidderID},
			notify.Event{Kind: models.EventBidPlaced, Lot: *lot, BidderID: bidderID},
		)

	case maxBid != nil && maxBid.Equal(*hMax.MaxBid):
		// Case D: exact tie, first-in wins. Reject, no state change.
		return reject(CodeMaxBidTied, nil)

	default:
		// Case C: defender's cap still wins. New bidder loses to proxy.
		proxyTriggered = true
		outbidOccurred = true
		newBidAmount := amount
		if maxBid != nil {
			newBidAmount = *maxBid
		}
		proxyCap := newBidAmount.Add(step)
		defended := decimal.Min(*hMax.MaxBid, proxyCap)

		losingBid := &models.Bid{
			LotID: lot.ID, BidderID: bidderID, Amount: newBidAmount, Type: models.BidManual,
			MaxBid: maxBid, MaxBidActive: maxBid != nil, IsWinning: false, Status: models.BidOpen,
			PreviousAmount: prevAmount, PreviousBidderID: prevBidderID,
		}
		if err := tx.InsertBid(ctx, losingBid); err != nil {
			return nil, nil, err
		}

		if prevWinning, err := tx.GetWinningBid(ctx, lot.ID); err == nil {
			if err := tx.SetBidWinning(ctx, prevWinning.ID, false, nil); err != nil {
				return nil, nil, err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, nil, err
		}
		proxyBid := &models.Bid{
			LotID: lot.ID, BidderID: hMax.BidderID, Amount: defended, Type: models.BidProxy,
			MaxBid: hMax.MaxBid, MaxBidActive: true, IsWinning: true, Status: models.BidOpen,
			PreviousAmount: prevAmount, PreviousBidderID: prevBidderID,
		}
		if err := tx.InsertBid(ctx, proxyBid); err != nil {
			return nil, nil, err
		}

		lot.CurrentBid = defended
		// current_bidder_id unchanged — the defender keeps winning.
		lot.BidCount += 2
		resultCode = CodeOutbidByProxy
		events = append(events,
			notify.Event{Kind: models.EventProxyTriggered, Lot: *lot, BidderID: hMax.BidderID},
			notify.Event{Kind: models.EventBidPlaced, Lot: *lot, BidderID: bidderID},
		)
	}

	reserveJustMet := false
	if lot.ReservePrice != nil && !lot.ReserveMet && lot.MeetsReserve() {
		lot.ReserveMet = true
		reserveJustMet = true
		events = append(events, notify.Event{Kind: models.EventReserveMet, Lot: *lot, BidderID: bidderID})
	}

	// Soft close check, applied after any accepted state change (§4.3).
	softClosed := false
	if auction.SoftCloseEnabled {
		remaining := lot.CurrentCloseAt.Sub(now)
		if remaining <= auction.TriggerWindow {
			lot.CurrentCloseAt = now.Add(auction.Extension)
			lot.ExtensionCount++
			softClosed = true
		}
	}

	if err := tx.UpdateLot(ctx, lot); err != nil {
		return nil, nil, err
	}

	snapshot, _ := json.Marshal(lot)
	newAmount := lot.CurrentBid
	mainAudit := &models.AuditEvent{
		LotID: lot.ID, AuctionID: lot.AuctionID, BidderID: &bidderID, Kind: models.EventBidPlaced,
		PreviousAmount: &prevAmount, NewAmount: &newAmount,
		ResultCode: string(resultCode), ResultMessage: string(resultCode), Snapshot: snapshot,
	}
	if err := tx.InsertAudit(ctx, mainAudit); err != nil {
		return nil, nil, err
	}
	if proxyTriggered {
		proxyAudit := &models.AuditEvent{
			LotID: lot.ID, AuctionID: lot.AuctionID, Kind: models.EventProxyTriggered,
			PreviousAmount: &prevAmount, NewAmount: &newAmount,
			ResultCode: string(resultCode), ResultMessage: "proxy defended or advanced", Snapshot: snapshot,
		}
		if err := tx.InsertAudit(ctx, proxyAudit); err != nil {
			return nil, nil, err
		}
	}
	if outbidOccurred && resultCode != CodeOutbidByProxy {
		outbidAudit := &models.AuditEvent{
			LotID: lot.ID, AuctionID: lot.AuctionID, BidderID: prevBidderID, Kind: models.EventOutbidOccurred,
			PreviousAmount: &prevAmount, NewAmount: &newAmount, ResultCode: string(resultCode),
		}
		if err := tx.InsertAudit(ctx, outbidAudit); err != nil {
			return nil, nil, err
		}
	}
	if reserveJustMet {
		reserveAudit := &models.AuditEvent{
			LotID: lot.ID, AuctionID: lot.AuctionID, Kind: models.EventReserveMet,
			PreviousAmount: &prevAmount, NewAmount: &newAmount,
			ResultCode: string(resultCode), ResultMessage: "reserve price met", Snapshot: snapshot,
		}
		if err := tx.InsertAudit(ctx, reserveAudit); err != nil {
			return nil, nil, err
		}
	}
	if softClosed {
		softAudit := &models.AuditEvent{
			LotID: lot.ID, AuctionID: lot.AuctionID, Kind: models.EventSoftCloseTriggered,
			ResultCode: string(resultCode), ResultMessage: "extended on qualifying bid near close",
		}
		if err := tx.InsertAudit(ctx, softAudit); err != nil {
			return nil, nil, err
		}
		events = append(events, notify.Event{Kind: models.EventSoftCloseTriggered, Lot: *lot})
	}

	return &PlaceBidResult{
		Lot: *lot, ProxyTriggered: proxyTriggered, OutbidOccurred: outbidOccurred, ResultCode: resultCode,
	}, events, nil
}

// publishAndNotify fans a committed transaction's events out to the
// subscription hub and the notifier, strictly after commit (§4.8, §9).
func (e *Engine) publishAndNotify(lotID uuid.UUID, events []notify.Event) {
	for _, ev := range events {
		lotCopy := ev.Lot
		if e.hub != nil {
			kind := hub.EventBid
			if ev.Kind == models.EventSoftCloseTriggered {
				kind = hub.EventSoftClose
			} else if ev.Kind == models.EventLotClosed {
				kind = hub.EventLotClosed
			}
			e.hub.Publish(lotID, hub.Event{Kind: kind, Lot: &lotCopy, At: e.clk.Now().UnixMilli()})
		}
		e.notifier.Notify(context.Background(), ev)
	}
}
