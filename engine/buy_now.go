package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
	"github.com/cloudforge/auctionhouse/notify"
	"github.com/cloudforge/auctionhouse/store"
)

// BuyNowResult is the structured outcome of one BuyNow call (§6).
type BuyNowResult struct {
	Lot        models.Lot
	ResultCode ResultCode
}

// BuyNow executes an immediate sale at the lot's buy_now_price (§4.4). It
// runs inside the same per-lot transaction and retry machinery as PlaceBid.
func (e *Engine) BuyNow(ctx context.Context, lotID, bidderID uuid.UUID) (*BuyNowResult, error) {
	var (
		result *BuyNowResult
		events []notify.Event
	)

	run := func() error {
		return e.store.RunInLotTx(ctx, lotID, func(ctx context.Context, tx store.LotTx, lot *models.Lot) error {
			res, evs, err := e.buyNowTx(ctx, tx, lot, bidderID)
			if err != nil {
				return err
			}
			result, events = res, evs
			return nil
		})
	}

	if err := e.retryOnAbort(run); err != nil {
		if errors.Is(err, store.ErrAborted) {
			return &BuyNowResult{ResultCode: CodeTransientConflict}, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return &BuyNowResult{ResultCode: CodeLotNotActive}, nil
		}
		return nil, err
	}

	e.publishAndNotify(lotID, events)
	return result, nil
}

func (e *Engine) buyNowTx(ctx context.Context, tx store.LotTx, lot *models.Lot, bidderID uuid.UUID) (*BuyNowResult, []notify.Event, error) {
	now := e.clk.Now()

	reject := func(code ResultCode) (*BuyNowResult, []notify.Event, error) {
		ev := &models.AuditEvent{
			LotID: lot.ID, AuctionID: lot.AuctionID, BidderID: &bidderID, Kind: models.EventBidRejected,
			ResultCode: string(code), ResultMessage: string(code),
		}
		if err := tx.InsertAudit(ctx, ev); err != nil {
			return nil, nil, err
		}
		return &BuyNowResult{Lot: *lot, ResultCode: code}, nil, nil
	}

	if lot.Status != models.LotActive {
		return reject(CodeLotNotActive)
	}
	if !now.Before(lot.CurrentCloseAt) {
		return reject(CodeAuctionClosed)
	}
	if lot.BuyNowPrice == nil {
		return reject(CodeNoBuyNow)
	}
	if lot.CurrentBidderID != nil && *lot.CurrentBidderID == bidderID {
		return reject(CodeSelfOutbid)
	}

	prevAmount := lot.CurrentBid
	prevBidderID := lot.CurrentBidderID

	if lot.CurrentBidderID != nil {
		if prevWinning, err := tx.GetWinningBid(ctx, lot.ID); err == nil {
			if err := tx.SetBidWinning(ctx, prevWinning.ID, false, &now); err != nil {
				return nil, nil, err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, nil, err
		}
	}

	winningBid := &models.Bid{
		LotID: lot.ID, BidderID: bidderID, Amount: *lot.BuyNowPrice, Type: models.BidManual,
		IsWinning: true, Status: models.BidWon, BuyNow: true,
		PreviousAmount: prevAmount, PreviousBidderID: prevBidderID,
	}
	if err := tx.InsertBid(ctx, winningBid); err != nil {
		return nil, nil, err
	}

	lot.CurrentBid = *lot.BuyNowPrice
	lot.CurrentBidderID = &bidderID
	lot.BidCount++
	lot.ReserveMet = true
	lot.Status = models.LotSold
	closedAt := now
	lot.ClosedAt = &closedAt

	if err := tx.UpdateLot(ctx, lot); err != nil {
		return nil, nil, err
	}
	// The winning bid is written already marked won; any
	// earlier bids on the lot are marked lost the same way the closer does
	// for a normal close, since buy-now closes the lot immediately (§4.4).
	if err := tx.CloseLotBids(ctx, lot.ID, &winningBid.ID); err != nil {
		return nil, nil, err
	}

	snapshot, _ := json.Marshal(lot)
	newAmount := lot.CurrentBid
	buyNowAudit := &models.AuditEvent{
		LotID: lot.ID, AuctionID: lot.AuctionID, BidderID: &bidderID, Kind: models.EventBuyNowExecuted,
		PreviousAmount: &prevAmount, NewAmount: &newAmount, ResultCode: string(CodeAccepted),
		ResultMessage: "buy now executed", Snapshot: snapshot,
	}
	if err := tx.InsertAudit(ctx, buyNowAudit); err != nil {
		return nil, nil, err
	}
	closedAudit := &models.AuditEvent{
		LotID: lot.ID, AuctionID: lot.AuctionID, Kind: models.EventLotClosed,
		NewAmount: &newAmount, ResultCode: string(CodeAccepted), Snapshot: snapshot,
	}
	if err := tx.InsertAudit(ctx, closedAudit); err != nil {
		return nil, nil, err
	}

	events := []notify.Event{
		{Kind: models.EventBuyNowExecuted, Lot: *lot, BidderID: bidderID},
		{Kind: models.EventLotClosed, Lot: *lot, BidderID: bidderID},
	}
	return &BuyNowResult{Lot: *lot, ResultCode: CodeAccepted}, events, nil
}
