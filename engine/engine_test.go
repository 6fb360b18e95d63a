package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cloudforge/auctionhouse/clock"
	"github.com/cloudforge/auctionhouse/engine"
	"github.com/cloudforge/auctionhouse/models"
	"github.com/cloudforge/auctionhouse/notify"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newTestLot seeds a fakeStore with one active lot on one open auction,
// closing closeIn from the clock's current instant.
func newTestLot(fs *fakeStore, clk *clock.Frozen, closeIn time.Duration) (*models.Auction, *models.Lot) {
	auction := &models.Auction{
		ID: uuid.New(), Status: models.AuctionActive,
		SoftCloseEnabled: true, TriggerWindow: 2 * time.Minute, Extension: 5 * time.Minute,
	}
	lot := &models.Lot{
		ID: uuid.New(), AuctionID: auction.ID, StartingBid: amt("10"),
		CurrentBid: decimal.Zero, Status: models.LotActive,
		CurrentCloseAt: clk.Now().Add(closeIn),
	}
	fs.putAuction(auction)
	fs.putLot(lot)
	return auction, lot
}

func newEngine(fs *fakeStore, clk clock.Clock) (*engine.Engine, *notify.Recorder) {
	rec := notify.NewRecorder()
	return engine.New(fs, clk, nil, rec), rec
}

func TestPlaceBid_FirstBidAtStartingPriceAccepted(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	e, _ := newEngine(fs, clk)
	bidder := uuid.New()

	res, err := e.PlaceBid(context.Background(), lot.ID, bidder, amt("10"), nil)
	require.NoError(t, err)
	require.Equal(t, engine.CodeAccepted, res.ResultCode)
	require.True(t, fs.lots[lot.ID].CurrentBid.Equal(amt("10")))
	require.Equal(t, bidder, *fs.lots[lot.ID].CurrentBidderID)
}

func TestPlaceBid_BelowStartingPriceRejected(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	e, _ := newEngine(fs, clk)
	bidder := uuid.New()

	res, err := e.PlaceBid(context.Background(), lot.ID, bidder, amt("9.99"), nil)
	require.NoError(t, err)
	require.Equal(t, engine.CodeBidTooLow, res.ResultCode)
	require.NotNil(t, res.Floor)
	require.True(t, res.Floor.Equal(amt("10")))
	require.True(t, fs.lots[lot.ID].CurrentBid.IsZero(), "lot state must be unchanged on rejection")
}

func TestPlaceBid_OneCentBelowIncrementFloorRejected(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	e, _ := newEngine(fs, clk)
	first, second := uuid.New(), uuid.New()

	_, err := e.PlaceBid(context.Background(), lot.ID, first, amt("15"), nil)
	require.NoError(t, err)

	res, err := e.PlaceBid(context.Background(), lot.ID, second, amt("19.99"), nil)
	require.NoError(t, err)
	require.Equal(t, engine.CodeBidTooLow, res.ResultCode)
	require.NotNil(t, res.Floor)
	require.True(t, res.Floor.Equal(amt("20")))
	require.True(t, fs.lots[lot.ID].CurrentBid.Equal(amt("15")), "lot state must be unchanged on rejection")
}

func TestPlaceBid_CaseA_NoDefenderAccepted(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	e, _ := newEngine(fs, clk)
	first, second := uuid.New(), uuid.New()

	_, err := e.PlaceBid(context.Background(), lot.ID, first, amt("15"), nil)
	require.NoError(t, err)

	res, err := e.PlaceBid(context.Background(), lot.ID, second, amt("20"), nil)
	require.NoError(t, err)
	require.Equal(t, engine.CodeAccepted, res.ResultCode)
	require.False(t, res.ProxyTriggered)
	require.True(t, res.OutbidOccurred)
	require.Equal(t, second, *fs.lots[lot.ID].CurrentBidderID)
}

func TestPlaceBid_CaseB_NewMaxBeatsDefender(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	e, _ := newEngine(fs, clk)
	defender, challenger := uuid.New(), uuid.New()

	_, err := e.PlaceBid(context.Background(), lot.ID, defender, amt("15"), ptr(amt("50")))
	require.NoError(t, err)

	res, err := e.PlaceBid(context.Background(), lot.ID, challenger, amt("20"), ptr(amt("100")))
	require.NoError(t, err)
	require.Equal(t, engine.CodeAccepted, res.ResultCode)
	require.True(t, res.ProxyTriggered)
	require.True(t, res.OutbidOccurred)
	require.Equal(t, challenger, *fs.lots[lot.ID].CurrentBidderID)
	// Defender's cap (50) plus the increment (5 at this tier) is the new
	// current bid, since the challenger's cap (100) comfortably exceeds it.
	require.True(t, fs.lots[lot.ID].CurrentBid.Equal(amt("55")), fs.lots[lot.ID].CurrentBid.String())
}

func TestPlaceBid_CaseC_DefenderStillWins(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	e, _ := newEngine(fs, clk)
	defender, challenger := uuid.New(), uuid.New()

	_, err := e.PlaceBid(context.Background(), lot.ID, defender, amt("15"), ptr(amt("100")))
	require.NoError(t, err)

	res, err := e.PlaceBid(context.Background(), lot.ID, challenger, amt("20"), ptr(amt("50")))
	require.NoError(t, err)
	require.Equal(t, engine.CodeOutbidByProxy, res.ResultCode)
	require.True(t, res.ProxyTriggered)
	// defender keeps winning
	require.Equal(t, defender, *fs.lots[lot.ID].CurrentBidderID)
	// current bid rises to challenger's cap + one increment, capped by defender's max.
	require.True(t, fs.lots[lot.ID].CurrentBid.Equal(amt("55")), fs.lots[lot.ID].CurrentBid.String())
}

func TestPlaceBid_CaseD_ExactTieRejected(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	e, _ := newEngine(fs, clk)
	defender, challenger := uuid.New(), uuid.New()

	_, err := e.PlaceBid(context.Background(), lot.ID, defender, amt("15"), ptr(amt("100")))
	require.NoError(t, err)
	before := fs.lots[lot.ID].CurrentBid

	res, err := e.PlaceBid(context.Background(), lot.ID, challenger, amt("20"), ptr(amt("100")))
	require.NoError(t, err)
	require.Equal(t, engine.CodeMaxBidTied, res.ResultCode)
	require.Equal(t, defender, *fs.lots[lot.ID].CurrentBidderID)
	require.True(t, fs.lots[lot.ID].CurrentBid.Equal(before), "tie must leave lot state untouched")
}

func TestPlaceBid_SelfOutbidRejected(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	e, _ := newEngine(fs, clk)
	bidder := uuid.New()

	_, err := e.PlaceBid(context.Background(), lot.ID, bidder, amt("15"), nil)
	require.NoError(t, err)

	res, err := e.PlaceBid(context.Background(), lot.ID, bidder, amt("20"), nil)
	require.NoError(t, err)
	require.Equal(t, engine.CodeSelfOutbid, res.ResultCode)
}

func TestPlaceBid_AfterCloseRejected(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Second)
	e, _ := newEngine(fs, clk)
	clk.Advance(2 * time.Second)

	res, err := e.PlaceBid(context.Background(), lot.ID, uuid.New(), amt("15"), nil)
	require.NoError(t, err)
	require.Equal(t, engine.CodeAuctionClosed, res.ResultCode)
}

func TestPlaceBid_SoftCloseExtendsWindow(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, 90*time.Second) // inside the 2-minute trigger window
	e, rec := newEngine(fs, clk)

	_, err := e.PlaceBid(context.Background(), lot.ID, uuid.New(), amt("15"), nil)
	require.NoError(t, err)

	got := fs.lots[lot.ID]
	require.Equal(t, 1, got.ExtensionCount)
	require.True(t, got.CurrentCloseAt.Equal(clk.Now().Add(5*time.Minute)))

	found := false
	for _, ev := range rec.All() {
		if ev.Kind == models.EventSoftCloseTriggered {
			found = true
		}
	}
	require.True(t, found, "expected a soft_close_triggered notification")
}

func TestPlaceBid_ReserveMetEmittedOnce(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	auction, lot := newTestLot(fs, clk, time.Hour)
	reserve := amt("50")
	lot.ReservePrice = &reserve
	fs.putLot(lot)
	_ = auction
	e, _ := newEngine(fs, clk)

	_, err := e.PlaceBid(context.Background(), lot.ID, uuid.New(), amt("15"), nil)
	require.NoError(t, err)
	require.False(t, fs.lots[lot.ID].ReserveMet)

	_, err = e.PlaceBid(context.Background(), lot.ID, uuid.New(), amt("55"), nil)
	require.NoError(t, err)
	require.True(t, fs.lots[lot.ID].ReserveMet)

	n := 0
	for _, ev := range fs.audits {
		if ev.Kind == models.EventReserveMet {
			n++
		}
	}
	require.Equal(t, 1, n)
}

func TestPlaceBid_RetriesOnAbortedThenSucceeds(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	fs.abortLeft = 2
	e, _ := newEngine(fs, clk)

	res, err := e.PlaceBid(context.Background(), lot.ID, uuid.New(), amt("15"), nil)
	require.NoError(t, err)
	require.Equal(t, engine.CodeAccepted, res.ResultCode)
}

func TestPlaceBid_ExhaustsRetriesReturnsTransientConflict(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	fs.abortLeft = 10
	e, _ := newEngine(fs, clk)

	res, err := e.PlaceBid(context.Background(), lot.ID, uuid.New(), amt("15"), nil)
	require.NoError(t, err)
	require.Equal(t, engine.CodeTransientConflict, res.ResultCode)
}

func TestBuyNow_ExecutesAndClosesLot(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	buyNow := amt("200")
	lot.BuyNowPrice = &buyNow
	fs.putLot(lot)
	e, rec := newEngine(fs, clk)
	bidder := uuid.New()

	res, err := e.BuyNow(context.Background(), lot.ID, bidder)
	require.NoError(t, err)
	require.Equal(t, engine.CodeAccepted, res.ResultCode)

	got := fs.lots[lot.ID]
	require.Equal(t, models.LotSold, got.Status)
	require.True(t, got.CurrentBid.Equal(buyNow))
	require.NotNil(t, got.ClosedAt)

	var sawExecuted, sawClosed bool
	for _, ev := range rec.All() {
		switch ev.Kind {
		case models.EventBuyNowExecuted:
			sawExecuted = true
		case models.EventLotClosed:
			sawClosed = true
		}
	}
	require.True(t, sawExecuted)
	require.True(t, sawClosed)
}

func TestBuyNow_NoBuyNowPriceRejected(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	e, _ := newEngine(fs, clk)

	res, err := e.BuyNow(context.Background(), lot.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, engine.CodeNoBuyNow, res.ResultCode)
}

func TestBuyNow_CurrentWinnerCannotBuyNowThemselves(t *testing.T) {
	fs := newFakeStore()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	_, lot := newTestLot(fs, clk, time.Hour)
	buyNow := amt("200")
	lot.BuyNowPrice = &buyNow
	fs.putLot(lot)
	e, _ := newEngine(fs, clk)
	bidder := uuid.New()

	_, err := e.PlaceBid(context.Background(), lot.ID, bidder, amt("15"), nil)
	require.NoError(t, err)

	res, err := e.BuyNow(context.Background(), lot.ID, bidder)
	require.NoError(t, err)
	require.Equal(t, engine.CodeSelfOutbid, res.ResultCode)
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }
