package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
)

// InsertBid appends one immutable Bid row (§I-B1) inside the lot transaction.
func (tx *Tx) InsertBid(ctx context.Context, b *models.Bid) error {
	query := `
		INSERT INTO bid
			(lot_id, bidder_id, amount, type, max_bid, max_bid_active, is_winning,
			 status, previous_amount, previous_bidder_id, buy_now)
		VALUES
			($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at`
	return translate(tx.tx.QueryRowContext(ctx, query,
		b.LotID, b.BidderID, b.Amount, b.Type, b.MaxBid, b.MaxBidActive, b.IsWinning,
		b.Status, b.PreviousAmount, b.PreviousBidderID, b.BuyNow,
	).Scan(&b.ID, &b.CreatedAt))
}

// SetBidWinning flips a bid's is_winning flag, stamping outbid_at when it is
// being demoted. It never touches amount, bidder or created_at (§I-B1).
func (tx *Tx) SetBidWinning(ctx context.Context, bidID uuid.UUID, winning bool, outbidAt *time.Time) error {
	_, err := tx.tx.ExecContext(ctx, `
		UPDATE bid SET is_winning = $1, outbid_at = $2 WHERE id = $3`, winning, outbidAt, bidID)
	return translate(err)
}

// SetBidMaxActive flips whether a bidder's proxy cap is still in effect.
func (tx *Tx) SetBidMaxActive(ctx context.Context, bidID uuid.UUID, active bool) error {
	_, err := tx.tx.ExecContext(ctx, `UPDATE bid SET max_bid_active = $1 WHERE id = $2`, active, bidID)
	return translate(err)
}

// GetWinningBid returns the lot's current winning bid, or ErrNotFound if the
// lot has no bids yet (§I-L5, via the (lot_id, is_winning=true) index).
func (tx *Tx) GetWinningBid(ctx context.Context, lotID uuid.UUID) (*models.Bid, error) {
	var b models.Bid
	err := tx.tx.GetContext(ctx, &b, `SELECT * FROM bid WHERE lot_id = $1 AND is_winning = true`, lotID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &b, translate(err)
}

// GetHighBidderMax returns the current high bidder's active max-bid row
// (H_max in §4.3), or ErrNotFound if the high bidder left no active max
// (they bid manually with no cap).
func (tx *Tx) GetHighBidderMax(ctx context.Context, lotID uuid.UUID, highBidderID uuid.UUID) (*models.Bid, error) {
	var b models.Bid
	err := tx.tx.GetContext(ctx, &b, `
		SELECT * FROM bid
		WHERE lot_id = $1 AND bidder_id = $2 AND max_bid_active = true AND max_bid IS NOT NULL
		ORDER BY created_at DESC LIMIT 1`, lotID, highBidderID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &b, translate(err)
}

// CloseLotBids marks the winning bid won and every other bid of the lot
// lost, inside the close transaction (§4.5 step 3).
func (tx *Tx) CloseLotBids(ctx context.Context, lotID uuid.UUID, winningBidID *uuid.UUID) error {
	if winningBidID != nil {
		if _, err := tx.tx.ExecContext(ctx, `UPDATE bid SET status = $1 WHERE id = $2`, models.BidWon, *winningBidID); err != nil {
			return translate(err)
		}
	}
	query := `UPDATE bid SET status = $1 WHERE lot_id = $2 AND status = $3`
	args := []interface{}{models.BidLost, lotID, models.BidOpen}
	if winningBidID != nil {
		query += ` AND id != $4`
		args = append(args, *winningBidID)
	}
	_, err := tx.tx.ExecContext(ctx, query, args...)
	return translate(err)
}

// ListBidsForLot returns every bid of a lot in placement order. Bidder
// identity redaction (§6 bid_history) is the API layer's job, not the
// store's.
func (s *Storage) ListBidsForLot(ctx context.Context, lotID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := s.db.SelectContext(ctx, &bids, `SELECT * FROM bid WHERE lot_id = $1 ORDER BY created_at ASC`, lotID)
	return bids, translate(err)
}
