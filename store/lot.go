package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
)

// CreateAuction inserts a new Auction in status draft.
func (s *Storage) CreateAuction(ctx context.Context, a *models.Auction) error {
	a.Status = models.AuctionDraft
	query := `
		INSERT INTO auction
			(name, start_at, end_at, soft_close_enabled, trigger_window, extension,
			 increment_rules, premium_rules, tax_enabled, tax_rate, status)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	return translate(s.db.QueryRowContext(ctx, query,
		a.Name, a.StartAt, a.EndAt, a.SoftCloseEnabled, a.TriggerWindow, a.Extension,
		a.IncrementRules, a.PremiumRules, a.TaxEnabled, a.TaxRate, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt))
}

// GetAuction fetches one auction by id.
func (s *Storage) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	var a models.Auction
	err := s.db.GetContext(ctx, &a, `SELECT * FROM auction WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// UpdateAuctionStatus transitions an auction's status field only.
func (s *Storage) UpdateAuctionStatus(ctx context.Context, id uuid.UUID, status models.AuctionStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE auction SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return translate(err)
}

// CountOpenLots returns how many lots of an auction are not yet in a
// terminal status (sold/unsold/withdrawn) — used to decide whether an
// auction can be auto-transitioned to closed.
func (s *Storage) CountOpenLots(ctx context.Context, auctionID uuid.UUID) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(1) FROM lot
		WHERE auction_id = $1 AND status NOT IN ('sold','unsold','withdrawn')`, auctionID)
	return n, translate(err)
}

// CountLotsForAuction returns how many lots an auction has, regardless of
// status — used by PublishAuction to enforce "published requires >= 1 lot".
func (s *Storage) CountLotsForAuction(ctx context.Context, auctionID uuid.UUID) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM lot WHERE auction_id = $1`, auctionID)
	return n, translate(err)
}

// CreateLot inserts a lot in status pending. Fails with ErrConflict if
// (auction_id, lot_number) already exists.
func (s *Storage) CreateLot(ctx context.Context, l *models.Lot) error {
	l.Status = models.LotPending
	l.CurrentCloseAt = l.OriginalCloseAt
	query := `
		INSERT INTO lot
			(auction_id, lot_number, title, description, category, condition,
			 starting_bid, reserve_price, buy_now_price, quantity, location,
			 shipping_available, shipping_amount, increment_rules_override,
			 original_close_at, current_close_at, status, current_bid, bid_count, reserve_met)
		VALUES
			($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,0,0,false)
		RETURNING id, created_at, updated_at`
	return translate(s.db.QueryRowContext(ctx, query,
		l.AuctionID, l.LotNumber, l.Title, l.Description, l.Category, l.Condition,
		l.StartingBid, l.ReservePrice, l.BuyNowPrice, l.Quantity, l.Location,
		l.ShippingAvailable, l.ShippingAmount, l.IncrementRulesOverride,
		l.OriginalCloseAt, l.CurrentCloseAt, l.Status,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt))
}

// LotNumberExists reports whether lotNumber is already used within auctionID.
func (s *Storage) LotNumberExists(ctx context.Context, auctionID uuid.UUID, lotNumber int) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM lot WHERE auction_id = $1 AND lot_number = $2`, auctionID, lotNumber)
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

// GetLotByNumber fetches a lot by its (auction_id, lot_number) pair, used by
// image matching to resolve a parsed lot_number to a lot id.
func (s *Storage) GetLotByNumber(ctx context.Context, auctionID uuid.UUID, lotNumber int) (*models.Lot, error) {
	var l models.Lot
	err := s.db.GetContext(ctx, &l, `SELECT * FROM lot WHERE auction_id = $1 AND lot_number = $2`, auctionID, lotNumber)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

// GetLot fetches one lot by id, unlocked.
func (s *Storage) GetLot(ctx context.Context, id uuid.UUID) (*models.Lot, error) {
	var l models.Lot
	err := s.db.GetContext(ctx, &l, `SELECT * FROM lot WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

// ListActiveLotIDs returns ids of every lot in an auction whose status is
// active — used by the scheduled closer sweep.
func (s *Storage) ListActiveLotIDs(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM lot WHERE auction_id = $1 AND status = 'active'`, auctionID)
	return ids, translate(err)
}

// ListSoldLots returns every sold lot of an auction, used by the invoicer.
func (s *Storage) ListSoldLots(ctx context.Context, auctionID uuid.UUID) ([]models.Lot, error) {
	var lots []models.Lot
	err := s.db.SelectContext(ctx, &lots, `SELECT * FROM lot WHERE auction_id = $1 AND status = 'sold' ORDER BY lot_number`, auctionID)
	return lots, translate(err)
}

// PublishLots transitions every pending lot of an auction to active. Called
// when an auction moves from published to active at start_at.
func (s *Storage) PublishLots(ctx context.Context, auctionID uuid.UUID, closeAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE lot SET status = 'active', updated_at = NOW()
		WHERE auction_id = $1 AND status = 'pending'`, auctionID)
	_ = closeAt // original_close_at/current_close_at are set at CreateLot time
	return translate(err)
}

// --- Tx methods used by the bidding engine and closer -----------------

// UpdateLot persists the full lot snapshot inside an in-flight lot
// transaction (read-your-writes within the same Tx).
func (tx *Tx) UpdateLot(ctx context.Context, l *models.Lot) error {
	_, err := tx.tx.ExecContext(ctx, `
		UPDATE lot SET
			current_bid = $1, current_bidder_id = $2, bid_count = $3,
			reserve_met = $4, current_close_at = $5, extension_count = $6,
			status = $7, closed_at = $8, updated_at = NOW()
		WHERE id = $9`,
		l.CurrentBid, l.CurrentBidderID, l.BidCount, l.ReserveMet,
		l.CurrentCloseAt, l.ExtensionCount, l.Status, l.ClosedAt, l.ID)
	return translate(err)
}

// GetLot re-reads the lot row within the transaction (read-your-writes).
func (tx *Tx) GetLot(ctx context.Context, lotID uuid.UUID) (*models.Lot, error) {
	var l models.Lot
	err := tx.tx.GetContext(ctx, &l, `SELECT * FROM lot WHERE id = $1`, lotID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &l, translate(err)
}

// GetAuction reads the parent auction within the transaction.
func (tx *Tx) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	var a models.Auction
	err := tx.tx.GetContext(ctx, &a, `SELECT * FROM auction WHERE id = $1`, auctionID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &a, translate(err)
}
