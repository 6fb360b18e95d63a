package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
)

// CreateLotsAndBatch inserts every parsed lot plus the ImportBatch record
// describing the outcome, in one transaction (§4.7: "On success, insert all
// lots ... Create an ImportBatch"). Called only once the importer has
// already rejected the whole CSV on any row error or lot_number collision.
func (s *Storage) CreateLotsAndBatch(ctx context.Context, lots []models.Lot, batch *models.ImportBatch) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for i := range lots {
		l := &lots[i]
		l.Status = models.LotPending
		l.CurrentCloseAt = l.OriginalCloseAt
		err := tx.QueryRowContext(ctx, `
			INSERT INTO lot
				(auction_id, lot_number, title, description, category, condition,
				 starting_bid, reserve_price, buy_now_price, quantity, location,
				 shipping_available, shipping_amount, original_close_at, current_close_at,
				 status, current_bid, bid_count, reserve_met)
			VALUES
				($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,0,0,false)
			RETURNING id, created_at, updated_at`,
			l.AuctionID, l.LotNumber, l.Title, l.Description, l.Category, l.Condition,
			l.StartingBid, l.ReservePrice, l.BuyNowPrice, l.Quantity, l.Location,
			l.ShippingAvailable, l.ShippingAmount, l.OriginalCloseAt, l.CurrentCloseAt,
			l.Status,
		).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return translate(err)
		}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO import_batch (auction_id, row_count, accepted, errors)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`,
		batch.AuctionID, batch.RowCount, batch.Accepted, batch.Errors,
	).Scan(&batch.ID, &batch.CreatedAt)
	if err != nil {
		return translate(err)
	}

	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	committed = true
	return nil
}

// CreateRejectedBatch records a batch that failed validation entirely, with
// no lots inserted.
func (s *Storage) CreateRejectedBatch(ctx context.Context, batch *models.ImportBatch) error {
	return translate(s.db.QueryRowContext(ctx, `
		INSERT INTO import_batch (auction_id, row_count, accepted, errors)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`,
		batch.AuctionID, batch.RowCount, batch.Accepted, batch.Errors,
	).Scan(&batch.ID, &batch.CreatedAt))
}

// CreateImageMappings inserts the outcome rows of one match_images call.
func (s *Storage) CreateImageMappings(ctx context.Context, mappings []models.ImageMapping) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for i := range mappings {
		m := &mappings[i]
		err := tx.QueryRowContext(ctx, `
			INSERT INTO image_mapping (auction_id, filename, url, lot_id, photo_order, status, reason)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id, created_at`,
			m.AuctionID, m.Filename, m.URL, m.LotID, m.PhotoOrder, m.Status, m.Reason,
		).Scan(&m.ID, &m.CreatedAt)
		if err != nil {
			return translate(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	committed = true
	return nil
}

// ManualAssignImage sets one mapping's outcome to manual with an explicit
// lot/order (§4.7 manual-assign).
func (s *Storage) ManualAssignImage(ctx context.Context, mappingID, lotID uuid.UUID, order int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE image_mapping SET lot_id = $1, photo_order = $2, status = $3, reason = ''
		WHERE id = $4`, lotID, order, models.ImageManual, mappingID)
	return translate(err)
}

// GetImageMapping fetches one mapping by id.
func (s *Storage) GetImageMapping(ctx context.Context, id uuid.UUID) (*models.ImageMapping, error) {
	var m models.ImageMapping
	err := s.db.GetContext(ctx, &m, `SELECT * FROM image_mapping WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &m, translate(err)
}
