package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
)

// InsertAudit appends one append-only AuditEvent inside the lot transaction.
// Audit writes are non-optional (§7): if this fails the whole transaction
// aborts, because the caller never commits past a returned error.
func (tx *Tx) InsertAudit(ctx context.Context, ev *models.AuditEvent) error {
	query := `
		INSERT INTO audit_event
			(lot_id, auction_id, bidder_id, kind, previous_amount, new_amount,
			 result_code, result_message, snapshot)
		VALUES
			($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at`
	return translate(tx.tx.QueryRowContext(ctx, query,
		ev.LotID, ev.AuctionID, ev.BidderID, ev.Kind, ev.PreviousAmount, ev.NewAmount,
		ev.ResultCode, ev.ResultMessage, ev.Snapshot,
	).Scan(&ev.ID, &ev.CreatedAt))
}

// HasAuditEvent reports whether a lot already has an event of the given
// kind, used by the closer to dedup the lot_closed event on idempotent
// re-runs (§4.5 crash safety).
func (tx *Tx) HasAuditEvent(ctx context.Context, lotID uuid.UUID, kind models.AuditKind) (bool, error) {
	var n int
	err := tx.tx.GetContext(ctx, &n, `
		SELECT COUNT(1) FROM audit_event WHERE lot_id = $1 AND kind = $2`, lotID, kind)
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

// ListAuditForLot returns every audit event of a lot in creation order, for
// dispute-resolution reads.
func (s *Storage) ListAuditForLot(ctx context.Context, lotID uuid.UUID) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM audit_event WHERE lot_id = $1 ORDER BY created_at ASC`, lotID)
	return events, translate(err)
}
