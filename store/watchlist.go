package store

import (
	"context"

	"github.com/google/uuid"
)

// AddWatch idempotently adds a (user, lot) watch entry.
func (s *Storage) AddWatch(ctx context.Context, userID, lotID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watchlist (user_id, lot_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, lot_id) DO NOTHING`, userID, lotID)
	return translate(err)
}

// RemoveWatch idempotently removes a (user, lot) watch entry.
func (s *Storage) RemoveWatch(ctx context.Context, userID, lotID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE user_id = $1 AND lot_id = $2`, userID, lotID)
	return translate(err)
}

// ListWatchedLotIDs returns every lot a user is watching.
func (s *Storage) ListWatchedLotIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, `SELECT lot_id FROM watchlist WHERE user_id = $1`, userID)
	return ids, translate(err)
}
