package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
)

// Store is the narrow read/write surface the API layer reaches directly,
// beyond what it gets through the Engine/Closer/Invoicer/Importer
// collaborators — the same "depend on the interface you actually call"
// idiom as engine.Runner, closer.Runner and invoicer.Store.
type Store interface {
	CreateAuction(ctx context.Context, a *models.Auction) error
	GetLot(ctx context.Context, id uuid.UUID) (*models.Lot, error)
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	CreateLot(ctx context.Context, l *models.Lot) error
	ListBidsForLot(ctx context.Context, lotID uuid.UUID) ([]models.Bid, error)
	AddWatch(ctx context.Context, userID, lotID uuid.UUID) error
	RemoveWatch(ctx context.Context, userID, lotID uuid.UUID) error
	ListInvoicesForAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Invoice, error)
}
