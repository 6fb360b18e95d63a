package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cloudforge/auctionhouse/engine"
	"github.com/cloudforge/auctionhouse/hub"
	"github.com/cloudforge/auctionhouse/importer"
	"github.com/cloudforge/auctionhouse/models"
)

// Engine, Closer, Invoicer, Importer and Hub are narrow interfaces over
// their packages' concrete types, the same consumer-local-interface idiom
// engine.Runner/closer.Runner/invoicer.Store/importer.Store already follow:
// the API layer depends only on the methods it calls, so tests can swap in
// a fake without a database.

type Engine interface {
	PlaceBid(ctx context.Context, lotID, bidderID uuid.UUID, amount decimal.Decimal, maxBid *decimal.Decimal) (*engine.PlaceBidResult, error)
	BuyNow(ctx context.Context, lotID, bidderID uuid.UUID) (*engine.BuyNowResult, error)
}

type Closer interface {
	CloseLot(ctx context.Context, lotID uuid.UUID, force bool) error
	CloseAuction(ctx context.Context, auctionID uuid.UUID, force bool) error
	PublishAuction(ctx context.Context, auctionID uuid.UUID) error
	ActivateAuction(ctx context.Context, auctionID uuid.UUID) error
}

type Invoicer interface {
	GenerateInvoices(ctx context.Context, auctionID uuid.UUID) error
}

type Importer interface {
	ImportLotsCSV(ctx context.Context, auctionID uuid.UUID, csvBytes []byte) (*importer.ImportResult, error)
	MatchImages(ctx context.Context, auctionID uuid.UUID, files []importer.UploadedFile) ([]models.ImageMapping, error)
	ManualAssignImage(ctx context.Context, mappingID, lotID uuid.UUID, order int) error
}

type Hub interface {
	Subscribe(ctx context.Context, lotID uuid.UUID, snapshot *models.Lot, now time.Time) (<-chan hub.Event, func())
	Heartbeat(lotID uuid.UUID, now time.Time)
}
