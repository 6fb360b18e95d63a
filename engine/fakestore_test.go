package engine_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
	"github.com/cloudforge/auctionhouse/store"
)

// seqEpoch anchors the synthetic, strictly increasing timestamps fakeTx
// stamps on inserted rows, so GetHighBidderMax's "most recent" tie-break has
// something real to compare.
var seqEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func seqTime(n int64) time.Time {
	return seqEpoch.Add(time.Duration(n) * time.Millisecond)
}

// fakeStore is an in-memory stand-in for *store.Storage, playing the role
// the teacher's handlers_test.go MockStorage plays for StorageInterface: the
// engine only ever sees the store.LotTx/engine.Runner surface, so a test can
// swap in a map-backed fake instead of a database.
type fakeStore struct {
	lots      map[uuid.UUID]*models.Lot
	auctions  map[uuid.UUID]*models.Auction
	bids      map[uuid.UUID]*models.Bid
	audits    []models.AuditEvent
	abortLeft int
	seq       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lots:     map[uuid.UUID]*models.Lot{},
		auctions: map[uuid.UUID]*models.Auction{},
		bids:     map[uuid.UUID]*models.Bid{},
	}
}

func (fs *fakeStore) nextSeq() int64 {
	fs.seq++
	return fs.seq
}

func (fs *fakeStore) putAuction(a *models.Auction) {
	fs.auctions[a.ID] = a
}

func (fs *fakeStore) putLot(l *models.Lot) {
	cp := *l
	fs.lots[l.ID] = &cp
}

func (fs *fakeStore) RunInLotTx(ctx context.Context, lotID uuid.UUID, fn func(ctx context.Context, tx store.LotTx, lot *models.Lot) error) error {
	if fs.abortLeft > 0 {
		fs.abortLeft--
		return store.ErrAborted
	}
	l, ok := fs.lots[lotID]
	if !ok {
		return store.ErrNotFound
	}
	lotCopy := *l
	tx := &fakeTx{fs: fs}
	if err := fn(ctx, tx, &lotCopy); err != nil {
		return err
	}
	if tx.pendingLot != nil {
		fs.lots[lotID] = tx.pendingLot
	} else {
		fs.lots[lotID] = &lotCopy
	}
	return nil
}

// fakeTx implements store.LotTx against fakeStore's maps.
type fakeTx struct {
	fs         *fakeStore
	pendingLot *models.Lot
}

func (tx *fakeTx) InsertBid(ctx context.Context, b *models.Bid) error {
	b.ID = uuid.New()
	b.CreatedAt = seqTime(tx.fs.nextSeq())
	cp := *b
	tx.fs.bids[b.ID] = &cp
	return nil
}

func (tx *fakeTx) SetBidWinning(ctx context.Context, bidID uuid.UUID, winning bool, outbidAt *time.Time) error {
	b, ok := tx.fs.bids[bidID]
	if !ok {
		return store.ErrNotFound
	}
	b.IsWinning = winning
	b.OutbidAt = outbidAt
	return nil
}

func (tx *fakeTx) SetBidMaxActive(ctx context.Context, bidID uuid.UUID, active bool) error {
	b, ok := tx.fs.bids[bidID]
	if !ok {
		return store.ErrNotFound
	}
	b.MaxBidActive = active
	return nil
}

func (tx *fakeTx) GetWinningBid(ctx context.Context, lotID uuid.UUID) (*models.Bid, error) {
	for _, b := range tx.fs.bids {
		if b.LotID == lotID && b.IsWinning {
			cp := *b
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (tx *fakeTx) GetHighBidderMax(ctx context.Context, lotID, highBidderID uuid.UUID) (*models.Bid, error) {
	var best *models.Bid
	for _, b := range tx.fs.bids {
		if b.LotID != lotID || b.BidderID != highBidderID || !b.MaxBidActive || b.MaxBid == nil {
			continue
		}
		if best == nil || b.CreatedAt.After(best.CreatedAt) {
			best = b
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (tx *fakeTx) CloseLotBids(ctx context.Context, lotID uuid.UUID, winningBidID *uuid.UUID) error {
	for id, b := range tx.fs.bids {
		if b.LotID != lotID {
			continue
		}
		if winningBidID != nil && id == *winningBidID {
			b.Status = models.BidWon
			continue
		}
		if b.Status == models.BidOpen {
			b.Status = models.BidLost
		}
	}
	return nil
}

func (tx *fakeTx) UpdateLot(ctx context.Context, l *models.Lot) error {
	cp := *l
	tx.pendingLot = &cp
	return nil
}

func (tx *fakeTx) GetLot(ctx context.Context, lotID uuid.UUID) (*models.Lot, error) {
	l, ok := tx.fs.lots[lotID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (tx *fakeTx) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	a, ok := tx.fs.auctions[auctionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (tx *fakeTx) InsertAudit(ctx context.Context, ev *models.AuditEvent) error {
	ev.ID = uuid.New()
	ev.CreatedAt = seqTime(tx.fs.nextSeq())
	tx.fs.audits = append(tx.fs.audits, *ev)
	return nil
}

func (tx *fakeTx) HasAuditEvent(ctx context.Context, lotID uuid.UUID, kind models.AuditKind) (bool, error) {
	for _, ev := range tx.fs.audits {
		if ev.LotID == lotID && ev.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}
