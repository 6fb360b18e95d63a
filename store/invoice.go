package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
)

// HasInvoices reports whether any invoice already exists for an auction,
// used by the invoicer to enforce "generate once" (§4.6).
func (s *Storage) HasInvoices(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM invoice WHERE auction_id = $1`, auctionID)
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

// NextInvoiceSequence draws the next value of a system-wide sequence used to
// build the NNNNN suffix of an invoice number (§4.6, §6: unique across the
// system, not per day).
func (s *Storage) NextInvoiceSequence(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT nextval('invoice_number_seq')`)
	return n, translate(err)
}

// CreateInvoicesWithItems persists a batch of invoices and their line items
// in one transaction, re-checking the "generate once" constraint under the
// transaction to close the race between the pre-check and the insert.
func (s *Storage) CreateInvoicesWithItems(ctx context.Context, auctionID uuid.UUID, invoices []models.Invoice, items [][]models.InvoiceItem) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return translate(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var existing int
	if err := tx.GetContext(ctx, &existing, `SELECT COUNT(1) FROM invoice WHERE auction_id = $1`, auctionID); err != nil {
		return translate(err)
	}
	if existing > 0 {
		return ErrConflict
	}

	for i := range invoices {
		inv := &invoices[i]
		err := tx.QueryRowContext(ctx, `
			INSERT INTO invoice
				(number, auction_id, bidder_id, subtotal, premium, tax, shipping, total,
				 payment_status, fulfillment_status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING id, created_at`,
			inv.Number, inv.AuctionID, inv.BidderID, inv.Subtotal, inv.Premium, inv.Tax,
			inv.Shipping, inv.Total, inv.PaymentStatus, inv.FulfillmentStatus,
		).Scan(&inv.ID, &inv.CreatedAt)
		if err != nil {
			return translate(err)
		}
		for j := range items[i] {
			it := &items[i][j]
			it.InvoiceID = inv.ID
			_, err := tx.ExecContext(ctx, `
				INSERT INTO invoice_item
					(id, invoice_id, lot_id, lot_number, winning_bid, premium_rate,
					 premium_amount, tax_rate, tax_amount, shipping_amount, line_total)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				it.ID, it.InvoiceID, it.LotID, it.LotNumber, it.WinningBid, it.PremiumRate,
				it.PremiumAmount, it.TaxRate, it.TaxAmount, it.ShippingAmount, it.LineTotal)
			if err != nil {
				return translate(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	committed = true
	return nil
}

// ListInvoicesForAuction returns every invoice generated for an auction.
func (s *Storage) ListInvoicesForAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.db.SelectContext(ctx, &invoices, `SELECT * FROM invoice WHERE auction_id = $1 ORDER BY created_at`, auctionID)
	return invoices, translate(err)
}
