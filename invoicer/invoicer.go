// Package invoicer generates one invoice per winning bidder of a closed
// auction (§4.6). It runs exactly once per auction; a second call fails with
// ErrAlreadyGenerated rather than silently doing nothing, since a caller
// that expects invoices to exist after this returns should be told when
// they already did.
package invoicer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cloudforge/auctionhouse/clock"
	"github.com/cloudforge/auctionhouse/models"
	"github.com/cloudforge/auctionhouse/rules"
	"github.com/cloudforge/auctionhouse/store"
)

// ErrAlreadyGenerated is returned when invoices already exist for the
// requested auction (§4.6).
var ErrAlreadyGenerated = errors.New("invoicer: invoices already generated for this auction")

// Store is the storage surface the invoicer needs: reading the auction and
// its sold lots, drawing invoice numbers, and persisting the result.
type Store interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	ListSoldLots(ctx context.Context, auctionID uuid.UUID) ([]models.Lot, error)
	HasInvoices(ctx context.Context, auctionID uuid.UUID) (bool, error)
	NextInvoiceSequence(ctx context.Context) (int64, error)
	CreateInvoicesWithItems(ctx context.Context, auctionID uuid.UUID, invoices []models.Invoice, items [][]models.InvoiceItem) error
}

// Invoicer ties the Store and Clock collaborators together.
type Invoicer struct {
	store Store
	clk   clock.Clock
}

// New constructs an Invoicer.
func New(s Store, clk clock.Clock) *Invoicer {
	return &Invoicer{store: s, clk: clk}
}

// GenerateInvoices groups every sold lot of auctionID by winning bidder and
// writes one Invoice with one InvoiceItem per lot for each of them (§4.6).
// An auction with no sold lots produces no invoices and no error.
func (inv *Invoicer) GenerateInvoices(ctx context.Context, auctionID uuid.UUID) error {
	has, err := inv.store.HasInvoices(ctx, auctionID)
	if err != nil {
		return err
	}
	if has {
		return ErrAlreadyGenerated
	}

	auction, err := inv.store.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	lots, err := inv.store.ListSoldLots(ctx, auctionID)
	if err != nil {
		return err
	}

	bidderOrder, lotsByBidder := groupByBidder(lots)
	if len(bidderOrder) == 0 {
		return nil
	}

	invoices := make([]models.Invoice, 0, len(bidderOrder))
	itemSets := make([][]models.InvoiceItem, 0, len(bidderOrder))
	now := inv.clk.Now()

	for _, bidderID := range bidderOrder {
		items, subtotal, premium, tax, shipping := buildItems(lotsByBidder[bidderID], auction)
		total := subtotal.Add(premium).Add(tax).Add(shipping)

		seq, err := inv.store.NextInvoiceSequence(ctx)
		if err != nil {
			return err
		}

		invoices = append(invoices, models.Invoice{
			Number:            fmt.Sprintf("INV-%s-%05d", now.Format("20060102"), seq),
			AuctionID:         auctionID,
			BidderID:          bidderID,
			Subtotal:          subtotal,
			Premium:           premium,
			Tax:               tax,
			Shipping:          shipping,
			Total:             total,
			PaymentStatus:     models.PaymentUnpaid,
			FulfillmentStatus: models.FulfillmentPending,
		})
		itemSets = append(itemSets, items)
	}

	if err := inv.store.CreateInvoicesWithItems(ctx, auctionID, invoices, itemSets); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrAlreadyGenerated
		}
		return err
	}
	return nil
}

// groupByBidder partitions sold lots by current_bidder_id, preserving the
// order bidders first appear in so invoice generation is deterministic.
func groupByBidder(lots []models.Lot) ([]uuid.UUID, map[uuid.UUID][]models.Lot) {
	var order []uuid.UUID
	byBidder := map[uuid.UUID][]models.Lot{}
	for _, l := range lots {
		if l.CurrentBidderID == nil {
			continue
		}
		id := *l.CurrentBidderID
		if _, seen := byBidder[id]; !seen {
			order = append(order, id)
		}
		byBidder[id] = append(byBidder[id], l)
	}
	return order, byBidder
}

// buildItems computes one InvoiceItem per lot and the invoice-level sums.
// Every monetary step is rounded half-up to cents before it feeds the next
// sum, so total = subtotal + premium + tax + shipping holds exactly (§4.6).
func buildItems(lots []models.Lot, auction *models.Auction) (items []models.InvoiceItem, subtotal, premium, tax, shipping decimal.Decimal) {
	items = make([]models.InvoiceItem, 0, len(lots))
	for _, l := range lots {
		winningBid := l.CurrentBid.Round(2)
		premiumRate := rules.PremiumRate(winningBid, auction.PremiumRules)
		premiumAmount := winningBid.Mul(premiumRate).Round(2)

		var taxRate, taxAmount decimal.Decimal
		if auction.TaxEnabled {
			taxRate = auction.TaxRate
			taxAmount = winningBid.Add(premiumAmount).Mul(taxRate).Round(2)
		}

		shippingAmount := l.ShippingAmount.Round(2)
		lineTotal := winningBid.Add(premiumAmount).Add(taxAmount).Add(shippingAmount)

		items = append(items, models.InvoiceItem{
			ID:             uuid.New(),
			LotID:          l.ID,
			LotNumber:      l.LotNumber,
			WinningBid:     winningBid,
			PremiumRate:    premiumRate,
			PremiumAmount:  premiumAmount,
			TaxRate:        taxRate,
			TaxAmount:      taxAmount,
			ShippingAmount: shippingAmount,
			LineTotal:      lineTotal,
		})

		subtotal = subtotal.Add(winningBid)
		premium = premium.Add(premiumAmount)
		tax = tax.Add(taxAmount)
		shipping = shipping.Add(shippingAmount)
	}
	return items, subtotal, premium, tax, shipping
}
