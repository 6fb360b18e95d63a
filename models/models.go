// Package models holds the persistent entities of the bidding engine:
// auctions, lots, bids, audit events, watchlist entries, invoices and the
// bulk-ingest batch types. Entities are plain structs with db/json tags in
// the style of a thin sqlx-backed storage layer — no ORM behavior lives here.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is a User's access level. Users themselves are owned by an external
// identity collaborator; only the role is relevant to authorization checks
// made inside this module.
type Role string

const (
	RoleGuest  Role = "guest"
	RoleBidder Role = "bidder"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// AuctionStatus is the lifecycle state of an Auction.
type AuctionStatus string

const (
	AuctionDraft     AuctionStatus = "draft"
	AuctionPublished AuctionStatus = "published"
	AuctionActive    AuctionStatus = "active"
	AuctionClosed    AuctionStatus = "closed"
)

// LotStatus is the lifecycle state of a Lot.
type LotStatus string

const (
	LotPending   LotStatus = "pending"
	LotActive    LotStatus = "active"
	LotClosed    LotStatus = "closed"
	LotSold      LotStatus = "sold"
	LotUnsold    LotStatus = "unsold"
	LotWithdrawn LotStatus = "withdrawn"
)

// BidType distinguishes a bid a user placed manually from one the proxy
// auto-bidder emitted on their behalf.
type BidType string

const (
	BidManual BidType = "manual"
	BidProxy  BidType = "proxy"
)

// BidStatus labels the disposition of a Bid row once its lot closes. Rows
// are append-only (§I-B1); only this label, IsWinning, OutbidAt and
// MaxBidActive ever change after insert.
type BidStatus string

const (
	BidOpen BidStatus = "open"
	BidWon  BidStatus = "won"
	BidLost BidStatus = "lost"
)

// IncrementTier is one row of an ordered increment or premium schedule.
// Max is nil for the open-ended top tier. Rate is only meaningful for
// premium tiers; Step is only meaningful for increment tiers.
type IncrementTier struct {
	Min  decimal.Decimal  `json:"min"`
	Max  *decimal.Decimal `json:"max,omitempty"`
	Step decimal.Decimal  `json:"step,omitempty"`
	Rate decimal.Decimal  `json:"rate,omitempty"`
}

// DefaultIncrementTiers are the increment tiers used when an Auction does
// not specify its own (§4.1): {0-100: 5}, {100-500: 10}, {500-inf: 25}.
func DefaultIncrementTiers() []IncrementTier {
	hundred := decimal.NewFromInt(100)
	fiveHundred := decimal.NewFromInt(500)
	return []IncrementTier{
		{Min: decimal.Zero, Max: &hundred, Step: decimal.NewFromInt(5)},
		{Min: hundred, Max: &fiveHundred, Step: decimal.NewFromInt(10)},
		{Min: fiveHundred, Max: nil, Step: decimal.NewFromInt(25)},
	}
}

// User is the external identity collaborator's view of an account, referenced
// only by id everywhere else in this module (§3). Creation/authentication are
// out of scope; this struct exists only so role checks have a concrete type.
type User struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Role Role      `db:"role" json:"role"`
}

// Auction groups lots under shared timing, soft-close and fee rules.
type Auction struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	StartAt           time.Time       `db:"start_at" json:"startAt"`
	EndAt             time.Time       `db:"end_at" json:"endAt"`
	SoftCloseEnabled  bool            `db:"soft_close_enabled" json:"softCloseEnabled"`
	TriggerWindow     time.Duration   `db:"trigger_window" json:"triggerWindow"`
	Extension         time.Duration   `db:"extension" json:"extension"`
	IncrementRules    IncrementTierList `db:"increment_rules" json:"incrementRules"`
	PremiumRules      IncrementTierList `db:"premium_rules" json:"premiumRules"`
	TaxEnabled        bool            `db:"tax_enabled" json:"taxEnabled"`
	TaxRate           decimal.Decimal `db:"tax_rate" json:"taxRate"`
	Status            AuctionStatus   `db:"status" json:"status"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"-"`
}

// Lot belongs to exactly one Auction and carries its own live bidding
// snapshot (§I-L1..I-L7). The "current winning Bid" is never a back-pointer
// field here; it is reached via the (lot_id, is_winning=true) index on Bid.
type Lot struct {
	ID                      uuid.UUID        `db:"id" json:"id"`
	AuctionID               uuid.UUID        `db:"auction_id" json:"auctionId"`
	LotNumber               int              `db:"lot_number" json:"lotNumber"`
	Title                   string           `db:"title" json:"title"`
	Description             string           `db:"description" json:"description"`
	Category                string           `db:"category" json:"category,omitempty"`
	Condition               string           `db:"condition" json:"condition,omitempty"`
	StartingBid             decimal.Decimal  `db:"starting_bid" json:"startingBid"`
	ReservePrice            *decimal.Decimal `db:"reserve_price" json:"reservePrice,omitempty"`
	BuyNowPrice             *decimal.Decimal `db:"buy_now_price" json:"buyNowPrice,omitempty"`
	Quantity                int              `db:"quantity" json:"quantity"`
	Location                string           `db:"location" json:"location,omitempty"`
	ShippingAvailable       bool             `db:"shipping_available" json:"shippingAvailable"`
	ShippingAmount          decimal.Decimal  `db:"shipping_amount" json:"shippingAmount"`
	IncrementRulesOverride  IncrementTierList `db:"increment_rules_override" json:"incrementRulesOverride,omitempty"`
	OriginalCloseAt         time.Time        `db:"original_close_at" json:"originalCloseAt"`
	CurrentCloseAt          time.Time        `db:"current_close_at" json:"currentCloseAt"`
	ExtensionCount          int              `db:"extension_count" json:"extensionCount"`
	Status                  LotStatus        `db:"status" json:"status"`
	CurrentBid              decimal.Decimal  `db:"current_bid" json:"currentBid"`
	CurrentBidderID         *uuid.UUID       `db:"current_bidder_id" json:"currentBidderId,omitempty"`
	BidCount                int              `db:"bid_count" json:"bidCount"`
	ReserveMet              bool             `db:"reserve_met" json:"reserveMet"`
	ClosedAt                *time.Time       `db:"closed_at" json:"closedAt,omitempty"`
	CreatedAt               time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt               time.Time        `db:"updated_at" json:"-"`
}

// MeetsReserve reports whether the lot's current bid satisfies its reserve
// price (§I-L3). A lot with no reserve price always meets it.
func (l *Lot) MeetsReserve() bool {
	if l.ReservePrice == nil {
		return true
	}
	return l.CurrentBid.GreaterThanOrEqual(*l.ReservePrice)
}

// EffectiveIncrementRules returns the lot's own override tiers if present,
// else the auction's tiers, else the package default.
func (l *Lot) EffectiveIncrementRules(a *Auction) IncrementTierList {
	if len(l.IncrementRulesOverride) > 0 {
		return l.IncrementRulesOverride
	}
	if a != nil && len(a.IncrementRules) > 0 {
		return a.IncrementRules
	}
	return DefaultIncrementTiers()
}

// Bid is an append-only record of any amount ever set as a lot's live bid,
// whether placed manually or emitted by the proxy auto-bidder (§I-B1..I-B4).
type Bid struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	LotID             uuid.UUID       `db:"lot_id" json:"lotId"`
	BidderID          uuid.UUID       `db:"bidder_id" json:"bidderId"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Type              BidType         `db:"type" json:"type"`
	MaxBid            *decimal.Decimal `db:"max_bid" json:"maxBid,omitempty"`
	MaxBidActive      bool            `db:"max_bid_active" json:"maxBidActive"`
	IsWinning         bool            `db:"is_winning" json:"isWinning"`
	Status            BidStatus       `db:"status" json:"status"`
	PreviousAmount    decimal.Decimal `db:"previous_amount" json:"previousAmount"`
	PreviousBidderID  *uuid.UUID      `db:"previous_bidder_id" json:"previousBidderId,omitempty"`
	BuyNow            bool            `db:"buy_now" json:"buyNow,omitempty"`
	OutbidAt          *time.Time      `db:"outbid_at" json:"outbidAt,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// AuditKind enumerates the kinds of events the audit log records (§3).
type AuditKind string

const (
	EventBidPlaced         AuditKind = "bid_placed"
	EventBidRejected       AuditKind = "bid_rejected"
	EventProxyTriggered     AuditKind = "proxy_triggered"
	EventOutbidOccurred     AuditKind = "outbid_occurred"
	EventSoftCloseTriggered AuditKind = "soft_close_triggered"
	EventLotClosed          AuditKind = "lot_closed"
	EventReserveMet         AuditKind = "reserve_met"
	EventBuyNowExecuted     AuditKind = "buy_now_executed"
)

// AuditEvent is an append-only, never-updated record of one engine decision
// (§I-A1). Snapshot carries a JSON-encoded copy of the lot state at the time
// of the event so disputes can be resolved from the audit table alone.
type AuditEvent struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	LotID          uuid.UUID        `db:"lot_id" json:"lotId"`
	AuctionID      uuid.UUID        `db:"auction_id" json:"auctionId"`
	BidderID       *uuid.UUID       `db:"bidder_id" json:"bidderId,omitempty"`
	Kind           AuditKind        `db:"kind" json:"kind"`
	PreviousAmount *decimal.Decimal `db:"previous_amount" json:"previousAmount,omitempty"`
	NewAmount      *decimal.Decimal `db:"new_amount" json:"newAmount,omitempty"`
	ResultCode     string           `db:"result_code" json:"resultCode"`
	ResultMessage  string           `db:"result_message" json:"resultMessage"`
	Snapshot       []byte           `db:"snapshot" json:"snapshot,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
}

// WatchEntry is one (user, lot) pair in a watchlist. No ordering; add/remove
// are idempotent.
type WatchEntry struct {
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	LotID     uuid.UUID `db:"lot_id" json:"lotId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// PaymentStatus and FulfillmentStatus track an Invoice after generation;
// monetary fields never change once generated (§3).
type PaymentStatus string
type FulfillmentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"

	FulfillmentPending FulfillmentStatus = "pending"
	FulfillmentShipped FulfillmentStatus = "shipped"
)

// Invoice is generated exactly once per (auction, winning bidder).
type Invoice struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	Number            string            `db:"number" json:"number"`
	AuctionID         uuid.UUID         `db:"auction_id" json:"auctionId"`
	BidderID          uuid.UUID         `db:"bidder_id" json:"bidderId"`
	Subtotal          decimal.Decimal   `db:"subtotal" json:"subtotal"`
	Premium           decimal.Decimal   `db:"premium" json:"premium"`
	Tax               decimal.Decimal   `db:"tax" json:"tax"`
	Shipping          decimal.Decimal   `db:"shipping" json:"shipping"`
	Total             decimal.Decimal   `db:"total" json:"total"`
	PaymentStatus     PaymentStatus     `db:"payment_status" json:"paymentStatus"`
	FulfillmentStatus FulfillmentStatus `db:"fulfillment_status" json:"fulfillmentStatus"`
	CreatedAt         time.Time         `db:"created_at" json:"createdAt"`
}

// InvoiceItem is one winning lot's contribution to an Invoice.
type InvoiceItem struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	InvoiceID      uuid.UUID       `db:"invoice_id" json:"invoiceId"`
	LotID          uuid.UUID       `db:"lot_id" json:"lotId"`
	LotNumber      int             `db:"lot_number" json:"lotNumber"`
	WinningBid     decimal.Decimal `db:"winning_bid" json:"winningBid"`
	PremiumRate    decimal.Decimal `db:"premium_rate" json:"premiumRate"`
	PremiumAmount  decimal.Decimal `db:"premium_amount" json:"premiumAmount"`
	TaxRate        decimal.Decimal `db:"tax_rate" json:"taxRate"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"taxAmount"`
	ShippingAmount decimal.Decimal `db:"shipping_amount" json:"shippingAmount"`
	LineTotal      decimal.Decimal `db:"line_total" json:"lineTotal"`
}

// ImportRowError describes one failed field on one CSV row (§4.7).
type ImportRowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ImportBatch is the outcome record of one lot CSV ingest.
type ImportBatch struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	AuctionID  uuid.UUID        `db:"auction_id" json:"auctionId"`
	RowCount   int              `db:"row_count" json:"rowCount"`
	Accepted   int              `db:"accepted" json:"accepted"`
	Errors     ImportRowErrorList `db:"errors" json:"errors,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
}

// ImageMappingStatus is the outcome of matching one uploaded filename.
type ImageMappingStatus string

const (
	ImageMatched    ImageMappingStatus = "matched"
	ImageUnmatched  ImageMappingStatus = "unmatched"
	ImageConflict   ImageMappingStatus = "conflict"
	ImageManual     ImageMappingStatus = "manual"
)

// ImageMapping is the per-file outcome of a filename → lot match attempt.
type ImageMapping struct {
	ID         uuid.UUID          `db:"id" json:"id"`
	AuctionID  uuid.UUID          `db:"auction_id" json:"auctionId"`
	Filename   string             `db:"filename" json:"filename"`
	URL        string             `db:"url" json:"url"`
	LotID      *uuid.UUID         `db:"lot_id" json:"lotId,omitempty"`
	PhotoOrder *int               `db:"photo_order" json:"photoOrder,omitempty"`
	Status     ImageMappingStatus `db:"status" json:"status"`
	Reason     string             `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"createdAt"`
}
