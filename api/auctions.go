package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudforge/auctionhouse/closer"
	"github.com/cloudforge/auctionhouse/models"
)

// createAuctionRequest is the JSON body of POST /auctions (admin-only):
// the auction's schedule and pricing rules, created in status draft
// (§3 "draft -> published").
type createAuctionRequest struct {
	Name             string                   `json:"name"`
	StartAt          time.Time                `json:"startAt"`
	EndAt            time.Time                `json:"endAt"`
	SoftCloseEnabled bool                     `json:"softCloseEnabled"`
	TriggerWindow    time.Duration            `json:"triggerWindow"`
	Extension        time.Duration            `json:"extension"`
	IncrementRules   models.IncrementTierList `json:"incrementRules"`
	PremiumRules     models.IncrementTierList `json:"premiumRules"`
	TaxEnabled       bool                     `json:"taxEnabled"`
	TaxRate          decimal.Decimal          `json:"taxRate"`
}

// CreateAuctionHandler handles POST /api/auctions (admin-only). The auction
// starts in status draft and is unreachable to bidders until an admin
// publishes it and its start_at arrives.
func (h *Handler) CreateAuctionHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}

	var req createAuctionRequest
	if !readJSONBody(w, r, maxBodyBytes, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "name is required")
		return
	}
	if !req.EndAt.After(req.StartAt) {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "endAt must be after startAt")
		return
	}

	auction := &models.Auction{
		Name:             req.Name,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		SoftCloseEnabled: req.SoftCloseEnabled,
		TriggerWindow:    req.TriggerWindow,
		Extension:        req.Extension,
		IncrementRules:   req.IncrementRules,
		PremiumRules:     req.PremiumRules,
		TaxEnabled:       req.TaxEnabled,
		TaxRate:          req.TaxRate,
	}
	if err := h.Store.CreateAuction(r.Context(), auction); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}

// createLotRequest is the JSON body of POST /auctions/{auctionId}/lots
// (admin-only): adding one lot directly rather than through a CSV import
// (§4.7 covers the bulk path; this is the single-lot complement the data
// model needs for an auction to ever have a biddable lot).
type createLotRequest struct {
	LotNumber              int                      `json:"lotNumber"`
	Title                  string                   `json:"title"`
	Description            string                   `json:"description"`
	Category               string                   `json:"category"`
	Condition              string                   `json:"condition"`
	StartingBid            decimal.Decimal          `json:"startingBid"`
	ReservePrice           *decimal.Decimal         `json:"reservePrice,omitempty"`
	BuyNowPrice            *decimal.Decimal         `json:"buyNowPrice,omitempty"`
	Quantity               int                      `json:"quantity"`
	Location               string                   `json:"location"`
	ShippingAvailable      bool                     `json:"shippingAvailable"`
	ShippingAmount         decimal.Decimal          `json:"shippingAmount"`
	IncrementRulesOverride models.IncrementTierList `json:"incrementRulesOverride,omitempty"`
	OriginalCloseAt        time.Time                `json:"originalCloseAt"`
}

// CreateLotHandler handles POST /api/auctions/{auctionId}/lots (admin-only).
// The lot is created in status pending and only becomes biddable once the
// auction is published and activated (§3 "pending -> active").
func (h *Handler) CreateLotHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	auctionID, ok := parseUUIDParam(w, r, "auctionId")
	if !ok {
		return
	}
	if _, err := h.Store.GetAuction(r.Context(), auctionID); err != nil {
		writeStoreErr(w, err)
		return
	}

	var req createLotRequest
	if !readJSONBody(w, r, maxBodyBytes, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "title is required")
		return
	}

	lot := &models.Lot{
		AuctionID:              auctionID,
		LotNumber:              req.LotNumber,
		Title:                  req.Title,
		Description:            req.Description,
		Category:               req.Category,
		Condition:              req.Condition,
		StartingBid:            req.StartingBid,
		ReservePrice:           req.ReservePrice,
		BuyNowPrice:            req.BuyNowPrice,
		Quantity:               req.Quantity,
		Location:               req.Location,
		ShippingAvailable:      req.ShippingAvailable,
		ShippingAmount:         req.ShippingAmount,
		IncrementRulesOverride: req.IncrementRulesOverride,
		OriginalCloseAt:        req.OriginalCloseAt,
	}
	if err := h.Store.CreateLot(r.Context(), lot); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// PublishAuctionHandler handles POST /api/auctions/{auctionId}/publish
// (admin-only, §3 "draft -> published (requires >= 1 lot)").
func (h *Handler) PublishAuctionHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	auctionID, ok := parseUUIDParam(w, r, "auctionId")
	if !ok {
		return
	}

	if err := h.Closer.PublishAuction(r.Context(), auctionID); err != nil {
		if errors.Is(err, closer.ErrNoLots) {
			writeError(w, http.StatusBadRequest, "NO_LOTS", err.Error())
			return
		}
		writeStoreErr(w, err)
		return
	}

	auction, err := h.Store.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}

// ActivateAuctionHandler handles POST /api/auctions/{auctionId}/activate
// (admin-only, §3 "published -> active (when now >= start_at)"). Calling it
// before start_at is a no-op that returns the still-published snapshot;
// it is meant to be re-run by a scheduler the same way close_auction is.
func (h *Handler) ActivateAuctionHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	auctionID, ok := parseUUIDParam(w, r, "auctionId")
	if !ok {
		return
	}

	if err := h.Closer.ActivateAuction(r.Context(), auctionID); err != nil {
		writeStoreErr(w, err)
		return
	}

	auction, err := h.Store.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}
