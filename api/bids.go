package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cloudforge/auctionhouse/auth"
	"github.com/cloudforge/auctionhouse/engine"
	"github.com/cloudforge/auctionhouse/models"
)

// placeBidRequest is the JSON body of POST /lots/{lotId}/bids (§6:
// "lot_id, amount, max_bid? + identity" — lot_id comes from the path,
// identity from the auth collaborator).
type placeBidRequest struct {
	Amount decimal.Decimal  `json:"amount"`
	MaxBid *decimal.Decimal `json:"maxBid,omitempty"`
}

// placeBidResponse mirrors engine.PlaceBidResult, adding the stable
// success flag the §7 "outbid-by-proxy" case needs on top of resultCode.
type placeBidResponse struct {
	Lot            models.Lot       `json:"lot"`
	ProxyTriggered bool             `json:"proxyTriggered"`
	OutbidOccurred bool             `json:"outbidOccurred"`
	ResultCode     string           `json:"resultCode"`
	Success        bool             `json:"success"`
	Floor          *decimal.Decimal `json:"floor,omitempty"`
}

// PlaceBidHandler handles POST /api/lots/{lotId}/bids.
func (h *Handler) PlaceBidHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	lotID, ok := parseUUIDParam(w, r, "lotId")
	if !ok {
		return
	}

	var req placeBidRequest
	if !readJSONBody(w, r, maxBodyBytes, &req) {
		return
	}

	result, err := h.Engine.PlaceBid(r.Context(), lotID, id.UserID, req.Amount, req.MaxBid)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	writeJSON(w, statusFor(result.ResultCode), placeBidResponse{
		Lot:            result.Lot,
		ProxyTriggered: result.ProxyTriggered,
		OutbidOccurred: result.OutbidOccurred,
		ResultCode:     string(result.ResultCode),
		Success:        result.ResultCode == engine.CodeAccepted,
		Floor:          result.Floor,
	})
}

// buyNowResponse mirrors engine.BuyNowResult.
type buyNowResponse struct {
	Lot        models.Lot `json:"lot"`
	ResultCode string     `json:"resultCode"`
	Success    bool       `json:"success"`
}

// BuyNowHandler handles POST /api/lots/{lotId}/buy-now.
func (h *Handler) BuyNowHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	lotID, ok := parseUUIDParam(w, r, "lotId")
	if !ok {
		return
	}

	result, err := h.Engine.BuyNow(r.Context(), lotID, id.UserID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	writeJSON(w, statusFor(result.ResultCode), buyNowResponse{
		Lot:        result.Lot,
		ResultCode: string(result.ResultCode),
		Success:    result.ResultCode == engine.CodeAccepted,
	})
}

// bidView is one Bid row as exposed over bid_history, with bidder identity
// redacted unless the viewer is staff/admin or the bidder themself (§6).
type bidView struct {
	ID         uuid.UUID        `json:"id"`
	BidderID   *uuid.UUID       `json:"bidderId,omitempty"`
	Amount     decimal.Decimal  `json:"amount"`
	Type       models.BidType   `json:"type"`
	MaxBid     *decimal.Decimal `json:"maxBid,omitempty"`
	IsWinning  bool             `json:"isWinning"`
	Status     models.BidStatus `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
}

func redactBid(b models.Bid, viewer auth.Identity) bidView {
	v := bidView{
		ID: b.ID, Amount: b.Amount, Type: b.Type,
		IsWinning: b.IsWinning, Status: b.Status, CreatedAt: b.CreatedAt,
	}
	if viewer.IsStaffOrAdmin() || viewer.UserID == b.BidderID {
		bidderID := b.BidderID
		v.BidderID = &bidderID
		v.MaxBid = b.MaxBid
	}
	return v
}

// BidHistoryHandler handles GET /api/lots/{lotId}/bids.
func (h *Handler) BidHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	lotID, ok := parseUUIDParam(w, r, "lotId")
	if !ok {
		return
	}

	if _, err := h.Store.GetLot(r.Context(), lotID); err != nil {
		writeStoreErr(w, err)
		return
	}

	bids, err := h.Store.ListBidsForLot(r.Context(), lotID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	views := make([]bidView, len(bids))
	for i, b := range bids {
		views[i] = redactBid(b, id)
	}
	writeJSON(w, http.StatusOK, views)
}
