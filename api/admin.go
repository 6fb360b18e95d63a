package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/invoicer"
	"github.com/cloudforge/auctionhouse/models"
)

// CloseLotHandler handles POST /api/lots/{lotId}/close (admin-only, §6).
func (h *Handler) CloseLotHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	lotID, ok := parseUUIDParam(w, r, "lotId")
	if !ok {
		return
	}

	lot, err := h.Store.GetLot(r.Context(), lotID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if lot.Status != models.LotActive {
		writeError(w, http.StatusBadRequest, "NOT_ACTIVE", "lot is not active")
		return
	}

	if err := h.Closer.CloseLot(r.Context(), lotID, false); err != nil {
		writeStoreErr(w, err)
		return
	}

	closed, err := h.Store.GetLot(r.Context(), lotID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, closed)
}

// CloseAuctionHandler handles POST /api/auctions/{auctionId}/close
// (admin-only, §6). The optional ?force=true query param is the admin
// override (§3, §4.5 "or admin forces auction close"): it closes every
// active lot immediately regardless of its close time and transitions the
// auction to closed even if some lot is still open.
func (h *Handler) CloseAuctionHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	auctionID, ok := parseUUIDParam(w, r, "auctionId")
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"

	if _, err := h.Store.GetAuction(r.Context(), auctionID); err != nil {
		writeStoreErr(w, err)
		return
	}
	if err := h.Closer.CloseAuction(r.Context(), auctionID, force); err != nil {
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

// invoiceIDsResponse is the body for generate_invoices (§6: "list of invoice
// ids").
type invoiceIDsResponse struct {
	InvoiceIDs []uuid.UUID `json:"invoiceIds"`
}

// GenerateInvoicesHandler handles POST /api/auctions/{auctionId}/invoices
// (admin-only, §6).
func (h *Handler) GenerateInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	auctionID, ok := parseUUIDParam(w, r, "auctionId")
	if !ok {
		return
	}

	auction, err := h.Store.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if auction.Status != models.AuctionClosed {
		writeError(w, http.StatusBadRequest, "NOT_CLOSED", "auction is not closed")
		return
	}

	if err := h.Invoicer.GenerateInvoices(r.Context(), auctionID); err != nil {
		if errors.Is(err, invoicer.ErrAlreadyGenerated) {
			writeError(w, http.StatusConflict, "ALREADY_GENERATED", err.Error())
			return
		}
		writeStoreErr(w, err)
		return
	}

	invoices, err := h.Store.ListInvoicesForAuction(r.Context(), auctionID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	ids := make([]uuid.UUID, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	writeJSON(w, http.StatusOK, invoiceIDsResponse{InvoiceIDs: ids})
}
