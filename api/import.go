package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/importer"
	"github.com/cloudforge/auctionhouse/models"
)

// importResultResponse is the body for import_lots_csv (§6: "batch id +
// errors").
type importResultResponse struct {
	BatchID  uuid.UUID                  `json:"batchId"`
	RowCount int                        `json:"rowCount"`
	Accepted int                        `json:"accepted"`
	Errors   models.ImportRowErrorList `json:"errors,omitempty"`
}

// ImportLotsCSVHandler handles POST /api/auctions/{auctionId}/lots/import.
// The body is the raw CSV, not JSON, so it reads straight off the request
// the way importer.ImportLotsCSV expects — no readJSONBody here.
func (h *Handler) ImportLotsCSVHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	auctionID, ok := parseUUIDParam(w, r, "auctionId")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCSVBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CSV", "failed to read request body")
		return
	}
	defer r.Body.Close()

	result, err := h.Importer.ImportLotsCSV(r.Context(), auctionID, body)
	if err != nil {
		if errors.Is(err, importer.ErrEmptyCSV) {
			writeError(w, http.StatusBadRequest, "INVALID_CSV", err.Error())
			return
		}
		writeStoreErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, importResultResponse{
		BatchID:  result.Batch.ID,
		RowCount: result.Batch.RowCount,
		Accepted: result.Batch.Accepted,
		Errors:   result.Batch.Errors,
	})
}

// matchImagesRequest is the body for match_images (§6: "list of
// (filename, url)").
type matchImagesRequest struct {
	Files []importer.UploadedFile `json:"files"`
}

// MatchImagesHandler handles POST /api/auctions/{auctionId}/images/match.
func (h *Handler) MatchImagesHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	auctionID, ok := parseUUIDParam(w, r, "auctionId")
	if !ok {
		return
	}

	var req matchImagesRequest
	if !readJSONBody(w, r, maxBodyBytes, &req) {
		return
	}

	mappings, err := h.Importer.MatchImages(r.Context(), auctionID, req.Files)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappings)
}

// manualAssignRequest is the body for manually overriding one image
// mapping's lot/order assignment (§4.7).
type manualAssignRequest struct {
	LotID uuid.UUID `json:"lotId"`
	Order int        `json:"order"`
}

// ManualAssignImageHandler handles PUT /api/images/{mappingId}/assign.
func (h *Handler) ManualAssignImageHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireStaff(w, r); !ok {
		return
	}
	mappingID, ok := parseUUIDParam(w, r, "mappingId")
	if !ok {
		return
	}

	var req manualAssignRequest
	if !readJSONBody(w, r, maxBodyBytes, &req) {
		return
	}

	if err := h.Importer.ManualAssignImage(r.Context(), mappingID, req.LotID, req.Order); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{OK: true})
}
