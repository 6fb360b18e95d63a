package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloudforge/auctionhouse/engine"
	"github.com/cloudforge/auctionhouse/invoicer"
	"github.com/cloudforge/auctionhouse/store"
)

// resultCodeStatus maps every engine.ResultCode to the HTTP status the §7
// taxonomy assigns it. OUTBID_BY_PROXY keeps 200: the bidder's state did
// change, they just didn't win, and the response body's resultCode/success
// fields carry the real outcome.
var resultCodeStatus = map[engine.ResultCode]int{
	engine.CodeAccepted:          http.StatusOK,
	engine.CodeInvalidAmount:     http.StatusBadRequest,
	engine.CodeInvalidMaxBid:     http.StatusBadRequest,
	engine.CodeLotNotActive:      http.StatusBadRequest,
	engine.CodeAuctionClosed:     http.StatusBadRequest,
	engine.CodeBidTooLow:         http.StatusBadRequest,
	engine.CodeSelfOutbid:        http.StatusBadRequest,
	engine.CodeMaxBidTied:        http.StatusBadRequest,
	engine.CodeNoBuyNow:          http.StatusBadRequest,
	engine.CodeOutbidByProxy:     http.StatusOK,
	engine.CodeTransientConflict: http.StatusServiceUnavailable,
}

// statusFor returns the HTTP status for a result code, defaulting to 500 for
// anything unrecognized — an engine invariant violation, never a policy
// rejection, since every known policy code is listed above.
func statusFor(code engine.ResultCode) int {
	if status, ok := resultCodeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// errorBody is the shape every error response takes (§7: "always return a
// stable result_code string").
type errorBody struct {
	Error      string `json:"error"`
	ResultCode string `json:"resultCode,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, ResultCode: code})
}

// writeStoreErr maps a lower-layer error to its HTTP status. NotFound maps
// to 404 (§7); ErrAlreadyGenerated maps to 409; everything else is a
// programmer/invariant failure — logged upstream by middleware.Recoverer if
// it panics, otherwise a plain 500 here.
func writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, invoicer.ErrAlreadyGenerated):
		writeError(w, http.StatusConflict, "ALREADY_GENERATED", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
