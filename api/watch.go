package api

import "net/http"

// AddWatchHandler handles POST /api/lots/{lotId}/watch.
func (h *Handler) AddWatchHandler(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Store.AddWatch(r.Context(), id.UserID, lotID); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

// RemoveWatchHandler handles DELETE /api/lots/{lotId}/watch.
func (h *Handler) RemoveWatchHandler(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Store.RemoveWatch(r.Context(), id.UserID, lotID); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{OK: true})
}
