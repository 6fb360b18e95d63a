package api

import (
	"net/http"
	"time"

	"github.com/cloudforge/auctionhouse/hub"
)

// SubscribeHandler handles GET /api/lots/{lotId}/events, streaming Server-
// Sent Events for one lot (§4.8, §6). The first frame is always a snapshot
// of the lot's current state; on every tick of hub.HeartbeatInterval() the
// handler publishes a heartbeat through the hub, whether or not other frames
// were sent since the last tick.
func (h *Handler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	events, detach := h.Hub.Subscribe(ctx, lotID, lot, h.Clock.Now())
	defer detach()

	ticker := time.NewTicker(hub.HeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if !writeSSE(w, flusher, ev) {
				return
			}
		case t := <-ticker.C:
			h.Hub.Heartbeat(lotID, t)
		}
	}
}

// writeSSE renders one hub.Event as a `data: ...\n\n` frame and flushes it,
// reporting whether the write succeeded (false means the client is gone).
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev hub.Event) bool {
	data, err := ev.MarshalSSE()
	if err != nil {
		return false
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return false
	}
	if _, err := w.Write(data); err != nil {
		return false
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
