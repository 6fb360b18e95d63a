// Package api is a thin adapter from HTTP requests to the engine/closer/
// invoicer/importer/hub operations (§4.9): no business logic lives here
// beyond request parsing, auth enforcement and response shaping, following
// the teacher's Handler-struct-wrapping-collaborators shape in
// internal/handlers/handlers.go.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/auth"
	"github.com/cloudforge/auctionhouse/clock"
)

// maxBodyBytes caps an ordinary JSON request body, the same defensive limit
// the teacher applies to tender/bid payloads via http.MaxBytesReader.
const maxBodyBytes = 1 << 20 // 1 MiB

// maxCSVBytes caps a lot-catalog CSV upload, larger than maxBodyBytes since
// a single auction's catalog can run to thousands of rows.
const maxCSVBytes = 10 << 20 // 10 MiB

// Handler wraps every collaborator the API surface adapts, the way the
// teacher's Handler wraps *db.Storage — just with the fuller collaborator
// set this domain needs instead of a single store.
type Handler struct {
	Store    Store
	Engine   Engine
	Closer   Closer
	Invoicer Invoicer
	Importer Importer
	Hub      Hub
	Auth     auth.Authenticator
	Clock    clock.Clock
}

// NewHandler constructs a Handler from its collaborators.
func NewHandler(store Store, eng Engine, cl Closer, inv Invoicer, imp Importer, h Hub, a auth.Authenticator, clk clock.Clock) *Handler {
	return &Handler{
		Store: store, Engine: eng, Closer: cl, Invoicer: inv,
		Importer: imp, Hub: h, Auth: a, Clock: clk,
	}
}

// authenticate resolves the caller identity or writes a 401 and reports ok=false.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, err := h.Auth.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return auth.Identity{}, false
	}
	return id, true
}

// requireStaff authenticates and additionally enforces the admin-only gate
// (close_lot, close_auction, generate_invoices, manual image assignment),
// never revealing whether the target resource exists to a caller who fails
// either check (§7 "never leak whether the resource exists").
func (h *Handler) requireStaff(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := h.authenticate(w, r)
	if !ok {
		return id, false
	}
	if !id.IsStaffOrAdmin() {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "staff or admin role required")
		return id, false
	}
	return id, true
}

// readJSONBody mirrors the teacher's MaxBytesReader + io.ReadAll +
// json.Unmarshal pattern (handlers.go CreateTenderHandler) rather than
// json.NewDecoder.
func readJSONBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "failed to read request body")
		return false
	}
	defer r.Body.Close()

	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON format")
		return false
	}
	return true
}

// parseUUIDParam reads a chi URL param and parses it as a uuid.UUID, writing
// a 400 on failure.
func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid "+name)
		return uuid.UUID{}, false
	}
	return id, true
}

// ackResponse is the body for operations with no richer result (§6 "ack").
type ackResponse struct {
	OK bool `json:"ok"`
}
