// Package auth is the identity/session collaborator (§1, §6). Issuance of
// sessions and identities is out of scope; this package only defines the
// contract the API surface depends on to recover an authenticated bidder_id
// and role from a request, plus a test double.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/cloudforge/auctionhouse/models"
)

// ErrUnauthenticated is returned by Authenticator when a request carries no
// valid identity. The API surface maps it to HTTP 401 (§4.9, §7) without
// revealing whether the underlying resource exists.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Identity is the authenticated caller the engine and API act on behalf of.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

// IsStaffOrAdmin reports whether this identity may perform admin-only
// operations (close_lot, close_auction, generate_invoices, manual-assign).
func (id Identity) IsStaffOrAdmin() bool {
	return id.Role == models.RoleStaff || id.Role == models.RoleAdmin
}

// Authenticator resolves the caller identity from an inbound request. A
// production implementation (session cookie, bearer JWT, etc.) lives outside
// this module; only the contract is specified here (§1 Non-goals).
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// contextKey avoids collisions with other packages' context values.
type contextKey struct{}

// WithIdentity returns a context carrying id, for handlers downstream of the
// Authenticator call to retrieve via FromContext.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext retrieves the Identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Static is a test/dev Authenticator that maps a fixed header value to a
// fixed Identity, standing in for the real session/JWT collaborator.
type Static struct {
	Header   string
	Identity map[string]Identity
}

// NewStatic builds a Static authenticator reading identities from the
// X-Bidder-Id header (test/dev only).
func NewStatic(identities map[string]Identity) *Static {
	return &Static{Header: "X-Bidder-Id", Identity: identities}
}

func (s *Static) Authenticate(r *http.Request) (Identity, error) {
	token := r.Header.Get(s.Header)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	id, ok := s.Identity[token]
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}
