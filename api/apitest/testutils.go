// Package apitest holds test-only helpers shared by api package tests,
// mirroring the teacher's internal/handlers/testutils package.
package apitest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// WithChiURLParams injects chi route params into a request's context, for
// handler unit tests that exercise a Handler method directly without a
// live router.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for k, v := range params {
		chiCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}
