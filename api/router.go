package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every §6 operation under /api, the same flat
// r.Route("/api", ...) registration style as the teacher's
// cmd/api-server/tender-server.go.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/lots/{lotId}/bids", h.PlaceBidHandler)
		r.Get("/lots/{lotId}/bids", h.BidHistoryHandler)
		r.Post("/lots/{lotId}/buy-now", h.BuyNowHandler)
		r.Get("/lots/{lotId}/events", h.SubscribeHandler)
		r.Post("/lots/{lotId}/watch", h.AddWatchHandler)
		r.Delete("/lots/{lotId}/watch", h.RemoveWatchHandler)
		r.Post("/lots/{lotId}/close", h.CloseLotHandler)

		r.Post("/auctions", h.CreateAuctionHandler)
		r.Post("/auctions/{auctionId}/lots", h.CreateLotHandler)
		r.Post("/auctions/{auctionId}/publish", h.PublishAuctionHandler)
		r.Post("/auctions/{auctionId}/activate", h.ActivateAuctionHandler)
		r.Post("/auctions/{auctionId}/close", h.CloseAuctionHandler)
		r.Post("/auctions/{auctionId}/invoices", h.GenerateInvoicesHandler)
		r.Post("/auctions/{auctionId}/lots/import", h.ImportLotsCSVHandler)
		r.Post("/auctions/{auctionId}/images/match", h.MatchImagesHandler)
		r.Put("/images/{mappingId}/assign", h.ManualAssignImageHandler)
	})

	return r
}
