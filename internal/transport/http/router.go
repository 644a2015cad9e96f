package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterDeps bundles the services and policies the router wires together.
type RouterDeps struct {
	Listings     ListingManager
	Reservations Reserver
	Orders       OrderCreator
	Settlements  Reconciler
	// ReserveLimiter guards the reservation endpoint; nil means no limit.
	ReserveLimiter func(http.Handler) http.Handler
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/health", HealthHandler)

	r.Route("/listings", func(r chi.Router) {
		r.Post("/", HandleCreateListing(deps.Listings))
		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/price", HandleUpdatePrice(deps.Listings))
			r.Post("/withdraw", HandleWithdraw(deps.Listings))
			r.Post("/relist", HandleRelist(deps.Listings))
			r.Post("/private-token", HandleRegenerateToken(deps.Listings))

			if deps.ReserveLimiter != nil {
				r.With(deps.ReserveLimiter).Post("/reserve", HandleReserve(deps.Reservations))
			} else {
				r.Post("/reserve", HandleReserve(deps.Reservations))
			}
			r.Get("/lock", HandleLockStatus(deps.Reservations))
			r.Post("/order", HandleCreateOrder(deps.Orders))
		})
	})

	r.Post("/webhooks/capture-completed", HandleCaptureCompleted(deps.Settlements))

	r.NotFound(NotFoundHandler().ServeHTTP)
	return r
}
