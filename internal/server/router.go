// Package server builds the HTTP router and runs the listener.
// router.go is the single route table: every endpoint and the middleware
// guarding it is listed here.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/admin"
	"lexdesk.app/credits/internal/features/consumption"
	"lexdesk.app/credits/internal/features/ledger"
	"lexdesk.app/credits/internal/features/purchases"
	"lexdesk.app/credits/internal/features/referrals"
	"lexdesk.app/credits/internal/features/tasks"
	"lexdesk.app/credits/internal/features/toolcost"
	"lexdesk.app/credits/internal/server/middleware"
)

// Handlers groups every feature handler the router serves.
type Handlers struct {
	Ledger      *ledger.Handler
	ToolCosts   *toolcost.Handler
	Consumption *consumption.Handler
	Admin       *admin.Handler
	Purchases   *purchases.Handler
	Referrals   *referrals.Handler
	Tasks       *tasks.Handler
	Realtime    http.Handler
}

// Guards are the access checks wired into the router.
type Guards struct {
	RateLimiter *middleware.RateLimiter
	AdminKey    *admin.KeyVerifier
	CORSOrigins []string
	// Health reports store readiness; nil means always ready.
	Health func(r *http.Request) error
}

// NewRouter returns the chi router for the whole API.
func NewRouter(h Handlers, g Guards) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   g.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.AccountHeader, admin.KeyHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(g.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Payment provider, authenticated by shared secret.
		r.With(chimw.Timeout(30*time.Second)).Post("/webhooks/payments", h.Purchases.HandleWebhook)

		// Caller routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAccount)
			if g.RateLimiter != nil {
				r.Use(g.RateLimiter.Limit)
			}

			r.Get("/ws", h.Realtime.ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(30 * time.Second))

				r.Get("/balance", h.Ledger.HandleBalance)
				r.Get("/transactions", h.Ledger.HandleTransactions)

				r.Get("/tools", h.ToolCosts.HandleList)
				r.Post("/consume", h.Consumption.HandleConsume)

				r.Get("/packages", h.Purchases.HandlePackages)
				r.Post("/checkout", h.Purchases.HandleCheckout)

				r.Get("/referrals/code", h.Referrals.HandleCode)
				r.Post("/referrals/redeem", h.Referrals.HandleRedeem)

				r.Get("/tasks", h.Tasks.HandleList)
				r.Post("/tasks/{key}/claim", h.Tasks.HandleClaim)
			})
		})

		// Admin routes.
		r.Route("/admin", func(r chi.Router) {
			r.Use(g.AdminKey.Middleware)
			r.Use(chimw.Timeout(30 * time.Second))

			r.Post("/grants", h.Admin.HandleGrant)
			r.Post("/tool-costs/refresh", h.ToolCosts.HandleRefresh)
			r.Post("/tasks/{key}/progress", h.Tasks.HandleProgress)
			r.Get("/accounts/{id}/reconcile", h.Ledger.HandleReconcile)
		})
	})

	return r
}

func healthHandler(check func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r); err != nil {
				common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
