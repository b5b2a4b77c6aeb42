// Package app assembles the HTTP surface from the wired handlers.
package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/earnings"
	"github.com/noah-isme/backend-khana/internal/health"
	"github.com/noah-isme/backend-khana/internal/menu"
	"github.com/noah-isme/backend-khana/internal/obs"
	"github.com/noah-isme/backend-khana/internal/order"
	"github.com/noah-isme/backend-khana/internal/partner"
	"github.com/noah-isme/backend-khana/internal/pricing"
	"github.com/noah-isme/backend-khana/internal/promo"
	"github.com/noah-isme/backend-khana/internal/ratelimit"
	"github.com/noah-isme/backend-khana/internal/security"
	"github.com/noah-isme/backend-khana/internal/settlement"
)

// Router groups everything the HTTP surface needs.
type Router struct {
	Log            zerolog.Logger
	CORSOrigins    []string
	Metrics        *obs.HTTPMetrics
	TracingEnabled bool
	Idem           common.Idem
	Security       security.Headers
	BodyLimit      security.BodyLimit
	RateLimit      ratelimit.Guard

	Health     health.Handler
	Orders     *order.Handler
	Menu       *menu.Handler
	Earnings   *earnings.Handler
	Settings   *earnings.SettingsHandler
	Bands      *pricing.BandsHandler
	Promos     *promo.Handler
	Partner    *partner.Handler
	Settlement *settlement.Handler
}

// Handler builds the chi router with the full middleware stack and route tree.
func (rt Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if rt.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if rt.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: rt.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: rt.Log}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.corsOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Actor-Id", "X-Actor-Role"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(rt.Security.Middleware)
	r.Use(rt.BodyLimit.Middleware)
	r.Use(common.ActorFromHeaders)
	r.Use(rt.RateLimit.Middleware)

	if rt.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", rt.Health.Live)
	r.Get("/health/ready", rt.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Post("/pricing/quote", rt.Orders.Quote)
		v.Get("/dishes/{id}", rt.Menu.Get)

		v.Route("/orders", func(o chi.Router) {
			o.With(rt.Idem.Middleware).Post("/", rt.Orders.Place)
			o.Get("/{id}", rt.Orders.Get)
			o.Post("/{id}/status", rt.Orders.Transition)
			o.Patch("/{id}/status", rt.Orders.Transition)
			o.Post("/{id}/assign", rt.Orders.Assign)
		})

		v.Route("/drivers/{id}/earnings", func(d chi.Router) {
			d.Get("/", rt.Earnings.Get)
			d.With(rt.Idem.Middleware).Post("/", rt.Earnings.Create)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(common.RequireRole("admin"))

			admin.Post("/promos", rt.Promos.Create)
			admin.Get("/promos", rt.Promos.List)
			admin.Put("/promos/{code}", rt.Promos.Update)
			admin.Delete("/promos/{code}", rt.Promos.Delete)

			admin.With(rt.Idem.Middleware).Post("/drivers/{id}/settle", rt.Settlement.Settle)
			admin.Get("/drivers/{id}/settlements", rt.Settlement.History)

			admin.Post("/partner-settlements/mark-settled", rt.Partner.MarkSettled)
			admin.Get("/hotels/{id}/settlements", rt.Partner.ListForHotel)

			admin.Put("/settings/driver", rt.Settings.Upsert)
			admin.Get("/settings/delivery-bands", rt.Bands.Get)
			admin.Put("/settings/delivery-bands", rt.Bands.Upsert)

			admin.Put("/dishes/{id}", rt.Menu.Upsert)
		})
	})

	return r
}

func (rt Router) corsOrigins() []string {
	if len(rt.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return rt.CORSOrigins
}
