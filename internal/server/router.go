package server

import (
	"log/slog"
	"net/http"
	"time"

	"crowdstack-backend/internal/config"
	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health        handler.HealthHandler
	Docs          handler.DocsHandler
	Registrations handler.RegistrationHandler
	Checkins      handler.CheckinHandler
	Promoters     handler.PromoterHandler
	Commissions   handler.CommissionHandler
	Payouts       handler.PayoutHandler
	GuestFlags    handler.GuestFlagHandler
	Files         handler.FileHandler
}

// NewRouter wires HTTP routes and middleware.
func NewRouter(cfg config.Config, logger *slog.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(600, 1*time.Minute))

	h.Health.RegisterRoutes(r)
	h.Docs.RegisterRoutes(r)
	r.Method("GET", "/metrics", promhttp.Handler())

	// Public registration gets its own tighter per-IP budget.
	r.Group(func(pub chi.Router) {
		pub.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, 1*time.Minute))
		h.Registrations.RegisterPublicRoutes(pub)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(AuthMiddleware(cfg.JWTSecret))
		// door-level (door/venue/organizer/admin)
		pr.Group(func(dr chi.Router) {
			dr.Use(RequireRole(domain.RoleAdmin, domain.RoleOrganizer, domain.RoleVenue, domain.RoleDoor))
			h.Registrations.RegisterRoutes(dr)
			h.Checkins.RegisterRoutes(dr)
			h.GuestFlags.RegisterRoutes(dr)
		})
		// organizer-level (organizer/admin)
		pr.Group(func(mr chi.Router) {
			mr.Use(RequireRole(domain.RoleAdmin, domain.RoleOrganizer))
			h.Promoters.RegisterRoutes(mr)
			h.Commissions.RegisterRoutes(mr)
			h.Payouts.RegisterManagerRoutes(mr)
		})
		// payment marking (organizer/admin/promoter)
		pr.Group(func(pm chi.Router) {
			pm.Use(RequireRole(domain.RoleAdmin, domain.RoleOrganizer, domain.RolePromoter))
			h.Payouts.RegisterPaymentRoutes(pm)
			h.Files.RegisterRoutes(pm)
		})
	})

	return r
}
