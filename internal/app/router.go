package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/martpos/martpos/internal/auth"
	"github.com/martpos/martpos/internal/billing"
	"github.com/martpos/martpos/internal/billing/returns"
	"github.com/martpos/martpos/internal/cart"
	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/ledger"
	"github.com/martpos/martpos/internal/loyalty"
	"github.com/martpos/martpos/internal/observability"
	"github.com/martpos/martpos/internal/promo"
	"github.com/martpos/martpos/internal/receiving"
	"github.com/martpos/martpos/internal/shared"
	"github.com/martpos/martpos/internal/users"
	"github.com/martpos/martpos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	RoleResolver   shared.RoleResolver

	AuthHandler      *auth.Handler
	CatalogHandler   *catalog.Handler
	CartHandler      *cart.Handler
	BillingHandler   *billing.Handler
	ReturnsHandler   *returns.Handler
	LoyaltyHandler   *loyalty.Handler
	ReceivingHandler *receiving.Handler
	InventoryHandler *ledger.Handler
	PromoHandler     *promo.Handler
	UsersHandler     *users.Handler
	JobHandler       *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router for the POS API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Checkout surface, any logged-in cashier.
	r.Group(func(r chi.Router) {
		r.Use(RequireSession)
		params.CartHandler.MountRoutes(r)
		params.BillingHandler.MountRoutes(r)
		params.ReturnsHandler.MountRoutes(r)
	})

	// Thin lookup/CRUD surface. Reads are open to the floor; customer and
	// gift card management rides along with the cashier session.
	params.CatalogHandler.MountRoutes(r)
	params.LoyaltyHandler.MountRoutes(r)

	// Back-office surface, manager only.
	r.Group(func(r chi.Router) {
		r.Use(RequireSession)
		r.Use(shared.RequireRole(params.RoleResolver, params.Logger, users.RoleManager))
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/promotions", params.PromoHandler.MountRoutes)
		params.ReceivingHandler.MountRoutes(r)
		params.UsersHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
