package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/analytics"
	"github.com/hedgeledger/core/internal/checkpoint"
	"github.com/hedgeledger/core/internal/config"
	"github.com/hedgeledger/core/internal/deposits"
	"github.com/hedgeledger/core/internal/players"
	"github.com/hedgeledger/core/internal/pools"
	"github.com/hedgeledger/core/internal/store"
)

// Server holds every dependency a handler needs, constructed once at
// startup and threaded through — the AppContext pattern spec §9 calls for
// in place of ad-hoc singletons.
type Server struct {
	db            *gorm.DB
	analyticsAPI  *analytics.API
	players       *players.Store
	deposits      *deposits.Reconciler
	garden        *deposits.GardenFlow
	checkpoints   *checkpoint.Store
	poolDirectory *pools.Directory
	sessionSecret []byte
	env           config.EnvBundle
	limiter       *IPRateLimiter
}

// NewServer wires every dependency into a chi router (spec §4.K: "the
// pack's orbas1-Synnergy repo and the robinsonking-hcData reference file
// both reach for go-chi/chi for exactly this kind of read-side REST
// facade").
func NewServer(
	db *store.DB,
	analyticsAPI *analytics.API,
	playerStore *players.Store,
	depositReconciler *deposits.Reconciler,
	gardenFlow *deposits.GardenFlow,
	checkpoints *checkpoint.Store,
	poolDirectory *pools.Directory,
	env config.EnvBundle,
	rateLimit config.RateLimitPolicy,
) *Server {
	return &Server{
		db:            db.DB,
		analyticsAPI:  analyticsAPI,
		players:       playerStore,
		deposits:      depositReconciler,
		garden:        gardenFlow,
		checkpoints:   checkpoints,
		poolDirectory: poolDirectory,
		sessionSecret: []byte(env.SessionSecret),
		env:           env,
		limiter:       NewIPRateLimiter(rateLimit),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rateLimitMiddleware(s.limiter))

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/analytics", func(r chi.Router) {
		r.Use(s.requireSession(true))
		r.Get("/overview", s.handleAnalyticsOverview)
		r.Get("/players", s.handleAnalyticsPlayers)
		r.Get("/deposits", s.handleAnalyticsDeposits)
		r.Get("/query-breakdown", s.handleQueryBreakdown)
	})

	r.Route("/api/admin/users", func(r chi.Router) {
		r.Use(s.requireSession(true))
		r.Get("/", s.handleAdminUsersList)
		r.Patch("/{id}/tier", s.handleAdminUserTier)
		r.Delete("/{discordId}", s.handleAdminUserDelete)
		r.Post("/{id}/refresh-snapshot", s.handleAdminRefreshSnapshot)
		r.Post("/{id}/reclassify", s.handleAdminReclassify)
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(s.requireSession(false))
		r.Get("/summary/{discordId}", s.handleUserSummary)
		r.Patch("/settings/{discordId}", s.handleUserSettings)
	})

	r.Route("/api/debug", func(r chi.Router) {
		r.Use(s.requireSession(true))
		r.Post("/clear-pool-cache", s.handleClearPoolCache)
		r.Post("/refresh-pool-cache", s.handleRefreshPoolCache)
		r.Post("/restart-monitor", s.handleRestartMonitor)
		r.Get("/system-health", s.handleSystemHealth)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}
