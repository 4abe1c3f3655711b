package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crateclash/battle-backend/internal/bots"
	"github.com/crateclash/battle-backend/internal/registry"
	"github.com/crateclash/battle-backend/internal/store"
	"github.com/crateclash/battle-backend/internal/ws"
)

// Deps is everything the HTTP surface needs. Store is read directly only to
// serve battles the registry has already retired.
type Deps struct {
	Registry *registry.Registry
	Store    store.Store
	Bots     *bots.Controller
	Logger   *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/battles", CreateBattle(d))
	r.Get("/battles/{id}", GetBattle(d))
	r.Post("/battles/{id}/join", JoinBattle(d))
	r.Post("/battles/{id}/leave", LeaveBattle(d))
	r.Post("/battles/{id}/start", StartBattle(d))
	r.Post("/battles/{id}/cancel", CancelBattle(d))

	r.Get("/ws", ws.Handler(d.Registry))
	r.Get("/healthz", Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
