package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/Louguiman/tekra-store-sub002/internal/platform/middleware"
)

// NewRouter assembles the full HTTP surface. auth resolves the acting
// principal from bearer tokens; guard builds the access decision point's
// middleware for each route's required-role set from RoutePolicy. Health
// and metrics stay outside the guard so probes and scrapers need no
// credentials.
func NewRouter(h *Handler, auth func(http.Handler) http.Handler, guard GuardFunc, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.Recovery(logger))
	r.Use(mw.RequestMeta)
	r.Use(mw.Logger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(protected chi.Router) {
		protected.Use(auth)
		h.Register(protected, guard)
	})

	return r
}
