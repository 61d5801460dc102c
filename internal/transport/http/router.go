package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodia/pkg/platform/httputil"
)

// ReadyCheck reports whether one dependency is reachable. Readiness runs all
// of them and fails on the first refusal.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Router wires the admin API. The configured middleware chain guards the
// admin surface; health, readiness and metrics stay outside it so probes and
// scrapers need no tokens.
type Router struct {
	erasure *ErasureHandler
	audit   *AuditHandler
	chain   []func(http.Handler) http.Handler
	ready   []ReadyCheck
}

// NewRouter builds the router from its handlers and the middleware chain
// assembled from config.
func NewRouter(erasure *ErasureHandler, audit *AuditHandler, chain []func(http.Handler) http.Handler, ready ...ReadyCheck) *Router {
	return &Router{
		erasure: erasure,
		audit:   audit,
		chain:   chain,
		ready:   ready,
	}
}

// Handler returns the complete HTTP handler.
func (rt *Router) Handler() http.Handler {
	root := chi.NewRouter()

	root.Get("/healthz", rt.handleHealthz)
	root.Get("/readyz", rt.handleReadyz)
	root.Method(http.MethodGet, "/metrics", promhttp.Handler())

	admin := chi.NewRouter()
	admin.Use(rt.chain...)
	rt.erasure.Register(admin)
	rt.audit.Register(admin)
	root.Mount("/", admin)

	return root
}

func (rt *Router) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, rc := range rt.ready {
		if err := rc.Check(ctx); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"check":  rc.Name,
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
