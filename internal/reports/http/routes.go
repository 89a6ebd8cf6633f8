package reportshttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/clinic-reports/internal/platform/httpx"
)

// MountRoutes registers the report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	heavy := limiter(30, time.Minute)
	admin := limiter(5, time.Minute)

	r.Route("/reports", func(rr chi.Router) {
		rr.Get("/summary", h.handleSummary)
		rr.Get("/compare", h.handleCompare)
		rr.Get("/rollups/{dimension}", h.handleRollup)
		rr.Get("/audit", h.handleAuditList)
		rr.Group(func(gr chi.Router) {
			gr.Use(heavy)
			gr.Get("/trend", h.handleTrend)
			gr.Get("/overview", h.handleOverview)
		})
		rr.Group(func(gr chi.Router) {
			gr.Use(admin, httpx.RequireToken(h.adminHash))
			gr.Delete("/audit", h.handleAuditReset)
			gr.Post("/cache/bump", h.handleCacheBump)
		})
	})
}

func limiter(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
		}),
	)
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
