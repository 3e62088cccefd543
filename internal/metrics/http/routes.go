package metricshttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/agencyops/agencyops/internal/platform/httpx"
)

// MountRoutes registers the metrics API onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "export rate limit exceeded")
		}),
	)

	r.Route("/api", func(api chi.Router) {
		api.Get("/dashboard-data", h.handleDashboardData)
		api.Get("/revenue-chart", h.handleRevenueChart)
		api.Get("/monthly/{kind}", h.handleMonthly)
		api.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/dashboard-data/export.csv", h.handleExportCSV)
			gr.Get("/dashboard-data/export.xlsx", h.handleExportXLSX)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key + ":" + r.URL.Query().Get("company_id"), nil
}
