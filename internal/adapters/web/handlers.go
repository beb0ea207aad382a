package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bloodbank/internal/core"
)

// Handler holds the inventory service and the chi router.
type Handler struct {
	svc    core.InventoryService
	router chi.Router
	log    *slog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc core.InventoryService, allowedOrigins string, log *slog.Logger) http.Handler {
	h := &Handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// ── Stock endpoints ───────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/stocks", h.listStocks)
		r.Post("/api/stocks", h.addStock)
		r.Post("/api/stocks/issue", h.issueStock)
		r.Get("/api/stocks/history", h.stockHistory)
		r.Get("/api/stocks/available", h.availableEntries)
	})

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
