package web

import (
	"encoding/json"
	"net/http"

	"bloodbank/internal/core"
)

// listStocks handles GET /api/stocks: every aggregate, ascending by
// blood-type code. Timestamps serialize as RFC 3339.
func (h *Handler) listStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.svc.GetStocks(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if stocks == nil {
		stocks = []core.StockAggregate{}
	}
	writeJSON(w, map[string]any{"stocks": stocks})
}

// addStock handles POST /api/stocks.
func (h *Handler) addStock(w http.ResponseWriter, r *http.Request) {
	var req core.AddStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	agg, err := h.svc.AddStock(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, agg)
}

// issueStock handles POST /api/stocks/issue.
func (h *Handler) issueStock(w http.ResponseWriter, r *http.Request) {
	var req core.IssueStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	result, err := h.svc.IssueStock(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// stockHistory handles GET /api/stocks/history?type=addition|issuance&bloodType=X.
func (h *Handler) stockHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.GetHistory(r.Context(),
		r.URL.Query().Get("bloodType"), r.URL.Query().Get("type"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.LedgerEntry{}
	}
	writeJSON(w, map[string]any{"history": entries})
}

// availableEntries handles GET /api/stocks/available?bloodType=X: the
// non-exhausted addition entries an operator selects from before issuing,
// earliest expiry first.
func (h *Handler) availableEntries(w http.ResponseWriter, r *http.Request) {
	bloodType := r.URL.Query().Get("bloodType")
	if bloodType == "" {
		writeError(w, r, "bloodType query parameter is required", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	entries, err := h.svc.GetAvailableEntries(r.Context(), bloodType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.LedgerEntry{}
	}
	writeJSON(w, map[string]any{"entries": entries})
}
