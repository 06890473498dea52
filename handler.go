package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"vietnam-stock-trader/config"
	"vietnam-stock-trader/models"
)

// APIHandler handles HTTP API requests
type APIHandler struct {
	app *App
	cfg *config.Config
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(app *App, cfg *config.Config) *APIHandler {
	return &APIHandler{app: app, cfg: cfg}
}

// handleIndex serves the rendered dashboard page.
func (h *APIHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := os.ReadFile(h.cfg.Store.DashboardPath)
	if err != nil {
		h.jsonError(w, "dashboard not rendered yet, run a tick first", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleHealth returns the health status of the application
func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"archive": "not_configured",
		},
	}

	if h.app.HasArchive() {
		if err := h.app.ArchiveHealth(r.Context()); err == nil {
			status["services"].(map[string]string)["archive"] = "connected"
		} else {
			status["services"].(map[string]string)["archive"] = "disconnected"
			status["status"] = "degraded"
		}
	}

	h.jsonResponse(w, status)
}

// handleGetPortfolio returns the full portfolio document.
func (h *APIHandler) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Portfolio()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.jsonResponse(w, p)
}

// handleGetPositions returns open positions.
func (h *APIHandler) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Portfolio()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.jsonResponse(w, map[string]interface{}{
		"positions": p.Positions,
		"closed":    p.ClosedPositions,
		"count":     len(p.Positions),
	})
}

// handleGetTrades returns the trade log, newest first.
func (h *APIHandler) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Portfolio()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	limit := h.parseLimitParam(r, 100)

	trades := p.Trades
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	reversed := make([]models.Trade, len(trades))
	for i, t := range trades {
		reversed[len(trades)-1-i] = t
	}
	h.jsonResponse(w, reversed)
}

// handleGetHistory returns the portfolio value timeline.
func (h *APIHandler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Portfolio()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.jsonResponse(w, p.History)
}

// handleGetSignals returns recent archived signals.
func (h *APIHandler) handleGetSignals(w http.ResponseWriter, r *http.Request) {
	limit := h.parseLimitParam(r, 50)
	signals, err := h.app.Signals(r.Context(), limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonResponse(w, signals)
}

// handleAnalyze scores one symbol on demand, without mutating the portfolio.
func (h *APIHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Try form value
		req.Symbol = r.FormValue("symbol")
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := h.validateSymbol(req.Symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sig, err := h.app.Analyze(r.Context(), req.Symbol)
	if err != nil {
		if models.KindOf(err) == models.FailureSchema {
			h.jsonError(w, fmt.Sprintf("%s is not analyzable: %v", req.Symbol, err), http.StatusUnprocessableEntity)
			return
		}
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonResponse(w, sig)
}

// handleTick triggers one decision cycle outside the schedule.
func (h *APIHandler) handleTick(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Tick(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if models.KindOf(err) == models.FailureTransient {
			status = http.StatusBadGateway
		}
		h.jsonError(w, err.Error(), status)
		return
	}
	h.jsonResponse(w, map[string]interface{}{
		"status":         "ok",
		"total_value":    p.TotalValue(),
		"cash":           p.Cash,
		"open_positions": len(p.Positions),
		"last_updated":   p.LastUpdated,
	})
}

// Helper functions

func (h *APIHandler) validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 10 {
		return fmt.Errorf("symbol too long (max 10 characters)")
	}

	matched, _ := regexp.MatchString("^[A-Z0-9]+$", symbol)
	if !matched {
		return fmt.Errorf("invalid symbol format (alphanumeric only)")
	}

	return nil
}

func (h *APIHandler) parseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

func (h *APIHandler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *APIHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
