package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/remind/internal/api"
	"github.com/cloo-solutions/remind/internal/ledger"
)

type LedgerStats interface {
	Stats(ctx context.Context) (*ledger.Stats, error)
}

// Check pings one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	ledger LedgerStats
	checks map[string]Check
}

func NewHealthHandler(ledger LedgerStats, checks map[string]Check) *HealthHandler {
	return &HealthHandler{ledger: ledger, checks: checks}
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Ledger *ledger.Stats     `json:"ledger,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK

	if h.ledger != nil {
		stats, err := h.ledger.Stats(ctx)
		if err != nil {
			resp.Checks["ledger"] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["ledger"] = "ok"
			resp.Ledger = stats
		}
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	api.Success(w, status, resp)
}
