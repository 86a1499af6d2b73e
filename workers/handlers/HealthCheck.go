package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck fails only when the store is down; an unreachable ledger degrades
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res := &APIHealthResponse{Status: "ok", Store: "ok", Destination: "ok"}
	code := http.StatusOK

	if err := h.Records.Ping(ctx); err != nil {
		res.Status, res.Store = "error", err.Error()
		code = http.StatusServiceUnavailable
	}
	if err := h.Ledger.Ping(ctx); err != nil {
		res.Destination = err.Error()
		if code == http.StatusOK {
			res.Status = "degraded"
		}
	}
	responseJSON(w, res, code)
}
