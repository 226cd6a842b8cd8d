package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	mode   string
	wallet string
	now    func() time.Time
}

// NewHealthHandler creates a HealthHandler reporting mode and wallet.
func NewHealthHandler(mode, wallet string) *HealthHandler {
	return &HealthHandler{mode: mode, wallet: wallet, now: time.Now}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"mode":      h.mode,
		"wallet":    h.wallet,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
