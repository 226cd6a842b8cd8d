package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	positions domain.PositionStore
	wallet    string
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler. wallet is used when the
// request does not name one.
func NewPositionHandler(positions domain.PositionStore, wallet string, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		wallet:    wallet,
		logger:    logHandler(logger, "positions"),
	}
}

type positionView struct {
	WalletAddress      string    `json:"wallet_address"`
	StrategyName       string    `json:"strategy_name"`
	Ticker             string    `json:"ticker"`
	BaseToken          string    `json:"base_token"`
	QuoteToken         string    `json:"quote_token"`
	AllocatedAmount    float64   `json:"allocated_amount"`
	AllocatedAmountRaw string    `json:"allocated_amount_raw"`
	CurrentSide        string    `json:"current_side"`
	LastUpdatedAt      time.Time `json:"last_updated_at"`
}

func newPositionView(p domain.Position) positionView {
	raw := "0"
	if p.AllocatedAmountRaw != nil {
		raw = p.AllocatedAmountRaw.String()
	}
	return positionView{
		WalletAddress:      p.WalletAddress,
		StrategyName:       p.StrategyName,
		Ticker:             p.Ticker,
		BaseToken:          p.BaseToken,
		QuoteToken:         p.QuoteToken,
		AllocatedAmount:    p.AllocatedAmount,
		AllocatedAmountRaw: raw,
		CurrentSide:        p.CurrentSide,
		LastUpdatedAt:      p.LastUpdatedAt.UTC(),
	}
}

// ListPositions returns every stored position for a wallet.
// GET /api/positions?wallet=0x...
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		wallet = h.wallet
	}
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required")
		return
	}

	positions, err := h.positions.ListByWallet(r.Context(), wallet)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list positions failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, newPositionView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": views})
}
