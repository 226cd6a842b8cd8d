package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// LogHandler serves the operator message history.
type LogHandler struct {
	logs   domain.AgentLogStore
	wallet string
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler scoped to wallet by default.
func NewLogHandler(logs domain.AgentLogStore, wallet string, logger *slog.Logger) *LogHandler {
	return &LogHandler{logs: logs, wallet: wallet, logger: logHandler(logger, "logs")}
}

type logView struct {
	ID        string    `json:"id"`
	Wallet    string    `json:"wallet_address"`
	Agent     string    `json:"agent_name"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ListLogs returns recent agent messages, newest first.
// GET /api/logs?agent=...&level=ALERT&limit=50&since=...
func (h *LogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since and until must be RFC 3339 timestamps")
		return
	}
	q := r.URL.Query()
	filter := domain.LogFilter{
		WalletAddress: h.wallet,
		AgentName:     q.Get("agent"),
		Level:         domain.LogLevel(strings.ToUpper(q.Get("level"))),
		ListOpts:      opts,
	}
	if v := q.Get("wallet"); v != "" {
		filter.WalletAddress = v
	}

	entries, err := h.logs.List(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list logs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}

	views := make([]logView, 0, len(entries))
	for _, e := range entries {
		views = append(views, logView{
			ID:        e.ID,
			Wallet:    e.WalletAddress,
			Agent:     e.AgentName,
			Level:     string(e.Level),
			Message:   e.Message,
			CreatedAt: e.CreatedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": views})
}
