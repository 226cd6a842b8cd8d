package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/strategy"
)

// AgentRunner lists agents and starts runs in the background.
type AgentRunner interface {
	Agents() []strategy.AgentInfo
	// Trigger starts one tick (or unwind) of the named agent and returns
	// without waiting for it.
	Trigger(name string, unwind bool) error
}

// AgentHandler serves agent listing and run triggers.
type AgentHandler struct {
	runner AgentRunner
	logger *slog.Logger
}

// NewAgentHandler creates an AgentHandler.
func NewAgentHandler(runner AgentRunner, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{runner: runner, logger: logHandler(logger, "agents")}
}

type agentView struct {
	Name       string `json:"name"`
	Venue      string `json:"venue"`
	Ticker     string `json:"ticker"`
	BaseToken  string `json:"base_token"`
	QuoteToken string `json:"quote_token"`
	Signal     string `json:"signal"`
}

// ListAgents returns the registered agents.
// GET /api/agents
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	infos := h.runner.Agents()
	views := make([]agentView, 0, len(infos))
	for _, i := range infos {
		views = append(views, agentView{
			Name:       i.Name,
			Venue:      string(i.Venue),
			Ticker:     i.Ticker,
			BaseToken:  i.BaseToken,
			QuoteToken: i.QuoteToken,
			Signal:     i.Signal,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": views})
}

// Tick starts one tick of an agent.
// POST /api/agents/{name}/tick
func (h *AgentHandler) Tick(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, false)
}

// Unwind starts an unwind of an agent.
// POST /api/agents/{name}/unwind
func (h *AgentHandler) Unwind(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, true)
}

func (h *AgentHandler) trigger(w http.ResponseWriter, r *http.Request, unwind bool) {
	name := r.PathValue("name")
	op := "tick"
	if unwind {
		op = "unwind"
	}

	if err := h.runner.Trigger(name, unwind); err != nil {
		if errors.Is(err, domain.ErrUnknownAgent) {
			writeError(w, http.StatusNotFound, "unknown agent")
			return
		}
		h.logger.ErrorContext(r.Context(), "trigger failed",
			slog.String("agent", name),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"agent": name, "op": op, "status": "started"})
}
