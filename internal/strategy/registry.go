package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// Agent names. They double as the strategy_name key of stored positions,
// so renaming one orphans its allocation.
const (
	ETHSpotAgent = "SentiChain ETH Agent on Base"
	BTCSpotAgent = "SentiChain BTC Agent on Base"
	BTCPerpAgent = "SentiChain BTC Agent on Hyperliquid"
	ETHPerpAgent = "SentiChain ETH Agent on Hyperliquid"
)

// Registry manages a named collection of agents that can be looked up at
// runtime. It is safe for concurrent use.
type Registry struct {
	agents map[string]Agent
	mu     sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
	}
}

// DefaultRegistry returns a Registry holding the four built-in agents.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewSpotAgent(ETHSpotAgent, "ETH", "WETH"))
	r.Register(NewSpotAgent(BTCSpotAgent, "BTC", "cbBTC"))
	r.Register(NewPerpAgent(BTCPerpAgent, "BTC", "BTC", SignalCounts))
	r.Register(NewPerpAgent(ETHPerpAgent, "ETH", "ETH", SignalDirection))
	return r
}

// Register adds an agent under its name, replacing any previous one.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name()] = a
}

// Get retrieves an agent by name.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[name]
	if !ok {
		return nil, domain.E(domain.KindInvariant, "strategy: get", fmt.Errorf("%q: %w", name, domain.ErrUnknownAgent))
	}
	return a, nil
}

// List returns the names of all registered agents in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for n := range r.agents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ListInfo returns descriptions of all registered agents, sorted by name.
func (r *Registry) ListInfo() []AgentInfo {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]AgentInfo, 0, len(names))
	for _, n := range names {
		if a, ok := r.agents[n]; ok {
			infos = append(infos, a.Info())
		}
	}
	return infos
}
