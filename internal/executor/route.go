// Package executor turns decisions into trades: AMM swaps on an EVM chain
// and market orders on the perpetuals venue.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/platform/evm"
)

// Quoter prices a swap path on the AMM router.
type Quoter interface {
	GetAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, routes []evm.Route) ([]*big.Int, error)
}

// RouteCandidate is one single-hop pool classification to probe.
type RouteCandidate struct {
	Name    string
	Stable  bool
	Factory common.Address
}

// DefaultCandidates returns the probe order: volatile V2 pool, stable V2
// pool, then volatile concentrated-liquidity pool.
func DefaultCandidates(v2Factory, clFactory common.Address) []RouteCandidate {
	return []RouteCandidate{
		{Name: "volatile-v2", Stable: false, Factory: v2Factory},
		{Name: "stable-v2", Stable: true, Factory: v2Factory},
		{Name: "volatile-cl", Stable: false, Factory: clFactory},
	}
}

// Quote is an accepted route with its expected output.
type Quote struct {
	AmountOut *big.Int
	Routes    []evm.Route
	Candidate string
}

// RouteResolver picks the first candidate with a positive quote. It does not
// compare prices across candidates.
type RouteResolver struct {
	quoter     Quoter
	router     common.Address
	candidates []RouteCandidate
	logger     *slog.Logger
}

// NewRouteResolver creates a resolver that probes candidates in order.
func NewRouteResolver(quoter Quoter, router common.Address, candidates []RouteCandidate, logger *slog.Logger) *RouteResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteResolver{
		quoter:     quoter,
		router:     router,
		candidates: candidates,
		logger:     logger.With(slog.String("component", "route-resolver")),
	}
}

// Resolve returns the first viable route for amountIn of tokenIn. Quote
// errors, reverts included, count as no liquidity on that candidate.
func (r *RouteResolver) Resolve(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (Quote, error) {
	for _, c := range r.candidates {
		routes := []evm.Route{{From: tokenIn, To: tokenOut, Stable: c.Stable, Factory: c.Factory}}
		amounts, err := r.quoter.GetAmountsOut(ctx, r.router, amountIn, routes)
		if err != nil {
			r.logger.DebugContext(ctx, "candidate failed",
				slog.String("candidate", c.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(amounts) == 0 || amounts[len(amounts)-1] == nil || amounts[len(amounts)-1].Sign() <= 0 {
			continue
		}
		return Quote{AmountOut: amounts[len(amounts)-1], Routes: routes, Candidate: c.Name}, nil
	}
	return Quote{}, domain.E(domain.KindInsufficient, "executor: resolve route",
		fmt.Errorf("%w: %s -> %s", domain.ErrNoLiquidity, tokenIn.Hex(), tokenOut.Hex()))
}
