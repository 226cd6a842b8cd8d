package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/platform/evm"
)

// ChainClient is the EVM surface the spot pipeline needs.
type ChainClient interface {
	Address() common.Address
	TokenBalance(ctx context.Context, token, owner common.Address) (evm.TokenBalance, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	PendingNonce(ctx context.Context, addr common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, req evm.TxRequest) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// SpotConfig holds per-network swap parameters.
type SpotConfig struct {
	Router          common.Address
	ApproveGasLimit uint64
	SwapGasLimit    uint64
	SwapDeadline    time.Duration
	ExplorerURL     string
}

// SwapRequest is one exact-input swap.
type SwapRequest struct {
	From        common.Address
	To          common.Address
	FromSymbol  string
	ToSymbol    string
	AmountRaw   *big.Int
	AmountHuman float64
}

// SwapResult reports the outcome of Execute.
type SwapResult struct {
	Success   bool
	TxHash    common.Hash
	Approved  bool
	AmountOut *big.Int
	Err       error
}

// SpotPipeline executes swaps as at most two transactions: an exact-amount
// approval when the router's allowance is short, then the swap.
//
// Agents sharing a wallet share its nonce sequence, token balances and
// router allowances. With a wallet lock set, Execute holds it from the
// balance read through the last receipt, so swaps from one wallet never
// interleave, across processes too when the lock is Redis-backed.
type SpotPipeline struct {
	chain    ChainClient
	resolver *RouteResolver
	cfg      SpotConfig
	logger   *slog.Logger
	now      func() time.Time

	locks    domain.LockManager
	lockTTL  time.Duration
	lockPoll time.Duration
}

// NewSpotPipeline creates a SpotPipeline.
func NewSpotPipeline(chain ChainClient, resolver *RouteResolver, cfg SpotConfig, logger *slog.Logger) *SpotPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SwapDeadline <= 0 {
		cfg.SwapDeadline = 15 * time.Minute
	}
	return &SpotPipeline{
		chain:    chain,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "spot-pipeline")),
		now:      time.Now,
		lockPoll: 250 * time.Millisecond,
	}
}

// WithWalletLock serialises Execute per wallet through locks. ttl bounds how
// long a crashed holder can block the wallet; it must exceed one approval
// plus one swap confirmation.
func (p *SpotPipeline) WithWalletLock(locks domain.LockManager, ttl time.Duration) *SpotPipeline {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	p.locks, p.lockTTL = locks, ttl
	return p
}

// walletLockKey is the lock key for swaps from wallet.
func walletLockKey(wallet common.Address) string {
	return "spot-wallet:" + wallet.Hex()
}

// lockWallet waits until the wallet lock is free or ctx ends.
func (p *SpotPipeline) lockWallet(ctx context.Context, wallet common.Address) (func(), error) {
	if p.locks == nil {
		return func() {}, nil
	}
	key := walletLockKey(wallet)
	for {
		unlock, err := p.locks.Acquire(ctx, key, p.lockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			if domain.KindOf(err) == domain.KindUnknown {
				err = domain.E(domain.KindTransient, "executor: wallet lock", err)
			}
			return nil, err
		}
		t := time.NewTimer(p.lockPoll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, domain.E(domain.KindTransient, "executor: wallet lock", ctx.Err())
		case <-t.C:
		}
	}
}

// Execute runs resolve, allowance, approve, swap and confirm. Any failed
// step ends the pipeline; nothing is retried. A confirmed approval without
// a swap is left in place and picked up by the next run.
func (p *SpotPipeline) Execute(ctx context.Context, sink domain.MessageSink, req SwapRequest) SwapResult {
	fail := func(err error) SwapResult {
		domain.Errorf(ctx, sink, "Swap %s -> %s aborted: %v", req.FromSymbol, req.ToSymbol, err)
		return SwapResult{Err: err}
	}
	if req.AmountRaw == nil || req.AmountRaw.Sign() <= 0 {
		return fail(domain.E(domain.KindInsufficient, "executor: swap", errors.New("amount must be positive")))
	}
	wallet := p.chain.Address()

	unlock, err := p.lockWallet(ctx, wallet)
	if err != nil {
		return fail(fmt.Errorf("wallet busy: %w", err))
	}
	defer unlock()

	// Another swap from this wallet may have spent part of the balance the
	// caller sized this one from.
	bal, err := p.chain.TokenBalance(ctx, req.From, wallet)
	if err != nil {
		return fail(fmt.Errorf("read balance: %w", err))
	}
	if bal.Raw == nil || bal.Raw.Sign() <= 0 {
		return fail(domain.E(domain.KindInsufficient, "executor: swap",
			fmt.Errorf("no %s balance left", req.FromSymbol)))
	}
	if bal.Raw.Cmp(req.AmountRaw) < 0 {
		domain.Warnf(ctx, sink, "%s balance dropped to %g; swapping that instead of %g.",
			req.FromSymbol, bal.Human, req.AmountHuman)
		req.AmountRaw, req.AmountHuman = new(big.Int).Set(bal.Raw), bal.Human
	}

	domain.Infof(ctx, sink, "Preparing swap on router %s: %g %s -> %s.",
		p.cfg.Router.Hex(), req.AmountHuman, req.FromSymbol, req.ToSymbol)

	quote, err := p.resolver.Resolve(ctx, req.From, req.To, req.AmountRaw)
	if err != nil {
		domain.Warnf(ctx, sink, "No liquidity found for %s/%s. Cannot execute swap.", req.FromSymbol, req.ToSymbol)
		return SwapResult{Err: err}
	}
	domain.Infof(ctx, sink, "Found liquidity via %s route. Expected output: %s", quote.Candidate, quote.AmountOut)

	allowance, err := p.chain.Allowance(ctx, req.From, wallet, p.cfg.Router)
	if err != nil {
		return fail(fmt.Errorf("read allowance: %w", err))
	}

	nonce, gasPrice, err := p.txParams(ctx, wallet)
	if err != nil {
		return fail(err)
	}

	approved := false
	if allowance.Cmp(req.AmountRaw) < 0 {
		domain.Infof(ctx, sink, "Approving router for exactly %s %s (current allowance %s).",
			req.AmountRaw, req.FromSymbol, allowance)
		data, err := evm.PackApprove(p.cfg.Router, req.AmountRaw)
		if err != nil {
			return fail(err)
		}
		hash, err := p.sendAndConfirm(ctx, evm.TxRequest{
			To: req.From, Data: data, Nonce: nonce, GasLimit: p.cfg.ApproveGasLimit, GasPrice: gasPrice,
		})
		if err != nil {
			return fail(fmt.Errorf("approve: %w", err))
		}
		domain.Infof(ctx, sink, "Approval confirmed: %s", p.txLink(hash))
		approved = true

		// The swap must follow the confirmed approval's nonce.
		if nonce, gasPrice, err = p.txParams(ctx, wallet); err != nil {
			return fail(err)
		}
	}

	deadline := big.NewInt(p.now().Add(p.cfg.SwapDeadline).Unix())
	data, err := evm.PackSwapExactTokensForTokens(req.AmountRaw, new(big.Int), quote.Routes, wallet, deadline)
	if err != nil {
		return fail(err)
	}
	hash, err := p.sendAndConfirm(ctx, evm.TxRequest{
		To: p.cfg.Router, Data: data, Nonce: nonce, GasLimit: p.cfg.SwapGasLimit, GasPrice: gasPrice,
	})
	if err != nil {
		res := fail(fmt.Errorf("swap: %w", err))
		res.Approved = approved
		res.TxHash = hash
		return res
	}

	p.logger.InfoContext(ctx, "swap confirmed",
		slog.String("from", req.FromSymbol),
		slog.String("to", req.ToSymbol),
		slog.String("amount_in", req.AmountRaw.String()),
		slog.String("tx", hash.Hex()),
	)
	domain.Alertf(ctx, sink, "Swap confirmed: %g %s -> %s. %s",
		req.AmountHuman, req.FromSymbol, req.ToSymbol, p.txLink(hash))
	return SwapResult{Success: true, TxHash: hash, Approved: approved, AmountOut: quote.AmountOut}
}

func (p *SpotPipeline) txParams(ctx context.Context, wallet common.Address) (uint64, *big.Int, error) {
	nonce, err := p.chain.PendingNonce(ctx, wallet)
	if err != nil {
		return 0, nil, fmt.Errorf("read nonce: %w", err)
	}
	gasPrice, err := p.chain.GasPrice(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("read gas price: %w", err)
	}
	return nonce, gasPrice, nil
}

// sendAndConfirm broadcasts req and waits for a successful receipt. The
// hash is returned with the error when the transaction was sent.
func (p *SpotPipeline) sendAndConfirm(ctx context.Context, req evm.TxRequest) (common.Hash, error) {
	hash, err := p.chain.SendTransaction(ctx, req)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := p.chain.WaitReceipt(ctx, hash)
	if err != nil {
		return hash, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, domain.E(domain.KindOnChain, "executor: receipt",
			fmt.Errorf("transaction %s reverted", hash.Hex()))
	}
	return hash, nil
}

func (p *SpotPipeline) txLink(hash common.Hash) string {
	if p.cfg.ExplorerURL == "" {
		return hash.Hex()
	}
	return strings.TrimRight(p.cfg.ExplorerURL, "/") + "/tx/" + hash.Hex()
}
