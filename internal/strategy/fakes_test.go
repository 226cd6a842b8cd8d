package strategy_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentitrader/internal/cache/memory"
	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/executor"
	"github.com/alanyoungcy/sentitrader/internal/platform/evm"
	"github.com/alanyoungcy/sentitrader/internal/store/sqlite"
	"github.com/alanyoungcy/sentitrader/internal/strategy"
)

const testWallet = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

var (
	usdc = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	weth = common.HexToAddress("0x4200000000000000000000000000000000000006")
)

func bullish(n int) []domain.SentimentEvent {
	evs := make([]domain.SentimentEvent, n)
	for i := range evs {
		evs[i] = domain.SentimentEvent{Sentiment: "bullish", Event: "inflows"}
	}
	return evs
}

func bearish(n int) []domain.SentimentEvent {
	evs := make([]domain.SentimentEvent, n)
	for i := range evs {
		evs[i] = domain.SentimentEvent{Sentiment: "Bearish", Event: "outflows"}
	}
	return evs
}

type fakeSignals struct {
	events    []domain.SentimentEvent
	eventsErr error
	signal    *domain.TradingSignal
	note      string
	noteErr   error
}

func (f *fakeSignals) FetchEvents(context.Context, string) ([]domain.SentimentEvent, error) {
	return f.events, f.eventsErr
}

func (f *fakeSignals) FetchTradingSignal(context.Context, string) (*domain.TradingSignal, error) {
	return f.signal, nil
}

func (f *fakeSignals) FetchResearchNote(context.Context, string) (string, error) {
	return f.note, f.noteErr
}

func directionSignal(direction string) *domain.TradingSignal {
	sig := &domain.TradingSignal{Ticker: "ETH"}
	sig.Signal.Direction = direction
	sig.Signal.Confidence = 0.7
	return sig
}

// fakeChain holds token balances for the test wallet.
type fakeChain struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	decimals map[common.Address]int
	err      error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances: map[common.Address]*big.Int{},
		decimals: map[common.Address]int{usdc: 6, weth: 18},
	}
}

func (c *fakeChain) set(token common.Address, raw *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[token] = new(big.Int).Set(raw)
}

func (c *fakeChain) get(token common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[token]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (c *fakeChain) TokenBalance(_ context.Context, token, _ common.Address) (evm.TokenBalance, error) {
	if c.err != nil {
		return evm.TokenBalance{}, c.err
	}
	raw := c.get(token)
	dec := c.decimals[token]
	return evm.TokenBalance{Token: token, Decimals: dec, Raw: raw, Human: domain.FromRaw(raw, dec)}, nil
}

// fakeSwapper swaps at a fixed 1 raw unit in for 1000 raw units out and
// moves balances on the chain it wraps.
type fakeSwapper struct {
	chain *fakeChain

	mu      sync.Mutex
	calls   []executor.SwapRequest
	fail    bool
	started chan struct{}
	release chan struct{}
}

func (s *fakeSwapper) Execute(_ context.Context, _ domain.MessageSink, req executor.SwapRequest) executor.SwapResult {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	fail := s.fail
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
		<-s.release
	}
	if fail {
		return executor.SwapResult{Err: errors.New("reverted")}
	}
	out := new(big.Int).Mul(req.AmountRaw, big.NewInt(1000))
	s.chain.set(req.From, new(big.Int).Sub(s.chain.get(req.From), req.AmountRaw))
	s.chain.set(req.To, new(big.Int).Add(s.chain.get(req.To), out))
	return executor.SwapResult{Success: true, AmountOut: out}
}

func (s *fakeSwapper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeTrader struct {
	mu           sync.Mutex
	withdrawable float64
	size         float64
	liq          *float64
	mid          float64
	posErr       error
	openRes      domain.OrderResult
	closeRes     *domain.OrderResult
	opens        []float64
	closes       int
}

func (t *fakeTrader) Withdrawable(context.Context) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.withdrawable, nil
}

func (t *fakeTrader) Position(context.Context) (domain.PositionInfo, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.posErr != nil {
		return domain.PositionInfo{}, false, t.posErr
	}
	if t.size == 0 {
		return domain.PositionInfo{}, false, nil
	}
	return domain.PositionInfo{Coin: "BTC", Size: t.size, EntryPrice: 95000, LiquidationPrice: t.liq}, true, nil
}

func (t *fakeTrader) Mid(context.Context) (float64, error) { return t.mid, nil }

func (t *fakeTrader) OpenLong(_ context.Context, notional float64) domain.OrderResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opens = append(t.opens, notional)
	if t.openRes.Filled() {
		t.size = t.openRes.FilledSize
	}
	return t.openRes
}

func (t *fakeTrader) CloseLong(context.Context) domain.OrderResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	if t.closeRes != nil {
		return *t.closeRes
	}
	if t.size <= 0 {
		return domain.OrderResult{Success: true, Status: domain.OrderNoPosition, Error: "No open position"}
	}
	res := domain.OrderResult{Success: true, Status: domain.OrderFilled, FilledSize: t.size, AvgPrice: t.mid}
	t.size = 0
	return res
}

type recordSink struct {
	mu   sync.Mutex
	msgs []string
	lvls []domain.LogLevel
}

func (r *recordSink) Emit(_ context.Context, level domain.LogLevel, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lvls = append(r.lvls, level)
	r.msgs = append(r.msgs, msg)
}

func (r *recordSink) contains(sub string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func (r *recordSink) has(level domain.LogLevel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lvls {
		if l == level {
			return true
		}
	}
	return false
}

type harness struct {
	store   *sqlite.PositionStore
	chain   *fakeChain
	swapper *fakeSwapper
	trader  *fakeTrader
	signals *fakeSignals
	sink    *recordSink
	ac      *strategy.AgentContext
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	chain := newFakeChain()
	h := &harness{
		store:   sqlite.NewPositionStore(c),
		chain:   chain,
		swapper: &fakeSwapper{chain: chain},
		trader:  &fakeTrader{mid: 95000},
		signals: &fakeSignals{},
		sink:    &recordSink{},
	}
	h.ac = &strategy.AgentContext{
		Wallet:    testWallet,
		Positions: h.store,
		Locks:     memory.NewKeyedLocker(),
		LockTTL:   time.Minute,
		Sink:      h.sink,
		Signals:   h.signals,
		Spot: &strategy.SpotVenue{
			Chain:        chain,
			Swapper:      h.swapper,
			StableSymbol: "USDC",
			StableToken:  usdc,
			Tokens:       map[string]common.Address{"WETH": weth},
			MinTrade:     1,
		},
		Perp: func(string) (strategy.PerpTrader, error) {
			return h.trader, nil
		},
		Allocation: 10,
	}
	return h
}

func (h *harness) position(t *testing.T, agent string) domain.Position {
	t.Helper()
	p, err := h.store.Get(context.Background(), testWallet, agent)
	require.NoError(t, err)
	return p
}
