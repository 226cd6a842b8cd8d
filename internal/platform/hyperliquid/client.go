// Package hyperliquid is the REST client for the Hyperliquid perpetuals
// venue: info queries and signed exchange actions.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sentitrader/internal/crypto"
	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// ActionSigner signs exchange actions for one wallet.
type ActionSigner interface {
	Address() common.Address
	SignL1Action(action any, nonce int64, vault *common.Address, mainnet bool) (crypto.Signature, error)
}

// Config holds venue connection parameters.
type Config struct {
	BaseURL string
	Mainnet bool
	Timeout time.Duration
}

// Client talks to the venue's /info and /exchange endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     ActionSigner
	mainnet    bool
	logger     *slog.Logger

	metaMu sync.Mutex
	meta   *Meta

	nonceMu   sync.Mutex
	lastNonce int64
	now       func() time.Time
}

// New creates a venue client. signer may be nil for read-only use.
func New(cfg Config, signer ActionSigner, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		signer:     signer,
		mainnet:    cfg.Mainnet,
		logger:     logger.With(slog.String("component", "hyperliquid")),
		now:        time.Now,
	}
}

// ---------------------------------------------------------------------------
// Info
// ---------------------------------------------------------------------------

// AllMids returns the mid price of every perp asset.
func (c *Client) AllMids(ctx context.Context) (map[string]float64, error) {
	var raw map[string]string
	if err := c.info(ctx, map[string]any{"type": "allMids"}, &raw); err != nil {
		return nil, fmt.Errorf("hyperliquid: all mids: %w", err)
	}
	mids := make(map[string]float64, len(raw))
	for coin, px := range raw {
		mids[coin] = parseNum(px)
	}
	return mids, nil
}

// UserState returns margin and positions for user.
func (c *Client) UserState(ctx context.Context, user string) (UserState, error) {
	var st UserState
	if err := c.info(ctx, map[string]any{"type": "clearinghouseState", "user": user}, &st); err != nil {
		return UserState{}, fmt.Errorf("hyperliquid: user state: %w", err)
	}
	return st, nil
}

// Meta returns the perp universe, cached after the first call.
func (c *Client) Meta(ctx context.Context) (Meta, error) {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	if c.meta != nil {
		return *c.meta, nil
	}
	var m Meta
	if err := c.info(ctx, map[string]any{"type": "meta"}, &m); err != nil {
		return Meta{}, fmt.Errorf("hyperliquid: meta: %w", err)
	}
	c.meta = &m
	return m, nil
}

func (c *Client) asset(ctx context.Context, coin string) (int, AssetMeta, error) {
	m, err := c.Meta(ctx)
	if err != nil {
		return 0, AssetMeta{}, err
	}
	idx, am, ok := m.Asset(coin)
	if !ok {
		return 0, AssetMeta{}, domain.E(domain.KindInvariant, "hyperliquid: asset", fmt.Errorf("unknown coin %q", coin))
	}
	return idx, am, nil
}

// ---------------------------------------------------------------------------
// Exchange
// ---------------------------------------------------------------------------

// MarketOpen places an IOC limit order at mid moved by slippage.
func (c *Client) MarketOpen(ctx context.Context, coin string, isBuy bool, size, slippage float64) (OrderResponse, error) {
	return c.marketOrder(ctx, coin, isBuy, size, slippage, false)
}

// MarketClose closes the whole position in coin with a reduce-only IOC order.
func (c *Client) MarketClose(ctx context.Context, coin string, slippage float64) (OrderResponse, error) {
	if c.signer == nil {
		return OrderResponse{}, domain.E(domain.KindInvariant, "hyperliquid: market close", errors.New("no signer configured"))
	}
	st, err := c.UserState(ctx, c.signer.Address().Hex())
	if err != nil {
		return OrderResponse{}, err
	}
	pos, ok := st.Position(coin)
	if !ok || pos.Size == 0 {
		return OrderResponse{}, domain.E(domain.KindInvariant, "hyperliquid: market close", fmt.Errorf("no open %s position", coin))
	}
	return c.marketOrder(ctx, coin, pos.Size < 0, math.Abs(pos.Size), slippage, true)
}

func (c *Client) marketOrder(ctx context.Context, coin string, isBuy bool, size, slippage float64, reduceOnly bool) (OrderResponse, error) {
	idx, am, err := c.asset(ctx, coin)
	if err != nil {
		return OrderResponse{}, err
	}
	mids, err := c.AllMids(ctx)
	if err != nil {
		return OrderResponse{}, err
	}
	mid, ok := mids[am.Name]
	if !ok || mid <= 0 {
		return OrderResponse{}, domain.E(domain.KindTransient, "hyperliquid: market order", fmt.Errorf("no mid price for %s", coin))
	}

	px, err := floatToWire(slippagePrice(mid, isBuy, slippage, am.SzDecimals))
	if err != nil {
		return OrderResponse{}, domain.E(domain.KindInvariant, "hyperliquid: price", err)
	}
	sz, err := floatToWire(roundTo(size, am.SzDecimals))
	if err != nil {
		return OrderResponse{}, domain.E(domain.KindInvariant, "hyperliquid: size", err)
	}

	action := orderAction{
		Type: "order",
		Orders: []orderWire{{
			Asset:      idx,
			IsBuy:      isBuy,
			LimitPx:    px,
			Size:       sz,
			ReduceOnly: reduceOnly,
			OrderType:  orderTypeWire{Limit: limitWire{Tif: "Ioc"}},
		}},
		Grouping: "na",
	}
	c.logger.Info("placing order",
		slog.String("coin", am.Name),
		slog.Bool("is_buy", isBuy),
		slog.String("size", sz),
		slog.String("limit_px", px),
		slog.Bool("reduce_only", reduceOnly),
	)

	var resp OrderResponse
	if err := c.exchange(ctx, action, &resp); err != nil {
		return OrderResponse{}, fmt.Errorf("hyperliquid: order: %w", err)
	}
	return resp, nil
}

// UpdateLeverage sets the account leverage for coin.
func (c *Client) UpdateLeverage(ctx context.Context, coin string, leverage int, cross bool) error {
	idx, _, err := c.asset(ctx, coin)
	if err != nil {
		return err
	}
	action := updateLeverageAction{Type: "updateLeverage", Asset: idx, IsCross: cross, Leverage: leverage}

	var resp OrderResponse
	if err := c.exchange(ctx, action, &resp); err != nil {
		return fmt.Errorf("hyperliquid: update leverage: %w", err)
	}
	if resp.Status != "ok" {
		return domain.E(domain.KindOnChain, "hyperliquid: update leverage", errors.New(responseText(resp.Response)))
	}
	return nil
}

// nextNonce returns a millisecond timestamp that strictly increases.
func (c *Client) nextNonce() int64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	n := c.now().UnixMilli()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return n
}

func (c *Client) exchange(ctx context.Context, action any, out any) error {
	if c.signer == nil {
		return domain.E(domain.KindInvariant, "exchange", errors.New("no signer configured"))
	}
	nonce := c.nextNonce()
	sig, err := c.signer.SignL1Action(action, nonce, nil, c.mainnet)
	if err != nil {
		return domain.E(domain.KindInvariant, "exchange: sign", fmt.Errorf("%w: %v", domain.ErrSigningFailed, err))
	}
	body := map[string]any{
		"action":       action,
		"nonce":        nonce,
		"signature":    sig,
		"vaultAddress": nil,
	}
	return c.post(ctx, "/exchange", body, out)
}

func (c *Client) info(ctx context.Context, body any, out any) error {
	return c.post(ctx, "/info", body, out)
}

// post sends a JSON body and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.E(domain.KindInvariant, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return domain.E(domain.KindInvariant, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.E(domain.KindTransient, "http request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.E(domain.KindTransient, "read response", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.E(domain.KindMalformed, "decode response", err)
	}
	return nil
}

// checkHTTPStatus maps non-2xx status codes to kinded errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	msg := fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	switch {
	case statusCode == http.StatusTooManyRequests:
		return domain.E(domain.KindTransient, "venue", fmt.Errorf("%w: %v", domain.ErrRateLimited, msg))
	case statusCode >= 500:
		return domain.E(domain.KindTransient, "venue", msg)
	default:
		return domain.E(domain.KindMalformed, "venue", msg)
	}
}
