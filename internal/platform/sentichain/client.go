// Package sentichain fetches sentiment reasoning and trading signals from the
// SentiChain agent API.
package sentichain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// Summary types served by the reasoning endpoint.
const (
	SummaryEventSentiment = "l3_event_sentiment_reasoning"
	SummaryTradingSignal  = "product_trading_signal"
	SummaryResearchNote   = "product_research_note"
)

const rateLimitKey = "sentichain"

// Config holds API connection parameters.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a REST client for the reasoning endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    domain.RateLimiter
	logger     *slog.Logger
}

// New creates a Client. limiter is optional; when set every request waits
// for a slot in the shared budget first.
func New(cfg Config, limiter domain.RateLimiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger.With(slog.String("component", "sentichain")),
	}
}

// FetchEvents returns the latest event-sentiment list for ticker. A payload
// that does not hold a JSON array yields no events and no error.
func (c *Client) FetchEvents(ctx context.Context, ticker string) ([]domain.SentimentEvent, error) {
	reasoning, err := c.reasoning(ctx, ticker, SummaryEventSentiment)
	if err != nil {
		return nil, fmt.Errorf("sentichain: fetch events: %w", err)
	}
	events := ParseEvents(reasoning)
	c.logger.Debug("fetched events", slog.String("ticker", ticker), slog.Int("count", len(events)))
	return events, nil
}

// FetchTradingSignal returns the latest structured signal for ticker, or nil
// when the payload holds no parseable signal.
func (c *Client) FetchTradingSignal(ctx context.Context, ticker string) (*domain.TradingSignal, error) {
	reasoning, err := c.reasoning(ctx, ticker, SummaryTradingSignal)
	if err != nil {
		return nil, fmt.Errorf("sentichain: fetch trading signal: %w", err)
	}
	return ParseTradingSignal(reasoning, ticker), nil
}

// FetchResearchNote returns the raw research note text for ticker.
func (c *Client) FetchResearchNote(ctx context.Context, ticker string) (string, error) {
	reasoning, err := c.reasoning(ctx, ticker, SummaryResearchNote)
	if err != nil {
		return "", fmt.Errorf("sentichain: fetch research note: %w", err)
	}
	return reasoning, nil
}

// reasoning performs GET /agent/get_reasoning_last and returns the trimmed
// "reasoning" field.
func (c *Client) reasoning(ctx context.Context, ticker, summaryType string) (string, error) {
	if c.apiKey == "" {
		return "", domain.E(domain.KindInvariant, "reasoning", errors.New("no API key configured"))
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rateLimitKey); err != nil {
			return "", domain.E(domain.KindTransient, "rate limit", err)
		}
	}

	q := url.Values{}
	q.Set("ticker", ticker)
	q.Set("summary_type", summaryType)
	q.Set("api_key", c.apiKey)
	endpoint := c.baseURL + "/agent/get_reasoning_last?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", domain.E(domain.KindInvariant, "create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.E(domain.KindTransient, "http request", redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.E(domain.KindTransient, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests {
			msg = fmt.Errorf("%w: %v", domain.ErrRateLimited, msg)
		}
		return "", domain.E(domain.KindTransient, "reasoning", msg)
	}

	var payload struct {
		Reasoning *string `json:"reasoning"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", domain.E(domain.KindMalformed, "decode response", err)
	}
	if payload.Reasoning == nil {
		return "", nil
	}
	return strings.TrimSpace(*payload.Reasoning), nil
}

// redact removes the API key from transport errors, which embed the URL.
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "***"))
}
