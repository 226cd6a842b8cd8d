package sentichain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

type countingLimiter struct{ waits atomic.Int32 }

func (l *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.waits.Add(1)
	return nil
}

func reasoningServer(t *testing.T, byType map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agent/get_reasoning_last", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		text, ok := byType[r.URL.Query().Get("summary_type")]
		if !ok {
			http.Error(w, "unknown summary type", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"reasoning": text})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FetchEvents(t *testing.T) {
	srv := reasoningServer(t, map[string]string{
		SummaryEventSentiment: "```json\n[{\"sentiment\":\"bullish\"},{\"sentiment\":\"bullish\"},{\"sentiment\":\"bearish\"}]\n```",
	})
	lim := &countingLimiter{}
	c := New(Config{BaseURL: srv.URL + "/", APIKey: " secret "}, lim, nil)

	events, err := c.FetchEvents(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentCounts{Bullish: 2, Bearish: 1, Total: 3}, CountSentiment(events))
	assert.Equal(t, int32(1), lim.waits.Load())
}

func TestClient_FetchTradingSignalAndNote(t *testing.T) {
	srv := reasoningServer(t, map[string]string{
		SummaryTradingSignal: "```json\n{\"ticker\":\"ETH\",\"signal\":{\"direction\":\"SHORT\",\"confidence\":0.6}}\n```",
		SummaryResearchNote:  "  ETH research: flows turning.  ",
	})
	c := New(Config{BaseURL: srv.URL, APIKey: "secret"}, nil, nil)

	sig, err := c.FetchTradingSignal(context.Background(), "ETH")
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "SHORT", sig.Signal.Direction)

	note, err := c.FetchResearchNote(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, "ETH research: flows turning.", note)
}

func TestClient_MalformedSignalIsNotAnError(t *testing.T) {
	srv := reasoningServer(t, map[string]string{SummaryTradingSignal: "the model had nothing to say"})
	c := New(Config{BaseURL: srv.URL, APIKey: "secret"}, nil, nil)

	sig, err := c.FetchTradingSignal(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestClient_HTTPFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, APIKey: "secret"}, nil, nil)

	_, err := c.FetchEvents(context.Background(), "ETH")
	require.Error(t, err)
	assert.Equal(t, domain.KindTransient, domain.KindOf(err))
}

func TestClient_MissingKey(t *testing.T) {
	c := New(Config{BaseURL: "http://unused"}, nil, nil)
	_, err := c.FetchEvents(context.Background(), "ETH")
	assert.Equal(t, domain.KindInvariant, domain.KindOf(err))
}
