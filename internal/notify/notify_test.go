package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

type recordingSender struct {
	name string
	err  error

	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, title+"|"+message)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

type memLogs struct {
	mu      sync.Mutex
	entries []domain.LogEntry
	err     error
}

func (m *memLogs) Append(_ context.Context, e domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func (m *memLogs) List(context.Context, domain.LogFilter) ([]domain.LogEntry, error) {
	return m.entries, nil
}

func (m *memLogs) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifier_DefaultsToAlertsOnly(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, quietLogger())

	require.NoError(t, n.Notify(context.Background(), domain.LevelInfo, "t", "info"))
	require.NoError(t, n.Notify(context.Background(), domain.LevelAlert, "t", "alert"))
	assert.Equal(t, []string{"t|alert"}, s.sent)
}

func TestNotifier_ConfiguredLevels(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{" error ", "alert"}, quietLogger())

	_ = n.Notify(context.Background(), domain.LevelError, "t", "e")
	_ = n.Notify(context.Background(), domain.LevelWarn, "t", "w")
	assert.Equal(t, []string{"t|e"}, s.sent)
}

func TestNotifier_OneFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.Notify(context.Background(), domain.LevelAlert, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, good.sent, 1)
}

func TestNilNotifierIsDisabled(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), domain.LevelAlert, "t", "m"))
}

func TestSink_FansOut(t *testing.T) {
	var out bytes.Buffer
	logs := &memLogs{}
	rec := &recordingSender{name: "rec"}
	base := NewSink(&out, logs, NewNotifier([]Sender{rec}, nil, quietLogger()), quietLogger())
	base.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	sink := base.For("0xabc", "Agent A")

	domain.Infof(context.Background(), sink, "holding %s", "WETH")
	domain.Alertf(context.Background(), sink, "liquidation risk")

	assert.Equal(t,
		"2025-01-02T03:04:05Z [INFO] Agent A: holding WETH\n"+
			"2025-01-02T03:04:05Z [ALERT] Agent A: liquidation risk\n",
		out.String())

	require.Len(t, logs.entries, 2)
	assert.Equal(t, "0xabc", logs.entries[0].WalletAddress)
	assert.Equal(t, "Agent A", logs.entries[0].AgentName)
	assert.Equal(t, domain.LevelAlert, logs.entries[1].Level)

	assert.Equal(t, []string{"Agent A|liquidation risk"}, rec.sent)
}

func TestSink_StoreFailureIsSwallowed(t *testing.T) {
	logs := &memLogs{err: errors.New("disk full")}
	sink := NewSink(nil, logs, nil, quietLogger())
	assert.NotPanics(t, func() {
		sink.Emit(context.Background(), domain.LevelWarn, "still fine")
	})
	assert.Len(t, logs.entries, 1)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "Title", "tx 0x_abc"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "Title\ntx 0x_abc", got["text"])
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, domain.KindMalformed, domain.KindOf(err))
}

func TestDiscordSender_Embed(t *testing.T) {
	var got struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	long := strings.Repeat("x", discordDescMax+10)
	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "BTC agent", long))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "BTC agent", got.Embeds[0].Title)
	assert.Len(t, got.Embeds[0].Description, discordDescMax)
}

func TestSenderRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiURL = srv.URL
	err := s.Send(context.Background(), "t", "m")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, domain.KindTransient, domain.KindOf(err))
	assert.NotContains(t, err.Error(), "TOKEN")
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 5))
	assert.Equal(t, "h", clip("hé", 2))
}
