package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// Sink is the production domain.MessageSink. Each message is written to out,
// appended to the agent log store and logged; notifier receives it when its
// level is allowed there.
type Sink struct {
	mu       *sync.Mutex
	out      io.Writer
	logs     domain.AgentLogStore
	notifier *Notifier
	logger   *slog.Logger
	now      func() time.Time

	wallet string
	agent  string
}

// NewSink creates an unscoped Sink. Any of out, logs and notifier may be nil.
func NewSink(out io.Writer, logs domain.AgentLogStore, notifier *Notifier, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		mu:       &sync.Mutex{},
		out:      out,
		logs:     logs,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "sink")),
		now:      time.Now,
	}
}

// For returns a Sink that tags every message with wallet and agent. The
// returned Sink shares the writer lock with its parent.
func (s *Sink) For(wallet, agent string) *Sink {
	scoped := *s
	scoped.wallet = wallet
	scoped.agent = agent
	return &scoped
}

// Emit implements domain.MessageSink. Store and notifier failures are logged
// and never surface to the caller.
func (s *Sink) Emit(ctx context.Context, level domain.LogLevel, msg string) {
	ts := s.now().UTC()

	if s.out != nil {
		s.mu.Lock()
		if s.agent != "" {
			fmt.Fprintf(s.out, "%s [%s] %s: %s\n", ts.Format(time.RFC3339), level, s.agent, msg)
		} else {
			fmt.Fprintf(s.out, "%s [%s] %s\n", ts.Format(time.RFC3339), level, msg)
		}
		s.mu.Unlock()
	}

	s.logger.Log(ctx, slogLevel(level), msg,
		slog.String("agent", s.agent),
		slog.String("wallet", s.wallet),
	)

	if s.logs != nil {
		err := s.logs.Append(ctx, domain.LogEntry{
			WalletAddress: s.wallet,
			AgentName:     s.agent,
			Level:         level,
			Message:       msg,
			CreatedAt:     ts,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "append agent log failed", slog.String("error", err.Error()))
		}
	}

	if s.notifier.Enabled() {
		title := s.agent
		if title == "" {
			title = "sentitrader"
		}
		if err := s.notifier.Notify(ctx, level, title, msg); err != nil {
			s.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
		}
	}
}

func slogLevel(l domain.LogLevel) slog.Level {
	switch l {
	case domain.LevelWarn, domain.LevelAlert:
		return slog.LevelWarn
	case domain.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
