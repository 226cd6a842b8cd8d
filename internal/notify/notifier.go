// Package notify delivers operator messages. Every message goes to the
// console, the durable agent log and slog; alert-level messages are also
// pushed to every registered channel (Telegram, Discord).
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. Notify only
// forwards messages whose level is in the allowed set.
type Notifier struct {
	senders []Sender
	levels  map[domain.LogLevel]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders. An empty levels list allows
// ALERT only.
func NewNotifier(senders []Sender, levels []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[domain.LogLevel]bool, len(levels))
	for _, l := range levels {
		if l = strings.ToUpper(strings.TrimSpace(l)); l != "" {
			allowed[domain.LogLevel(l)] = true
		}
	}
	if len(allowed) == 0 {
		allowed[domain.LevelAlert] = true
	}
	return &Notifier{
		senders: senders,
		levels:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is registered.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends to all senders when level is allowed.
func (n *Notifier) Notify(ctx context.Context, level domain.LogLevel, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if !n.levels[level] {
		n.logger.DebugContext(ctx, "level filtered out", slog.String("level", string(level)))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every sender. A failing sender does not stop delivery
// to the rest; failures are joined into one error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
