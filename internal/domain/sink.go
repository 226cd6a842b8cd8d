package domain

import (
	"context"
	"fmt"
)

// MessageSink receives operator-facing status messages from agents and
// executors.
type MessageSink interface {
	Emit(ctx context.Context, level LogLevel, msg string)
}

// Infof formats and emits an INFO message.
func Infof(ctx context.Context, s MessageSink, format string, args ...any) {
	s.Emit(ctx, LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf formats and emits a WARN message.
func Warnf(ctx context.Context, s MessageSink, format string, args ...any) {
	s.Emit(ctx, LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf formats and emits an ERROR message.
func Errorf(ctx context.Context, s MessageSink, format string, args ...any) {
	s.Emit(ctx, LevelError, fmt.Sprintf(format, args...))
}

// Alertf formats and emits an ALERT message, which is also pushed to
// configured notification channels.
func Alertf(ctx context.Context, s MessageSink, format string, args ...any) {
	s.Emit(ctx, LevelAlert, fmt.Sprintf(format, args...))
}

// DiscardSink drops every message.
type DiscardSink struct{}

func (DiscardSink) Emit(context.Context, LogLevel, string) {}
