package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists one allocation record per (wallet, strategy).
// Get returns ErrNotFound when no record exists.
type PositionStore interface {
	Get(ctx context.Context, wallet, strategy string) (Position, error)
	Upsert(ctx context.Context, pos Position) error
	UpdateSide(ctx context.Context, wallet, strategy, side string) error
	ListByWallet(ctx context.Context, wallet string) ([]Position, error)
}

// LogFilter narrows an AgentLogStore listing. Empty fields match everything.
type LogFilter struct {
	WalletAddress string
	AgentName     string
	Level         LogLevel
	ListOpts
}

// AgentLogStore is the append-only operator message history.
type AgentLogStore interface {
	Append(ctx context.Context, entry LogEntry) error
	List(ctx context.Context, filter LogFilter) ([]LogEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
