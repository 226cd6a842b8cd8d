package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// AgentLogStore implements domain.AgentLogStore using PostgreSQL.
type AgentLogStore struct {
	pool *pgxpool.Pool
}

// NewAgentLogStore creates a new AgentLogStore backed by the given pool.
func NewAgentLogStore(pool *pgxpool.Pool) *AgentLogStore {
	return &AgentLogStore{pool: pool}
}

// Append stores entry, assigning an ID and timestamp when missing.
func (s *AgentLogStore) Append(ctx context.Context, e domain.LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	const query = `
		INSERT INTO agent_logs (id, wallet_address, agent_name, level, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.pool.Exec(ctx, query,
		e.ID, e.WalletAddress, e.AgentName, string(e.Level), e.Message, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: append agent log: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *AgentLogStore) List(ctx context.Context, f domain.LogFilter) ([]domain.LogEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.WalletAddress != "" {
		add("wallet_address = $%d", f.WalletAddress)
	}
	if f.AgentName != "" {
		add("agent_name = $%d", f.AgentName)
	}
	if f.Level != "" {
		add("level = $%d", string(f.Level))
	}
	if f.Since != nil {
		add("created_at >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("created_at < $%d", *f.Until)
	}

	query := `SELECT id::text, wallet_address, agent_name, level, message, created_at FROM agent_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list agent logs: %w", err)
	}
	defer rows.Close()

	var out []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var level string
		if err := rows.Scan(&e.ID, &e.WalletAddress, &e.AgentName, &level, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan agent log: %w", err)
		}
		e.Level = domain.LogLevel(level)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteBefore removes entries created strictly before cutoff.
func (s *AgentLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agent_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete agent logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.AgentLogStore = (*AgentLogStore)(nil)
