package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// AgentLogStore implements domain.AgentLogStore on SQLite.
type AgentLogStore struct {
	db *sql.DB
}

// NewAgentLogStore creates an AgentLogStore on the client's database.
func NewAgentLogStore(c *Client) *AgentLogStore {
	return &AgentLogStore{db: c.DB()}
}

// Append stores entry, assigning an ID and timestamp when missing.
func (s *AgentLogStore) Append(ctx context.Context, e domain.LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_logs (id, wallet_address, agent_name, level, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.WalletAddress, e.AgentName, string(e.Level), e.Message, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append agent log: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *AgentLogStore) List(ctx context.Context, f domain.LogFilter) ([]domain.LogEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.WalletAddress != "" {
		where = append(where, "wallet_address = ?")
		args = append(args, f.WalletAddress)
	}
	if f.AgentName != "" {
		where = append(where, "agent_name = ?")
		args = append(args, f.AgentName)
	}
	if f.Level != "" {
		where = append(where, "level = ?")
		args = append(args, string(f.Level))
	}
	if f.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if f.Until != nil {
		where = append(where, "created_at < ?")
		args = append(args, f.Until.UnixMilli())
	}

	query := `SELECT id, wallet_address, agent_name, level, message, created_at FROM agent_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list agent logs: %w", err)
	}
	defer rows.Close()

	var out []domain.LogEntry
	for rows.Next() {
		var (
			e     domain.LogEntry
			level string
			ts    int64
		)
		if err := rows.Scan(&e.ID, &e.WalletAddress, &e.AgentName, &level, &e.Message, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan agent log: %w", err)
		}
		e.Level = domain.LogLevel(level)
		e.CreatedAt = time.UnixMilli(ts).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteBefore removes entries created strictly before cutoff.
func (s *AgentLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agent_logs WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete agent logs: %w", err)
	}
	return res.RowsAffected()
}

var _ domain.AgentLogStore = (*AgentLogStore)(nil)
