package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `wallet_address, strategy_name, ticker, base_token, quote_token,
	allocated_amount, allocated_amount_raw::text, current_side, last_updated_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var raw string

	err := row.Scan(
		&p.WalletAddress, &p.StrategyName, &p.Ticker, &p.BaseToken, &p.QuoteToken,
		&p.AllocatedAmount, &raw, &p.CurrentSide, &p.LastUpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return domain.Position{}, domain.E(domain.KindInvariant, "postgres: scan position",
			fmt.Errorf("allocated_amount_raw %q is not an integer", raw))
	}
	p.AllocatedAmountRaw = n
	p.LastUpdatedAt = p.LastUpdatedAt.UTC()
	return p, nil
}

// Get returns the position for (wallet, strategy) or domain.ErrNotFound.
func (s *PositionStore) Get(ctx context.Context, wallet, strategy string) (domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE wallet_address = $1 AND strategy_name = $2`
	p, err := scanPositionRow(s.pool.QueryRow(ctx, query, wallet, strategy))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", domain.PositionKey(wallet, strategy), err)
	}
	return p, nil
}

// Upsert inserts or fully replaces the record keyed by (wallet, strategy).
// A zero LastUpdatedAt is stamped with the current time.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	raw := "0"
	if p.AllocatedAmountRaw != nil {
		raw = p.AllocatedAmountRaw.String()
	}
	updated := p.LastUpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	const query = `
		INSERT INTO positions (
			wallet_address, strategy_name, ticker, base_token, quote_token,
			allocated_amount, allocated_amount_raw, current_side, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)
		ON CONFLICT (wallet_address, strategy_name) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			base_token = EXCLUDED.base_token,
			quote_token = EXCLUDED.quote_token,
			allocated_amount = EXCLUDED.allocated_amount,
			allocated_amount_raw = EXCLUDED.allocated_amount_raw,
			current_side = EXCLUDED.current_side,
			last_updated_at = EXCLUDED.last_updated_at`

	_, err := s.pool.Exec(ctx, query,
		p.WalletAddress, p.StrategyName, p.Ticker, p.BaseToken, p.QuoteToken,
		p.AllocatedAmount, raw, p.CurrentSide, updated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", p.Key(), err)
	}
	return nil
}

// UpdateSide changes only current_side. It returns domain.ErrNotFound when no
// record exists.
func (s *PositionStore) UpdateSide(ctx context.Context, wallet, strategy, side string) error {
	const query = `
		UPDATE positions SET current_side = $3, last_updated_at = NOW()
		WHERE wallet_address = $1 AND strategy_name = $2`

	tag, err := s.pool.Exec(ctx, query, wallet, strategy, side)
	if err != nil {
		return fmt.Errorf("postgres: update side %s: %w", domain.PositionKey(wallet, strategy), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByWallet returns every position of wallet ordered by strategy name.
func (s *PositionStore) ListByWallet(ctx context.Context, wallet string) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE wallet_address = $1 ORDER BY strategy_name`
	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: list positions: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ domain.PositionStore = (*PositionStore)(nil)
