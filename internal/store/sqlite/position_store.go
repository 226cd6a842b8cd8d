package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// PositionStore implements domain.PositionStore on SQLite.
type PositionStore struct {
	db *sql.DB
}

// NewPositionStore creates a PositionStore on the client's database.
func NewPositionStore(c *Client) *PositionStore {
	return &PositionStore{db: c.DB()}
}

const positionSelectCols = `wallet_address, strategy_name, ticker, base_token, quote_token,
	allocated_amount, allocated_amount_raw, current_side, last_updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (domain.Position, error) {
	var (
		p       domain.Position
		raw     string
		updated int64
	)
	if err := row.Scan(
		&p.WalletAddress, &p.StrategyName, &p.Ticker, &p.BaseToken, &p.QuoteToken,
		&p.AllocatedAmount, &raw, &p.CurrentSide, &updated,
	); err != nil {
		return domain.Position{}, err
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return domain.Position{}, domain.E(domain.KindInvariant, "sqlite: scan position",
			fmt.Errorf("allocated_amount_raw %q is not an integer", raw))
	}
	p.AllocatedAmountRaw = n
	p.LastUpdatedAt = time.UnixMilli(updated).UTC()
	return p, nil
}

// Get returns the position for (wallet, strategy) or domain.ErrNotFound.
func (s *PositionStore) Get(ctx context.Context, wallet, strategy string) (domain.Position, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE wallet_address = ? AND strategy_name = ?`,
		wallet, strategy,
	)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Position{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("sqlite: get position %s: %w", domain.PositionKey(wallet, strategy), err)
	}
	return p, nil
}

// Upsert inserts or fully replaces the record keyed by (wallet, strategy).
// A zero LastUpdatedAt is stamped with the current time; timestamps are kept
// at millisecond precision.
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (wallet_address, strategy_name) DO UPDATE SET
			ticker = excluded.ticker,
			base_token = excluded.base_token,
			quote_token = excluded.quote_token,
			allocated_amount = excluded.allocated_amount,
			allocated_amount_raw = excluded.allocated_amount_raw,
			current_side = excluded.current_side,
			last_updated_at = excluded.last_updated_at`
	_, err := s.db.ExecContext(ctx, query,
		p.WalletAddress, p.StrategyName, p.Ticker, p.BaseToken, p.QuoteToken,
		p.AllocatedAmount, raw, p.CurrentSide, updated.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert position %s: %w", p.Key(), err)
	}
	return nil
}

// UpdateSide changes only current_side and the timestamp. It returns
// domain.ErrNotFound when no record exists.
func (s *PositionStore) UpdateSide(ctx context.Context, wallet, strategy, side string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE positions SET current_side = ?, last_updated_at = ? WHERE wallet_address = ? AND strategy_name = ?`,
		side, time.Now().UnixMilli(), wallet, strategy,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update side %s: %w", domain.PositionKey(wallet, strategy), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update side %s: %w", domain.PositionKey(wallet, strategy), err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByWallet returns every position of wallet ordered by strategy name.
func (s *PositionStore) ListByWallet(ctx context.Context, wallet string) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE wallet_address = ? ORDER BY strategy_name`,
		wallet,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list positions: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ domain.PositionStore = (*PositionStore)(nil)
