package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

type fakeStore struct {
	mu          sync.Mutex
	rows        map[string]domain.Position
	upserts     int
	sideUpdates int
	getErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]domain.Position{}}
}

func (f *fakeStore) Get(_ context.Context, wallet, strategy string) (domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.Position{}, f.getErr
	}
	p, ok := f.rows[domain.PositionKey(wallet, strategy)]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) Upsert(_ context.Context, p domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.rows[p.Key()] = p
	return nil
}

func (f *fakeStore) UpdateSide(_ context.Context, wallet, strategy, side string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := domain.PositionKey(wallet, strategy)
	p, ok := f.rows[key]
	if !ok {
		return domain.ErrNotFound
	}
	f.sideUpdates++
	p.CurrentSide = side
	p.LastUpdatedAt = time.Now()
	f.rows[key] = p
	return nil
}

func (f *fakeStore) ListByWallet(context.Context, string) ([]domain.Position, error) {
	return nil, nil
}

type recordSink struct {
	mu   sync.Mutex
	msgs []string
	lvls []domain.LogLevel
}

func (r *recordSink) Emit(_ context.Context, level domain.LogLevel, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lvls = append(r.lvls, level)
	r.msgs = append(r.msgs, msg)
}
