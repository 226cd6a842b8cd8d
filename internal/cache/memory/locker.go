// Package memory provides process-local implementations of the domain cache
// interfaces, used when Redis is not configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// KeyedLocker implements domain.LockManager with a mutex-guarded set of held
// keys. Acquire never blocks; a held key yields domain.ErrLockHeld. The ttl
// releases a lock whose holder never unlocked.
type KeyedLocker struct {
	mu   sync.Mutex
	held map[string]uint64
	seq  uint64
	now  func() time.Time
	exp  map[string]time.Time
}

// NewKeyedLocker returns an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{
		held: make(map[string]uint64),
		exp:  make(map[string]time.Time),
		now:  time.Now,
	}
}

// Acquire takes key if it is free or its previous holder's ttl elapsed.
func (l *KeyedLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		if exp, has := l.exp[key]; !has || l.now().Before(exp) {
			return nil, domain.ErrLockHeld
		}
	}

	l.seq++
	token := l.seq
	l.held[key] = token
	if ttl > 0 {
		l.exp[key] = l.now().Add(ttl)
	} else {
		delete(l.exp, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == token {
				delete(l.held, key)
				delete(l.exp, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*KeyedLocker)(nil)
