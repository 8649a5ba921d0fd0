package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memLease struct {
	token   string
	expires time.Time
}

// MemoryLocker is an in-process Locker for tests and single-node dev runs.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memLease
}

var _ Locker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memLease)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lease, held := l.held[key]; held && time.Now().Before(lease.expires) {
		return "", nil
	}
	token := uuid.NewString()
	l.held[key] = memLease{token: token, expires: time.Now().Add(ttl)}
	return token, nil
}

func (l *MemoryLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lease, held := l.held[key]; held && lease.token == token {
		delete(l.held, key)
	}
	return nil
}
