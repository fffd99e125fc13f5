package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// A daily cycle plus slack, so a crashed worker frees the lease before the next day's run.
const defaultLeaseTTL = 25 * time.Hour

// Lock coordinates exclusive cron runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type leaser interface {
	AcquireLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, token string) (bool, error)
}

// LeaseLock holds a Redis lease tagged with a per-acquire token.
type LeaseLock struct {
	leases leaser
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

func NewLeaseLock(leases leaser, key string, ttl time.Duration) (*LeaseLock, error) {
	if leases == nil {
		return nil, errors.New("lease store required for cron lock")
	}
	if key == "" {
		return nil, errors.New("lease key is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &LeaseLock{leases: leases, key: key, ttl: ttl}, nil
}

func (l *LeaseLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	token := uuid.NewString()
	ok, err := l.leases.AcquireLease(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release is a no-op unless this instance holds the lease. A lease that
// already expired and was taken by another worker is left alone.
func (l *LeaseLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if _, err := l.leases.ReleaseLease(ctx, l.key, token); err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}
