package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oks-citadel/apply-sla/config"
	"github.com/redis/go-redis/v9"
)

// SweepLock keeps the scheduled sweep and the manual admin trigger from
// running at the same time. Acquire returns acquired=false when another
// sweep holds the lock; that is not an error.
type SweepLock interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// LocalSweepLock is the in-process lock used when no redis is configured.
type LocalSweepLock struct {
	mu   sync.Mutex
	held bool
}

func NewLocalSweepLock() *LocalSweepLock {
	return &LocalSweepLock{}
}

func (l *LocalSweepLock) Acquire(ctx context.Context) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func() {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
	}, true, nil
}

// RedisSweepLock serializes sweeps across processes with a TTL-bounded
// SET NX key, so a crashed holder cannot wedge the sweep forever.
type RedisSweepLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisSweepLock(cfg *config.RedisConfig) *RedisSweepLock {
	return &RedisSweepLock{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr}),
		key:    cfg.LockKey,
		ttl:    time.Duration(cfg.LockTTLSeconds) * time.Second,
	}
}

func (l *RedisSweepLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Only delete the lock if we still own it; a TTL expiry followed by
		// another holder's acquire must not be clobbered.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		current, err := l.client.Get(ctx, l.key).Result()
		if err == nil && current == token {
			l.client.Del(ctx, l.key)
		}
	}
	return release, true, nil
}
