package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
)

// SyncThrottle gates the per-course file-sync cadence. Allow reports whether
// a sync may run now; when it does, the window is consumed atomically.
// The cache is a rate-limit hint, never authoritative state: losing it only
// means one extra sync runs.
type SyncThrottle interface {
	Allow(ctx context.Context, courseID string, window time.Duration) (bool, error)
	Close() error
}

type redisThrottle struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewSyncThrottle connects to REDIS_ADDR. Callers fall back to the in-memory
// throttle when the variable is unset.
func NewSyncThrottle(log *logger.Logger) (SyncThrottle, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisThrottle{
		log: log.With("service", "RedisSyncThrottle"),
		rdb: rdb,
	}, nil
}

func (t *redisThrottle) Allow(ctx context.Context, courseID string, window time.Duration) (bool, error) {
	key := "filesync:last:" + courseID
	ok, err := t.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), window).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (t *redisThrottle) Close() error {
	return t.rdb.Close()
}

// memoryThrottle keeps last-run timestamps in process memory. A restart
// forgets them, which can trigger one unscheduled sync per course; that is
// accepted as a benign inefficiency.
type memoryThrottle struct {
	mu      sync.Mutex
	lastRun map[string]time.Time
	now     func() time.Time
}

func NewMemorySyncThrottle() SyncThrottle {
	return &memoryThrottle{
		lastRun: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (t *memoryThrottle) Allow(_ context.Context, courseID string, window time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.lastRun[courseID]; ok && now.Sub(last) < window {
		return false, nil
	}
	t.lastRun[courseID] = now
	return true, nil
}

func (t *memoryThrottle) Close() error { return nil }
