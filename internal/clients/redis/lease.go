package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

// CycleLease serializes strategy cycles per tenant. Two schedulers racing on
// the same tenant would produce last-write-wins strategy mutations, so only
// the lease holder runs.
type CycleLease interface {
	Acquire(ctx context.Context, tenantID uuid.UUID, kind string, ttl time.Duration) (release func(), acquired bool, err error)
	Close() error
}

type cycleLease struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewCycleLease(log *logger.Logger) (CycleLease, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(os.Getenv("REDIS_LEASE_PREFIX"))
	if prefix == "" {
		prefix = "cycle-lease"
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

	return &cycleLease{
		log:    log.With("service", "RedisCycleLease"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (l *cycleLease) Acquire(ctx context.Context, tenantID uuid.UUID, kind string, ttl time.Duration) (func(), bool, error) {
	if l == nil || l.rdb == nil {
		return nil, false, fmt.Errorf("cycle lease not initialized")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	key := fmt.Sprintf("%s:%s:%s", l.prefix, kind, tenantID)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lease setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Release only our own token so an expired lease taken over by
		// another runner is never deleted from under it.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		if err := l.rdb.Eval(rctx, script, []string{key}, token).Err(); err != nil {
			l.log.Warn("lease release failed", "key", key, "error", err.Error())
		}
	}
	return release, true, nil
}

func (l *cycleLease) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
