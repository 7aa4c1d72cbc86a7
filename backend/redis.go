package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultOpTimeout      = 2 * time.Second
)

// Redis is the distributed backend. It is authoritative whenever reachable:
// records written here survive process restarts and are visible to every
// instance sharing the same Redis deployment.
//
// Every operation runs under a per-call timeout. Any failure (including a
// timeout) flips the healthy flag to false so the selector routes subsequent
// calls to the local fallback; a successful Probe restores it.
type Redis struct {
	client    redis.UniversalClient
	opTimeout time.Duration
	healthy   atomic.Bool
	logger    *slog.Logger
}

// NewRedis wraps an existing client. The initial health state is determined
// by a ping under the connect timeout; an unreachable server does not fail
// construction, it only starts the backend unhealthy.
func NewRedis(client redis.UniversalClient, connectTimeout, opTimeout time.Duration, logger *slog.Logger) *Redis {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Redis{
		client:    client,
		opTimeout: opTimeout,
		logger:    logger.With("component", "backend.redis"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		r.logger.Warn("initial ping failed, starting unhealthy", "error", err)
		r.healthy.Store(false)
	} else {
		r.healthy.Store(true)
	}

	return r
}

// DialRedis builds a client for addr and wraps it. addr must be non-empty;
// a deployment without a distributed backend simply never constructs one.
func DialRedis(addr, password string, db int, connectTimeout, opTimeout time.Duration, logger *slog.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: connectTimeout,
	})
	return NewRedis(client, connectTimeout, opTimeout, logger)
}

// Healthy reports whether the last operation against this backend succeeded.
func (r *Redis) Healthy() bool {
	return r != nil && r.healthy.Load()
}

// Probe pings the server and restores the healthy flag on success.
func (r *Redis) Probe(ctx context.Context) error {
	ctx, cancel := r.op(ctx)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.healthy.Store(false)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.healthy.Store(true)
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) op(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *Redis) fail(err error) error {
	r.healthy.Store(false)
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := r.op(ctx)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := r.op(ctx)
	defer cancel()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, r.fail(err)
	}
	return data, true, nil
}

// Replace rewrites key only if it exists, keeping the remaining TTL
// (SET XX KEEPTTL, a single atomic command on the server).
func (r *Redis) Replace(ctx context.Context, key string, value []byte) (bool, error) {
	ctx, cancel := r.op(ctx)
	defer cancel()

	err := r.client.SetArgs(ctx, key, value, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, r.fail(err)
	}
	return true, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	ctx, cancel := r.op(ctx)
	defer cancel()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *Redis) AddToSet(ctx context.Context, set, member string) error {
	ctx, cancel := r.op(ctx)
	defer cancel()

	if err := r.client.SAdd(ctx, set, member).Err(); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *Redis) RemoveFromSet(ctx context.Context, set, member string) error {
	ctx, cancel := r.op(ctx)
	defer cancel()

	if err := r.client.SRem(ctx, set, member).Err(); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *Redis) SetMembers(ctx context.Context, set string) ([]string, error) {
	ctx, cancel := r.op(ctx)
	defer cancel()

	members, err := r.client.SMembers(ctx, set).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, r.fail(err)
	}
	return members, nil
}

func (r *Redis) ExpireSet(ctx context.Context, set string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	ctx, cancel := r.op(ctx)
	defer cancel()

	if err := r.client.Expire(ctx, set, ttl).Err(); err != nil {
		return r.fail(err)
	}
	return nil
}
