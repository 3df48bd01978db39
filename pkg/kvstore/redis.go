package kvstore

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/config"
)

// updateRetries bounds optimistic transaction retries under write contention.
const updateRetries = 3

// Redis is the production Store implementation over go-redis. One instance
// is constructed at process start and shared for the process lifetime.
type Redis struct {
	client    *redis.Client
	opTimeout time.Duration
	available atomic.Bool
	logger    *zap.Logger
}

var _ Store = (*Redis)(nil)

// NewRedis creates the shared Redis adapter. A failed initial connection is
// not fatal: the adapter starts unavailable and reconnects lazily on next
// use.
func NewRedis(cfg *config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout(),
		ReadTimeout:  cfg.OpTimeout(),
		WriteTimeout: cfg.OpTimeout(),
	})

	r := &Redis{
		client:    client,
		opTimeout: cfg.OpTimeout(),
		logger:    logger.Named("kvstore"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout())
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		r.logger.Warn("redis connection failed, starting unavailable",
			zap.String("addr", cfg.Addr()),
			zap.Error(err))
	} else {
		r.available.Store(true)
		r.logger.Info("redis connected",
			zap.String("addr", cfg.Addr()),
			zap.Int("db", cfg.DB))
	}

	return r
}

// Available reports the cached liveness flag.
func (r *Redis) Available() bool {
	return r.available.Load()
}

// Close releases the shared connection.
func (r *Redis) Close() error {
	r.available.Store(false)
	return r.client.Close()
}

// ready checks availability before an operation. While unavailable it
// attempts one reconnect ping; this is the only reconnection path.
func (r *Redis) ready(ctx context.Context) error {
	if r.available.Load() {
		return nil
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return ErrUnavailable
	}
	r.available.Store(true)
	r.logger.Info("redis reconnected")
	return nil
}

// fail records an operation failure, marking the adapter unavailable so
// subsequent calls short-circuit until a reconnect ping succeeds. Timeouts
// are not distinguished from outages.
func (r *Redis) fail(op string, err error) error {
	r.available.Store(false)
	r.logger.Warn("redis operation failed, marking unavailable",
		zap.String("op", op),
		zap.Error(err))
	return ErrUnavailable
}

func (r *Redis) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	if err := r.ready(ctx); err != nil {
		return "", false, err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, r.fail("get", err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return r.fail("set", err)
	}
	return nil
}

func (r *Redis) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.client.SetEx(ctx, key, value, ttl).Err(); err != nil {
		return r.fail("setex", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if err := r.ready(ctx); err != nil {
		return 0, err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, r.fail("del", err)
	}
	return n, nil
}

func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := r.ready(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, r.fail("keys", err)
	}
	return keys, nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := r.ready(ctx); err != nil {
		return 0, err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, r.fail("ttl", err)
	}
	return ttl, nil
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := r.ready(ctx); err != nil {
		return false, err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, r.fail("expire", err)
	}
	return ok, nil
}

func (r *Redis) ExpireNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := r.ready(ctx); err != nil {
		return false, err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	ok, err := r.client.ExpireNX(ctx, key, ttl).Result()
	if err != nil {
		return false, r.fail("expirenx", err)
	}
	return ok, nil
}

func (r *Redis) LPush(ctx context.Context, key string, values ...string) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := r.client.LPush(ctx, key, args...).Err(); err != nil {
		return r.fail("lpush", err)
	}
	return nil
}

func (r *Redis) LTrim(ctx context.Context, key string, start, stop int64) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.client.LTrim(ctx, key, start, stop).Err(); err != nil {
		return r.fail("ltrim", err)
	}
	return nil
}

func (r *Redis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if err := r.ready(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	vals, err := r.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, r.fail("lrange", err)
	}
	return vals, nil
}

// LPushCapped runs LPUSH, LTRIM and EXPIRE NX as a single transactional
// pipeline, so the push, the cap and the TTL-once expiry commit together.
func (r *Redis) LPushCapped(ctx context.Context, key string, keep int64, ttl time.Duration, values ...string) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, args...)
		pipe.LTrim(ctx, key, 0, keep-1)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return r.fail("lpushcapped", err)
	}
	return nil
}

func (r *Redis) LLen(ctx context.Context, key string) (int64, error) {
	if err := r.ready(ctx); err != nil {
		return 0, err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	n, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, r.fail("llen", err)
	}
	return n, nil
}

// Update implements optimistic read-modify-write with WATCH/MULTI. A
// concurrent write to key between the read and the commit aborts the
// transaction; the sequence is retried a bounded number of times.
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	txn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		found := true
		if errors.Is(err, redis.Nil) {
			current, found = "", false
		} else if err != nil {
			return err
		}

		next, ttl, err := fn(current, found)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if ttl > 0 {
				pipe.SetEx(ctx, key, next, ttl)
			} else {
				pipe.Set(ctx, key, next, 0)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < updateRetries; attempt++ {
		opCtx, cancel := r.opCtx(ctx)
		err := r.client.Watch(opCtx, txn, key)
		cancel()

		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		// fn errors carry domain meaning and must not flip availability.
		if !isNetworkError(err) {
			return err
		}
		return r.fail("update", err)
	}
	return redis.TxFailedErr
}

// Info returns parsed INFO fields for health reporting.
func (r *Redis) Info(ctx context.Context) (map[string]string, error) {
	if err := r.ready(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	raw, err := r.client.Info(ctx).Result()
	if err != nil {
		return nil, r.fail("info", err)
	}

	fields := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			fields[k] = v
		}
	}
	return fields, nil
}

// isNetworkError distinguishes transport failures from application errors
// surfaced through Watch.
func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr)
}
