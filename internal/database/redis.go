package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// DegradedListener is notified when the client flips in or out of degraded mode
type DegradedListener func(degraded bool)

// RedisClient wraps the Redis client with degraded mode support. When the
// backend becomes unreachable, commands short-circuit with an error instead of
// piling up on timeouts; signaling stays best-effort.
type RedisClient struct {
	Client         *redis.Client
	degradedMode   bool
	degradedModeMu sync.RWMutex
	healthCheckMu  sync.Mutex
	listener       DegradedListener
}

// NewRedisDB creates a new Redis client from config
func NewRedisDB(cfg *RedisConfig) (*RedisClient, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		DialTimeout:  cfg.Timeout,
	})

	return &RedisClient{Client: client}, nil
}

// NewRedisClient creates a bare Redis client from an address, used in tests
func NewRedisClient(addr string) *RedisClient {
	return &RedisClient{Client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Close closes the Redis client connection
func (r *RedisClient) Close() {
	r.Client.Close()
}

// OnDegradedChange registers a listener for degraded mode transitions
// (used to feed the metrics gauge). Must be called before StartHealthCheck.
func (r *RedisClient) OnDegradedChange(fn DegradedListener) {
	r.listener = fn
}

// StartHealthCheck starts a background goroutine that periodically checks Redis health
func (r *RedisClient) StartHealthCheck(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.HealthCheck(context.Background())
			}
		}
	}()
}

// IsDegraded returns true if Redis is in degraded mode
func (r *RedisClient) IsDegraded() bool {
	r.degradedModeMu.RLock()
	defer r.degradedModeMu.RUnlock()
	return r.degradedMode
}

func (r *RedisClient) setDegradedState(degraded bool) {
	r.degradedModeMu.Lock()
	changed := r.degradedMode != degraded
	r.degradedMode = degraded
	r.degradedModeMu.Unlock()

	if changed && r.listener != nil {
		r.listener(degraded)
	}
}

// HealthCheck performs a health check on Redis and updates degraded mode.
// A mutex prevents concurrent health checks from overwhelming Redis.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	r.healthCheckMu.Lock()
	defer r.healthCheckMu.Unlock()

	healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.Client.Ping(healthCtx).Err(); err != nil {
		r.setDegradedState(true)
		return fmt.Errorf("redis health check failed: %w", err)
	}

	r.setDegradedState(false)
	return nil
}

var errDegraded = fmt.Errorf("redis is in degraded mode")

// SafeGet performs a GET operation with degraded mode handling
func (r *RedisClient) SafeGet(ctx context.Context, key string) *redis.StringCmd {
	if r.IsDegraded() {
		return redis.NewStringResult("", errDegraded)
	}
	return r.Client.Get(ctx, key)
}

// SafeSet performs a SET operation with degraded mode handling
func (r *RedisClient) SafeSet(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if r.IsDegraded() {
		return redis.NewStatusResult("", errDegraded)
	}
	return r.Client.Set(ctx, key, value, expiration)
}

// SafeDel performs a DEL operation with degraded mode handling
func (r *RedisClient) SafeDel(ctx context.Context, keys ...string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.Del(ctx, keys...)
}

// SafeExists performs an EXISTS operation with degraded mode handling
func (r *RedisClient) SafeExists(ctx context.Context, keys ...string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.Exists(ctx, keys...)
}

// SafeExpire performs an EXPIRE operation with degraded mode handling
func (r *RedisClient) SafeExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if r.IsDegraded() {
		return redis.NewBoolResult(false, errDegraded)
	}
	return r.Client.Expire(ctx, key, expiration)
}

// SafePublish performs a PUBLISH operation with degraded mode handling
func (r *RedisClient) SafePublish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.Publish(ctx, channel, message)
}

// SafeSubscribe performs a SUBSCRIBE operation with degraded mode handling
func (r *RedisClient) SafeSubscribe(ctx context.Context, channels ...string) *redis.PubSub {
	if r.IsDegraded() {
		return nil
	}
	return r.Client.Subscribe(ctx, channels...)
}

// SafeSAdd performs a SADD operation with degraded mode handling
func (r *RedisClient) SafeSAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.SAdd(ctx, key, members...)
}

// SafeSRem performs a SREM operation with degraded mode handling
func (r *RedisClient) SafeSRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.SRem(ctx, key, members...)
}

// SafeSMembers performs a SMEMBERS operation with degraded mode handling
func (r *RedisClient) SafeSMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	if r.IsDegraded() {
		return redis.NewStringSliceResult([]string{}, errDegraded)
	}
	return r.Client.SMembers(ctx, key)
}

// SafeHSet performs an HSET operation with degraded mode handling
func (r *RedisClient) SafeHSet(ctx context.Context, key, field string, value interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.HSet(ctx, key, field, value)
}

// SafeHGet performs an HGET operation with degraded mode handling
func (r *RedisClient) SafeHGet(ctx context.Context, key, field string) *redis.StringCmd {
	if r.IsDegraded() {
		return redis.NewStringResult("", errDegraded)
	}
	return r.Client.HGet(ctx, key, field)
}

// SafeHGetAll performs an HGETALL operation with degraded mode handling
func (r *RedisClient) SafeHGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	if r.IsDegraded() {
		return redis.NewMapStringStringResult(map[string]string{}, errDegraded)
	}
	return r.Client.HGetAll(ctx, key)
}

// SafeHDel performs an HDEL operation with degraded mode handling
func (r *RedisClient) SafeHDel(ctx context.Context, key string, fields ...string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.HDel(ctx, key, fields...)
}
