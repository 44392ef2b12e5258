package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures the Redis-backed Versioned Store Client, grounded on the
// teacher's draftstore.Config (internal/core/tx/ports/draftstore/redis.go).
type Config struct {
	// Addr is the Redis server address, e.g. "localhost:6379".
	Addr string
	// Password is optional.
	Password string
	// DB selects the Redis logical database.
	DB int
	// PoolSize and MinIdleConns size the connection pool.
	PoolSize     int
	MinIdleConns int
	// DialTimeout, ReadTimeout, WriteTimeout are in seconds; 0 uses the
	// go-redis default.
	DialTimeout  int
	ReadTimeout  int
	WriteTimeout int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PoolSize == 0 {
		out.PoolSize = 20
	}
	if out.MinIdleConns == 0 {
		out.MinIdleConns = 5
	}
	return out
}

// redisCmdable is the subset of *redis.Client this package calls, so tests
// can substitute a miniredis-backed or hand-rolled fake without a live
// server.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	ZRevRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisClient implements Client atop github.com/redis/go-redis/v9.
type RedisClient struct {
	rdb redisCmdable
}

var _ Client = (*RedisClient)(nil)

// NewRedisClient dials Redis per cfg and verifies connectivity with Ping.
func NewRedisClient(cfg Config) (*RedisClient, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("store: redis address must not be empty")
	}
	cfg = cfg.withDefaults()

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = time.Duration(cfg.DialTimeout) * time.Second
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = time.Duration(cfg.ReadTimeout) * time.Second
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = time.Duration(cfg.WriteTimeout) * time.Second
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: connect to redis: %w", err)
	}

	return &RedisClient{rdb: client}, nil
}

// newRedisClientFromCmdable wires a pre-built redisCmdable, used by tests.
func newRedisClientFromCmdable(rdb redisCmdable) *RedisClient {
	return &RedisClient{rdb: rdb}
}

func (c *RedisClient) Get(ctx context.Context, key []byte) ([]byte, error) {
	val, err := c.rdb.Get(ctx, string(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get: %w", err)
	}
	return val, nil
}

func (c *RedisClient) RevRangeLE(ctx context.Context, setKey []byte, maxScore uint64) ([]byte, error) {
	members, err := c.rdb.ZRevRangeByScore(ctx, string(setKey), &redis.ZRangeBy{
		Max:    fmt.Sprintf("%d", maxScore),
		Min:    "-inf",
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("store: revrange_le: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrNotFound
	}
	return []byte(members[0]), nil
}

func (c *RedisClient) Scan(ctx context.Context, cursor string, matchPattern string, countHint int64) (string, [][]byte, error) {
	var cur uint64
	if cursor != "" && cursor != "0" {
		if _, err := fmt.Sscanf(cursor, "%d", &cur); err != nil {
			return "0", nil, fmt.Errorf("store: invalid cursor %q: %w", cursor, err)
		}
	}

	keys, nextCur, err := c.rdb.Scan(ctx, cur, matchPattern, countHint).Result()
	if err != nil {
		return "0", nil, fmt.Errorf("store: scan: %w", err)
	}

	result := make([][]byte, len(keys))
	for i, k := range keys {
		result[i] = []byte(k)
	}
	return fmt.Sprintf("%d", nextCur), result, nil
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}
