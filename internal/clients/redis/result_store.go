package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"wordwatch/internal/logger"
)

// Options configures a ResultStore
type Options struct {
	Addr       string
	Prefix     string
	CounterKey string
}

// ResultStore keeps experiment results and the assignment counter in Redis.
// Every result key is also added to an index set.
type ResultStore struct {
	log        *logger.Logger
	rdb        *goredis.Client
	prefix     string
	counterKey string
}

// NewResultStore connects to Redis and verifies the connection
func NewResultStore(ctx context.Context, log *logger.Logger, opts Options) (*ResultStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if opts.CounterKey == "" {
		return nil, fmt.Errorf("missing counter key")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &ResultStore{
		log:        log.With("service", "RedisResultStore"),
		rdb:        rdb,
		prefix:     opts.Prefix,
		counterKey: opts.CounterKey,
	}, nil
}

func (s *ResultStore) resultKey(key string) string { return s.prefix + "result:" + key }
func (s *ResultStore) indexKey() string            { return s.prefix + "results" }
func (s *ResultStore) counterName() string         { return s.prefix + "counter:" + s.counterKey }

// Write stores value as JSON under key
func (s *ResultStore) Write(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.resultKey(key), raw, 0)
		pipe.SAdd(ctx, s.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write %s: %w", key, err)
	}
	s.log.Debug("result stored", "key", key)
	return nil
}

// ReadCounter returns the assignment counter, zero when unset
func (s *ResultStore) ReadCounter(ctx context.Context) (int, error) {
	n, err := s.rdb.Get(ctx, s.counterName()).Int()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis read counter: %w", err)
	}
	return n, nil
}

// WriteCounter overwrites the assignment counter
func (s *ResultStore) WriteCounter(ctx context.Context, n int) error {
	if err := s.rdb.Set(ctx, s.counterName(), n, 0).Err(); err != nil {
		return fmt.Errorf("redis write counter: %w", err)
	}
	return nil
}

func (s *ResultStore) Close() error {
	return s.rdb.Close()
}
