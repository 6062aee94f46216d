package genai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "banorte:genai:"

var errCacheMiss = errors.New("cache miss")

// cacheStore is the slice of a key/value store the cache needs.
type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type redisStore struct {
	rdb *redis.Client
}

func (s redisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errCacheMiss
	}
	return v, err
}

func (s redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s redisStore) Close() error { return s.rdb.Close() }

// Cached serves repeated identical requests from Redis. Cache failures are
// logged and the request goes to the underlying client.
type Cached struct {
	next   Client
	store  cacheStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached connects to redisURL and wraps next.
func NewCached(ctx context.Context, next Client, redisURL string, ttl time.Duration, logger *slog.Logger) (*Cached, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newCached(next, redisStore{rdb: rdb}, ttl, logger), nil
}

func newCached(next Client, store cacheStore, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *Cached) Model() string { return c.next.Model() }

func (c *Cached) Generate(ctx context.Context, req Request) (string, error) {
	key := cacheKey(c.next.Model(), req)

	v, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		c.logger.Debug("generation cache hit", "key", key)
		return v, nil
	case !errors.Is(err, errCacheMiss):
		c.logger.Warn("generation cache read failed", "error", err)
	}

	out, err := c.next.Generate(ctx, req)
	if err != nil {
		return "", err
	}

	if err := c.store.Set(ctx, key, out, c.ttl); err != nil {
		c.logger.Warn("generation cache write failed", "error", err)
	}
	return out, nil
}

// Close releases the cache store and then the wrapped client.
func (c *Cached) Close() error {
	var errs []error
	if closer, ok := c.store.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, Close(c.next))
	return errors.Join(errs...)
}

func cacheKey(model string, req Request) string {
	h := sha256.New()
	for _, part := range []string{
		model,
		req.System,
		req.Prompt,
		strconv.FormatFloat(req.Temperature, 'g', -1, 64),
		strconv.Itoa(req.MaxTokens),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return cachePrefix + hex.EncodeToString(h.Sum(nil))
}
