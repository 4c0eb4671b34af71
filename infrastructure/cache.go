package infrastructure

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by ListingCache.Get when nothing is cached for the query.
var ErrCacheMiss = errors.New("cache miss")

const generationKey = "jobs:generation"

// ListingCache holds job listing responses keyed by filters and limit.
// Get returns the generation it looked in, and a listing computed after that Get must be
// stored with Set under the same generation. An Invalidate in between then leaves the
// stale listing unreachable.
type ListingCache interface {
	Get(ctx context.Context, filters Filters, limit int, dst any) (gen int64, err error)
	Set(ctx context.Context, gen int64, filters Filters, limit int, value any) error
	Invalidate(ctx context.Context) error
	Close() error
}

// NewListingCache connects to cfg.RedisURL, or returns a cache that never hits when unset.
func NewListingCache(cfg *Config, logger *zap.Logger, observer Observer) (ListingCache, error) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, job listing cache is disabled")
		return NopCache{}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("connected to redis", zap.String("addr", opts.Addr))
	return &RedisCache{client: client, ttl: cfg.CacheTTL, observer: observer}, nil
}

// RedisCache stores listings under a generation counter so Invalidate is a single INCR.
type RedisCache struct {
	client   *redis.Client
	ttl      time.Duration
	observer Observer
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) Get(ctx context.Context, filters Filters, limit int, dst any) (int64, error) {
	start := time.Now()
	var size int64
	gen, err := c.generation(ctx)
	if err == nil {
		err = func() error {
			val, err := c.client.Get(ctx, listingKey(gen, filters, limit)).Bytes()
			if err == redis.Nil {
				return ErrCacheMiss
			}
			if err != nil {
				return err
			}
			size = int64(len(val))
			return json.Unmarshal(val, dst)
		}()
	}
	c.observe("get", start, err, size)
	return gen, err
}

func (c *RedisCache) Set(ctx context.Context, gen int64, filters Filters, limit int, value any) error {
	start := time.Now()
	body, err := json.Marshal(value)
	if err == nil {
		err = c.client.Set(ctx, listingKey(gen, filters, limit), body, c.ttl).Err()
	}
	c.observe("set", start, err, int64(len(body)))
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	start := time.Now()
	err := c.client.Incr(ctx, generationKey).Err()
	c.observe("invalidate", start, err, 0)
	return err
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) observe(op string, start time.Time, err error, size int64) {
	if errors.Is(err, ErrCacheMiss) {
		err = nil
	}
	c.observer.ObserveOperation(OperationContext{
		Component: "cache",
		Operation: op,
		Resource:  "jobs",
		Duration:  time.Since(start),
		Error:     err,
		Size:      size,
	})
}

// listingKey is stable for equal filters regardless of map order.
func listingKey(gen int64, filters Filters, limit int) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, filters[k])
	}
	b.WriteString("limit=" + strconv.Itoa(limit))

	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("jobs:v%d:%s", gen, hex.EncodeToString(sum[:8]))
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, Filters, int, any) (int64, error) { return 0, ErrCacheMiss }
func (NopCache) Set(context.Context, int64, Filters, int, any) error   { return nil }
func (NopCache) Invalidate(context.Context) error                      { return nil }
func (NopCache) Close() error                                          { return nil }
