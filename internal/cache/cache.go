/**
 * Result Cache - Redis-backed cache for accepted OCR results
 *
 * OCR is expensive; identical payloads show up repeatedly when the same
 * document page is reprocessed. The cache stores serialized results
 * keyed by a digest of (payload, kind, language). Misses and Redis
 * failures are never fatal - the pipeline just runs the engines.
 */

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/factlens/ocr-worker/internal/logging"
)

const keyPrefix = "ocr:result:"

// ResultCache caches serialized OCR results in Redis.
type ResultCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// New creates a result cache from a Redis URL and a TTL.
func New(redisURL string, ttl time.Duration) (*ResultCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &ResultCache{
		rdb:    redis.NewClient(opt),
		ttl:    ttl,
		logger: logging.NewLogger("ResultCache"),
	}, nil
}

// Key derives the cache key for a payload, kind and language.
func (c *ResultCache) Key(data []byte, kind, language string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(language))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached serialized result for key, or (nil, false).
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Cache read failed", "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores a serialized result under key with the configured TTL.
// Failures are logged and swallowed.
func (c *ResultCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", "error", err)
	}
}

// Close releases the Redis connection.
func (c *ResultCache) Close() error {
	return c.rdb.Close()
}
