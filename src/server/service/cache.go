package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheManager handles optional Redis/Valkey caching for hot read paths:
// public release pages and the admin metrics overview. If the connection
// fails, caching is disabled gracefully and every read goes to the database.
type CacheManager struct {
	client  *redis.Client
	enabled bool
	ctx     context.Context
}

// Cache key prefixes
const (
	CacheKeyPublicRelease = "public:release:"
	CacheKeyAdminMetrics  = "admin:metrics:"

	PublicReleaseTTL = 5 * time.Minute
	AdminMetricsTTL  = time.Minute
)

// NewCacheManager creates a cache manager from CACHE_* environment
// variables. Cache is opt-in and optional.
func NewCacheManager() *CacheManager {
	ctx := context.Background()

	cacheEnabled := os.Getenv("CACHE_ENABLED")
	if cacheEnabled != "true" && cacheEnabled != "1" {
		return &CacheManager{enabled: false, ctx: ctx}
	}

	host := os.Getenv("CACHE_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("CACHE_PORT")
	if port == "" {
		port = "6379"
	}
	password := os.Getenv("CACHE_PASSWORD")

	dbNum := 0
	if dbStr := os.Getenv("CACHE_DB"); dbStr != "" {
		if num, err := strconv.Atoi(dbStr); err == nil {
			dbNum = num
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     password,
		DB:           dbNum,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return &CacheManager{enabled: false, ctx: context.Background()}
	}

	return &CacheManager{client: client, enabled: true, ctx: context.Background()}
}

// IsEnabled returns whether caching is active
func (cm *CacheManager) IsEnabled() bool {
	return cm.enabled
}

// Get retrieves a value from cache
func (cm *CacheManager) Get(key string) (string, error) {
	if !cm.enabled {
		return "", fmt.Errorf("cache not enabled")
	}
	ctx, cancel := context.WithTimeout(cm.ctx, time.Second)
	defer cancel()
	return cm.client.Get(ctx, key).Result()
}

// Set stores a value with TTL; a disabled cache silently succeeds
func (cm *CacheManager) Set(key string, value string, ttl time.Duration) error {
	if !cm.enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(cm.ctx, time.Second)
	defer cancel()
	return cm.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a key; a disabled cache silently succeeds
func (cm *CacheManager) Delete(key string) error {
	if !cm.enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(cm.ctx, time.Second)
	defer cancel()
	return cm.client.Del(ctx, key).Err()
}

// InvalidateRelease drops a release's public page entry, called when a
// review decision or takedown changes what the public may see
func (cm *CacheManager) InvalidateRelease(slug string) {
	if slug != "" {
		cm.Delete(CacheKeyPublicRelease + slug)
	}
}

// Close shuts the cache connection down
func (cm *CacheManager) Close() error {
	if cm.client != nil {
		return cm.client.Close()
	}
	return nil
}
