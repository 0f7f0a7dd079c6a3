package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	cache, err := NewRedisCache(srv.Addr(), 0)
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache, srv
}

func TestRedisCacheSetGetDelete(t *testing.T) {
	cache, _ := setupRedisCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "diff:dev:staging", "unchanged", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "diff:dev:staging")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "unchanged" {
		t.Fatalf("Get() = (%q, %v), want (unchanged, true)", value, found)
	}

	if err := cache.Delete(ctx, "diff:dev:staging"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, found, err = cache.Get(ctx, "diff:dev:staging"); err != nil || found {
		t.Fatalf("Get() after delete = (found=%v, err=%v), want a miss", found, err)
	}
}

func TestRedisCacheTTL(t *testing.T) {
	cache, srv := setupRedisCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "hash:wf-1", "abc123", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	srv.FastForward(2 * time.Minute)

	if _, found, err := cache.Get(ctx, "hash:wf-1"); err != nil || found {
		t.Fatalf("Get() after ttl = (found=%v, err=%v), want a miss", found, err)
	}
}

func TestRedisCacheRejectsEmptyKey(t *testing.T) {
	cache, _ := setupRedisCache(t)

	if err := cache.Set(context.Background(), "  ", "x", 0); err == nil {
		t.Fatalf("Set() with blank key should fail")
	}
}
