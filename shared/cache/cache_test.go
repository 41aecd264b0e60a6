package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func testRedisURL() string {
	if v := os.Getenv("REDIS_URL"); v != "" {
		return v
	}
	return "redis://localhost:6379"
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping cache test in short mode")
	}

	c, err := NewCache(testRedisURL())
	if err != nil {
		t.Fatalf("expected no error building cache, got %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("skipping test: could not reach Redis: %v", err)
	}
	return c
}

func TestNewCache(t *testing.T) {
	c := newTestCache(t)
	if c == nil || c.Client == nil {
		t.Fatal("expected a cache instance with a redis client")
	}
}

func TestCacheSetAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := "test:contractdata:1:0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	if err := c.Set(ctx, key, "test_value", 10*time.Second); err != nil {
		t.Fatalf("expected no error setting value, got %v", err)
	}

	var got string
	if err := c.Get(ctx, key, &got); err != nil {
		t.Fatalf("expected no error getting value, got %v", err)
	}
	if got != "test_value" {
		t.Errorf("expected value %q, got %q", "test_value", got)
	}
}

func TestCacheGetNonExistent(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var got string
	if err := c.Get(ctx, "test:missing-key", &got); err == nil {
		t.Error("expected an error for a missing key, got nil")
	}
}

func TestCacheDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := "test:delete-key"

	if err := c.Set(ctx, key, "value", 10*time.Second); err != nil {
		t.Fatalf("expected no error setting value, got %v", err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("expected no error deleting key, got %v", err)
	}

	exists, err := c.Exists(ctx, key)
	if err != nil {
		t.Fatalf("expected no error checking existence, got %v", err)
	}
	if exists {
		t.Error("expected key to be gone after delete")
	}
}

func TestCacheExists(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := "test:exists-key"

	if err := c.Set(ctx, key, "value", 10*time.Second); err != nil {
		t.Fatalf("expected no error setting value, got %v", err)
	}

	exists, err := c.Exists(ctx, key)
	if err != nil {
		t.Fatalf("expected no error checking existence, got %v", err)
	}
	if !exists {
		t.Error("expected key to exist")
	}

	exists, err = c.Exists(ctx, "test:does-not-exist")
	if err != nil {
		t.Fatalf("expected no error checking non-existent key, got %v", err)
	}
	if exists {
		t.Error("expected non-existent key to report false")
	}
}

func TestCacheSetWithExpiration(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := "test:expiration-key"

	if err := c.Set(ctx, key, "value", time.Second); err != nil {
		t.Fatalf("expected no error setting value, got %v", err)
	}

	var got string
	if err := c.Get(ctx, key, &got); err != nil {
		t.Fatalf("expected value to exist immediately after set, got %v", err)
	}

	time.Sleep(2 * time.Second)

	if err := c.Get(ctx, key, &got); err == nil {
		t.Error("expected an error once the key has expired")
	}
}

func TestCacheClose(t *testing.T) {
	c := newTestCache(t)
	if err := c.Close(); err != nil {
		t.Errorf("expected no error closing cache, got %v", err)
	}
}
