package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func cacheBackends(t *testing.T) map[string]func(t *testing.T) Cache {
	return map[string]func(t *testing.T) Cache{
		"memory": func(t *testing.T) Cache {
			c := NewMemoryCache()
			t.Cleanup(func() { c.Close() })
			return c
		},
		"redis": func(t *testing.T) Cache {
			addr := os.Getenv("TEST_REDIS_ADDR")
			if addr == "" {
				t.Skip("Redis not available: TEST_REDIS_ADDR not set")
			}
			client, err := NewRedisClient(context.Background(), RedisConfig{Addr: addr})
			if err != nil {
				t.Skipf("Redis not available: %v", err)
			}
			c := NewRedisCache(client, "cruzeta-test:"+uuid.NewString()[:8]+":")
			t.Cleanup(func() {
				c.Clear(context.Background())
				c.Close()
			})
			return c
		},
	}
}

func TestCache_GetSetDelete(t *testing.T) {
	for name, factory := range cacheBackends(t) {
		t.Run(name, func(t *testing.T) {
			c := factory(t)
			ctx := context.Background()

			if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
				t.Fatalf("expected cache miss, got %v", err)
			}

			if err := c.Set(ctx, "user:1", []byte("ana"), time.Minute); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, err := c.Get(ctx, "user:1")
			if err != nil || string(got) != "ana" {
				t.Fatalf("expected ana, got %q / %v", got, err)
			}

			c.Delete(ctx, "user:1")
			if _, err := c.Get(ctx, "user:1"); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("expected miss after delete, got %v", err)
			}

			stats, err := c.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats failed: %v", err)
			}
			if stats.Hits != 1 || stats.Misses != 2 {
				t.Errorf("expected 1 hit and 2 misses, got %+v", stats)
			}
		})
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	for name, factory := range cacheBackends(t) {
		t.Run(name, func(t *testing.T) {
			c := factory(t)
			ctx := context.Background()

			c.Set(ctx, "user:1", []byte("a"), time.Minute)
			c.Set(ctx, "user:2", []byte("b"), time.Minute)
			c.Set(ctx, "session:1", []byte("c"), time.Minute)

			if err := c.DeletePrefix(ctx, "user:"); err != nil {
				t.Fatalf("DeletePrefix failed: %v", err)
			}
			if _, err := c.Get(ctx, "user:2"); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("expected user:2 removed, got %v", err)
			}
			if _, err := c.Get(ctx, "session:1"); err != nil {
				t.Errorf("expected session:1 kept, got %v", err)
			}
		})
	}
}

func TestCache_GetOrSetComputesOnce(t *testing.T) {
	for name, factory := range cacheBackends(t) {
		t.Run(name, func(t *testing.T) {
			c := factory(t)
			ctx := context.Background()

			calls := 0
			fn := func() ([]byte, error) {
				calls++
				return []byte("computed"), nil
			}
			for i := 0; i < 3; i++ {
				got, err := c.GetOrSet(ctx, "k", time.Minute, fn)
				if err != nil || string(got) != "computed" {
					t.Fatalf("unexpected result %q / %v", got, err)
				}
			}
			if calls != 1 {
				t.Errorf("expected fn to run once, ran %d times", calls)
			}

			boom := errors.New("boom")
			if _, err := c.GetOrSet(ctx, "other", time.Minute, func() ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
				t.Errorf("expected fn error to propagate, got %v", err)
			}
		})
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "k", []byte("v"), time.Second)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("expected hit before expiry, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss after expiry, got %v", err)
	}

	c.removeExpired()
	stats, _ := c.Stats(ctx)
	if stats.Keys != 0 {
		t.Errorf("expected expired entry swept, got %d keys", stats.Keys)
	}
}
