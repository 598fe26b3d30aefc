package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCache(ttl time.Duration, fetch FetchFunc[string]) (*Cache[string], *time.Time) {
	c := New(ttl, fetch, discardLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGetCachesWithinTTL(t *testing.T) {
	var fetches int32
	c, now := testCache(time.Hour, func(ctx context.Context, key string) (string, error) {
		atomic.AddInt32(&fetches, 1)
		return "v" + key, nil
	})

	v1, at1, err := c.Get(context.Background(), "a")
	if err != nil || v1 != "va" {
		t.Fatalf("Get = %q, %v", v1, err)
	}

	*now = now.Add(30 * time.Minute)
	v2, at2, err := c.Get(context.Background(), "a")
	if err != nil || v2 != "va" {
		t.Fatalf("Get = %q, %v", v2, err)
	}
	if !at2.Equal(at1) {
		t.Errorf("fetchedAt changed within TTL: %v then %v", at1, at2)
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestGetRefreshesAfterTTL(t *testing.T) {
	var fetches int32
	c, now := testCache(time.Hour, func(ctx context.Context, key string) (string, error) {
		n := atomic.AddInt32(&fetches, 1)
		if n == 1 {
			return "old", nil
		}
		return "new", nil
	})

	if v, _, _ := c.Get(context.Background(), "a"); v != "old" {
		t.Fatalf("first Get = %q", v)
	}

	*now = now.Add(2 * time.Hour)
	v, at, err := c.Get(context.Background(), "a")
	if err != nil || v != "new" {
		t.Fatalf("expired Get = %q, %v", v, err)
	}
	if !at.Equal(*now) {
		t.Errorf("fetchedAt = %v, want refresh time %v", at, *now)
	}
	if n := atomic.LoadInt32(&fetches); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestConcurrentGetSingleFetch(t *testing.T) {
	var fetches int32
	release := make(chan struct{})
	c, _ := testCache(time.Hour, func(ctx context.Context, key string) (string, error) {
		atomic.AddInt32(&fetches, 1)
		<-release
		return "shared", nil
	})

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.Get(context.Background(), "a")
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			results[i] = v
		}(i)
	}

	// Give the goroutines time to pile onto the same key, then let the
	// single fetch finish.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
	for i, v := range results {
		if v != "shared" {
			t.Errorf("results[%d] = %q", i, v)
		}
	}
}

func TestGetServesStaleDuringRefresh(t *testing.T) {
	var fetches int32
	release := make(chan struct{})
	c, now := testCache(time.Hour, func(ctx context.Context, key string) (string, error) {
		if atomic.AddInt32(&fetches, 1) == 1 {
			return "first", nil
		}
		<-release
		return "second", nil
	})

	if _, _, err := c.Get(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(2 * time.Hour)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		c.GetFresh(context.Background(), "a")
		close(done)
	}()
	<-started
	for atomic.LoadInt32(&fetches) < 2 {
		time.Sleep(time.Millisecond)
	}

	// Refresh is blocked in flight; Get must not queue behind it.
	v, _, err := c.Get(context.Background(), "a")
	if err != nil || v != "first" {
		t.Errorf("Get during refresh = %q, %v, want stale value", v, err)
	}

	close(release)
	<-done
	if v, _, _ := c.Get(context.Background(), "a"); v != "second" {
		t.Errorf("Get after refresh = %q", v)
	}
}

func TestFetchErrorFallsBackToStale(t *testing.T) {
	var fetches int32
	c, now := testCache(time.Hour, func(ctx context.Context, key string) (string, error) {
		if atomic.AddInt32(&fetches, 1) == 1 {
			return "good", nil
		}
		return "", errors.New("upstream down")
	})

	if _, _, err := c.Get(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(2 * time.Hour)

	v, _, err := c.Get(context.Background(), "a")
	if err != nil || v != "good" {
		t.Errorf("Get = %q, %v, want stale fallback", v, err)
	}
}

func TestFetchErrorWithoutStale(t *testing.T) {
	c, _ := testCache(time.Hour, func(ctx context.Context, key string) (string, error) {
		return "", errors.New("upstream down")
	})

	_, _, err := c.Get(context.Background(), "a")
	if err == nil {
		t.Fatal("want error on cold fetch failure")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, failed fetch should not cache", c.Len())
	}
}

func TestGetFreshBypassesTTL(t *testing.T) {
	var fetches int32
	c, _ := testCache(time.Hour, func(ctx context.Context, key string) (string, error) {
		atomic.AddInt32(&fetches, 1)
		return "v", nil
	})

	c.Get(context.Background(), "a")
	c.GetFresh(context.Background(), "a")
	if n := atomic.LoadInt32(&fetches); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestInvalidate(t *testing.T) {
	var fetches int32
	c, _ := testCache(time.Hour, func(ctx context.Context, key string) (string, error) {
		atomic.AddInt32(&fetches, 1)
		return "v", nil
	})

	c.Get(context.Background(), "a")
	c.Invalidate("a")
	c.Get(context.Background(), "a")
	if n := atomic.LoadInt32(&fetches); n != 2 {
		t.Errorf("fetches = %d, want 2 after invalidation", n)
	}
}
