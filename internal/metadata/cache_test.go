package metadata_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tubefetch/internal/config"
	"tubefetch/internal/entity"
	"tubefetch/internal/metadata"
	"tubefetch/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
)

func newCache(size int, ttl time.Duration) *metadata.Cache {
	cfg := &config.Config{}
	cfg.Cache.Size = size
	cfg.Cache.TTL = ttl

	return metadata.NewCache(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg,
		observability.NewWith(prometheus.NewRegistry()),
	)
}

func TestCacheMemoizes(t *testing.T) {
	c := newCache(8, time.Minute)

	var calls atomic.Int32

	fetch := func(_ context.Context, url string) (*entity.VideoMetadata, error) {
		calls.Add(1)

		return &entity.VideoMetadata{Title: url}, nil
	}

	for range 3 {
		got, err := c.Get(t.Context(), "https://a", fetch)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}

		if got.Title != "https://a" {
			t.Errorf("Title = %q", got.Title)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1", calls.Load())
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	c := newCache(8, time.Minute)
	boom := errors.New("boom")

	var calls atomic.Int32

	fetch := func(context.Context, string) (*entity.VideoMetadata, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}

		return &entity.VideoMetadata{Title: "ok"}, nil
	}

	if _, err := c.Get(t.Context(), "https://a", fetch); !errors.Is(err, boom) {
		t.Fatalf("first Get() error = %v, want %v", err, boom)
	}

	if _, err := c.Get(t.Context(), "https://a", fetch); err != nil {
		t.Fatalf("second Get() failed: %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("fetch called %d times, want 2", calls.Load())
	}
}

func TestCacheCollapsesConcurrentMisses(t *testing.T) {
	c := newCache(8, time.Minute)

	var calls atomic.Int32

	release := make(chan struct{})
	fetch := func(context.Context, string) (*entity.VideoMetadata, error) {
		calls.Add(1)
		<-release

		return &entity.VideoMetadata{Title: "shared"}, nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			if _, err := c.Get(t.Context(), "https://a", fetch); err != nil {
				t.Errorf("Get() failed: %v", err)
			}
		})
	}

	// let the callers pile up behind the first fetch
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1", calls.Load())
	}
}

func TestCacheBoundsAndExpiry(t *testing.T) {
	c := newCache(2, 50*time.Millisecond)

	var calls atomic.Int32

	fetch := func(_ context.Context, url string) (*entity.VideoMetadata, error) {
		calls.Add(1)

		return &entity.VideoMetadata{Title: url}, nil
	}

	for _, url := range []string{"a", "b", "c"} {
		if _, err := c.Get(t.Context(), url, fetch); err != nil {
			t.Fatalf("Get(%s) failed: %v", url, err)
		}
	}

	if c.Len() > 2 {
		t.Errorf("Len() = %d, want at most 2", c.Len())
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := c.Get(t.Context(), "c", fetch); err != nil {
		t.Fatalf("Get(c) failed: %v", err)
	}

	if calls.Load() != 4 {
		t.Errorf("fetch called %d times, want 4 (expired entry refetched)", calls.Load())
	}
}
