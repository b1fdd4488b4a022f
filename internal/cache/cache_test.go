package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestGetOrComputeCachesWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := New[int]("test", 10, 5*time.Minute, WithClock[int](clock.Now))
	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, hit, err := c.GetOrCompute(context.Background(), "k", fn)
	if err != nil || v != 42 || hit {
		t.Fatalf("first call: expected (42, miss), got v=%v hit=%v err=%v", v, hit, err)
	}
	clock.Advance(time.Minute)
	v, hit, err = c.GetOrCompute(context.Background(), "k", fn)
	if err != nil || v != 42 || !hit {
		t.Fatalf("second call: expected cached 42, got v=%v hit=%v err=%v", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 computation, got %d", calls)
	}
}

func TestGetOrComputeExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c := New[int]("test", 10, 5*time.Minute, WithClock[int](clock.Now))
	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	if v, _, _ := c.GetOrCompute(context.Background(), "k", fn); v != 1 {
		t.Fatalf("expected first value 1, got %v", v)
	}
	clock.Advance(5*time.Minute + time.Second)
	v, hit, _ := c.GetOrCompute(context.Background(), "k", fn)
	if hit {
		t.Error("expected a miss after TTL elapsed")
	}
	if v != 2 {
		t.Errorf("expected recomputed value 2, got %v", v)
	}
	if calls != 2 {
		t.Errorf("expected 2 computations, got %d", calls)
	}
}

func TestGetOrComputeNeverCachesFailures(t *testing.T) {
	clock := newFakeClock()
	c := New[int]("test", 10, 5*time.Minute, WithClock[int](clock.Now))
	calls := 0
	boom := errors.New("upstream down")
	fn := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}
		return 7, nil
	}

	if _, _, err := c.GetOrCompute(context.Background(), "k", fn); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	v, hit, err := c.GetOrCompute(context.Background(), "k", fn)
	if err != nil || v != 7 || hit {
		t.Fatalf("expected fresh recompute after failure, got v=%v hit=%v err=%v", v, hit, err)
	}
	if calls != 2 {
		t.Errorf("expected 2 computations, got %d", calls)
	}
}

func TestZeroTTLDisablesCaching(t *testing.T) {
	c := New[int]("test", 10, 0)
	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}
	for i := 1; i <= 3; i++ {
		v, hit, err := c.GetOrCompute(context.Background(), "k", fn)
		if err != nil || hit || v != i {
			t.Fatalf("call %d: expected computed %d with no hit, got v=%v hit=%v err=%v", i, i, v, hit, err)
		}
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	clock := newFakeClock()
	c := New[string]("test", 2, time.Hour, WithClock[string](clock.Now))
	compute := func(v string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) { return v, nil }
	}

	c.GetOrCompute(context.Background(), "a", compute("A"))
	clock.Advance(time.Second)
	c.GetOrCompute(context.Background(), "b", compute("B"))
	clock.Advance(time.Second)
	// Touch "a" so "b" becomes the least recently used.
	c.GetOrCompute(context.Background(), "a", compute("A"))
	clock.Advance(time.Second)
	c.GetOrCompute(context.Background(), "c", compute("C"))

	if n := c.Len(); n != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", n)
	}
	if _, hit, _ := c.GetOrCompute(context.Background(), "a", compute("A2")); !hit {
		t.Error("expected recently used key to survive eviction")
	}
	if _, hit, _ := c.GetOrCompute(context.Background(), "b", compute("B2")); hit {
		t.Error("expected least recently used key to be evicted")
	}
}

func TestConcurrentCallersShareOneComputation(t *testing.T) {
	c := New[int]("test", 10, time.Hour)
	var calls atomic.Int64
	release := make(chan struct{})
	fn := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 99, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), "k", fn)
			if err != nil {
				t.Errorf("worker %d: unexpected error %v", i, err)
			}
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond) // let the workers pile onto the key
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected a single shared computation, got %d", got)
	}
	for i, v := range results {
		if v != 99 {
			t.Errorf("worker %d: expected 99, got %d", i, v)
		}
	}
}

func TestInvalidate(t *testing.T) {
	c := New[int]("test", 10, time.Hour)
	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}
	c.GetOrCompute(context.Background(), "k", fn)
	c.Invalidate("k")
	if _, hit, _ := c.GetOrCompute(context.Background(), "k", fn); hit {
		t.Error("expected a miss after invalidation")
	}
	if calls != 2 {
		t.Errorf("expected 2 computations, got %d", calls)
	}
}
