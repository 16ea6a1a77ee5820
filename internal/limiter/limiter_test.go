package limiter

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(perAgent, perMinute int, window time.Duration) (*Limiter, *time.Time) {
	l := New(Config{
		MaxConcurrentPerAgent: perAgent,
		MaxQueriesPerMinute:   perMinute,
		Window:                window,
	})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func mustAcquire(t *testing.T, l *Limiter, agent string) {
	t.Helper()
	if err := l.Acquire(agent); err != nil {
		t.Fatalf("acquire for %s: unexpected error %v", agent, err)
	}
}

func assertQuotaKind(t *testing.T, err error, want Kind) {
	t.Helper()
	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QuotaError, got %v", err)
	}
	if qe.Kind != want {
		t.Fatalf("expected kind %s, got %s", want, qe.Kind)
	}
}

func TestPerAgentConcurrencyCap(t *testing.T) {
	l, _ := newTestLimiter(2, 100, time.Minute)

	mustAcquire(t, l, "a1")
	mustAcquire(t, l, "a1")

	err := l.Acquire("a1")
	assertQuotaKind(t, err, PerAgentConcurrency)

	// A different agent is unaffected.
	mustAcquire(t, l, "a2")

	// Releasing frees exactly one slot.
	l.Release("a1")
	mustAcquire(t, l, "a1")
}

func TestGlobalSlidingWindow(t *testing.T) {
	l, now := newTestLimiter(10, 3, time.Minute)

	mustAcquire(t, l, "a1")
	l.Release("a1")
	mustAcquire(t, l, "a2")
	l.Release("a2")
	mustAcquire(t, l, "a3")
	l.Release("a3")

	// Concurrency slots are free, but the window is full.
	err := l.Acquire("a4")
	assertQuotaKind(t, err, GlobalRate)

	// Once the admissions age out of the window they stop counting.
	*now = now.Add(61 * time.Second)
	mustAcquire(t, l, "a4")
}

func TestWindowPrunesOnlyExpired(t *testing.T) {
	l, now := newTestLimiter(10, 2, time.Minute)

	mustAcquire(t, l, "a1")
	*now = now.Add(40 * time.Second)
	mustAcquire(t, l, "a1")

	// First admission is 40s old, second is fresh: window still full.
	err := l.Acquire("a1")
	assertQuotaKind(t, err, GlobalRate)

	// 25s later only the first admission has expired.
	*now = now.Add(25 * time.Second)
	mustAcquire(t, l, "a1")
	err = l.Acquire("a1")
	assertQuotaKind(t, err, GlobalRate)
}

func TestReleaseWithoutAcquireIsNoop(t *testing.T) {
	l, _ := newTestLimiter(1, 100, time.Minute)

	// Duplicate release after a failed acquire must not underflow.
	l.Release("ghost")
	l.Release("ghost")

	mustAcquire(t, l, "ghost")
	err := l.Acquire("ghost")
	assertQuotaKind(t, err, PerAgentConcurrency)
}

func TestReleaseDoesNotRefillWindow(t *testing.T) {
	l, _ := newTestLimiter(10, 1, time.Minute)

	mustAcquire(t, l, "a1")
	l.Release("a1")

	// The window counts accepted admissions, not live ones.
	err := l.Acquire("a1")
	assertQuotaKind(t, err, GlobalRate)
}

func TestConcurrentAcquireNeverExceedsCap(t *testing.T) {
	const maxPerAgent = 5
	l := New(Config{
		MaxConcurrentPerAgent: maxPerAgent,
		MaxQueriesPerMinute:   100000,
		Window:                time.Minute,
	})

	var wg sync.WaitGroup
	granted := make(chan struct{}, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire("hot"); err == nil {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	if count != maxPerAgent {
		t.Fatalf("expected exactly %d grants, got %d", maxPerAgent, count)
	}
}

func TestQuotaErrorMessagesDistinguishKinds(t *testing.T) {
	perAgent := &QuotaError{Kind: PerAgentConcurrency, AgentID: "a1", Limit: 5}
	global := &QuotaError{Kind: GlobalRate, Limit: 60}
	if perAgent.Error() == global.Error() {
		t.Fatalf("rejection messages must differ per kind")
	}
}
