package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"cinesync/internal/providers"
)

// memStorage is an in-memory kv with the same lazy-expiry contract as the
// store's kv table.
type memStorage struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time
	now     func() time.Time
}

func newMemStorage(now func() time.Time) *memStorage {
	return &memStorage{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
		now:     now,
	}
}

func (m *memStorage) GetKV(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", false, nil
	}
	if expiry, has := m.expires[key]; has && !expiry.After(m.now()) {
		delete(m.values, key)
		delete(m.expires, key)
		return "", false, nil
	}
	return value, true, nil
}

func (m *memStorage) SetKV(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	if ttl > 0 {
		m.expires[key] = m.now().Add(ttl)
	} else {
		delete(m.expires, key)
	}
	return nil
}

func testRegistry(t *testing.T) (*Registry, *memStorage, *time.Time) {
	t.Helper()
	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }
	storage := newMemStorage(now)
	registry := NewRegistry(storage, nil, 6*time.Hour, map[string]time.Duration{
		providers.NameVideoSearch: 24 * time.Hour,
	}, 100)
	registry.now = now
	return registry, storage, &current
}

func TestCircuitOpensAndExpires(t *testing.T) {
	registry, _, current := testRegistry(t)
	ctx := context.Background()

	if registry.Blocked(ctx, providers.NameCatalog) {
		t.Fatal("circuit open before any rate limit")
	}
	registry.RecordRateLimited(ctx, providers.NameCatalog)
	if !registry.Blocked(ctx, providers.NameCatalog) {
		t.Fatal("circuit not open after rate limit")
	}

	*current = current.Add(5 * time.Hour)
	if !registry.Blocked(ctx, providers.NameCatalog) {
		t.Fatal("circuit closed before default backoff elapsed")
	}
	*current = current.Add(2 * time.Hour)
	if registry.Blocked(ctx, providers.NameCatalog) {
		t.Fatal("circuit still open after backoff elapsed")
	}
}

func TestVideoProviderUsesLongerBackoff(t *testing.T) {
	registry, _, current := testRegistry(t)
	ctx := context.Background()

	registry.RecordRateLimited(ctx, providers.NameVideoSearch)
	*current = current.Add(12 * time.Hour)
	if !registry.Blocked(ctx, providers.NameVideoSearch) {
		t.Fatal("video circuit closed before its 24h backoff elapsed")
	}
	*current = current.Add(13 * time.Hour)
	if registry.Blocked(ctx, providers.NameVideoSearch) {
		t.Fatal("video circuit still open after backoff elapsed")
	}
}

func TestCircuitSurvivesRegistryRestart(t *testing.T) {
	registry, storage, current := testRegistry(t)
	ctx := context.Background()
	registry.RecordRateLimited(ctx, providers.NameCatalog)

	// A fresh registry over the same storage sees the open circuit.
	now := func() time.Time { return *current }
	replacement := NewRegistry(storage, nil, 6*time.Hour, nil, 100)
	replacement.now = now
	if !replacement.Blocked(ctx, providers.NameCatalog) {
		t.Fatal("open circuit lost across restart")
	}
}

func TestDailyCountersRollOverAtUTCMidnight(t *testing.T) {
	registry, _, current := testRegistry(t)
	ctx := context.Background()

	registry.RecordAttempt(ctx, providers.NameCatalog)
	registry.RecordAttempt(ctx, providers.NameCatalog)
	registry.RecordSuccess(ctx, providers.NameCatalog)

	snap := registry.Snapshot(ctx, providers.NameCatalog)
	if snap.Attempts != 2 || snap.Successes != 1 {
		t.Fatalf("counters = %d/%d, want 2/1", snap.Attempts, snap.Successes)
	}

	*current = current.Add(13 * time.Hour) // past UTC midnight
	snap = registry.Snapshot(ctx, providers.NameCatalog)
	if snap.Attempts != 0 || snap.Successes != 0 {
		t.Fatalf("counters after rollover = %d/%d, want 0/0", snap.Attempts, snap.Successes)
	}
}

func TestSnapshotReportsBlockedUntil(t *testing.T) {
	registry, _, current := testRegistry(t)
	ctx := context.Background()

	registry.RecordRateLimited(ctx, providers.NameCatalog)
	snap := registry.Snapshot(ctx, providers.NameCatalog)
	if !snap.Blocked {
		t.Fatal("snapshot not blocked")
	}
	want := current.Add(6 * time.Hour)
	if !snap.BlockedUntil.Equal(want) {
		t.Fatalf("BlockedUntil = %v, want %v", snap.BlockedUntil, want)
	}
}

func TestCallPacesBurst(t *testing.T) {
	registry, _, _ := testRegistry(t)
	registry.limiters[providers.NameCatalog] = rate.NewLimiter(rate.Every(25*time.Millisecond), 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := Call(ctx, registry, providers.NameCatalog, func() (int, error) { return i, nil }); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("burst of 3 calls finished in %v, pacing not applied", elapsed)
	}
}

func TestCallStopsOnCancelledContext(t *testing.T) {
	registry, _, _ := testRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Call(ctx, registry, providers.NameCatalog, func() (int, error) {
		calls++
		return 0, nil
	})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if calls != 0 {
		t.Fatalf("provider invoked %d times after cancellation", calls)
	}
}

func TestCallRecordsOutcomes(t *testing.T) {
	registry, _, _ := testRegistry(t)
	ctx := context.Background()

	if _, err := Call(ctx, registry, providers.NameCatalog, func() (string, error) { return "ok", nil }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	_, err := Call(ctx, registry, providers.NameCatalog, func() (string, error) {
		return "", providers.Wrap(providers.ErrRateLimited, providers.NameCatalog, "search", "status 429", nil)
	})
	if !providers.IsRateLimited(err) {
		t.Fatalf("err = %v, want rate limited", err)
	}

	if !registry.Blocked(ctx, providers.NameCatalog) {
		t.Fatal("circuit not open after rate-limited call")
	}
	_, err = Call(ctx, registry, providers.NameCatalog, func() (string, error) {
		t.Fatal("provider invoked while circuit open")
		return "", nil
	})
	if !providers.IsRateLimited(err) {
		t.Fatalf("open-circuit err = %v, want rate limited", err)
	}

	snap := registry.Snapshot(ctx, providers.NameCatalog)
	if snap.Attempts != 2 || snap.Successes != 1 {
		t.Fatalf("counters = %d/%d, want 2/1", snap.Attempts, snap.Successes)
	}
}
