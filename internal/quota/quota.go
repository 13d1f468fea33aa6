// Package quota tracks per-provider circuit breaker and daily call counter
// state. An open circuit short-circuits provider calls until its cool-down
// elapses. State lives in the store's kv table so restarts do not reset an
// open circuit; expiry is lazy via the kv layer's read-side TTL check.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cinesync/internal/config"
	"cinesync/internal/logging"
	"cinesync/internal/providers"
)

// Storage is the persistence surface the registry needs.
type Storage interface {
	GetKV(ctx context.Context, key string) (string, bool, error)
	SetKV(ctx context.Context, key, value string, ttl time.Duration) error
}

// Registry implements the per-provider circuit breaker and daily counters.
// Safe for concurrent use.
type Registry struct {
	mu             sync.Mutex
	storage        Storage
	logger         *slog.Logger
	defaultBackoff time.Duration
	backoffs       map[string]time.Duration
	dailyBudget    int
	limiters       map[string]*rate.Limiter
	now            func() time.Time
}

// ProviderSnapshot is one provider's quota state for status display.
type ProviderSnapshot struct {
	Provider     string
	Blocked      bool
	BlockedUntil time.Time
	Attempts     int
	Successes    int
	DailyBudget  int
}

// NewRegistry creates a registry with explicit backoffs. Providers without
// an entry in backoffs use defaultBackoff.
func NewRegistry(storage Storage, logger *slog.Logger, defaultBackoff time.Duration, backoffs map[string]time.Duration, dailyBudget int) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	if defaultBackoff <= 0 {
		defaultBackoff = 6 * time.Hour
	}
	return &Registry{
		storage:        storage,
		logger:         logging.WithComponent(logger, "quota"),
		defaultBackoff: defaultBackoff,
		backoffs:       backoffs,
		dailyBudget:    dailyBudget,
		limiters:       make(map[string]*rate.Limiter),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// NewFromConfig builds a registry from the quota config section. The video
// search provider carries its own, typically longer, backoff because its
// quota resets on a fixed daily schedule.
func NewFromConfig(storage Storage, logger *slog.Logger, cfg *config.Config) *Registry {
	backoffs := map[string]time.Duration{
		providers.NameVideoSearch: time.Duration(cfg.Quota.VideoBackoffHours) * time.Hour,
	}
	return NewRegistry(storage, logger,
		time.Duration(cfg.Quota.DefaultBackoffHours)*time.Hour,
		backoffs, cfg.Quota.DailyBudget)
}

func blockKey(provider string) string {
	return "quota:block:" + provider
}

func counterKey(provider, day, kind string) string {
	return fmt.Sprintf("quota:count:%s:%s:%s", provider, day, kind)
}

// Blocked reports whether the provider's circuit is open.
func (r *Registry) Blocked(ctx context.Context, provider string) bool {
	_, open := r.blockedUntil(ctx, provider)
	return open
}

func (r *Registry) blockedUntil(ctx context.Context, provider string) (time.Time, bool) {
	value, ok, err := r.storage.GetKV(ctx, blockKey(provider))
	if err != nil {
		r.logger.Warn("read circuit state failed", logging.String("provider", provider), logging.Error(err))
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}
	until, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	if !until.After(r.now()) {
		return time.Time{}, false
	}
	return until, true
}

// RecordRateLimited opens the provider's circuit for its configured backoff.
func (r *Registry) RecordRateLimited(ctx context.Context, provider string) {
	backoff := r.defaultBackoff
	if custom, ok := r.backoffs[provider]; ok && custom > 0 {
		backoff = custom
	}
	until := r.now().Add(backoff)
	if err := r.storage.SetKV(ctx, blockKey(provider), until.Format(time.RFC3339Nano), backoff); err != nil {
		r.logger.Warn("persist circuit state failed", logging.String("provider", provider), logging.Error(err))
		return
	}
	r.logger.Info("circuit opened",
		logging.String("provider", provider),
		logging.Duration("backoff", backoff))
}

// RecordAttempt bumps the provider's attempt counter for the current UTC day.
func (r *Registry) RecordAttempt(ctx context.Context, provider string) {
	r.bump(ctx, provider, "attempt")
}

// RecordSuccess bumps the provider's success counter for the current UTC day.
func (r *Registry) RecordSuccess(ctx context.Context, provider string) {
	r.bump(ctx, provider, "success")
}

// bump increments a daily counter. Counters are informational only and
// expire two days after creation.
func (r *Registry) bump(ctx context.Context, provider, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := r.now().Format("2006-01-02")
	key := counterKey(provider, day, kind)
	count := 0
	if value, ok, err := r.storage.GetKV(ctx, key); err == nil && ok {
		count, _ = strconv.Atoi(value)
	}
	if err := r.storage.SetKV(ctx, key, strconv.Itoa(count+1), 48*time.Hour); err != nil {
		r.logger.Warn("persist counter failed", logging.String("provider", provider), logging.Error(err))
	}
}

// counter reads a daily counter, zero when absent.
func (r *Registry) counter(ctx context.Context, provider, kind string) int {
	day := r.now().Format("2006-01-02")
	value, ok, err := r.storage.GetKV(ctx, counterKey(provider, day, kind))
	if err != nil || !ok {
		return 0
	}
	count, _ := strconv.Atoi(value)
	return count
}

// Snapshot returns the provider's current quota state for display.
func (r *Registry) Snapshot(ctx context.Context, provider string) ProviderSnapshot {
	until, blocked := r.blockedUntil(ctx, provider)
	return ProviderSnapshot{
		Provider:     provider,
		Blocked:      blocked,
		BlockedUntil: until,
		Attempts:     r.counter(ctx, provider, "attempt"),
		Successes:    r.counter(ctx, provider, "success"),
		DailyBudget:  r.dailyBudget,
	}
}

// Wait paces a provider call through its rate limiter, blocking until a
// token is available or ctx is cancelled.
func (r *Registry) Wait(ctx context.Context, provider string) error {
	return r.limiter(provider).Wait(ctx)
}

// Call runs one provider call through the registry: circuit check, pacing
// wait, then attempt/success/rate-limit counters. While the circuit is open
// the call fails fast with a rate-limit error and no provider work happens.
func Call[T any](ctx context.Context, r *Registry, provider string, fn func() (T, error)) (T, error) {
	var zero T
	if r.Blocked(ctx, provider) {
		return zero, providers.Wrap(providers.ErrRateLimited, provider, "call", "circuit open", nil)
	}
	if err := r.Wait(ctx, provider); err != nil {
		return zero, err
	}
	r.RecordAttempt(ctx, provider)
	result, err := fn()
	if err != nil {
		if providers.IsRateLimited(err) {
			r.RecordRateLimited(ctx, provider)
		}
		return zero, err
	}
	r.RecordSuccess(ctx, provider)
	return result, nil
}

func (r *Registry) limiter(provider string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.limiters[provider]
	if !ok {
		// 4 requests per second with a small burst keeps every provider
		// comfortably under published request-rate ceilings.
		limiter = rate.NewLimiter(rate.Limit(4), 8)
		r.limiters[provider] = limiter
	}
	return limiter
}
