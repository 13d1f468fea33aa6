package enrich

import (
	"context"

	"cinesync/internal/providers"
	"cinesync/internal/quota"
	"cinesync/internal/tracklist"
)

// guardedVideo wraps the video search client with circuit-breaker, pacing,
// and counter bookkeeping. While the circuit is open every call fails fast
// with a rate-limit error and no network attempt happens.
type guardedVideo struct {
	inner tracklist.VideoSearcher
	quota *quota.Registry
}

func (g guardedVideo) Search(ctx context.Context, query string, filters providers.VideoFilters) ([]providers.VideoCandidate, error) {
	return quota.Call(ctx, g.quota, providers.NameVideoSearch, func() ([]providers.VideoCandidate, error) {
		return g.inner.Search(ctx, query, filters)
	})
}

// guardCall runs one provider call with the same circuit, pacing, and
// counter handling for providers that do not need a full wrapper type.
func guardCall[T any](ctx context.Context, registry *quota.Registry, provider string, call func() (T, error)) (T, error) {
	return quota.Call(ctx, registry, provider, call)
}
