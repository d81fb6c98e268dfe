// Package fetcher drives every ratings lookup: cache-first resolution
// against the persistent store, request coalescing so concurrent callers
// for one title share a single provider call, enrichment of partial entries
// once a year is known, and graceful degradation to stale data when the
// provider fails.
package fetcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"reelrate/internal/cachekey"
	"reelrate/internal/domain"
	"reelrate/internal/ratelimit"
	"reelrate/internal/store"
)

// Request identifies one logical lookup from the UI layer.
type Request struct {
	VideoID        string
	Title          string
	Year           string
	CheckFreshness bool
	EnrichExisting bool
}

// Key returns the request key used for coalescing and caching.
func (r Request) Key() string {
	return cachekey.For(r.VideoID, r.Title, r.Year)
}

// Result is the resolved outcome of a fetch. Entry may carry a negative
// status (not_found/error); Source reports which layer satisfied the call.
type Result struct {
	Entry  *domain.RatingEntry
	Source string
}

// Provider looks a title up against the external ratings API.
// A nil entry with a nil error is the structured "no match" result;
// errors are transport-level failures.
type Provider interface {
	Lookup(ctx context.Context, title, year string) (*domain.RatingEntry, error)
}

// Fetcher is the request orchestrator. A nil provider models the missing
// API credential.
type Fetcher struct {
	store    *store.Store
	provider Provider
	limiter  *ratelimit.Bucket
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	inflight map[string]struct{}

	// onUpdate is invoked with entries resolved by detached background
	// refreshes so the session layer can notify its subscribers.
	onUpdate func(*domain.RatingEntry)
}

func New(st *store.Store, provider Provider, limiter *ratelimit.Bucket, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = ratelimit.New(0, 0)
	}
	return &Fetcher{
		store:    st,
		provider: provider,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// OnUpdate registers the sink for background-refresh results. Must be set
// before the fetcher is shared across goroutines.
func (f *Fetcher) OnUpdate(fn func(*domain.RatingEntry)) {
	f.onUpdate = fn
}

// PendingRequests reports the number of distinct request keys currently
// being resolved.
func (f *Fetcher) PendingRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inflight)
}

// Fetch resolves a request. Concurrent calls with the same request key
// attach to one underlying fetch; the pending record is dropped when the
// work settles, success or failure.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	key := req.Key()

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		f.track(key)
		defer f.untrack(key)
		return f.fetch(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (f *Fetcher) track(key string) {
	f.mu.Lock()
	f.inflight[key] = struct{}{}
	f.mu.Unlock()
}

func (f *Fetcher) untrack(key string) {
	f.mu.Lock()
	delete(f.inflight, key)
	f.mu.Unlock()
}

// fetch runs the decision sequence for one coalesced request.
func (f *Fetcher) fetch(ctx context.Context, req Request) (*Result, error) {
	cached := f.store.Get(req.VideoID, req.Title, req.Year)

	// A cached partial success becomes an enrichment opportunity once the
	// caller can supply a year: fetch again and merge instead of returning.
	enrich := req.EnrichExisting &&
		cached != nil &&
		cached.Status == domain.StatusSuccess &&
		cached.Completeness == domain.CompletenessPartial &&
		cachekey.NormalizeYear(req.Year) != ""

	if cached != nil && !enrich {
		if cached.Status == domain.StatusSuccess && req.CheckFreshness {
			f.refreshAsync(req)
		}
		// Negative entries are served from cache too while their short
		// TTL lasts, so futile provider calls are not repeated.
		return &Result{Entry: cached, Source: domain.SourceStorage}, nil
	}

	if f.provider == nil {
		if cached != nil {
			return &Result{Entry: cached, Source: domain.SourceStorage}, nil
		}
		return nil, domain.ErrNoAPIKey
	}

	entry, err := f.resolve(ctx, req, cached, enrich)
	if err != nil {
		return nil, err
	}
	return &Result{Entry: entry, Source: domain.SourceAPI}, nil
}

// resolve performs the rate-limited provider call and reconciles the
// outcome with whatever was cached before. Provider failures degrade to the
// cached success entry when one exists; otherwise a negative entry is
// persisted so the failure is not retried immediately.
func (f *Fetcher) resolve(ctx context.Context, req Request, cached *domain.RatingEntry, enrich bool) (*domain.RatingEntry, error) {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	fresh, err := f.provider.Lookup(ctx, req.Title, req.Year)
	now := f.now()

	if err != nil {
		f.logger.Error("provider lookup failed", "title", req.Title, "error", err)
		if cached != nil && cached.Status == domain.StatusSuccess {
			return cached, nil
		}
		neg := f.negativeEntry(req, domain.StatusError, now)
		f.store.Set(req.VideoID, req.Title, req.Year, neg)
		return neg, nil
	}

	if fresh == nil {
		if cached != nil && cached.Status == domain.StatusSuccess {
			return cached, nil
		}
		neg := f.negativeEntry(req, domain.StatusNotFound, now)
		f.store.Set(req.VideoID, req.Title, req.Year, neg)
		return neg, nil
	}

	merged := f.reconcile(req, cached, fresh, now, enrich)
	f.store.Set(req.VideoID, req.Title, req.Year, merged)
	return merged, nil
}

// reconcile stamps the fresh entry with the request identity and merges it
// with the previously cached entry when one exists. EnrichedAt marks only
// enrichment merges; routine revalidations leave it untouched.
func (f *Fetcher) reconcile(req Request, cached, fresh *domain.RatingEntry, now time.Time, enrich bool) *domain.RatingEntry {
	fresh.Status = domain.StatusSuccess
	fresh.FetchedAt = now
	if fresh.VideoID == "" {
		fresh.VideoID = req.VideoID
	}
	if fresh.NormTitle == "" {
		fresh.NormTitle = cachekey.NormalizeTitle(fresh.Title)
	}
	if cachekey.NormalizeYear(req.Year) != "" {
		fresh.Completeness = domain.CompletenessFull
	} else {
		fresh.Completeness = domain.CompletenessPartial
	}

	if cached == nil || cached.Status != domain.StatusSuccess {
		return fresh
	}

	merged := domain.Merge(cached, fresh)
	if enrich {
		merged.EnrichedAt = now
	}
	return merged
}

func (f *Fetcher) negativeEntry(req Request, status domain.Status, now time.Time) *domain.RatingEntry {
	return &domain.RatingEntry{
		VideoID:   req.VideoID,
		Title:     req.Title,
		NormTitle: cachekey.NormalizeTitle(req.Title),
		Year:      cachekey.NormalizeYear(req.Year),
		Status:    status,
		FetchedAt: now,
	}
}

// refreshAsync revalidates a cached entry in the background. The trigger
// never waits on it; failures are logged and the result only becomes
// visible through the store and the update hook.
func (f *Fetcher) refreshAsync(req Request) {
	if f.provider == nil {
		return
	}
	key := "refresh:" + req.Key()

	go func() {
		_, err, _ := f.group.Do(key, func() (interface{}, error) {
			ctx := context.Background()
			cached := f.store.Get(req.VideoID, req.Title, req.Year)
			entry, err := f.resolve(ctx, req, cached, false)
			if err != nil {
				return nil, err
			}
			if f.onUpdate != nil && entry.Status == domain.StatusSuccess {
				f.onUpdate(entry)
			}
			return nil, nil
		})
		if err != nil {
			f.logger.Error("background refresh failed", "title", req.Title, "error", err)
		}
	}()
}
