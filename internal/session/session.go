// Package session is the process-local cache layer: near-zero-latency
// repeat lookups for the current session plus push-based update delivery to
// subscribers. It holds no durable state; it is rebuilt empty each run and
// repopulated lazily through the fetch orchestrator.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reelrate/internal/cachekey"
	"reelrate/internal/domain"
	"reelrate/internal/fetcher"
)

// Fetcher resolves cache misses. Satisfied by *fetcher.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (*fetcher.Result, error)
}

type subscription struct {
	fn func(*domain.RatingEntry)
}

// Session is safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	entries map[string]*domain.RatingEntry
	subs    map[string][]*subscription

	fetcher Fetcher
	logger  *slog.Logger
}

func New(f Fetcher, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		entries: make(map[string]*domain.RatingEntry),
		subs:    make(map[string][]*subscription),
		fetcher: f,
		logger:  logger,
	}
}

// Subscribe registers a callback for updates under key and returns an
// unsubscribe handle. The current cached value, if any, is replayed
// synchronously before Subscribe returns — callbacks do not only fire on
// future changes.
func (s *Session) Subscribe(key string, fn func(*domain.RatingEntry)) func() {
	sub := &subscription{fn: fn}

	s.mu.Lock()
	s.subs[key] = append(s.subs[key], sub)
	cached := s.entries[key]
	s.mu.Unlock()

	if cached != nil {
		s.invoke(key, sub, cached)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.subs[key]
		for i, candidate := range list {
			if candidate == sub {
				s.subs[key] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// Get returns the entry for the request, resolving misses through the
// fetch orchestrator. An entry past its outcome TTL counts as a miss, as
// does a cached partial success when the request can upgrade it. On a local
// hit with CheckFreshness set, a background revalidation is kicked off while
// the stale value is returned immediately (stale-while-revalidate); the
// refreshed value reaches subscribers through Put.
func (s *Session) Get(ctx context.Context, req fetcher.Request) (*fetcher.Result, error) {
	key := req.Key()

	s.mu.Lock()
	cached := s.entries[key]
	s.mu.Unlock()

	if cached != nil && cached.ValidAt(time.Now()) && !enrichable(req, cached) {
		if req.CheckFreshness {
			go s.revalidate(req)
		}
		return &fetcher.Result{Entry: cached, Source: domain.SourceMemory}, nil
	}

	res, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Entry != nil {
		s.Put(res.Entry)
	}
	return res, nil
}

// enrichable reports whether the request can upgrade the cached entry: the
// caller opted in, the entry is a partial success and a disambiguating year
// is now available. Such a hit must reach the orchestrator instead of being
// served from memory.
func enrichable(req fetcher.Request, e *domain.RatingEntry) bool {
	return req.EnrichExisting &&
		e.Status == domain.StatusSuccess &&
		e.Completeness == domain.CompletenessPartial &&
		cachekey.NormalizeYear(req.Year) != ""
}

// revalidate runs a detached fetch whose result is observed only through
// Put and the subscriber callbacks, never by the caller that triggered it.
func (s *Session) revalidate(req fetcher.Request) {
	res, err := s.fetcher.Fetch(context.Background(), req)
	if err != nil {
		s.logger.Error("session revalidation failed", "title", req.Title, "error", err)
		return
	}
	if res.Entry != nil {
		s.Put(res.Entry)
	}
}

// Put stores the entry under every key it can be looked up by and notifies
// the subscribers of each distinct key once, in subscription order. A
// panicking callback is logged and does not stop delivery to the rest.
func (s *Session) Put(e *domain.RatingEntry) {
	if e == nil {
		return
	}
	keys := aliasKeys(e)

	type delivery struct {
		key  string
		subs []*subscription
	}
	var pending []delivery

	s.mu.Lock()
	for _, key := range keys {
		s.entries[key] = e
		if list := s.subs[key]; len(list) > 0 {
			pending = append(pending, delivery{key: key, subs: append([]*subscription(nil), list...)})
		}
	}
	s.mu.Unlock()

	for _, d := range pending {
		for _, sub := range d.subs {
			s.invoke(d.key, sub, e)
		}
	}
}

// Size reports the number of distinct keys held this session.
func (s *Session) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset drops all session state. Used after CLEAR_CACHE so stale entries
// cannot outlive the durable cache they came from.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*domain.RatingEntry)
}

func (s *Session) invoke(key string, sub *subscription, e *domain.RatingEntry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber callback panicked", "key", key, "panic", r)
		}
	}()
	sub.fn(e)
}

// aliasKeys returns the de-duplicated set of keys the entry is reachable
// under: master, platform-ID key, external-database key, title+year key and
// bare-title key.
func aliasKeys(e *domain.RatingEntry) []string {
	var keys []string
	add := func(key string) {
		if key == "" {
			return
		}
		for _, k := range keys {
			if k == key {
				return
			}
		}
		keys = append(keys, key)
	}

	add(cachekey.For(e.VideoID, e.Title, e.Year))
	if e.VideoID != "" {
		add(cachekey.PrefixID + e.VideoID)
	}
	if e.IMDBID != "" {
		add(cachekey.ForIMDB(e.IMDBID))
	}
	if y := cachekey.NormalizeYear(e.Year); y != "" {
		add(cachekey.TitleYearKey(e.Title, y))
	}
	add(cachekey.TitleKey(e.Title))
	return keys
}
