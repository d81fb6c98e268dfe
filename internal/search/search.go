// Package search provides fuzzy lookup over cached entries, used by the
// SEARCH_CACHE message for debugging and cache browsing.
package search

import (
	"log/slog"
	"sort"

	"github.com/sahilm/fuzzy"

	"reelrate/internal/domain"
)

// EntrySource enumerates live cached entries. Satisfied by *store.Store.
type EntrySource interface {
	Entries() []*domain.RatingEntry
}

// Result is one search hit with its fuzzy match score.
type Result struct {
	Entry *domain.RatingEntry `json:"entry"`
	Score int                 `json:"score"`
}

// Service handles fuzzy search across the cache
type Service struct {
	source EntrySource
	logger *slog.Logger
}

// NewService creates a new search service
func NewService(source EntrySource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source: source,
		logger: logger,
	}
}

// Search returns cached entries matching the query, best matches first.
// limit <= 0 means no limit.
func (s *Service) Search(query string, limit int) []Result {
	if query == "" {
		return nil
	}

	entries := s.source.Entries()
	if len(entries) == 0 {
		return nil
	}

	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = e.Title
	}

	matches := fuzzy.Find(query, titles)
	// break score ties toward shorter titles so exact titles beat sequels
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return len(matches[i].Str) < len(matches[j].Str)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Entry: entries[m.Index],
			Score: m.Score,
		}
	}
	return results
}
