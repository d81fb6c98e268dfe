package domain

import "time"

// Status reports the outcome of the fetch that produced an entry.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// Completeness distinguishes entries resolved with a disambiguating year
// (full) from entries resolved on title alone (partial). Partial entries are
// enrichment candidates once a year becomes known.
type Completeness string

const (
	CompletenessPartial Completeness = "partial"
	CompletenessFull    Completeness = "full"
)

// Result sources reported back to callers of the message interface.
const (
	SourceMemory  = "memory"
	SourceStorage = "storage"
	SourceAPI     = "api"
)

// SourceRating is one provider's score for a title. Votes is only populated
// for providers that report it (IMDb).
type SourceRating struct {
	Score string `json:"score" msgpack:"score"`
	Votes string `json:"votes,omitempty" msgpack:"votes,omitempty"`
}

// Ratings holds the per-provider scores. A nil field means the provider had
// no data for this title; fields are never fabricated.
type Ratings struct {
	IMDB           *SourceRating `json:"imdb,omitempty" msgpack:"imdb,omitempty"`
	RottenTomatoes *SourceRating `json:"rottenTomatoes,omitempty" msgpack:"rottenTomatoes,omitempty"`
	Metacritic     *SourceRating `json:"metacritic,omitempty" msgpack:"metacritic,omitempty"`
}

// Empty reports whether no provider contributed a score.
func (r Ratings) Empty() bool {
	return r.IMDB == nil && r.RottenTomatoes == nil && r.Metacritic == nil
}

// RatingEntry is the durable unit of cached knowledge about one title.
//
// Invariant: a not_found/error entry carries no ratings payload; a success
// entry may have any subset of sources populated.
type RatingEntry struct {
	// Identity
	VideoID   string `json:"videoId,omitempty" msgpack:"videoId,omitempty"` // stable platform ID
	IMDBID    string `json:"imdbId,omitempty" msgpack:"imdbId,omitempty"`   // external database ID
	Title     string `json:"title" msgpack:"title"`
	NormTitle string `json:"normTitle" msgpack:"normTitle"`
	Year      string `json:"year,omitempty" msgpack:"year,omitempty"`

	Ratings Ratings `json:"ratings" msgpack:"ratings"`

	Status       Status       `json:"status" msgpack:"status"`
	Completeness Completeness `json:"completeness" msgpack:"completeness"`

	FetchedAt  time.Time `json:"fetchedAt" msgpack:"fetchedAt"`
	EnrichedAt time.Time `json:"enrichedAt,omitempty" msgpack:"enrichedAt,omitempty"`
}

// TTL durations by fetch outcome. Errors get the shortest window so a
// transient failure can be retried soon; not-found is held longer to avoid
// repeated futile lookups.
const (
	TTLFullSuccess    = 7 * 24 * time.Hour
	TTLPartialSuccess = 24 * time.Hour
	TTLNotFound       = 24 * time.Hour
	TTLError          = time.Hour
)

// TTL returns how long this entry stays valid after FetchedAt.
func (e *RatingEntry) TTL() time.Duration {
	switch e.Status {
	case StatusSuccess:
		if e.Completeness == CompletenessFull {
			return TTLFullSuccess
		}
		return TTLPartialSuccess
	case StatusNotFound:
		return TTLNotFound
	default:
		return TTLError
	}
}

// ValidAt reports whether the entry is still fresh at the given instant.
func (e *RatingEntry) ValidAt(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL()
}

// Merge reconciles a previously cached entry with freshly fetched data.
// For every rating source the fresh score wins if present, otherwise the
// existing one is kept; identity fields prefer fresh-if-present. The result
// is monotonic: it never knows less than the better of the two inputs.
func Merge(existing, fresh *RatingEntry) *RatingEntry {
	if existing == nil {
		return fresh
	}
	if fresh == nil {
		return existing
	}

	merged := *fresh
	merged.Ratings = Ratings{
		IMDB:           pickRating(existing.Ratings.IMDB, fresh.Ratings.IMDB),
		RottenTomatoes: pickRating(existing.Ratings.RottenTomatoes, fresh.Ratings.RottenTomatoes),
		Metacritic:     pickRating(existing.Ratings.Metacritic, fresh.Ratings.Metacritic),
	}

	if merged.VideoID == "" {
		merged.VideoID = existing.VideoID
	}
	if merged.IMDBID == "" {
		merged.IMDBID = existing.IMDBID
	}
	if merged.Title == "" {
		merged.Title = existing.Title
	}
	if merged.NormTitle == "" {
		merged.NormTitle = existing.NormTitle
	}
	if merged.Year == "" {
		merged.Year = existing.Year
	}

	if existing.Completeness == CompletenessFull {
		merged.Completeness = CompletenessFull
	}

	return &merged
}

func pickRating(existing, fresh *SourceRating) *SourceRating {
	if fresh != nil && fresh.Score != "" {
		return fresh
	}
	return existing
}
