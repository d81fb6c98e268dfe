package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMergePreservesBothSides(t *testing.T) {
	existing := &RatingEntry{
		Title:  "Lupin",
		Year:   "2021",
		Status: StatusSuccess,
		Ratings: Ratings{
			IMDB: &SourceRating{Score: "7.0", Votes: "120,000"},
		},
	}
	fresh := &RatingEntry{
		Title:  "Lupin",
		Status: StatusSuccess,
		Ratings: Ratings{
			RottenTomatoes: &SourceRating{Score: "90%"},
		},
	}

	merged := Merge(existing, fresh)
	require.NotNil(t, merged.Ratings.IMDB)
	require.Equal(t, "7.0", merged.Ratings.IMDB.Score)
	require.NotNil(t, merged.Ratings.RottenTomatoes)
	require.Equal(t, "90%", merged.Ratings.RottenTomatoes.Score)
	require.Equal(t, "2021", merged.Year)
}

func TestMergeFreshScoreWins(t *testing.T) {
	existing := &RatingEntry{
		Ratings: Ratings{IMDB: &SourceRating{Score: "8.2"}},
	}
	fresh := &RatingEntry{
		Ratings: Ratings{IMDB: &SourceRating{Score: "8.4"}},
	}

	merged := Merge(existing, fresh)
	require.Equal(t, "8.4", merged.Ratings.IMDB.Score)
}

func TestMergeCompletenessIsSticky(t *testing.T) {
	existing := &RatingEntry{Completeness: CompletenessFull}
	fresh := &RatingEntry{Completeness: CompletenessPartial}

	require.Equal(t, CompletenessFull, Merge(existing, fresh).Completeness)
}

func TestMergeNilSides(t *testing.T) {
	e := &RatingEntry{Title: "Heat"}
	require.Same(t, e, Merge(nil, e))
	require.Same(t, e, Merge(e, nil))
}

func TestTTLByOutcome(t *testing.T) {
	full := &RatingEntry{Status: StatusSuccess, Completeness: CompletenessFull}
	partial := &RatingEntry{Status: StatusSuccess, Completeness: CompletenessPartial}
	notFound := &RatingEntry{Status: StatusNotFound}
	failed := &RatingEntry{Status: StatusError}

	require.Equal(t, TTLFullSuccess, full.TTL())
	require.Equal(t, TTLPartialSuccess, partial.TTL())
	require.Equal(t, TTLNotFound, notFound.TTL())
	require.Equal(t, TTLError, failed.TTL())
}

func TestValidAt(t *testing.T) {
	now := time.Now()
	e := &RatingEntry{Status: StatusError, FetchedAt: now}

	require.True(t, e.ValidAt(now.Add(30*time.Minute)))
	require.False(t, e.ValidAt(now.Add(2*time.Hour)))
}
