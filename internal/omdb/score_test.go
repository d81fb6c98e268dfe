package omdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanTitle(t *testing.T) {
	require.Equal(t, "Lupin", cleanTitle("Lupin (2021)"))
	require.Equal(t, "Dark", cleanTitle("Dark: Season 2"))
	require.Equal(t, "Dark", cleanTitle("Dark - Season 3 (German)"))
	require.Equal(t, "The Matrix", cleanTitle("The Matrix"))
}

func TestScoreTitleTiers(t *testing.T) {
	require.Equal(t, 100, scoreTitle("The Matrix", "the matrix"))
	require.Equal(t, 80, scoreTitle("The Matrix", "The Matrix Reloaded"))
	require.Equal(t, 70, scoreTitle("The Matrix Reloaded", "The Matrix"))
	require.Equal(t, 60, scoreTitle("Matrix", "The Matrix Revolutions"))
	require.Equal(t, 50, scoreTitle("Something Matrix Something", "matrix something"))
}

func TestScoreTitleWordOverlap(t *testing.T) {
	// two of three words shared, no containment either way
	score := scoreTitle("matrix revolutions extra", "revolutions matrix")
	require.Equal(t, 40*2/3, score)
	require.Less(t, score, matchThreshold)
}

func TestPickCandidatePrefersExactMatch(t *testing.T) {
	candidates := []searchResult{
		{Title: "The Matrix Reloaded", Type: "movie", IMDBID: "tt0234215"},
		{Title: "The Matrix", Type: "movie", IMDBID: "tt0133093"},
		{Title: "Matrix Revolutions", Type: "movie", IMDBID: "tt0242653"},
	}
	best := pickCandidate("The Matrix", candidates)
	require.NotNil(t, best)
	require.Equal(t, "tt0133093", best.IMDBID)
}

func TestPickCandidateBelowThreshold(t *testing.T) {
	candidates := []searchResult{
		{Title: "Completely Unrelated Documentary", Type: "movie", IMDBID: "tt1"},
	}
	require.Nil(t, pickCandidate("The Matrix", candidates))
}

func TestPickCandidateMovieBonusBreaksCloseScores(t *testing.T) {
	candidates := []searchResult{
		{Title: "The Office", Type: "series", IMDBID: "tt-series"},
		{Title: "The Office", Type: "movie", IMDBID: "tt-movie"},
	}
	best := pickCandidate("The Office", candidates)
	require.NotNil(t, best)
	require.Equal(t, "tt-movie", best.IMDBID)
}
