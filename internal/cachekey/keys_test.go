package cachekey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTitle(t *testing.T) {
	require.Equal(t, "thematrix", NormalizeTitle("The Matrix"))
	require.Equal(t, "sprverstan", NormalizeTitle("Spr: Verstan!"))
	require.Equal(t, "blade2049", NormalizeTitle(" Blade 2049 "))
	require.Equal(t, "", NormalizeTitle("   "))
	require.Equal(t, "", NormalizeTitle("!!!"))
}

func TestNormalizeYear(t *testing.T) {
	require.Equal(t, "2010", NormalizeYear("2010"))
	require.Equal(t, "2010", NormalizeYear("2010–2014"))
	require.Equal(t, "", NormalizeYear("n/a"))
	require.Equal(t, "", NormalizeYear("95"))
}

func TestForPriority(t *testing.T) {
	// platform ID wins over everything
	require.Equal(t, "id:81234567", For("81234567", "Inception", "2010"))
	// title+year when no ID
	require.Equal(t, "inception_2010", For("", "Inception", "2010"))
	// bare title as last resort
	require.Equal(t, "inception", For("", "Inception", ""))
}

func TestForDeterministic(t *testing.T) {
	a := For("", "The Matrix", "1999")
	b := For("", "The Matrix", "1999")
	require.Equal(t, a, b)
}

func TestCandidatesOrder(t *testing.T) {
	keys := Candidates("42", "Inception", "2010")
	require.Equal(t, []string{"id:42", "inception_2010", "inception"}, keys)

	// no year collapses title+year and title into one candidate
	keys = Candidates("", "Inception", "")
	require.Equal(t, []string{"inception"}, keys)
}

func TestCandidatesSkipEmptyTitleKeys(t *testing.T) {
	require.Equal(t, []string{"id:42"}, Candidates("42", "", ""))
	require.Equal(t, []string{"id:42"}, Candidates("42", "!!!", "2010"))
	require.Empty(t, Candidates("", "", "2010"))
}
