package omdb

import (
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	// matchThreshold is the minimum similarity score a search candidate
	// needs; anything below is treated as not-found.
	matchThreshold = 40

	// movieBonus nudges close-scoring candidates toward movies over
	// series, which is the right call for browse-row titles.
	movieBonus = 5
)

var (
	parenSuffix  = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	seasonSuffix = regexp.MustCompile(`(?i)[\s:–-]+season\s*\d+$`)
)

// cleanTitle strips parenthetical and season-number suffixes so search
// queries match the underlying work ("Lupin (2021)", "Dark: Season 2").
func cleanTitle(title string) string {
	cleaned := strings.TrimSpace(title)
	for {
		next := parenSuffix.ReplaceAllString(cleaned, "")
		next = seasonSuffix.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == cleaned {
			return cleaned
		}
		cleaned = next
	}
}

// scoreTitle rates how well a candidate title matches the query:
// exact case-insensitive match 100, prefix containment 80/70 by direction,
// substring containment 60/50, else word overlap scaled to a maximum of 40.
func scoreTitle(query, candidate string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if q == "" || c == "" {
		return 0
	}

	switch {
	case q == c:
		return 100
	case strings.HasPrefix(c, q):
		return 80
	case strings.HasPrefix(q, c):
		return 70
	case strings.Contains(c, q):
		return 60
	case strings.Contains(q, c):
		return 50
	}

	return wordOverlapScore(q, c)
}

func wordOverlapScore(q, c string) int {
	qWords := strings.Fields(q)
	cWords := strings.Fields(c)
	if len(qWords) == 0 || len(cWords) == 0 {
		return 0
	}

	qSet := make(map[string]bool, len(qWords))
	for _, w := range qWords {
		qSet[w] = true
	}

	common := 0
	for _, w := range cWords {
		if qSet[w] {
			common++
			delete(qSet, w) // count each shared word once
		}
	}

	longer := len(qWords)
	if len(cWords) > longer {
		longer = len(cWords)
	}
	return 40 * common / longer
}

// pickCandidate selects the best-scoring search result, or nil when no
// candidate clears the threshold. Movies get a small bonus over series so
// close scores break toward movies; remaining ties break on edit distance.
func pickCandidate(query string, candidates []searchResult) *searchResult {
	bestIdx := -1
	bestBase, bestEffective, bestDist := 0, 0, 0

	for i, cand := range candidates {
		base := scoreTitle(query, cand.Title)
		if base < matchThreshold {
			continue
		}

		effective := base
		if cand.Type == "movie" {
			effective += movieBonus
		}
		dist := fuzzy.LevenshteinDistance(strings.ToLower(query), strings.ToLower(cand.Title))

		if bestIdx < 0 || effective > bestEffective || (effective == bestEffective && dist < bestDist) {
			bestIdx, bestBase, bestEffective, bestDist = i, base, effective, dist
		}
	}

	if bestIdx < 0 || bestBase < matchThreshold {
		return nil
	}
	return &candidates[bestIdx]
}
