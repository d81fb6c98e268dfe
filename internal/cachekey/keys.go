// Package cachekey derives stable cache keys from the fuzzy identifier space
// callers work with: an optional platform video ID, a free-text title and an
// optional year. Key priority when input is ambiguous: platform ID, then
// title+year, then title alone.
package cachekey

import "strings"

// Key prefixes. Title-derived keys carry no prefix so they stay compatible
// with entries written before a stable ID was known.
const (
	PrefixID   = "id:"
	PrefixIMDB = "imdb:"
)

// NormalizeTitle lower-cases the title and strips every character outside
// [a-z0-9]. An empty or whitespace-only title normalizes to the empty
// string; callers must reject those before keying.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeYear extracts the leading four digits of a year string
// ("2010", "2010–2014", "2010-05-01" all yield "2010"). Anything without
// four leading digits is treated as no year.
func NormalizeYear(year string) string {
	year = strings.TrimSpace(year)
	if len(year) < 4 {
		return ""
	}
	for _, r := range year[:4] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return year[:4]
}

// For returns the request key for the given identity, most specific form
// first: "id:<videoID>" when the platform ID is known, else
// "<normTitle>_<year4>" when a year is known, else "<normTitle>".
func For(videoID, title, year string) string {
	if videoID != "" {
		return PrefixID + videoID
	}
	if y := NormalizeYear(year); y != "" {
		return TitleYearKey(title, y)
	}
	return TitleKey(title)
}

// ForIMDB returns the external-database alias key.
func ForIMDB(imdbID string) string {
	return PrefixIMDB + imdbID
}

// TitleKey returns the title-only key.
func TitleKey(title string) string {
	return NormalizeTitle(title)
}

// TitleYearKey returns the title+year key. The year is normalized to its
// leading four digits.
func TitleYearKey(title, year string) string {
	y := NormalizeYear(year)
	if y == "" {
		return TitleKey(title)
	}
	return NormalizeTitle(title) + "_" + y
}

// Candidates returns every key the identity could be cached under, most
// specific first and de-duplicated: ID, title+year, bare title. A title
// that normalizes to empty contributes no keys.
func Candidates(videoID, title, year string) []string {
	keys := make([]string, 0, 3)
	if videoID != "" {
		keys = append(keys, PrefixID+videoID)
	}
	if t := NormalizeTitle(title); t != "" {
		if y := NormalizeYear(year); y != "" {
			keys = append(keys, t+"_"+y)
		}
		keys = appendUnique(keys, t)
	}
	return keys
}

func appendUnique(keys []string, key string) []string {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}
