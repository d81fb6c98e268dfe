package omdb

import (
	"reelrate/internal/cachekey"
	"reelrate/internal/domain"
)

// movieResponse is the OMDb single-title payload (t= and i= queries).
type movieResponse struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`

	Title      string         `json:"Title"`
	Year       string         `json:"Year"`
	Type       string         `json:"Type"`
	IMDBID     string         `json:"imdbID"`
	IMDBRating string         `json:"imdbRating"`
	IMDBVotes  string         `json:"imdbVotes"`
	Metascore  string         `json:"Metascore"`
	Ratings    []sourceRating `json:"Ratings"`
}

type sourceRating struct {
	Source string `json:"Source"`
	Value  string `json:"Value"`
}

// searchResponse is the OMDb s= payload.
type searchResponse struct {
	Response string         `json:"Response"`
	Error    string         `json:"Error"`
	Search   []searchResult `json:"Search"`
}

type searchResult struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	Type   string `json:"Type"` // "movie" or "series"
	IMDBID string `json:"imdbID"`
}

// toEntry maps the provider payload onto a rating entry. Absent or "N/A"
// fields stay nil; scores are never fabricated.
func (m *movieResponse) toEntry() *domain.RatingEntry {
	e := &domain.RatingEntry{
		IMDBID:    m.IMDBID,
		Title:     m.Title,
		NormTitle: cachekey.NormalizeTitle(m.Title),
		Year:      cachekey.NormalizeYear(m.Year),
		Status:    domain.StatusSuccess,
	}

	if present(m.IMDBRating) {
		e.Ratings.IMDB = &domain.SourceRating{Score: m.IMDBRating}
		if present(m.IMDBVotes) {
			e.Ratings.IMDB.Votes = m.IMDBVotes
		}
	}

	for _, r := range m.Ratings {
		if !present(r.Value) {
			continue
		}
		switch r.Source {
		case "Rotten Tomatoes":
			e.Ratings.RottenTomatoes = &domain.SourceRating{Score: r.Value}
		case "Metacritic":
			e.Ratings.Metacritic = &domain.SourceRating{Score: r.Value}
		}
	}
	if e.Ratings.Metacritic == nil && present(m.Metascore) {
		e.Ratings.Metacritic = &domain.SourceRating{Score: m.Metascore}
	}

	return e
}

func present(v string) bool {
	return v != "" && v != "N/A"
}
