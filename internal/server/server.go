// Package server exposes the narrow message interface the UI layer talks
// to: a single JSON endpoint dispatching on message type, mirroring the
// extension-style message bus the cache was designed around.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"reelrate/internal/cachekey"
	"reelrate/internal/config"
	"reelrate/internal/domain"
	"reelrate/internal/fetcher"
	"reelrate/internal/search"
	"reelrate/internal/session"
	"reelrate/internal/store"
)

// Message types accepted on the message endpoint.
const (
	TypeFetchRatings  = "FETCH_RATINGS"
	TypeGetCacheStats = "GET_CACHE_STATS"
	TypeClearCache    = "CLEAR_CACHE"
	TypeSearchCache   = "SEARCH_CACHE"
)

// message is the request envelope. Fields beyond Type are used depending
// on the message type.
type message struct {
	Type string `json:"type"`

	// FETCH_RATINGS
	VideoID        string `json:"videoId,omitempty"`
	Title          string `json:"title,omitempty"`
	Year           string `json:"year,omitempty"`
	CheckFreshness bool   `json:"checkFreshness,omitempty"`
	EnrichExisting bool   `json:"enrichExisting,omitempty"`

	// SEARCH_CACHE
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type fetchResponse struct {
	Success bool                `json:"success"`
	Data    *domain.RatingEntry `json:"data,omitempty"`
	Source  string              `json:"source,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type statsResponse struct {
	Success bool       `json:"success"`
	Stats   cacheStats `json:"stats"`
}

type cacheStats struct {
	MemorySize      int `json:"memorySize"`
	StorageSize     int `json:"storageSize"`
	PendingRequests int `json:"pendingRequests"`
}

type clearResponse struct {
	Success      bool `json:"success"`
	ClearedCount int  `json:"clearedCount"`
}

type searchResponse struct {
	Success bool            `json:"success"`
	Results []search.Result `json:"results"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Server routes messages to the cache core.
type Server struct {
	session *session.Session
	store   *store.Store
	fetcher *fetcher.Fetcher
	search  *search.Service
	display config.DisplayConfig
	logger  *slog.Logger
}

func New(sess *session.Session, st *store.Store, f *fetcher.Fetcher, searchSvc *search.Service, display config.DisplayConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		session: sess,
		store:   st,
		fetcher: f,
		search:  searchSvc,
		display: display,
		logger:  logger,
	}
}

// Handler returns the HTTP handler for the message interface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/message", s.handleMessage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid message body"})
		return
	}

	switch msg.Type {
	case TypeFetchRatings:
		s.handleFetch(r.Context(), w, msg)
	case TypeGetCacheStats:
		s.handleStats(w)
	case TypeClearCache:
		s.handleClear(w)
	case TypeSearchCache:
		s.handleSearch(w, msg)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown message type"})
	}
}

func (s *Server) handleFetch(ctx context.Context, w http.ResponseWriter, msg message) {
	// Empty titles would collide on an empty cache key; reject before keying.
	if msg.VideoID == "" && cachekey.NormalizeTitle(msg.Title) == "" {
		writeJSON(w, http.StatusOK, fetchResponse{Error: domain.ErrCodeEmptyTitle})
		return
	}

	res, err := s.session.Get(ctx, fetcher.Request{
		VideoID:        msg.VideoID,
		Title:          msg.Title,
		Year:           msg.Year,
		CheckFreshness: msg.CheckFreshness,
		EnrichExisting: msg.EnrichExisting,
	})
	if err != nil {
		code := domain.ErrCodeTransport
		if errors.Is(err, domain.ErrNoAPIKey) {
			code = domain.ErrCodeNoAPIKey
		}
		writeJSON(w, http.StatusOK, fetchResponse{Error: code})
		return
	}

	entry := res.Entry
	switch entry.Status {
	case domain.StatusSuccess:
		writeJSON(w, http.StatusOK, fetchResponse{
			Success: true,
			Data:    s.applyDisplayToggles(entry),
			Source:  res.Source,
		})
	case domain.StatusNotFound:
		writeJSON(w, http.StatusOK, fetchResponse{Error: domain.ErrCodeNotFound, Source: res.Source})
	default:
		writeJSON(w, http.StatusOK, fetchResponse{Error: domain.ErrCodeTransport, Source: res.Source})
	}
}

func (s *Server) handleStats(w http.ResponseWriter) {
	mem, storage := s.store.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		Success: true,
		Stats: cacheStats{
			MemorySize:      mem,
			StorageSize:     storage,
			PendingRequests: s.fetcher.PendingRequests(),
		},
	})
}

func (s *Server) handleClear(w http.ResponseWriter) {
	cleared := s.store.Clear()
	s.session.Reset()
	s.logger.Info("cache cleared", "keys", cleared)
	writeJSON(w, http.StatusOK, clearResponse{Success: true, ClearedCount: cleared})
}

func (s *Server) handleSearch(w http.ResponseWriter, msg message) {
	results := s.search.Search(msg.Query, msg.Limit)
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Success: true, Results: results})
}

// applyDisplayToggles drops disabled sources from the response payload.
// Toggles gate presentation only; the cached entry is untouched.
func (s *Server) applyDisplayToggles(e *domain.RatingEntry) *domain.RatingEntry {
	if s.display.ShowIMDB && s.display.ShowRottenTomatoes && s.display.ShowMetacritic {
		return e
	}
	clone := *e
	if !s.display.ShowIMDB {
		clone.Ratings.IMDB = nil
	}
	if !s.display.ShowRottenTomatoes {
		clone.Ratings.RottenTomatoes = nil
	}
	if !s.display.ShowMetacritic {
		clone.Ratings.Metacritic = nil
	}
	return &clone
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
