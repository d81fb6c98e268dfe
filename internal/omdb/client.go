// Package omdb is the external ratings client. Lookup is two-phase: an
// exact title(+year) query first, then a fuzzy search fallback that scores
// candidates by title similarity and pulls full details for the winner.
package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"reelrate/internal/cachekey"
	"reelrate/internal/domain"
)

const (
	// DefaultBaseURL is the public OMDb endpoint.
	DefaultBaseURL = "https://www.omdbapi.com/"

	defaultTimeout = 10 * time.Second
	userAgent      = "reelrate/1.0"
)

// Client calls the OMDb API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new OMDb client. An empty baseURL uses the public
// endpoint; a zero timeout uses the default.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Lookup resolves a title against OMDb. A (nil, nil) return means the
// provider has no matching record; errors are transport-level failures the
// orchestrator handles.
func (c *Client) Lookup(ctx context.Context, title, year string) (*domain.RatingEntry, error) {
	entry, err := c.exactLookup(ctx, title, year)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}
	return c.fuzzyLookup(ctx, title)
}

// exactLookup queries by full title, plus year when one is known.
func (c *Client) exactLookup(ctx context.Context, title, year string) (*domain.RatingEntry, error) {
	params := url.Values{}
	params.Set("t", title)
	if y := cachekey.NormalizeYear(year); y != "" {
		params.Set("y", y)
	}

	var resp movieResponse
	if err := c.doRequest(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Response != "True" {
		c.logger.Debug("omdb exact lookup missed", "title", title, "reason", resp.Error)
		return nil, nil
	}
	return resp.toEntry(), nil
}

// fuzzyLookup searches with a cleaned title, scores the candidates and
// fetches full details for the best one.
func (c *Client) fuzzyLookup(ctx context.Context, title string) (*domain.RatingEntry, error) {
	cleaned := cleanTitle(title)
	if cleaned == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("s", cleaned)

	var resp searchResponse
	if err := c.doRequest(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Response != "True" || len(resp.Search) == 0 {
		return nil, nil
	}

	best := pickCandidate(cleaned, resp.Search)
	if best == nil {
		c.logger.Debug("omdb search had no candidate above threshold", "title", cleaned)
		return nil, nil
	}

	return c.detailLookup(ctx, best.IMDBID)
}

// detailLookup fetches the full record by the candidate's stable IMDb ID.
func (c *Client) detailLookup(ctx context.Context, imdbID string) (*domain.RatingEntry, error) {
	params := url.Values{}
	params.Set("i", imdbID)

	var resp movieResponse
	if err := c.doRequest(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Response != "True" {
		return nil, nil
	}
	return resp.toEntry(), nil
}

// doRequest performs an authenticated GET and decodes the JSON body.
func (c *Client) doRequest(ctx context.Context, params url.Values, dest interface{}) error {
	params.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("omdb request", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("omdb request failed", "error", err)
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("omdb request error", "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("%w: unexpected status code %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
