// Package catalog implements the client for the external metadata catalog:
// given a movie code and an ordered list of named sources, return the first
// successful metadata record or none.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"vaultingest/internal/ratelimit"
)

// Record is the metadata returned for a movie code. Fields beyond the ones
// the pipeline consumes are preserved verbatim in metadata_json by the
// caller, not by this client.
type Record struct {
	MovieCode     string   `json:"movie_code"`
	Title         string   `json:"title"`
	Actress       []string `json:"actress"`
	OriginalTitle string   `json:"original_title"`
	Overview      string   `json:"overview"`
	ReleaseDate   string   `json:"release_date"`
	Genre         []string `json:"genre"`
	Maker         string   `json:"maker"`
	Label         string   `json:"label"`
	Series        string   `json:"series"`
	ImageCropped  string   `json:"image_cropped"`
	RawImageURL   string   `json:"raw_image_url"`
}

type searchResponse struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	StatusCode int             `json:"statusCode"`
}

type httpResult struct {
	status int
	body   []byte
}

// Client searches an ordered list of sources for a movie code's metadata.
type Client struct {
	baseURL     string
	token       string
	searchOrder []string
	httpClient  *http.Client
	limiter     *ratelimit.SourceLimiter
}

// New builds a Client. searchOrder is tried in order on every call to
// Search; requestsPerSecond and burst bound outbound requests per source.
func New(baseURL, token string, searchOrder []string, requestsPerSecond float64, burst int) *Client {
	return &Client{
		baseURL:     baseURL,
		token:       token,
		searchOrder: searchOrder,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		limiter:     ratelimit.New(rate.Limit(requestsPerSecond), burst),
	}
}

// Search tries every configured source in order for code, retrying the
// whole sequence once if every source misses. Returns (nil, nil) if no
// source ever has the code.
func (c *Client) Search(ctx context.Context, code string) (*Record, error) {
	for attempt := 0; attempt < 2; attempt++ {
		for _, source := range c.searchOrder {
			record, hit, err := c.searchOne(ctx, source, code)
			if err != nil {
				return nil, fmt.Errorf("catalog transport failure against source %q: %w", source, err)
			}
			if hit {
				return record, nil
			}
		}
		slog.Warn("catalog search missed on every source", "code", code, "attempt", attempt+1)
	}
	return nil, nil
}

// searchOne issues one POST against source, retrying transport-level
// failures (not source misses) a few times with exponential backoff before
// giving up on that source for this pass.
func (c *Client) searchOne(ctx context.Context, source, code string) (*Record, bool, error) {
	if err := c.limiter.Get(source).Wait(ctx); err != nil {
		return nil, false, err
	}

	reqID := uuid.NewString()
	body, err := json.Marshal(map[string]string{"moviecode": code})
	if err != nil {
		return nil, false, fmt.Errorf("encode search body: %w", err)
	}
	url := fmt.Sprintf("%s/%s/search", c.baseURL, source)

	result, err := backoff.Retry(ctx, func() (httpResult, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if reqErr != nil {
			return httpResult{}, backoff.Permanent(fmt.Errorf("build search request: %w", reqErr))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("X-Request-Id", reqID)

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return httpResult{}, doErr
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return httpResult{}, readErr
		}
		return httpResult{status: resp.StatusCode, body: data}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	if err != nil {
		return nil, false, err
	}

	if result.status < 200 || result.status >= 300 {
		slog.Debug("catalog source miss: non-2xx", "source", source, "status", result.status, "request_id", reqID)
		return nil, false, nil
	}

	var parsed searchResponse
	if err := json.Unmarshal(result.body, &parsed); err != nil {
		slog.Debug("catalog source miss: undecodable response", "source", source, "request_id", reqID)
		return nil, false, nil
	}
	if !parsed.Success || len(parsed.Data) == 0 || string(parsed.Data) == "null" {
		return nil, false, nil
	}

	var record Record
	if err := json.Unmarshal(parsed.Data, &record); err != nil {
		slog.Debug("catalog source miss: undecodable data", "source", source, "request_id", reqID)
		return nil, false, nil
	}

	return &record, true, nil
}
