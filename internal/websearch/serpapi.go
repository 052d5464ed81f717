// Package websearch fetches organic web results used to enrich answer prompts.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://serpapi.com"
	DefaultResults = 3
)

type Config struct {
	APIKey  string
	BaseURL string
	Results int
	Timeout time.Duration
}

// SerpAPI queries Google through serpapi.com.
type SerpAPI struct {
	apiKey  string
	baseURL string
	results int
	client  *http.Client
	limiter *ratelimit.Limiter
}

func NewSerpAPI(cfg Config, limiter *ratelimit.Limiter) *SerpAPI {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	results := cfg.Results
	if results <= 0 {
		results = DefaultResults
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SerpAPI{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		results: results,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

type searchResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// Search returns at most the configured number of organic results for query.
func (s *SerpAPI) Search(ctx context.Context, query string) ([]domain.WebResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, domain.Wrap(domain.ErrWebSearchFailed, err)
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(s.results))
	params.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.ErrWebSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		err := &ratelimit.TooManyRequestsError{RetryAfter: ratelimit.ParseRetryAfter(resp.Header.Get("Retry-After"))}
		s.limiter.Observe(err)
		return nil, domain.Wrap(domain.ErrWebSearchFailed, err)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.Wrap(domain.ErrWebSearchFailed, fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}
	if resp.StatusCode >= 300 || out.Error != "" {
		return nil, domain.Wrap(domain.ErrWebSearchFailed, fmt.Errorf("status %d: %s", resp.StatusCode, out.Error))
	}

	results := make([]domain.WebResult, 0, len(out.OrganicResults))
	for _, r := range out.OrganicResults {
		if len(results) == s.results {
			break
		}
		results = append(results, domain.WebResult{Title: r.Title, URL: r.Link, Content: r.Snippet})
	}
	return results, nil
}
