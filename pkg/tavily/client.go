// Package tavily implements the web_search/web_extract tool pair against
// the Tavily Search API (https://docs.tavily.com), the provider spec.md
// names implicitly via "Tavily score" in curated-source ranking (§4.8 step
// 9). No Go SDK for Tavily appears anywhere in the example corpus, so this
// client is a minimal net/http JSON caller rather than a vendored or
// fabricated dependency; see DESIGN.md for the stdlib justification.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.tavily.com"

// Client calls the Tavily Search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client over apiKey, with a 30s request timeout.
func NewClient(apiKey string) *Client {
	return &Client{apiKey: apiKey, baseURL: defaultBaseURL, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// SearchResult is one hit from a Tavily search, matching the subset of
// fields this codebase consumes (title, url, score, content snippet).
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchResponse is Tavily's /search response, trimmed to the fields used.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search runs a Tavily search query, capped to maxResults hits.
func (c *Client) Search(ctx context.Context, query string, maxResults int) (*SearchResponse, error) {
	body, err := json.Marshal(map[string]any{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": maxResults,
	})
	if err != nil {
		return nil, err
	}
	var out SearchResponse
	if err := c.post(ctx, "/search", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractResult is one page's extracted raw content from Tavily /extract.
type ExtractResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

// ExtractResponse is Tavily's /extract response, trimmed to used fields.
type ExtractResponse struct {
	Results []ExtractResult `json:"results"`
}

// Extract fetches full page content for the given URLs.
func (c *Client) Extract(ctx context.Context, urls []string) (*ExtractResponse, error) {
	body, err := json.Marshal(map[string]any{
		"api_key": c.apiKey,
		"urls":    urls,
	})
	if err != nil {
		return nil, err
	}
	var out ExtractResponse
	if err := c.post(ctx, "/extract", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("tavily %s: status %d: %s", path, resp.StatusCode, string(data))
	}
	return json.Unmarshal(data, out)
}
