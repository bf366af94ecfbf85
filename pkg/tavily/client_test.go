package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{apiKey: "test-key", baseURL: srv.URL, httpClient: srv.Client()}
}

func TestSearch_SendsQueryAndParsesResults(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResponse{
			Results: []SearchResult{{Title: "A", URL: "https://a.com", Content: "snippet", Score: 0.9}},
		})
	})

	resp, err := client.Search(context.Background(), "go concurrency", 5)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://a.com", resp.Results[0].URL)
	assert.Equal(t, "test-key", gotBody["api_key"])
	assert.Equal(t, "go concurrency", gotBody["query"])
	assert.Equal(t, float64(5), gotBody["max_results"])
}

func TestExtract_SendsURLsAndParsesRawContent(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(ExtractResponse{
			Results: []ExtractResult{{URL: "https://a.com", RawContent: "full page text"}},
		})
	})

	resp, err := client.Extract(context.Background(), []string{"https://a.com"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "full page text", resp.Results[0].RawContent)
	urls, _ := gotBody["urls"].([]any)
	assert.Equal(t, []any{"https://a.com"}, urls)
}

func TestSearch_NonSuccessStatusReturnsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	})

	_, err := client.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
