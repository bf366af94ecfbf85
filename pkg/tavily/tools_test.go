package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kpaschalidis/anvil/pkg/toolregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTools_WebSearchShapeMatchesAgentContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(SearchResponse{
			Results: []SearchResult{{Title: "Title A", URL: "https://a.com", Content: "snippet A", Score: 0.75}},
		})
	}))
	defer srv.Close()
	client := &Client{apiKey: "k", baseURL: srv.URL, httpClient: srv.Client()}

	registry := toolregistry.New()
	RegisterTools(registry, client)

	result := registry.Execute(context.Background(), "web_search", map[string]any{"query": "go concurrency", "page_size": float64(3)})
	require.True(t, result.Success, result.Error)

	shaped, ok := result.Result.(map[string]any)
	require.True(t, ok)
	results, ok := shaped["results"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "https://a.com", results[0]["url"])
	assert.Equal(t, "Title A", results[0]["title"])
	assert.Equal(t, "snippet A", results[0]["snippet"])
	assert.Equal(t, 0.75, results[0]["score"])
}

func TestRegisterTools_WebSearchRequiresQuery(t *testing.T) {
	registry := toolregistry.New()
	RegisterTools(registry, NewClient("k"))

	result := registry.Execute(context.Background(), "web_search", map[string]any{})
	assert.False(t, result.Success)
}

func TestRegisterTools_WebExtractShapeMatchesAgentContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ExtractResponse{
			Results: []ExtractResult{{URL: "https://a.com", RawContent: "the full extracted page content"}},
		})
	}))
	defer srv.Close()
	client := &Client{apiKey: "k", baseURL: srv.URL, httpClient: srv.Client()}

	registry := toolregistry.New()
	RegisterTools(registry, client)

	result := registry.Execute(context.Background(), "web_extract", map[string]any{"url": "https://a.com"})
	require.True(t, result.Success, result.Error)

	shaped, ok := result.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "the full extracted page content", shaped["raw_content"])
}

func TestRegisterTools_WebExtractTruncatesToMaxChars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ExtractResponse{
			Results: []ExtractResult{{URL: "https://a.com", RawContent: "0123456789"}},
		})
	}))
	defer srv.Close()
	client := &Client{apiKey: "k", baseURL: srv.URL, httpClient: srv.Client()}

	registry := toolregistry.New()
	RegisterTools(registry, client)

	result := registry.Execute(context.Background(), "web_extract", map[string]any{"url": "https://a.com", "max_chars": float64(4)})
	require.True(t, result.Success, result.Error)
	shaped := result.Result.(map[string]any)
	assert.Equal(t, "0123", shaped["raw_content"])
}

func TestRegisterTools_WebExtractRequiresURL(t *testing.T) {
	registry := toolregistry.New()
	RegisterTools(registry, NewClient("k"))

	result := registry.Execute(context.Background(), "web_extract", map[string]any{})
	assert.False(t, result.Success)
}
