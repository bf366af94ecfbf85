package tavily

import (
	"context"
	"fmt"

	"github.com/kpaschalidis/anvil/pkg/toolregistry"
)

// RegisterTools wires a Client's Search/Extract calls into registry under
// the names "web_search" and "web_extract", matching the JSON result shape
// pkg/agent.recordWebSearchMetadata/recordExtraction expect: a web_search
// result is {"results": [{"url","title","snippet","score"}, ...]} and a
// web_extract result is {"raw_content": "..."}.
func RegisterTools(registry *toolregistry.Registry, client *Client) {
	registry.Register("web_search", "search the web for a query, returning ranked results with title/url/snippet",
		toolregistry.SchemaOf(toolregistry.WebSearchArgs{}), func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return nil, fmt.Errorf("web_search: query is required")
			}
			maxResults := 10
			if pageSize, ok := args["page_size"].(float64); ok && pageSize > 0 {
				maxResults = int(pageSize)
			}
			resp, err := client.Search(ctx, query, maxResults)
			if err != nil {
				return nil, err
			}
			results := make([]map[string]any, 0, len(resp.Results))
			for _, r := range resp.Results {
				results = append(results, map[string]any{
					"url":     r.URL,
					"title":   r.Title,
					"snippet": r.Content,
					"score":   r.Score,
				})
			}
			return map[string]any{"results": results}, nil
		})

	registry.Register("web_extract", "fetch a URL and return its extracted page content",
		toolregistry.SchemaOf(toolregistry.WebExtractArgs{}), func(ctx context.Context, args map[string]any) (any, error) {
			url, _ := args["url"].(string)
			if url == "" {
				return nil, fmt.Errorf("web_extract: url is required")
			}
			resp, err := client.Extract(ctx, []string{url})
			if err != nil {
				return nil, err
			}
			if len(resp.Results) == 0 {
				return nil, fmt.Errorf("web_extract: no content returned for %s", url)
			}
			content := resp.Results[0].RawContent
			if maxChars, ok := args["max_chars"].(float64); ok && maxChars > 0 && len(content) > int(maxChars) {
				content = content[:int(maxChars)]
			}
			return map[string]any{"raw_content": content}, nil
		})
}
