package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/toolregistry"
)

func newWebSearchRegistry(t *testing.T) *toolregistry.Registry {
	t.Helper()
	reg := toolregistry.New()
	reg.Register("web_search", "search the web", nil, func(_ context.Context, _ map[string]any) (any, error) {
		return map[string]any{
			"results": []any{
				map[string]any{"url": "https://a.example.com/1", "title": "A", "snippet": "about a", "score": 0.9},
				map[string]any{"url": "https://b.example.com/2", "title": "B", "snippet": "about b", "score": 0.5},
			},
		}, nil
	})
	reg.Register("web_extract", "extract a page", nil, func(_ context.Context, args map[string]any) (any, error) {
		return map[string]any{"raw_content": "extracted body for " + args["url"].(string)}, nil
	})
	reg.Register("forbidden_tool", "should never run", nil, func(_ context.Context, _ map[string]any) (any, error) {
		t.Fatal("forbidden_tool implementation must never be reached")
		return nil, nil
	})
	return reg
}

func TestRunSubAgent_DisallowedToolGetsSyntheticFailure(t *testing.T) {
	reg := newWebSearchRegistry(t)
	completion := &scriptedCompletion{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{Name: "forbidden_tool", Arguments: `{}`}}},
		{Content: "done"},
	}}

	_, trace, _, err := RunSubAgent(context.Background(), completion, reg, SubAgentConfig{
		MaxIterations:     5,
		ToolAllowlist:     []string{"web_search"},
		MaxWebSearchCalls: 3,
	})
	require.NoError(t, err)
	require.Len(t, trace.Calls, 1)
	require.False(t, trace.Calls[0].Success)
	require.Contains(t, trace.Calls[0].Error, "not allowlisted")
}

func TestRunSubAgent_RecordsCitationsFromWebSearch(t *testing.T) {
	reg := newWebSearchRegistry(t)
	completion := &scriptedCompletion{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{Name: "web_search", Arguments: `{"query":"x"}`}}},
		{Content: "done"},
	}}

	_, trace, _, err := RunSubAgent(context.Background(), completion, reg, SubAgentConfig{
		MaxIterations:     5,
		ToolAllowlist:     []string{"web_search"},
		MaxWebSearchCalls: 3,
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"https://a.example.com/1", "https://b.example.com/2"}, trace.Citations)
	require.Equal(t, "A", trace.Sources["https://a.example.com/1"].Title)
	require.Equal(t, 1, trace.WebSearchCalls)
}

func TestRunSubAgent_EnforcesMaxWebSearchCalls(t *testing.T) {
	reg := newWebSearchRegistry(t)
	completion := &scriptedCompletion{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{Name: "web_search", Arguments: `{"query":"1"}`}}},
		{ToolCalls: []llm.ToolCall{{Name: "web_search", Arguments: `{"query":"2"}`}}},
		{Content: "done"},
	}}

	_, trace, _, err := RunSubAgent(context.Background(), completion, reg, SubAgentConfig{
		MaxIterations:     5,
		ToolAllowlist:     []string{"web_search"},
		MaxWebSearchCalls: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 1, trace.WebSearchCalls)
	require.Len(t, trace.Calls, 2)
	require.True(t, trace.Calls[0].Success)
	require.False(t, trace.Calls[1].Success)
	require.Contains(t, trace.Calls[1].Error, "max_web_search_calls")
}

func TestRunSubAgent_ExhaustedBudgetReturnsSentinel(t *testing.T) {
	reg := newWebSearchRegistry(t)
	completion := &scriptedCompletion{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{Name: "web_search", Arguments: `{"query":"1"}`}}},
		{ToolCalls: []llm.ToolCall{{Name: "web_search", Arguments: `{"query":"2"}`}}},
	}}

	output, _, iterations, err := RunSubAgent(context.Background(), completion, reg, SubAgentConfig{
		MaxIterations:     2,
		ToolAllowlist:     []string{"web_search"},
		MaxWebSearchCalls: 5,
	})
	require.NoError(t, err)
	require.Equal(t, ExhaustedResponseSentinel, output)
	require.Equal(t, 2, iterations)
}
