package toolregistry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_ExecuteSuccess(t *testing.T) {
	r := New()
	r.Register("echo", "echoes input", SchemaOf(WebSearchArgs{}), func(_ context.Context, args map[string]any) (any, error) {
		return args["query"], nil
	})

	res := r.Execute(context.Background(), "echo", map[string]any{"query": "go"})
	require.True(t, res.Success)
	require.Equal(t, "go", res.Result)
}

func TestRegistry_ExecuteNotFound(t *testing.T) {
	r := New()
	res := r.Execute(context.Background(), "missing", nil)
	require.False(t, res.Success)
	require.Equal(t, "not found", res.Error)
}

func TestRegistry_ExecuteErrorNeverPanics(t *testing.T) {
	r := New()
	r.Register("boom", "", nil, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, errors.New("kaboom")
	})
	res := r.Execute(context.Background(), "boom", nil)
	require.False(t, res.Success)
	require.Equal(t, "kaboom", res.Error)
}

func TestRegistry_ExecuteRecoversPanic(t *testing.T) {
	r := New()
	r.Register("panics", "", nil, func(_ context.Context, _ map[string]any) (any, error) {
		panic("unexpected")
	})
	require.NotPanics(t, func() {
		res := r.Execute(context.Background(), "panics", nil)
		require.False(t, res.Success)
	})
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := New()
	r.Register("dup", "v1", nil, func(_ context.Context, _ map[string]any) (any, error) { return "v1", nil })
	r.Register("dup", "v2", nil, func(_ context.Context, _ map[string]any) (any, error) { return "v2", nil })

	res := r.Execute(context.Background(), "dup", nil)
	require.Equal(t, "v2", res.Result)
	require.Len(t, r.Schemas(), 1)
}

func TestRegistry_ArgumentValidation(t *testing.T) {
	r := New()
	r.Register("search", "search tool", SchemaOf(WebSearchArgs{}), func(_ context.Context, args map[string]any) (any, error) {
		return "ok", nil
	})

	res := r.Execute(context.Background(), "search", map[string]any{})
	require.False(t, res.Success)
}
