package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter implements Completion against the Anthropic Messages API.
// Grounded on the teacher's pkg/agent/llm_client.go: a thin struct wrapping
// the vendor SDK client, a non-streaming call and a streaming call that
// turns the SDK's server-sent-event iterator into this package's Delta
// channel, with tool-call argument fragments reassembled by index exactly as
// the teacher's ChunkType-tagged stream reader did for its own chunk shape.
type AnthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropicAdapter builds an adapter from an API key. Passing "" relies
// on the SDK's ANTHROPIC_API_KEY environment lookup.
func NewAnthropicAdapter(apiKey string) *AnthropicAdapter {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicAdapter{client: anthropic.NewClient(opts...)}
}

func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleUser, RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func toAnthropicTools(tools []ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.Parameters["properties"],
				},
			},
		})
	}
	return out
}

// Complete performs a non-streaming Anthropic Messages request.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    toAnthropicMessages(req.Messages),
		Tools:       toAnthropicTools(req.Tools),
		Temperature: anthropic.Float(req.Temperature),
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	resp := &Response{}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: string(variant.Input),
			})
		}
	}
	return resp, nil
}

// Stream performs a streaming Anthropic Messages request, translating SSE
// events into Delta values. The returned channel is closed when the
// underlying stream ends or errors.
func (a *AnthropicAdapter) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    toAnthropicMessages(req.Messages),
		Tools:       toAnthropicTools(req.Tools),
		Temperature: anthropic.Float(req.Temperature),
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	out := make(chan Delta)

	go func() {
		defer close(out)
		toolIndex := -1
		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if _, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					toolIndex++
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					out <- Delta{Content: delta.Text}
				case anthropic.InputJSONDelta:
					out <- Delta{ToolCallDeltas: []ToolCallDelta{{
						Index:          toolIndex,
						ArgumentsChunk: delta.PartialJSON,
					}}}
				}
			}
		}
	}()

	return out, nil
}
