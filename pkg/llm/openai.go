package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompatAdapter implements Completion against the OpenAI Chat
// Completions API (and any OpenAI-compatible endpoint reachable via a
// custom base URL, e.g. local or third-party inference gateways), mirroring
// AnthropicAdapter's shape so pkg/agent can treat either provider
// identically through the Completion interface.
type OpenAICompatAdapter struct {
	client openai.Client
}

// NewOpenAICompatAdapter builds an adapter. baseURL may be empty to use the
// default OpenAI endpoint.
func NewOpenAICompatAdapter(apiKey, baseURL string) *OpenAICompatAdapter {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompatAdapter{client: openai.NewClient(opts...)}
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func toOpenAITools(tools []ToolSchema) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			},
		})
	}
	return out
}

// Complete performs a non-streaming chat completion request.
func (o *OpenAICompatAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Tools:       toOpenAITools(req.Tools),
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return &Response{}, nil
	}

	choice := completion.Choices[0]
	resp := &Response{Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return resp, nil
}

// Stream performs a streaming chat completion request, translating each
// chunk's choice delta into a Delta value with index-tagged tool-call
// fragments (§4.4 streaming reassembly).
func (o *OpenAICompatAdapter) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	params := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Tools:       toOpenAITools(req.Tools),
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	out := make(chan Delta)

	go func() {
		defer close(out)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta

			d := Delta{Content: delta.Content}
			for _, tc := range delta.ToolCalls {
				d.ToolCallDeltas = append(d.ToolCallDeltas, ToolCallDelta{
					Index:          int(tc.Index),
					ID:             tc.ID,
					NameChunk:      tc.Function.Name,
					ArgumentsChunk: tc.Function.Arguments,
				})
			}
			out <- d
		}
	}()

	return out, nil
}
