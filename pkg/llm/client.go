// Package llm defines a provider-agnostic chat-completion interface
// (modeled on goa-ai's runtime/agents/model package) plus a concrete
// client backed by the Anthropic Messages API. Planner and executor
// agents depend only on Client; swapping providers never touches
// pkg/agent or pkg/flow.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// Role mirrors model.Message.Role values accepted by providers.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of chat history sent to or received from the model.
type Message struct {
	Role    Role
	Content string
}

// ToolDefinition describes a tool schema offered to the model for
// function calling.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema any
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID      string
	Name    string
	Payload map[string]any
}

// TokenUsage reports prompt/completion token counts when the provider
// supplies them.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Request captures one chat-completion call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float32
	MaxTokens   int
	Tools       []ToolDefinition
}

// Response is the non-streaming result of a chat-completion call.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Usage      TokenUsage
}

// StreamChunk is one incremental unit delivered while streaming.
type StreamChunk struct {
	Content    string
	IsThinking bool
	ToolCall   *ToolCall
	IsFinal    bool
	Error      string
}

// Client is the contract agents use to invoke LLM calls. Implementations
// wrap a provider SDK and must be safe for concurrent use.
type Client interface {
	// Complete issues a single request/response call.
	Complete(ctx context.Context, req Request) (Response, error)
	// Stream issues a request and delivers incremental chunks on the
	// returned channel, closing it when the response is complete or an
	// error occurs (reported on the second channel).
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error)
}

// messagesAPI captures the subset of *sdk.MessageService the adapter
// uses, so tests can substitute a fake without hitting the network —
// the same seam goa-ai's anthropic adapter cuts at.
type messagesAPI interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// AnthropicClient implements Client on top of the Anthropic Claude
// Messages API via github.com/anthropics/anthropic-sdk-go.
type AnthropicClient struct {
	msg          messagesAPI
	defaultModel string
	log          *slog.Logger
}

// NewAnthropicClient builds a Client authenticated with apiKey, passed
// to the SDK via option.WithAPIKey. An empty apiKey or defaultModel is
// an error.
func NewAnthropicClient(apiKey, defaultModel string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	if defaultModel == "" {
		return nil, errors.New("llm: default model is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{msg: &c.Messages, defaultModel: defaultModel, log: slog.Default().With("component", "llm")}, nil
}

// newAnthropicClientWithAPI is the test seam: build a client around a
// caller-supplied messagesAPI instead of a real SDK client.
func newAnthropicClientWithAPI(api messagesAPI, defaultModel string) *AnthropicClient {
	return &AnthropicClient{msg: api, defaultModel: defaultModel, log: slog.Default().With("component", "llm")}
}

func (c *AnthropicClient) resolveModel(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.defaultModel
}

func (c *AnthropicClient) buildParams(req Request) sdk.MessageNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var system string
	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system += m.Content + "\n"
		case RoleAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.resolveModel(req)),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if len(req.Tools) > 0 {
		tools := make([]sdk.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, sdk.ToolUnionParam{
				OfTool: &sdk.ToolParam{
					Name:        t.Name,
					Description: sdk.String(t.Description),
					InputSchema: sdk.ToolInputSchemaParam{
						Properties: t.InputSchema,
					},
				},
			})
		}
		params.Tools = tools
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(float64(*req.Temperature))
	}
	return params
}

// Complete issues a non-streaming Messages.New call.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	params := c.buildParams(req)
	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("llm: anthropic messages.new: %w", err)
	}
	return translate(msg), nil
}

func translate(msg *sdk.Message) Response {
	var resp Response
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			var payload map[string]any
			_ = json.Unmarshal(block.Input, &payload)
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:      block.ID,
				Name:    block.Name,
				Payload: payload,
			})
		}
	}
	resp.StopReason = string(msg.StopReason)
	resp.Usage = TokenUsage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	return resp
}

// Stream issues Messages.NewStreaming and adapts incremental SSE events
// into StreamChunk values on a channel, matching the teacher's
// channel-pair idiom (chunks, errs) rather than an io.Reader-like type.
func (c *AnthropicClient) Stream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk, 100)
	errs := make(chan error, 1)

	params := c.buildParams(req)

	go func() {
		defer close(chunks)
		defer close(errs)

		stream := c.msg.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case sdk.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case sdk.TextDelta:
					if delta.Text == "" {
						continue
					}
					select {
					case chunks <- StreamChunk{Content: delta.Text}:
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
				case sdk.ThinkingDelta:
					if delta.Thinking == "" {
						continue
					}
					select {
					case chunks <- StreamChunk{Content: delta.Thinking, IsThinking: true}:
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
				}
			case sdk.MessageStopEvent:
				_ = ev
				select {
				case chunks <- StreamChunk{IsFinal: true}:
				case <-ctx.Done():
					errs <- ctx.Err()
				}
				return
			}
		}
		if err := stream.Err(); err != nil {
			errs <- fmt.Errorf("llm: anthropic stream: %w", err)
		}
	}()

	return chunks, errs
}
