package llm

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessagesAPI struct {
	resp *sdk.Message
	err  error
}

func (f *fakeMessagesAPI) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	return f.resp, f.err
}

func (f *fakeMessagesAPI) NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	return nil
}

func TestCompleteTranslatesTextAndUsage(t *testing.T) {
	fake := &fakeMessagesAPI{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "hello world"},
			},
			StopReason: "end_turn",
			Usage:      sdk.Usage{InputTokens: 12, OutputTokens: 34},
		},
	}
	c := newAnthropicClientWithAPI(fake, "claude-x")

	resp, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 34, resp.Usage.OutputTokens)
}

func TestCompleteTranslatesToolUse(t *testing.T) {
	fake := &fakeMessagesAPI{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Type: "tool_use", ID: "call_1", Name: "shell"},
			},
		},
	}
	c := newAnthropicClientWithAPI(fake, "claude-x")

	resp, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "run ls"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "shell", resp.ToolCalls[0].Name)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
}

func TestBuildParamsSeparatesSystemMessages(t *testing.T) {
	c := newAnthropicClientWithAPI(&fakeMessagesAPI{}, "claude-x")
	params := c.buildParams(Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "be concise"},
			{Role: RoleUser, Content: "hi"},
		},
	})
	require.Len(t, params.System, 1)
	assert.Contains(t, params.System[0].Text, "be concise")
	require.Len(t, params.Messages, 1)
}

func TestNewAnthropicClientRequiresAPIKeyAndModel(t *testing.T) {
	_, err := NewAnthropicClient("", "claude-x")
	assert.Error(t, err)

	_, err = NewAnthropicClient("key", "")
	assert.Error(t, err)
}
