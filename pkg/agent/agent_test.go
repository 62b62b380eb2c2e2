package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/agentcore/pkg/llm"
	"github.com/opsforge/agentcore/pkg/model"
)

// fakeLLMClient replays a scripted sequence of Response values, one per
// Complete call, so tests can drive BaseAgent.execute through a fixed
// number of tool-calling turns without a network.
type fakeLLMClient struct {
	responses []llm.Response
	errs      []error
	calls     []llm.Request
	i         int
}

func (f *fakeLLMClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	f.calls = append(f.calls, req)
	if f.i >= len(f.responses) {
		return llm.Response{}, errors.New("fakeLLMClient: no more scripted responses")
	}
	resp := f.responses[f.i]
	var err error
	if f.i < len(f.errs) {
		err = f.errs[f.i]
	}
	f.i++
	return resp, err
}

func (f *fakeLLMClient) Stream(context.Context, llm.Request) (<-chan llm.StreamChunk, <-chan error) {
	panic("not used in these tests")
}

// fakeExecutor records every call it receives and replays canned results
// keyed by tool name.
type fakeExecutor struct {
	results map[string]*ToolResult
	errs    map[string]error
	calls   []ToolCall
}

func (f *fakeExecutor) Execute(_ context.Context, call ToolCall) (*ToolResult, error) {
	f.calls = append(f.calls, call)
	if err, ok := f.errs[call.Name]; ok {
		return nil, err
	}
	if r, ok := f.results[call.Name]; ok {
		return r, nil
	}
	return &ToolResult{CallID: call.ID, Name: call.Name, Content: `{"success":true,"message":"ok"}`}, nil
}

func (f *fakeExecutor) ListTools(context.Context) ([]ToolDefinition, error) { return nil, nil }
func (f *fakeExecutor) Close() error                                       { return nil }

func newTestAgentModel() *model.Agent {
	return model.NewAgent("agent-1", "claude-test", 0.2, 1024)
}

func collectEvents(events *[]model.Event) func(model.Event) error {
	return func(ev model.Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestBaseAgent_Execute_NoToolCalls(t *testing.T) {
	client := &fakeLLMClient{responses: []llm.Response{{Content: "all done"}}}
	executor := &fakeExecutor{}
	base := newBaseAgent("test", "system prompt", FormatFreeText, nil, client, executor, nil, newTestAgentModel(), "slot")

	var events []model.Event
	err := base.execute(context.Background(), "hello", collectEvents(&events))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventMessage, events[0].Type)
	assert.Equal(t, "all done", events[0].Content)

	mem := base.agentModel.Memory("slot")
	require.Len(t, mem, 2)
	assert.Equal(t, model.RoleUser, mem[0].Role)
	assert.Equal(t, model.RoleAssistant, mem[1].Role)
}

func TestBaseAgent_Execute_OneToolRoundTrip(t *testing.T) {
	client := &fakeLLMClient{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "shell", Payload: map[string]any{"command": "ls"}}}},
		{Content: "finished after tool call"},
	}}
	executor := &fakeExecutor{results: map[string]*ToolResult{
		"shell": {CallID: "call-1", Name: "shell", Content: `{"success":true,"message":"ls output"}`},
	}}
	base := newBaseAgent("test", "system prompt", FormatFreeText, nil, client, executor, nil, newTestAgentModel(), "slot")

	var events []model.Event
	err := base.execute(context.Background(), "run ls", collectEvents(&events))
	require.NoError(t, err)
	require.Len(t, executor.calls, 1)
	assert.Equal(t, "shell", executor.calls[0].Name)

	require.Len(t, events, 3)
	assert.Equal(t, model.EventTool, events[0].Type)
	assert.Equal(t, model.ToolCalling, events[0].ToolStatus)
	assert.Equal(t, model.EventTool, events[1].Type)
	assert.Equal(t, model.ToolCalled, events[1].ToolStatus)
	require.NotNil(t, events[1].FunctionResult)
	assert.True(t, events[1].FunctionResult.Success)
	assert.Equal(t, model.EventMessage, events[2].Type)
	assert.Equal(t, "finished after tool call", events[2].Content)
}

func TestBaseAgent_Execute_ToolExecutorErrorContinuesLoop(t *testing.T) {
	client := &fakeLLMClient{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "shell", Payload: map[string]any{}}}},
		{Content: "recovered"},
	}}
	executor := &fakeExecutor{errs: map[string]error{"shell": errors.New("boom")}}
	base := newBaseAgent("test", "system prompt", FormatFreeText, nil, client, executor, nil, newTestAgentModel(), "slot")

	var events []model.Event
	err := base.execute(context.Background(), "run it", collectEvents(&events))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, model.ToolCalled, events[1].ToolStatus)
	assert.False(t, events[1].FunctionResult.Success)
	assert.Equal(t, "recovered", events[2].Content)
}

func TestBaseAgent_Execute_ExceedsMaxIterations(t *testing.T) {
	responses := make([]llm.Response, 0, maxToolIterations)
	for i := 0; i < maxToolIterations; i++ {
		responses = append(responses, llm.Response{ToolCalls: []llm.ToolCall{{ID: "call", Name: "shell", Payload: map[string]any{}}}})
	}
	client := &fakeLLMClient{responses: responses}
	executor := &fakeExecutor{}
	base := newBaseAgent("test", "system prompt", FormatFreeText, nil, client, executor, nil, newTestAgentModel(), "slot")

	var events []model.Event
	err := base.execute(context.Background(), "loop forever", collectEvents(&events))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded")
	assert.Equal(t, model.EventError, events[len(events)-1].Type)
}

func TestBaseAgent_Execute_LLMErrorEmitsErrorEvent(t *testing.T) {
	client := &fakeLLMClient{responses: []llm.Response{{}}, errs: []error{errors.New("network down")}}
	executor := &fakeExecutor{}
	base := newBaseAgent("test", "system prompt", FormatFreeText, nil, client, executor, nil, newTestAgentModel(), "slot")

	var events []model.Event
	err := base.execute(context.Background(), "hi", collectEvents(&events))
	require.Error(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventError, events[0].Type)
}

func TestBaseAgent_RollBack_DropsLastExchange(t *testing.T) {
	base := newBaseAgent("test", "sp", FormatFreeText, nil, nil, nil, nil, newTestAgentModel(), "slot")
	base.agentModel.AppendMemory("slot", model.Message{Role: model.RoleUser, Content: "first"})
	base.agentModel.AppendMemory("slot", model.Message{Role: model.RoleAssistant, Content: "first reply"})
	base.agentModel.AppendMemory("slot", model.Message{Role: model.RoleUser, Content: "second"})
	base.agentModel.AppendMemory("slot", model.Message{Role: model.RoleAssistant, Content: "second reply"})

	base.RollBack("second")
	mem := base.agentModel.Memory("slot")
	require.Len(t, mem, 2)
	assert.Equal(t, "first", mem[0].Content)
	assert.Equal(t, "first reply", mem[1].Content)
}

func TestBaseAgent_RollBack_EmptyMemoryIsNoop(t *testing.T) {
	base := newBaseAgent("test", "sp", FormatFreeText, nil, nil, nil, nil, newTestAgentModel(), "slot")
	base.RollBack("anything")
	assert.Empty(t, base.agentModel.Memory("slot"))
}

func TestBaseAgent_CompactMemory_TruncatesOldestTurns(t *testing.T) {
	base := newBaseAgent("test", "sp", FormatFreeText, nil, nil, nil, nil, newTestAgentModel(), "slot")
	for i := 0; i < compactMemoryBound+10; i++ {
		base.agentModel.AppendMemory("slot", model.Message{Role: model.RoleUser, Content: "m"})
	}
	base.CompactMemory()
	assert.Len(t, base.agentModel.Memory("slot"), compactMemoryBound)
}

func TestBaseAgent_CompactMemory_BelowBoundIsNoop(t *testing.T) {
	base := newBaseAgent("test", "sp", FormatFreeText, nil, nil, nil, nil, newTestAgentModel(), "slot")
	base.agentModel.AppendMemory("slot", model.Message{Role: model.RoleUser, Content: "m"})
	base.CompactMemory()
	assert.Len(t, base.agentModel.Memory("slot"), 1)
}

// fakeAgentRepo is a minimal in-memory store.AgentRepository for tests
// that need to observe persist() calls.
type fakeAgentRepo struct {
	saved *model.Agent
	err   error
}

func (f *fakeAgentRepo) Save(_ context.Context, a *model.Agent) error {
	if f.err != nil {
		return f.err
	}
	f.saved = a
	return nil
}

func (f *fakeAgentRepo) FindByID(context.Context, string) (*model.Agent, error) {
	return f.saved, nil
}

func (f *fakeAgentRepo) Delete(context.Context, string) error { return nil }

func TestBaseAgent_Persist_SavesThroughRepo(t *testing.T) {
	repo := &fakeAgentRepo{}
	base := newBaseAgent("test", "sp", FormatFreeText, nil, nil, nil, repo, newTestAgentModel(), "slot")
	require.NoError(t, base.persist(context.Background()))
	assert.Same(t, base.agentModel, repo.saved)
}

func TestBaseAgent_Persist_NilRepoIsNoop(t *testing.T) {
	base := newBaseAgent("test", "sp", FormatFreeText, nil, nil, nil, nil, newTestAgentModel(), "slot")
	require.NoError(t, base.persist(context.Background()))
}

func jsonResponse(doc map[string]any) llm.Response {
	b, _ := json.Marshal(doc)
	return llm.Response{Content: string(b)}
}
