package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opsforge/agentcore/pkg/apperr"
	"github.com/opsforge/agentcore/pkg/llm"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/store"
)

// ErrHalted is returned by emit (or recognized via errors.Is from
// whatever emit wraps it in) to stop execute()'s tool loop cleanly
// without treating the stop as a failure — ExecutionAgent.ExecuteStep
// uses it the moment a step asks the user a question or hits an
// SSH approval gate, both of which end the step in Wait rather than
// Completed/Failed (spec §4.3, §4.4: "Wait must never be intercepted
// by the flow").
var ErrHalted = errors.New("agent: halted")

// OutputFormat selects how a turn's final content is interpreted
// (spec §4.3's `{name, system_prompt, output_format, tools}` contract).
type OutputFormat string

const (
	FormatFreeText   OutputFormat = "free_text"
	FormatJSONObject OutputFormat = "json_object"
)

// maxToolIterations bounds one execute() call's tool-calling loop.
// original_source has no explicit bound (it trusts the model to stop),
// but an unbounded loop is not something this port carries over
// unguarded: this is the one place a runaway model could spin forever.
const maxToolIterations = 25

// BaseAgent is the shared memory-slot agent core both PlannerAgent and
// ExecutionAgent embed, grounded on
// original_source/domain/services/agents/base.py's role (visible only
// by reference from execution.py: a shared `execute`/`roll_back`/
// `compact_memory` surface over one LLM client and one memory slot)
// and the teacher's pkg/agent/controller family's pattern of splitting
// the turn-by-turn loop out from the higher-level operations that call it.
type BaseAgent struct {
	name         string
	systemPrompt string
	format       OutputFormat
	tools        []llm.ToolDefinition

	llm      llm.Client
	executor ToolExecutor
	repo     store.AgentRepository
	slot     string

	agentModel *model.Agent
	log        *slog.Logger
}

// newBaseAgent builds a BaseAgent bound to slot on agentModel's memory.
func newBaseAgent(name, systemPrompt string, format OutputFormat, tools []llm.ToolDefinition,
	client llm.Client, executor ToolExecutor, repo store.AgentRepository, agentModel *model.Agent, slot string) *BaseAgent {
	return &BaseAgent{
		name: name, systemPrompt: systemPrompt, format: format, tools: tools,
		llm: client, executor: executor, repo: repo, slot: slot,
		agentModel: agentModel, log: slog.Default().With("component", "agent."+name),
	}
}

// execute runs the shared tool-calling loop for one user-facing turn:
// append userMessage to the memory slot, call the LLM, and for every
// tool call the model requests, dispatch it through executor and feed
// the result back, until a turn with no tool calls closes the loop.
// Every Tool/Message/Error event is forwarded to emit as it happens so
// the caller (PlannerAgent/ExecutionAgent, and beyond them the Task
// Runner) can stream it live rather than buffer a whole turn
// (spec §4.3 "lazy sequence of Event").
func (a *BaseAgent) execute(ctx context.Context, userMessage string, emit func(model.Event) error) error {
	a.agentModel.AppendMemory(a.slot, model.Message{Role: model.RoleUser, Content: userMessage})

	for i := 0; i < maxToolIterations; i++ {
		resp, err := a.llm.Complete(ctx, a.buildRequest())
		if err != nil {
			_ = emit(model.NewError(err.Error()))
			return apperr.ServerError(err, "agent %s: llm completion", a.name)
		}

		if len(resp.ToolCalls) == 0 {
			a.agentModel.AppendMemory(a.slot, model.Message{Role: model.RoleAssistant, Content: resp.Content})
			return emit(model.NewMessage(model.RoleAssistant, resp.Content))
		}

		a.agentModel.AppendMemory(a.slot, model.Message{Role: model.RoleAssistant, Content: resp.Content})

		for _, call := range resp.ToolCalls {
			if err := a.dispatchToolCall(ctx, call, emit); err != nil {
				if errors.Is(err, ErrHalted) {
					return nil
				}
				return err
			}
		}
	}
	err := fmt.Errorf("agent %s: exceeded %d tool iterations without a final answer", a.name, maxToolIterations)
	_ = emit(model.NewError(err.Error()))
	return err
}

// dispatchToolCall runs one tool call through executor, emitting the
// Calling/Called Tool event pair and feeding the result back into
// memory as a user-role turn (this port has no dedicated "tool" role
// in its conversation format; the result is folded into the next user
// turn instead, matching how BaseAgent.buildRequest flattens memory).
func (a *BaseAgent) dispatchToolCall(ctx context.Context, call llm.ToolCall, emit func(model.Event) error) error {
	if err := emit(model.NewToolCalling(call.ID, call.Name, call.Name, call.Payload)); err != nil {
		return err
	}

	argsJSON, err := json.Marshal(call.Payload)
	if err != nil {
		argsJSON = []byte("{}")
	}
	toolResult, err := a.executor.Execute(ctx, ToolCall{ID: call.ID, Name: call.Name, Arguments: string(argsJSON)})
	if err != nil {
		_ = emit(model.NewToolCalled(call.ID, call.Name, call.Name, call.Payload, &model.ToolResult{Success: false, Message: err.Error()}))
		a.agentModel.AppendMemory(a.slot, model.Message{Role: model.RoleUser, Content: fmt.Sprintf("tool %q failed: %s", call.Name, err)})
		return nil
	}

	decoded, ok := decodeToolResult(toolResult.Content)
	if !ok {
		decoded = &model.ToolResult{Success: !toolResult.IsError, Message: toolResult.Content}
	}

	if err := emit(model.NewToolCalled(call.ID, call.Name, call.Name, call.Payload, decoded)); err != nil {
		return err
	}
	a.agentModel.AppendMemory(a.slot, model.Message{Role: model.RoleUser, Content: fmt.Sprintf("tool %q result: %s", call.Name, decoded.Message)})
	return nil
}

// decodeToolResult parses a built-in tool's JSON-encoded ToolResult
// back out of its Content string. Unlike pkg/tool.DecodeToolResult
// (which pkg/agent cannot import without a dependency cycle — tool
// depends on agent for the ToolExecutor contract), this is a private
// mirror of the same decode, applied by dispatchToolCall to every
// tool result.
func decodeToolResult(content string) (*model.ToolResult, bool) {
	var r model.ToolResult
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, false
	}
	return &r, true
}

// buildRequest assembles the next llm.Request from the system prompt
// and the agent's memory slot.
func (a *BaseAgent) buildRequest() llm.Request {
	messages := make([]llm.Message, 0, len(a.agentModel.Memory(a.slot))+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	for _, m := range a.agentModel.Memory(a.slot) {
		messages = append(messages, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}

	temp := a.agentModel.Temperature
	return llm.Request{
		Model:       a.agentModel.ModelName,
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   a.agentModel.MaxTokens,
		Tools:       a.tools,
	}
}

// rollBack pops the last user/assistant exchange from the memory slot
// so a resumed session re-enters at the previous turn instead of
// double-counting the message that was already in flight when the
// session was interrupted (spec §4.3, §4.4 rule 1).
func (a *BaseAgent) rollBack() {
	mem := a.agentModel.Memory(a.slot)
	if len(mem) == 0 {
		return
	}
	// Drop trailing assistant turns first, then the user turn that
	// started the interrupted exchange.
	for len(mem) > 0 && mem[len(mem)-1].Role == model.RoleAssistant {
		mem = mem[:len(mem)-1]
	}
	if len(mem) > 0 && mem[len(mem)-1].Role == model.RoleUser {
		mem = mem[:len(mem)-1]
	}
	a.agentModel.SetMemory(a.slot, mem)
}

// compactMemoryBound is the message count past which compactMemory
// drops the oldest turns, keeping prompt length stable across a long
// multi-step execution (spec §4.3 compact_memory).
const compactMemoryBound = 40

// compactMemory truncates the memory slot to its most recent turns
// once it grows past compactMemoryBound.
func (a *BaseAgent) compactMemory() {
	mem := a.agentModel.Memory(a.slot)
	if len(mem) <= compactMemoryBound {
		return
	}
	a.agentModel.SetMemory(a.slot, mem[len(mem)-compactMemoryBound:])
}

// RollBack re-enters the agent's memory slot at the previous turn,
// used by the Plan–Act Flow's resume path (spec §4.4 rule 1). message
// is the incoming message that triggered the resume; the rollback
// itself only inspects prior memory, not message, matching the
// forward-only resume semantics original_source implements.
func (a *BaseAgent) RollBack(message string) {
	_ = message
	a.rollBack()
}

// CompactMemory applies the size bound to this agent's memory slot
// (spec §4.3 compact_memory): the most recent compactMemoryBound
// messages are kept verbatim and older ones are dropped; dropped
// turns are not summarized.
func (a *BaseAgent) CompactMemory() {
	a.compactMemory()
}

// persist saves the agent's current memory state. Both Planner and
// Executor operations call this after mutating memory so a crash
// mid-plan does not lose conversation state (spec §3 Agent entity).
func (a *BaseAgent) persist(ctx context.Context) error {
	if a.repo == nil {
		return nil
	}
	if err := a.repo.Save(ctx, a.agentModel); err != nil {
		return apperr.ServerError(err, "agent %s: save memory", a.name)
	}
	return nil
}
