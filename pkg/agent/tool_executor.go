package agent

import (
	"context"
	"fmt"
)

// ToolExecutor abstracts tool/MCP execution for the Planner and Executor
// agents so neither needs to know whether a call ends up on an MCP server,
// a sandbox shell, or a built-in tool.
type ToolExecutor interface {
	// Execute runs a single tool call and returns its result.
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)

	// ListTools returns the tool definitions available for this execution.
	// Returns nil if no tools are configured.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// Close releases resources (MCP transports, subprocesses, sandbox handles).
	Close() error
}

// ToolCall is one tool invocation requested by an LLM turn.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw string form, parsed by the executor (JSON, YAML, or key=value)
}

// ToolResult is the output of a tool execution fed back into the next LLM turn.
type ToolResult struct {
	CallID  string // matches ToolCall.ID
	Name    string
	Content string
	IsError bool
}

// ToolDefinition describes a callable tool for inclusion in an LLM's tool list.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON schema, serialized
}

// StubToolExecutor returns canned responses; used in tests and for agents
// configured with no tools.
type StubToolExecutor struct {
	tools []ToolDefinition
}

// NewStubToolExecutor creates a stub executor with the given tool definitions.
func NewStubToolExecutor(tools []ToolDefinition) *StubToolExecutor {
	return &StubToolExecutor{tools: tools}
}

func (s *StubToolExecutor) Execute(_ context.Context, call ToolCall) (*ToolResult, error) {
	return &ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: fmt.Sprintf("[stub] tool %q called with args: %s", call.Name, call.Arguments),
		IsError: false,
	}, nil
}

func (s *StubToolExecutor) ListTools(_ context.Context) ([]ToolDefinition, error) {
	return s.tools, nil
}

func (s *StubToolExecutor) Close() error { return nil }
