package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opsforge/agentcore/pkg/agent"
	"github.com/opsforge/agentcore/pkg/model"
)

// mcpPrefix names route to the inner MCP executor (spec §9's
// "mcp_<server>_<tool>" naming), everything else dispatches through
// the local Registry. Grounded on the teacher's
// pkg/agent/orchestrator/tool_executor.go CompositeToolExecutor, which
// routes by name prefix the same way.
const mcpPrefix = "mcp_"

// callIDSetter is implemented by tools that need to correlate
// side-effects (e.g. a filed approval) back to the in-flight tool call
// that triggered them. Checked via a type assertion so most Tool
// implementations need not know about it.
type callIDSetter interface {
	SetCallID(id string)
}

// mcpExecutor is the subset of pkg/mcp.ToolExecutor the composite
// needs, kept narrow so tests can fake it without a live MCP client.
type mcpExecutor interface {
	Execute(ctx context.Context, call agent.ToolCall) (*agent.ToolResult, error)
	ListTools(ctx context.Context) ([]agent.ToolDefinition, error)
	Close() error
}

// Compile-time check that CompositeExecutor implements agent.ToolExecutor.
var _ agent.ToolExecutor = (*CompositeExecutor)(nil)

// CompositeExecutor is the production agent.ToolExecutor: built-in
// tools (shell, file, browser, search, message_ask_user, ssh_node_*,
// ticket_*) run against the Registry, mcp_-prefixed calls run against
// the session's MCP ToolExecutor. Built per session by the Task Runner
// (spec §4.5), which owns the sandbox/browser/MCP manager a session's
// tools are bound to.
type CompositeExecutor struct {
	registry *Registry
	mcp      mcpExecutor // nil if the session has no MCP servers configured
}

// NewCompositeExecutor builds a CompositeExecutor over registry and an
// optional mcp executor (nil when the session uses no MCP servers).
func NewCompositeExecutor(registry *Registry, mcp mcpExecutor) *CompositeExecutor {
	return &CompositeExecutor{registry: registry, mcp: mcp}
}

func (e *CompositeExecutor) Execute(ctx context.Context, call agent.ToolCall) (*agent.ToolResult, error) {
	if strings.HasPrefix(call.Name, mcpPrefix) {
		if e.mcp == nil {
			return &agent.ToolResult{
				CallID: call.ID, Name: call.Name,
				Content: fmt.Sprintf("no MCP servers are configured for this session, cannot call %q", call.Name),
				IsError: true,
			}, nil
		}
		return e.mcp.Execute(ctx, call)
	}

	t, ok := e.registry.Get(call.Name)
	if !ok {
		return &agent.ToolResult{
			CallID: call.ID, Name: call.Name,
			Content: fmt.Sprintf("unknown tool %q", call.Name),
			IsError: true,
		}, nil
	}

	if setter, ok := t.(callIDSetter); ok {
		setter.SetCallID(call.ID)
	}

	result, err := t.Invoke(ctx, call.Arguments)
	if err != nil {
		return &agent.ToolResult{
			CallID: call.ID, Name: call.Name,
			Content: fmt.Sprintf("tool %q failed: %s", call.Name, err),
			IsError: true,
		}, nil
	}

	content, err := json.Marshal(result)
	if err != nil {
		return &agent.ToolResult{
			CallID: call.ID, Name: call.Name,
			Content: fmt.Sprintf("tool %q result could not be encoded: %s", call.Name, err),
			IsError: true,
		}, nil
	}

	return &agent.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: string(content),
		IsError: !result.Success,
	}, nil
}

// ListTools returns the local Registry's tools plus, when an MCP
// executor is bound, that session's MCP-backed tools appended after.
func (e *CompositeExecutor) ListTools(ctx context.Context) ([]agent.ToolDefinition, error) {
	local := e.registry.List()
	defs := make([]agent.ToolDefinition, 0, len(local))
	for _, t := range local {
		defs = append(defs, agent.ToolDefinition{
			Name:             t.Name(),
			Description:      t.Description(),
			ParametersSchema: t.Schema(),
		})
	}

	if e.mcp == nil {
		return defs, nil
	}
	mcpDefs, err := e.mcp.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mcp tools: %w", err)
	}
	return append(defs, mcpDefs...), nil
}

// Close releases the MCP executor's transports, if any. The Registry
// holds no closable resources of its own.
func (e *CompositeExecutor) Close() error {
	if e.mcp == nil {
		return nil
	}
	return e.mcp.Close()
}

// DecodeToolResult parses the Content of a ToolResult produced by a
// built-in (Registry) tool call back into a model.ToolResult, recovering
// the structured fields (Data) rather than the flattened string MCP
// results carry. Only the tests call it; the Task Runner reads the
// event's FunctionResult instead. Returns ok=false for MCP-sourced content, which is plain text, not
// the CompositeExecutor's JSON envelope.
func DecodeToolResult(content string) (result *model.ToolResult, ok bool) {
	var r model.ToolResult
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, false
	}
	return &r, true
}
