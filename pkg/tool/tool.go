// Package tool implements the uniform tool-invocation contract (spec §9
// "dynamic tool dispatch", component C3): a Tool is any value exposing
// {name, json_schema, invoke(args) → ToolResult}; a Registry owns the
// built-in set, and a CompositeExecutor adapts the registry plus an MCP
// executor to the agent.ToolExecutor contract the Planner/Executor
// agents drive (grounded on the teacher's
// pkg/agent/orchestrator/tool_executor.go dispatch-by-name style).
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opsforge/agentcore/pkg/model"
)

// Tool is one callable capability the executor may invoke. Built-ins
// implement this directly; MCP-exported tools are adapted separately by
// pkg/mcp and never wrapped in a Tool value (CompositeExecutor routes to
// the MCP executor by name prefix instead).
type Tool interface {
	Name() string
	Description() string
	// Schema returns the tool's parameters as a serialized JSON schema.
	Schema() string
	// Invoke runs the tool against its raw JSON argument string,
	// returning the uniform ToolResult (spec §3) — never an error for
	// tool-level failures, which are reported as ToolResult{Success:false}.
	Invoke(ctx context.Context, argsJSON string) (*model.ToolResult, error)
}

// Registry holds the built-in tool set, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tool to the registry, keyed by its own Name().
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named tool, or (nil, false) if not registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool in stable (name-sorted) order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// errorResult builds the ToolResult shape a tool returns on its own
// internal failure (bad arguments, downstream error) — never a Go error,
// matching spec §7's "tool failures never throw" propagation policy.
func errorResult(format string, args ...any) *model.ToolResult {
	return &model.ToolResult{Success: false, Message: fmt.Sprintf(format, args...)}
}
