package tool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/sandbox"
)

const shellSchema = `{"type":"object","properties":{"command":{"type":"string","description":"shell command to run inside the sandbox"}},"required":["command"]}`

// execTimeout bounds one shell tool invocation, matching the SSH
// execution timeout used elsewhere in the tool layer (spec §5).
const execTimeout = 180 * time.Second

// ShellTool runs a command inside the session's sandbox container.
// Grounded on original_source's shell tool (a thin wrapper over the
// sandbox's exec RPC) — one Task Runner owns exactly one sandbox per
// session, bound in here at construction.
type ShellTool struct {
	sbx sandbox.Sandbox
}

// NewShellTool builds a ShellTool bound to sbx.
func NewShellTool(sbx sandbox.Sandbox) *ShellTool { return &ShellTool{sbx: sbx} }

func (t *ShellTool) Name() string        { return "shell" }
func (t *ShellTool) Description() string { return "Execute a shell command inside the isolated sandbox." }
func (t *ShellTool) Schema() string       { return shellSchema }

func (t *ShellTool) Invoke(ctx context.Context, argsJSON string) (*model.ToolResult, error) {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	if args.Command == "" {
		return errorResult("'command' is required"), nil
	}

	result, err := t.sbx.Exec(ctx, args.Command, execTimeout)
	if err != nil {
		return errorResult("sandbox exec failed: %v", err), nil
	}

	output := result.Stdout
	if result.Stderr != "" {
		output += "\n" + result.Stderr
	}
	return &model.ToolResult{
		Success: result.ExitCode == 0,
		Message: output,
		Data: map[string]any{
			"exit_code": result.ExitCode,
			"stdout":    result.Stdout,
			"stderr":    result.Stderr,
		},
	}, nil
}
