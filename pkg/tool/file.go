package tool

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/sandbox"
)

const fileSchema = `{"type":"object","properties":{` +
	`"action":{"type":"string","enum":["read","write"]},` +
	`"path":{"type":"string","description":"absolute path inside the sandbox"},` +
	`"content":{"type":"string","description":"base64-encoded content, required for action=write"}` +
	`},"required":["action","path"]}`

// FileTool performs local (sandbox) file reads and writes. Storage sync
// and the tool-content read-back on a Called event are the Task
// Runner's enrichment pass, not this tool's concern (spec §4.5).
type FileTool struct {
	sbx sandbox.Sandbox
}

// NewFileTool builds a FileTool bound to sbx.
func NewFileTool(sbx sandbox.Sandbox) *FileTool { return &FileTool{sbx: sbx} }

func (t *FileTool) Name() string        { return "file" }
func (t *FileTool) Description() string { return "Read or write a file inside the sandbox." }
func (t *FileTool) Schema() string      { return fileSchema }

func (t *FileTool) Invoke(ctx context.Context, argsJSON string) (*model.ToolResult, error) {
	var args struct {
		Action  string `json:"action"`
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	if args.Path == "" {
		return errorResult("'path' is required"), nil
	}

	switch args.Action {
	case "write":
		data, err := base64.StdEncoding.DecodeString(args.Content)
		if err != nil {
			return errorResult("'content' must be base64: %v", err), nil
		}
		if err := t.sbx.WriteFile(ctx, args.Path, data); err != nil {
			return errorResult("write failed: %v", err), nil
		}
		return &model.ToolResult{Success: true, Message: "file written", Data: map[string]any{"path": args.Path}}, nil

	case "read":
		data, err := t.sbx.ReadFile(ctx, args.Path)
		if err != nil {
			return errorResult("read failed: %v", err), nil
		}
		return &model.ToolResult{
			Success: true,
			Message: "file read",
			Data: map[string]any{
				"path":    args.Path,
				"content": base64.StdEncoding.EncodeToString(data),
				"size":    len(data),
			},
		}, nil

	default:
		return errorResult("unknown action %q, expected 'read' or 'write'", args.Action), nil
	}
}
