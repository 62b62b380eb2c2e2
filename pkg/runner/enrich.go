package runner

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"

	"github.com/opsforge/agentcore/pkg/model"
)

// enrichToolEvent fills ev.ToolContent with the tool-specific
// presentation payload the UI renders alongside a Called tool event
// (spec §4.5's tool-event enrichment pass). Grounded on
// original_source's AgentTaskRunner._handle_tool_event, switching on
// the same tool names; every branch is best-effort, leaving
// ToolContent empty rather than failing the event it decorates.
func (r *Runner) enrichToolEvent(ctx context.Context, ev *model.Event) {
	switch {
	case ev.FunctionName == "browser":
		r.enrichBrowser(ctx, ev)
	case ev.FunctionName == "search":
		r.enrichSearch(ev)
	case ev.FunctionName == "shell":
		r.enrichShell(ev)
	case ev.FunctionName == "file":
		r.enrichFile(ctx, ev)
	case strings.HasPrefix(ev.FunctionName, "ssh_node_"):
		r.enrichSSH(ev)
	case strings.HasPrefix(ev.FunctionName, "ticket_"):
		r.enrichMirror(ev)
	case strings.HasPrefix(ev.FunctionName, mcpPrefix):
		r.enrichMirror(ev)
	default:
		r.log.Debug("no enrichment defined for tool", "tool", ev.FunctionName)
	}
}

// enrichBrowser captures a fresh screenshot (the browser tool's own
// Data carries only the navigated URL, never pixels) and uploads it as
// a session file, mirroring the fetched content into ToolContent by
// FileID so the UI can resolve it through the attachment endpoint.
func (r *Runner) enrichBrowser(ctx context.Context, ev *model.Event) {
	if r.browser == nil {
		return
	}
	shot, err := r.browser.Screenshot(ctx)
	if err != nil {
		r.log.Warn("browser screenshot failed", "error", err)
		return
	}
	info, err := r.files.Upload(ctx, bytes.NewReader(shot), "screenshot.png", r.userID)
	if err != nil {
		r.log.Warn("browser screenshot upload failed", "error", err)
		return
	}
	if err := r.sessions.AddFile(ctx, r.sessionID, *info); err != nil {
		r.log.Warn("record screenshot file failed", "error", err)
	}
	ev.ToolContent = map[string]any{"screenshot": info.FileID}
}

func (r *Runner) enrichSearch(ev *model.Event) {
	data, ok := resultData(ev)
	if !ok {
		return
	}
	if results, ok := data["results"]; ok {
		ev.ToolContent = map[string]any{"results": results}
	}
}

// enrichShell departs slightly from original_source: that port checks
// for a persistent shell id in the call arguments and fetches its
// console buffer from the sandbox, but this port's ShellTool (spec
// §4.5/§9) has no persistent-shell-id concept — every call is a
// one-shot Exec whose stdout/stderr are already in FunctionResult.Data.
// So this formats that output directly instead of re-fetching it.
func (r *Runner) enrichShell(ev *model.Event) {
	data, ok := resultData(ev)
	if !ok {
		ev.ToolContent = map[string]any{"console": "(No Console)"}
		return
	}
	var b strings.Builder
	if stdout, _ := data["stdout"].(string); stdout != "" {
		b.WriteString(stdout)
	}
	if stderr, _ := data["stderr"].(string); stderr != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(stderr)
	}
	ev.ToolContent = map[string]any{"console": b.String()}
}

func (r *Runner) enrichFile(ctx context.Context, ev *model.Event) {
	path, _ := ev.FunctionArgs["path"].(string)
	if path == "" {
		ev.ToolContent = map[string]any{"content": "(No Content)"}
		return
	}

	content := ""
	if data, ok := resultData(ev); ok {
		if encoded, ok := data["content"].(string); ok {
			if decoded, err := base64.StdEncoding.DecodeString(encoded); err == nil {
				content = string(decoded)
			}
		}
	}
	ev.ToolContent = map[string]any{"content": content}
	r.syncFileToStorage(ctx, path)
}

func (r *Runner) enrichSSH(ev *model.Event) {
	data, _ := resultData(ev)
	content := map[string]any{
		"node_id": ev.FunctionArgs["node_id"],
		"command": ev.FunctionArgs["command"],
	}
	if data != nil {
		if v, ok := data["node_id"]; ok {
			content["node_id"] = v
		}
		if v, ok := data["command"]; ok {
			content["command"] = v
		}
		content["output"] = data["output"]
		content["success"] = data["success"]
		content["approval_id"] = data["approval_id"]
		_, approvalRequired := data["approval_id"]
		content["approval_required"] = approvalRequired
	}
	ev.ToolContent = content
}

// enrichMirror mirrors function_result.data (or a normalized message on
// failure) into ToolContent, used for both mcp_* and ticket_* calls —
// original_source treats "ticket" identically to its generic MCP
// content shape (both are opaque structured results, spec §4.5).
func (r *Runner) enrichMirror(ev *model.Event) {
	if ev.FunctionResult == nil {
		ev.ToolContent = map[string]any{"result": "no result available"}
		return
	}
	if ev.FunctionResult.Data != nil {
		ev.ToolContent = map[string]any{"result": ev.FunctionResult.Data}
		return
	}
	if !ev.FunctionResult.Success {
		ev.ToolContent = map[string]any{"result": "[ERROR] " + ev.FunctionResult.Message}
		return
	}
	ev.ToolContent = map[string]any{"result": ev.FunctionResult.Message}
}

func resultData(ev *model.Event) (map[string]any, bool) {
	if ev.FunctionResult == nil {
		return nil, false
	}
	data, ok := ev.FunctionResult.Data.(map[string]any)
	return data, ok
}
