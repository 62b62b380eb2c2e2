package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/sshnode"
)

// SSH tools wrap pkg/sshnode.Service for the agent, one per
// original_source's SSHNodeTool method (ssh_node_list, ssh_node_exec,
// ssh_node_monitor — tools/ssh_node.py). Each is bound to a userID and
// sessionID at construction since one Task Runner owns one session
// (spec §4.5).

const sshListSchema = `{"type":"object","properties":{}}`

// SSHNodeListTool lists the calling user's registered SSH nodes.
type SSHNodeListTool struct {
	svc    *sshnode.Service
	userID string
}

// NewSSHNodeListTool builds an SSHNodeListTool bound to userID.
func NewSSHNodeListTool(svc *sshnode.Service, userID string) *SSHNodeListTool {
	return &SSHNodeListTool{svc: svc, userID: userID}
}

func (t *SSHNodeListTool) Name() string        { return "ssh_node_list" }
func (t *SSHNodeListTool) Description() string { return "List the user's registered SSH nodes." }
func (t *SSHNodeListTool) Schema() string      { return sshListSchema }

func (t *SSHNodeListTool) Invoke(ctx context.Context, _ string) (*model.ToolResult, error) {
	nodes, err := t.svc.ListNodes(ctx, t.userID)
	if err != nil {
		return errorResult("list ssh nodes failed: %v", err), nil
	}
	summaries := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		summaries = append(summaries, map[string]any{
			"id":                 n.ID,
			"name":               n.Name,
			"ssh_host":           n.SSHHost,
			"ssh_port":           n.SSHPort,
			"ssh_require_approval": n.SSHRequireApproval,
		})
	}
	return &model.ToolResult{
		Success: true,
		Message: fmt.Sprintf("%d nodes", len(nodes)),
		Data:    map[string]any{"nodes": summaries},
	}, nil
}

const sshExecSchema = `{"type":"object","properties":{` +
	`"node_id":{"type":"string"},` +
	`"command":{"type":"string"}` +
	`},"required":["node_id","command"]}`

// SSHNodeExecTool runs a command on a node on the agent's behalf. When
// the node requires approval it does not execute: it files a pending
// SSHCommandApproval and returns immediately, matching spec §4.7's
// approval-gated path (the flow then emits Wait, spec §4.4).
type SSHNodeExecTool struct {
	svc       *sshnode.Service
	userID    string
	sessionID string
	callID    string
}

// NewSSHNodeExecTool builds an SSHNodeExecTool bound to userID and
// sessionID. SetCallID is invoked by CompositeExecutor immediately
// before each Invoke so a filed approval can be correlated back to the
// in-flight tool call that requested it.
func NewSSHNodeExecTool(svc *sshnode.Service, userID, sessionID string) *SSHNodeExecTool {
	return &SSHNodeExecTool{svc: svc, userID: userID, sessionID: sessionID}
}

// SetCallID records the ID of the tool call about to be Invoked.
func (t *SSHNodeExecTool) SetCallID(id string) { t.callID = id }

func (t *SSHNodeExecTool) Name() string { return "ssh_node_exec" }
func (t *SSHNodeExecTool) Description() string {
	return "Execute a shell command on a registered SSH node."
}
func (t *SSHNodeExecTool) Schema() string { return sshExecSchema }

func (t *SSHNodeExecTool) Invoke(ctx context.Context, argsJSON string) (*model.ToolResult, error) {
	var args struct {
		NodeID  string `json:"node_id"`
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	if args.NodeID == "" || args.Command == "" {
		return errorResult("'node_id' and 'command' are required"), nil
	}

	nodes, err := t.svc.ListNodes(ctx, t.userID)
	if err != nil {
		return errorResult("list ssh nodes failed: %v", err), nil
	}
	var node *model.SSHNode
	for _, n := range nodes {
		if n.ID == args.NodeID {
			node = n
			break
		}
	}
	if node == nil {
		return errorResult("ssh node %q not found", args.NodeID), nil
	}

	if node.SSHRequireApproval {
		approval, err := t.svc.RequestApproval(ctx, t.sessionID, args.NodeID, args.Command, t.callID)
		if err != nil {
			return errorResult("request ssh approval failed: %v", err), nil
		}
		return &model.ToolResult{
			Success: true,
			Message: "command requires approval before it runs",
			Data:    map[string]any{"approval_id": approval.ID, "status": string(approval.Status)},
		}, nil
	}

	entry, err := t.svc.RunDirect(ctx, t.userID, args.NodeID, args.Command, t.sessionID, false)
	if err != nil {
		return errorResult("ssh exec failed: %v", err), nil
	}
	return &model.ToolResult{
		Success: entry.Success,
		Message: entry.Output,
		Data:    map[string]any{"log_id": entry.ID, "success": entry.Success},
	}, nil
}

const sshMonitorSchema = `{"type":"object","properties":{` +
	`"node_id":{"type":"string"}` +
	`},"required":["node_id"]}`

// SSHNodeMonitorTool returns the threshold-evaluated node health
// overview (spec §4.7). Distinct from a raw uname/uptime/free/df dump:
// original_source exposes both get_monitor_info (raw text) and
// get_node_overview (structured, threshold-evaluated) as separate
// methods; this tool surfaces the structured form, returning the
// NodeOverview as the result's Data rather than free text.
type SSHNodeMonitorTool struct {
	svc    *sshnode.Service
	userID string
}

// NewSSHNodeMonitorTool builds an SSHNodeMonitorTool bound to userID.
func NewSSHNodeMonitorTool(svc *sshnode.Service, userID string) *SSHNodeMonitorTool {
	return &SSHNodeMonitorTool{svc: svc, userID: userID}
}

func (t *SSHNodeMonitorTool) Name() string        { return "ssh_node_monitor" }
func (t *SSHNodeMonitorTool) Description() string { return "Fetch health metrics for a registered SSH node." }
func (t *SSHNodeMonitorTool) Schema() string      { return sshMonitorSchema }

func (t *SSHNodeMonitorTool) Invoke(ctx context.Context, argsJSON string) (*model.ToolResult, error) {
	var args struct {
		NodeID string `json:"node_id"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	if args.NodeID == "" {
		return errorResult("'node_id' is required"), nil
	}

	overview, err := t.svc.Overview(ctx, t.userID, args.NodeID)
	if err != nil {
		return errorResult("ssh node monitor failed: %v", err), nil
	}
	return &model.ToolResult{
		Success: true,
		Message: fmt.Sprintf("node status: %s", overview.Status),
		Data:    overview,
	}, nil
}
