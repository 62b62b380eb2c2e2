package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/agentcore/pkg/agent"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/sshnode"
	"github.com/opsforge/agentcore/pkg/store"
)

type fakeNodeRepo struct{ byID map[string]*model.SSHNode }

func newFakeNodeRepo() *fakeNodeRepo { return &fakeNodeRepo{byID: map[string]*model.SSHNode{}} }
func (f *fakeNodeRepo) Save(_ context.Context, n *model.SSHNode) error { f.byID[n.ID] = n; return nil }
func (f *fakeNodeRepo) FindByID(_ context.Context, id string) (*model.SSHNode, error) {
	return f.byID[id], nil
}
func (f *fakeNodeRepo) FindByUserID(_ context.Context, userID string) ([]*model.SSHNode, error) {
	var out []*model.SSHNode
	for _, n := range f.byID {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}
func (f *fakeNodeRepo) Delete(_ context.Context, id string) error { delete(f.byID, id); return nil }
func (f *fakeNodeRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	n, _ := f.FindByUserID(ctx, userID)
	return len(n), nil
}

type fakeLogRepo struct{ entries []*model.SSHOperationLog }

func (f *fakeLogRepo) Append(_ context.Context, e *model.SSHOperationLog) error {
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeLogRepo) FindByNodeID(_ context.Context, nodeID string, limit int) ([]*model.SSHOperationLog, error) {
	return f.entries, nil
}

type fakeApprovalRepo struct{ byID map[string]*model.SSHCommandApproval }

func newFakeApprovalRepo() *fakeApprovalRepo {
	return &fakeApprovalRepo{byID: map[string]*model.SSHCommandApproval{}}
}
func (f *fakeApprovalRepo) Save(_ context.Context, a *model.SSHCommandApproval) error {
	f.byID[a.ID] = a
	return nil
}
func (f *fakeApprovalRepo) FindByID(_ context.Context, id string) (*model.SSHCommandApproval, error) {
	return f.byID[id], nil
}

type fakeSessionRepo struct{ store.SessionRepository }

func (f *fakeSessionRepo) AddEvent(context.Context, string, model.Event) error { return nil }

type fakeRunner struct {
	output  string
	success bool
}

func (r *fakeRunner) Run(context.Context, *model.SSHNode, string) (string, bool, error) {
	return r.output, r.success, nil
}

func newTestSSHService(t *testing.T) (*sshnode.Service, *fakeNodeRepo, *fakeApprovalRepo) {
	t.Helper()
	nodes := newFakeNodeRepo()
	approvals := newFakeApprovalRepo()
	svc := sshnode.NewService(nodes, &fakeLogRepo{}, approvals, &fakeSessionRepo{}, &fakeRunner{output: "ok", success: true})
	return svc, nodes, approvals
}

func TestSSHNodeListTool(t *testing.T) {
	svc, nodes, _ := newTestSSHService(t)
	nodes.byID["n1"] = &model.SSHNode{ID: "n1", UserID: "u1", Name: "web-1"}

	tl := NewSSHNodeListTool(svc, "u1")
	result, err := tl.Invoke(context.Background(), "{}")
	require.NoError(t, err)
	assert.True(t, result.Success)
	data := result.Data.(map[string]any)
	assert.Len(t, data["nodes"], 1)
}

func TestSSHNodeExecTool_DirectWhenNoApprovalRequired(t *testing.T) {
	svc, nodes, _ := newTestSSHService(t)
	nodes.byID["n1"] = &model.SSHNode{ID: "n1", UserID: "u1", Name: "web-1"}

	tl := NewSSHNodeExecTool(svc, "u1", "sess-1")
	tl.SetCallID("call-1")
	result, err := tl.Invoke(context.Background(), `{"node_id":"n1","command":"uptime"}`)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestSSHNodeExecTool_FilesApprovalWhenRequired(t *testing.T) {
	svc, nodes, approvals := newTestSSHService(t)
	nodes.byID["n1"] = &model.SSHNode{ID: "n1", UserID: "u1", Name: "web-1", SSHRequireApproval: true}

	tl := NewSSHNodeExecTool(svc, "u1", "sess-1")
	tl.SetCallID("call-1")
	result, err := tl.Invoke(context.Background(), `{"node_id":"n1","command":"rm -rf /tmp/x"}`)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, approvals.byID, 1)
}

func TestSSHNodeExecTool_UnknownNode(t *testing.T) {
	svc, _, _ := newTestSSHService(t)
	tl := NewSSHNodeExecTool(svc, "u1", "sess-1")
	result, err := tl.Invoke(context.Background(), `{"node_id":"missing","command":"uptime"}`)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestSSHNodeMonitorTool(t *testing.T) {
	nodes := newFakeNodeRepo()
	nodes.byID["n1"] = &model.SSHNode{ID: "n1", UserID: "u1"}
	runner := &fakeRunner{output: "HOSTNAME=h1\nLOAD_AVG=0.1 0.1 0.1\nMEM_TOTAL_KB=1000\nMEM_AVAILABLE_KB=900\nROOT_DISK=100 10 10%\n", success: true}
	svc := sshnode.NewService(nodes, &fakeLogRepo{}, newFakeApprovalRepo(), &fakeSessionRepo{}, runner)

	tl := NewSSHNodeMonitorTool(svc, "u1")
	result, err := tl.Invoke(context.Background(), `{"node_id":"n1"}`)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

type fakeTicketRepo struct{ bySession map[string]*model.Ticket }

func newFakeTicketRepo() *fakeTicketRepo { return &fakeTicketRepo{bySession: map[string]*model.Ticket{}} }
func (f *fakeTicketRepo) Save(_ context.Context, tk *model.Ticket) error {
	f.bySession[tk.SessionID] = tk
	return nil
}
func (f *fakeTicketRepo) FindByID(context.Context, string) (*model.Ticket, error)      { return nil, nil }
func (f *fakeTicketRepo) FindBySessionID(_ context.Context, sessionID string) (*model.Ticket, error) {
	return f.bySession[sessionID], nil
}
func (f *fakeTicketRepo) FindByUserID(context.Context, string) ([]*model.Ticket, error) { return nil, nil }

func TestTicketGetTool_NoTicket(t *testing.T) {
	tl := NewTicketGetTool(newFakeTicketRepo(), "sess-1")
	result, err := tl.Invoke(context.Background(), "{}")
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestTicketUpdateStatusTool(t *testing.T) {
	repo := newFakeTicketRepo()
	repo.bySession["sess-1"] = &model.Ticket{ID: uuid.NewString(), SessionID: "sess-1", Status: model.TicketOpen}

	tl := NewTicketUpdateStatusTool(repo, "sess-1")
	result, err := tl.Invoke(context.Background(), `{"status":"resolved"}`)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, model.TicketResolved, repo.bySession["sess-1"].Status)
	assert.Len(t, repo.bySession["sess-1"].Events, 1)
}

func TestTicketReplyTool_MarksFirstResponse(t *testing.T) {
	repo := newFakeTicketRepo()
	repo.bySession["sess-1"] = &model.Ticket{ID: uuid.NewString(), SessionID: "sess-1", Status: model.TicketOpen}

	tl := NewTicketReplyTool(repo, "sess-1")
	result, err := tl.Invoke(context.Background(), `{"body":"looking into it"}`)
	require.NoError(t, err)
	assert.True(t, result.Success)
	ticket := repo.bySession["sess-1"]
	require.Len(t, ticket.Comments, 1)
	assert.NotNil(t, ticket.FirstResponseAt)
}

type fakeMCPExecutor struct {
	executed []agent.ToolCall
	tools    []agent.ToolDefinition
	closed   bool
}

func (f *fakeMCPExecutor) Execute(_ context.Context, call agent.ToolCall) (*agent.ToolResult, error) {
	f.executed = append(f.executed, call)
	return &agent.ToolResult{CallID: call.ID, Name: call.Name, Content: "mcp result"}, nil
}
func (f *fakeMCPExecutor) ListTools(context.Context) ([]agent.ToolDefinition, error) { return f.tools, nil }
func (f *fakeMCPExecutor) Close() error                                              { f.closed = true; return nil }

func TestCompositeExecutor_RoutesBuiltinAndMCP(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMessageTool())
	mcp := &fakeMCPExecutor{}
	exec := NewCompositeExecutor(reg, mcp)

	result, err := exec.Execute(context.Background(), agent.ToolCall{ID: "1", Name: "message_ask_user", Arguments: `{"question":"ok?"}`})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var decoded model.ToolResult
	require.NoError(t, json.Unmarshal([]byte(result.Content), &decoded))
	assert.Equal(t, "ok?", decoded.Message)

	_, err = exec.Execute(context.Background(), agent.ToolCall{ID: "2", Name: "mcp_search_web", Arguments: "{}"})
	require.NoError(t, err)
	assert.Len(t, mcp.executed, 1)
}

func TestCompositeExecutor_UnknownToolIsError(t *testing.T) {
	exec := NewCompositeExecutor(NewRegistry(), nil)
	result, err := exec.Execute(context.Background(), agent.ToolCall{ID: "1", Name: "nope"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCompositeExecutor_NoMCPConfigured(t *testing.T) {
	exec := NewCompositeExecutor(NewRegistry(), nil)
	result, err := exec.Execute(context.Background(), agent.ToolCall{ID: "1", Name: "mcp_search_web"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCompositeExecutor_Close(t *testing.T) {
	mcp := &fakeMCPExecutor{}
	exec := NewCompositeExecutor(NewRegistry(), mcp)
	require.NoError(t, exec.Close())
	assert.True(t, mcp.closed)
}

func TestDecodeToolResult(t *testing.T) {
	raw, _ := json.Marshal(&model.ToolResult{Success: true, Message: "hi"})
	decoded, ok := DecodeToolResult(string(raw))
	require.True(t, ok)
	assert.Equal(t, "hi", decoded.Message)

	_, ok = DecodeToolResult("plain mcp text")
	assert.False(t, ok)
}
