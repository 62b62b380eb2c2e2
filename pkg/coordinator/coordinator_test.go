package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/agentcore/pkg/apperr"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/runner"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	events   []model.Event
	unread   []int
	latest   []string
	taskIDs  []string
}

func newFakeSessions(sessions ...*model.Session) *fakeSessions {
	m := map[string]*model.Session{}
	for _, s := range sessions {
		m[s.ID] = s
	}
	return &fakeSessions{sessions: m}
}

func (f *fakeSessions) Save(ctx context.Context, session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions == nil {
		f.sessions = map[string]*model.Session{}
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessions) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	return s, nil
}

func (f *fakeSessions) UpdateLatestMessage(ctx context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = append(f.latest, message)
	return nil
}

func (f *fakeSessions) UpdateTaskID(ctx context.Context, id, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskIDs = append(f.taskIDs, taskID)
	return nil
}

func (f *fakeSessions) UpdateUnreadMessageCount(ctx context.Context, id string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread = append(f.unread, count)
	return nil
}

func (f *fakeSessions) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.Status = status
	}
	return nil
}

func (f *fakeSessions) AddEvent(ctx context.Context, id string, event model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeAgents struct {
	saved []*model.Agent
}

func (f *fakeAgents) Save(ctx context.Context, agent *model.Agent) error {
	f.saved = append(f.saved, agent)
	return nil
}

type fakeInput struct {
	mu  sync.Mutex
	put [][]byte
}

func (q *fakeInput) Put(ctx context.Context, payload []byte) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.put = append(q.put, payload)
	return "in-1", nil
}

type fakeOutput struct {
	mu      sync.Mutex
	entries [][]byte
	idx     int
}

func (q *fakeOutput) Get(ctx context.Context, startID string, blockMs int) (string, []byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.idx >= len(q.entries) {
		return "", nil, false
	}
	payload := q.entries[q.idx]
	q.idx++
	return "out-id", payload, true
}

type fakeStreams struct {
	in  *fakeInput
	out *fakeOutput
}

func (s *fakeStreams) Input(sessionID string) InputQueue   { return s.in }
func (s *fakeStreams) Output(sessionID string) OutputQueue { return s.out }

func marshalEvent(t *testing.T, ev model.Event) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func TestCoordinator_CreateSession_PersistsAgentAndSession(t *testing.T) {
	sessions := newFakeSessions()
	agents := &fakeAgents{}
	c := New(sessions, agents, &fakeStreams{}, nil, runner.NewRegistry(), AgentDefaults{ModelName: "gpt-5", Temperature: 0.2, MaxTokens: 4096})

	session, err := c.CreateSession(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, model.SessionPending, session.Status)
	require.Len(t, agents.saved, 1)
	assert.Equal(t, session.AgentID, agents.saved[0].ID)
	assert.Equal(t, "gpt-5", agents.saved[0].ModelName)
}

func TestCoordinator_Chat_SessionNotFoundYieldsErrorEvent(t *testing.T) {
	sessions := newFakeSessions()
	c := New(sessions, &fakeAgents{}, &fakeStreams{}, nil, runner.NewRegistry(), AgentDefaults{})

	var got []model.Event
	err := c.Chat(context.Background(), ChatRequest{SessionID: "missing", UserID: "user-1", Message: "hi"}, func(ev model.Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.EventError, got[0].Type)
}

func TestCoordinator_Chat_TailsUntilTerminalEvent(t *testing.T) {
	session := model.NewSession("s1", "user-1", "agent-1", model.SessionChat)
	session.Status = model.SessionRunning // already running: Chat must not try to start a task
	sessions := newFakeSessions(session)

	out := &fakeOutput{entries: [][]byte{
		marshalEvent(t, model.NewMessage(model.RoleAssistant, "on it")),
		marshalEvent(t, model.NewDone()),
	}}
	streams := &fakeStreams{in: &fakeInput{}, out: out}
	c := New(sessions, &fakeAgents{}, streams, nil, runner.NewRegistry(), AgentDefaults{})

	var got []model.Event
	err := c.Chat(context.Background(), ChatRequest{SessionID: "s1", UserID: "user-1"}, func(ev model.Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.EventDone, got[1].Type)
	assert.NotEmpty(t, sessions.unread)
}

func TestCoordinator_Chat_NewMessageEnqueuesInboundPayload(t *testing.T) {
	session := model.NewSession("s2", "user-1", "agent-1", model.SessionChat)
	session.Status = model.SessionRunning
	sessions := newFakeSessions(session)

	out := &fakeOutput{entries: [][]byte{marshalEvent(t, model.NewDone())}}
	in := &fakeInput{}
	streams := &fakeStreams{in: in, out: out}
	c := New(sessions, &fakeAgents{}, streams, nil, runner.NewRegistry(), AgentDefaults{})

	err := c.Chat(context.Background(), ChatRequest{SessionID: "s2", UserID: "user-1", Message: "reboot node-3"}, func(ev model.Event) error {
		return nil
	})
	require.NoError(t, err)
	require.Len(t, in.put, 1)
	var msg runner.InboundMessage
	require.NoError(t, json.Unmarshal(in.put[0], &msg))
	assert.Equal(t, "reboot node-3", msg.Message)
	require.Len(t, sessions.events, 1)
	assert.Equal(t, model.RoleUser, sessions.events[0].Role)
}

func TestCoordinator_StopSession_CancelsAndMarksCompleted(t *testing.T) {
	session := model.NewSession("s3", "user-1", "agent-1", model.SessionChat)
	session.Status = model.SessionRunning
	sessions := newFakeSessions(session)
	reg := runner.NewRegistry()
	cancelled := false
	reg.Start("s3", func() { cancelled = true })

	c := New(sessions, &fakeAgents{}, &fakeStreams{}, nil, reg, AgentDefaults{})
	err := c.StopSession(context.Background(), "s3", "user-1")
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Equal(t, model.SessionCompleted, session.Status)
}

func TestCoordinator_StopSession_UnknownSessionErrors(t *testing.T) {
	c := New(newFakeSessions(), &fakeAgents{}, &fakeStreams{}, nil, runner.NewRegistry(), AgentDefaults{})
	err := c.StopSession(context.Background(), "missing", "user-1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
