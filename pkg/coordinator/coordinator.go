// Package coordinator implements the Agent Coordinator (spec §4.6,
// component C7): the façade that turns CreateSession/Chat/StopSession
// calls from the HTTP layer into Task Runner lifecycles, and tails a
// session's output stream back to the caller. It is a near-direct port
// of original_source/domain/services/agent_domain_service.py's
// AgentDomainService, with create_session folded in from the thinner
// application-layer AgentService that wraps it in the original.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/opsforge/agentcore/pkg/apperr"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/runner"
)

// defaultBlockMs bounds how long one Get call on the output stream
// blocks waiting for the next event before Chat's tail loop rechecks
// ctx. original_source's chat loop polls with block_ms=0 in a bare
// `while` and relies on asyncio's cooperative scheduler to not spin;
// Go has no such implicit yield, so this port uses Queue.Get's real
// XREAD BLOCK support instead of a manual sleep.
const defaultBlockMs = 15000

// SessionStore is the subset of store.SessionRepository the
// coordinator drives.
type SessionStore interface {
	Save(ctx context.Context, session *model.Session) error
	FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Session, error)
	UpdateLatestMessage(ctx context.Context, id, message string) error
	UpdateTaskID(ctx context.Context, id, taskID string) error
	UpdateUnreadMessageCount(ctx context.Context, id string, count int) error
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error
	AddEvent(ctx context.Context, id string, event model.Event) error
}

// AgentStore is the subset of store.AgentRepository CreateSession needs
// to persist the fresh Agent it allocates per session.
type AgentStore interface {
	Save(ctx context.Context, agent *model.Agent) error
}

// InputQueue is the subset of *stream.Queue the coordinator needs to
// hand a new message to a session's Task Runner.
type InputQueue interface {
	Put(ctx context.Context, payload []byte) (string, error)
}

// OutputQueue is the subset of *stream.Queue the coordinator needs to
// tail a session's event stream from a client-supplied cursor.
type OutputQueue interface {
	Get(ctx context.Context, startID string, blockMs int) (id string, payload []byte, ok bool)
}

// Streams resolves a session's input/output queues on demand, so the
// coordinator never has to own Redis connection lifecycle itself
// (spec §4.1's one-queue-pair-per-task convention).
type Streams interface {
	Input(sessionID string) InputQueue
	Output(sessionID string) OutputQueue
}

// RunnerFactory builds a fresh Runner for a session about to (re)start
// its task: sandbox, browser, tool executor and Plan–Act Flow are all
// session-scoped and rebuilt on every (re)start, mirroring
// AgentDomainService._create_task's sandbox-resolve +
// get_browser + AgentTaskRunner(...) construction. The factory, not the
// coordinator, owns LLM/sandbox/MCP wiring — cmd/agentcored supplies
// the concrete implementation.
type RunnerFactory interface {
	Build(ctx context.Context, session *model.Session) (*runner.Runner, error)
}

// AgentDefaults configures the Agent CreateSession allocates for a new
// session, taken from the LLM's own model_name/temperature/max_tokens
// defaults (spec §4.6 create_session, mirroring AgentService._create_agent).
type AgentDefaults struct {
	ModelName   string
	Temperature float32
	MaxTokens   int
}

// Coordinator is the C7 Agent Coordinator.
type Coordinator struct {
	sessions SessionStore
	agents   AgentStore
	streams  Streams
	runners  RunnerFactory
	registry *runner.Registry
	defaults AgentDefaults

	log *slog.Logger
}

// New builds a Coordinator. registry is shared with whatever process
// also needs to observe running tasks (e.g. a health endpoint); a
// fresh *runner.Registry is fine if nothing else needs it.
func New(sessions SessionStore, agents AgentStore, streams Streams, runners RunnerFactory, registry *runner.Registry, defaults AgentDefaults) *Coordinator {
	return &Coordinator{
		sessions: sessions,
		agents:   agents,
		streams:  streams,
		runners:  runners,
		registry: registry,
		defaults: defaults,
		log:      slog.Default().With("component", "coordinator"),
	}
}

// CreateSession allocates a fresh Agent from the coordinator's LLM
// defaults and a Pending Session bound to it (spec §4.6, mirroring
// AgentService.create_session/_create_agent).
func (c *Coordinator) CreateSession(ctx context.Context, userID string) (*model.Session, error) {
	agent := model.NewAgent(uuid.NewString(), c.defaults.ModelName, c.defaults.Temperature, c.defaults.MaxTokens)
	if err := c.agents.Save(ctx, agent); err != nil {
		return nil, apperr.ServerError(err, "save agent")
	}

	session := model.NewSession(uuid.NewString(), userID, agent.ID, model.SessionChat)
	if err := c.sessions.Save(ctx, session); err != nil {
		return nil, apperr.ServerError(err, "save session")
	}
	c.log.Info("created session", "session_id", session.ID, "user_id", userID, "agent_id", agent.ID)
	return session, nil
}

// Attachment is one file reference a Chat caller wants attached to its
// message (spec §4.6 step 2's attachments list).
type Attachment struct {
	FileID   string
	Filename string
}

// ChatRequest is one Chat call's arguments (spec §4.6), collected into
// a struct because most fields are optional: a resubscribe/catch-up
// call supplies only SessionID/UserID/LastEventID and no Message.
type ChatRequest struct {
	SessionID   string
	UserID      string
	Message     string // empty: no new message, just tail the existing run
	Attachments []Attachment
	LastEventID string // cursor to resume tailing from; "" tails from the start
}

// Chat drives one turn of a session's conversation and streams back
// every event the Task Runner emits until a terminal one arrives (spec
// §4.6): if Message is set, it (re)starts the session's task if it
// isn't already Running, persists the user's Message event, and pushes
// an InboundMessage onto the task's input stream; either way, it then
// tails the task's output stream from LastEventID, invoking emit for
// each event and clearing the session's unread count as it goes,
// stopping once emit sees an event with IsTerminal() true.
//
// Mirrors AgentDomainService.chat, including its one notable quirk:
// any error encountered anywhere in the body — including "session not
// found" — is recorded as a session Error event and delivered to emit
// rather than returned, since the original's entire method body runs
// under one try/except that does the same. Only a cancelled ctx, or an
// error returned by emit itself, is returned directly.
func (c *Coordinator) Chat(ctx context.Context, req ChatRequest, emit func(model.Event) error) error {
	defer func() {
		if err := c.sessions.UpdateUnreadMessageCount(ctx, req.SessionID, 0); err != nil {
			c.log.Warn("clear unread count failed", "session_id", req.SessionID, "error", err)
		}
	}()

	if err := c.chatBody(ctx, req, emit); err != nil {
		if ctx.Err() != nil {
			return err
		}
		c.log.Error("chat failed", "session_id", req.SessionID, "error", err)
		errEvent := model.NewError(err.Error())
		if aerr := c.sessions.AddEvent(ctx, req.SessionID, errEvent); aerr != nil {
			c.log.Warn("record error event failed", "session_id", req.SessionID, "error", aerr)
		}
		return emit(errEvent)
	}
	return nil
}

func (c *Coordinator) chatBody(ctx context.Context, req ChatRequest, emit func(model.Event) error) error {
	session, err := c.sessions.FindByIDAndUserID(ctx, req.SessionID, req.UserID)
	if err != nil {
		return apperr.ServerError(err, "load session")
	}
	if session == nil {
		return apperr.NotFound("session %s", req.SessionID)
	}

	if req.Message != "" {
		if session.Status != model.SessionRunning {
			if err := c.startTask(ctx, session); err != nil {
				return fmt.Errorf("start task: %w", err)
			}
		}
		if err := c.sessions.UpdateLatestMessage(ctx, req.SessionID, req.Message); err != nil {
			c.log.Warn("update latest message failed", "session_id", req.SessionID, "error", err)
		}

		fileIDs := make([]string, 0, len(req.Attachments))
		for _, a := range req.Attachments {
			fileIDs = append(fileIDs, a.FileID)
		}
		payload, err := json.Marshal(runner.InboundMessage{Message: req.Message, FileIDs: fileIDs})
		if err != nil {
			return fmt.Errorf("encode inbound message: %w", err)
		}
		eventID, err := c.streams.Input(req.SessionID).Put(ctx, payload)
		if err != nil {
			return fmt.Errorf("enqueue message: %w", err)
		}
		userEvent := model.NewMessage(model.RoleUser, req.Message)
		userEvent.ID = eventID
		if err := c.sessions.AddEvent(ctx, req.SessionID, userEvent); err != nil {
			c.log.Warn("record user message event failed", "session_id", req.SessionID, "error", err)
		}
	}

	return c.tail(ctx, req.SessionID, req.LastEventID, emit)
}

// startTask (re)starts a session's Task Runner in its own goroutine and
// registers its cancel func, mirroring
// AgentDomainService._create_task — a fresh Runner is built and run
// every time a session transitions out of Running, since the prior
// goroutine (if any) has already returned by the time status stopped
// being Running (spec §4.5/§4.6).
func (c *Coordinator) startTask(ctx context.Context, session *model.Session) error {
	r, err := c.runners.Build(ctx, session)
	if err != nil {
		return err
	}
	if err := c.sessions.UpdateTaskID(ctx, session.ID, session.ID); err != nil {
		c.log.Warn("persist task id failed", "session_id", session.ID, "error", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.registry.Start(session.ID, cancel)
	go func() {
		defer c.registry.Remove(session.ID)
		defer cancel()
		r.Run(runCtx)
		if err := r.Close(context.Background()); err != nil {
			c.log.Warn("close task resources failed", "session_id", session.ID, "error", err)
		}
	}()
	return nil
}

// tail reads a session's output stream from cursor, invoking emit for
// every event and resetting the unread count after each one (spec
// §4.6 step 3), stopping once an event's IsTerminal() is true or ctx
// is cancelled.
func (c *Coordinator) tail(ctx context.Context, sessionID, cursor string, emit func(model.Event) error) error {
	out := c.streams.Output(sessionID)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		id, payload, ok := out.Get(ctx, cursor, defaultBlockMs)
		if !ok {
			continue
		}
		cursor = id

		var ev model.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			c.log.Warn("malformed stream event, skipping", "session_id", sessionID, "error", err)
			continue
		}
		ev.ID = id

		if err := c.sessions.UpdateUnreadMessageCount(ctx, sessionID, 0); err != nil {
			c.log.Warn("clear unread count failed", "session_id", sessionID, "error", err)
		}
		if err := emit(ev); err != nil {
			return err
		}
		if ev.IsTerminal() {
			return nil
		}
	}
}

// StopSession cancels sessionID's running task, if any, and marks the
// session Completed regardless (spec §4.6, mirroring
// AgentDomainService.stop_session).
func (c *Coordinator) StopSession(ctx context.Context, sessionID, userID string) error {
	session, err := c.sessions.FindByIDAndUserID(ctx, sessionID, userID)
	if err != nil {
		return apperr.ServerError(err, "load session")
	}
	if session == nil {
		return apperr.NotFound("session %s", sessionID)
	}
	c.registry.Cancel(sessionID)
	return c.sessions.UpdateStatus(ctx, sessionID, model.SessionCompleted)
}
