// Package runner implements the Task Runner (spec §4.5, component C6):
// the per-session worker that drains one session's input stream,
// drives its Plan–Act Flow one message at a time, and fans every
// emitted event out to the session store and the output stream. It is
// a near-direct port of
// original_source/domain/services/agent_task_runner.py's
// AgentTaskRunner, adapted from Python's implicit generator suspension
// to Go's explicit control flow the same way pkg/flow was (see
// pkg/flow's doc comment and DESIGN.md).
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/opsforge/agentcore/pkg/browser"
	"github.com/opsforge/agentcore/pkg/flow"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/sandbox"
)

// mcpPrefix mirrors pkg/tool's naming convention for MCP-routed tool
// calls; duplicated rather than imported to keep pkg/runner from
// depending on pkg/tool (pkg/agent's decodeToolResult does the same for
// the same reason).
const mcpPrefix = "mcp_"

// errInterrupted is returned by the runner's emit callback when newer
// input has arrived on the session's input stream mid-cycle. It is
// never surfaced to a caller: processMessage treats it as a non-waited
// completion (skipping the LastAttachments sync), so the outer loop in Run immediately
// pops the newer message instead of letting a stale one keep running
// (spec §4.5's "if not await task.input_stream.is_empty(): break").
var errInterrupted = errors.New("runner: newer input pending")

// InboundMessage is the payload the Agent Coordinator (C7) puts onto a
// session's input stream in Chat: the user's message text plus the
// FileIDs of any attachments already uploaded to storage (spec §4.6
// step 2). It has no Go analogue in model.Event — model.Event's
// Message variant carries no attachments field, unlike
// original_source's MessageEvent.
type InboundMessage struct {
	Message string   `json:"message"`
	FileIDs []string `json:"file_ids,omitempty"`
}

// SessionStore is the subset of store.SessionRepository the runner
// needs to drive one session's bookkeeping.
type SessionStore interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error
	UpdateTitle(ctx context.Context, id, title string) error
	UpdateLatestMessage(ctx context.Context, id, message string) error
	UpdateSandboxID(ctx context.Context, id, sandboxID string) error
	IncrementUnreadMessageCount(ctx context.Context, id string) error
	AddEvent(ctx context.Context, id string, event model.Event) error
	AddFile(ctx context.Context, id string, file model.FileInfo) error
	RemoveFile(ctx context.Context, id, fileID string) error
}

// FileStorage is the subset of *filestore.Store the runner drives for
// attachment reconciliation.
type FileStorage interface {
	Upload(ctx context.Context, r io.Reader, filename, userID string) (*model.FileInfo, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
	Remove(ctx context.Context, fileID string) error
}

// InputQueue is the subset of *stream.Queue the runner needs to drain a
// session's input stream.
type InputQueue interface {
	IsEmpty(ctx context.Context) bool
	Pop(ctx context.Context) (id string, payload []byte, ok bool)
}

// Publisher durably appends one emitted event to a session's output
// stream and fans it out live, already bound to a specific output
// stream by its constructor (see QueuePublisher) so Runner itself
// never needs to hold a *stream.Queue directly.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, event model.Event) (string, error)
}

// Flow is the subset of *flow.PlanActFlow the runner drives, narrowed
// so tests can substitute a fake cycle without standing up real
// Planner/Executor agents.
type Flow interface {
	Run(ctx context.Context, message string, attachments []string, emit func(model.Event) error) error
	Status() flow.Status
	LastAttachments() []string
}

// ToolCloser releases a session's tool executor (its MCP transports,
// if any) on Runner.Close.
type ToolCloser interface {
	Close() error
}

// Runner owns one session's sandbox/browser/flow for the lifetime of
// one Run call, draining its input stream to completion (spec §4.5).
// Not safe for concurrent Run calls on the same instance — exactly one
// goroutine per session drives it, matching original_source's
// single-task-per-session model (spec §5).
type Runner struct {
	sessionID string
	userID    string

	flow    Flow
	sandbox sandbox.Sandbox
	browser browser.Browser // nil: session has no browser tool configured
	closer  ToolCloser

	sessions SessionStore
	files    FileStorage
	input    InputQueue
	publish  Publisher

	log *slog.Logger
}

// New builds a Runner. flow, sandbox, browser (may be nil) and closer
// are expected to already be wired to the session (the Agent
// Coordinator builds them per spec §4.6, the same way
// original_source's AgentDomainService constructs one AgentTaskRunner
// per session).
func New(sessionID, userID string, flw Flow, sbx sandbox.Sandbox, br browser.Browser, closer ToolCloser, sessions SessionStore, files FileStorage, input InputQueue, publish Publisher) *Runner {
	return &Runner{
		sessionID: sessionID,
		userID:    userID,
		flow:      flw,
		sandbox:   sbx,
		browser:   br,
		closer:    closer,
		sessions:  sessions,
		files:     files,
		input:     input,
		publish:   publish,
		log:       slog.Default().With("component", "runner.task", "session_id", sessionID),
	}
}

// Run drains the session's input stream to completion (spec §4.5): pop
// one message, reconcile its attachments into the sandbox, drive the
// flow over it, react to each emitted event as it happens, and repeat
// until the stream is empty. It returns once:
//   - the input stream is drained (session marked Completed),
//   - a cycle parks on Wait (session already marked Waiting by the
//     Wait reaction in emit; the next message resumes it),
//   - an unhandled error occurs (an Error event is emitted and the
//     session marked Completed), or
//   - ctx is cancelled (a final Done is emitted against an
//     uncancelable context so the client still sees a clean ending,
//     then the session is marked Completed — mirrors
//     original_source's `task.uncancel()` + `asyncio.shield` around
//     its cancellation handler).
//
// MCP server connectivity is established once, at Runner construction
// time (the Coordinator builds the session's tool executor before
// calling New), not on every Run — best-effort there already, per
// spec §4.8, so there is nothing further for Run to retry.
func (r *Runner) Run(ctx context.Context) {
	if err := r.ensureSandbox(ctx); err != nil {
		r.log.Error("ensure sandbox failed", "error", err)
		r.finishWithError(context.Background(), err)
		return
	}

	for {
		if ctx.Err() != nil {
			r.finishOnCancel(context.Background())
			return
		}
		if r.input.IsEmpty(ctx) {
			break
		}
		_, payload, ok := r.input.Pop(ctx)
		if !ok {
			break
		}

		waited, err := r.processMessage(ctx, payload)
		if err != nil {
			if ctx.Err() != nil {
				r.finishOnCancel(context.Background())
				return
			}
			r.finishWithError(context.Background(), err)
			return
		}
		if waited {
			return
		}
	}

	if err := r.sessions.UpdateStatus(context.Background(), r.sessionID, model.SessionCompleted); err != nil {
		r.log.Error("mark completed failed", "error", err)
	}
}

func (r *Runner) ensureSandbox(ctx context.Context) error {
	if err := r.sandbox.Ensure(ctx); err != nil {
		return fmt.Errorf("runner: ensure sandbox: %w", err)
	}
	session, err := r.sessions.FindByID(ctx, r.sessionID)
	if err != nil {
		return fmt.Errorf("runner: load session: %w", err)
	}
	if session != nil && session.SandboxID == "" {
		if err := r.sessions.UpdateSandboxID(ctx, r.sessionID, r.sandbox.ID()); err != nil {
			return fmt.Errorf("runner: persist sandbox id: %w", err)
		}
	}
	return nil
}

// processMessage decodes one input-stream payload, reconciles its
// attachments, and drives one flow cycle over it. waited reports
// whether the cycle parked on Wait (Run should stop and return) rather
// than completing.
func (r *Runner) processMessage(ctx context.Context, payload []byte) (waited bool, err error) {
	var msg InboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.log.Warn("malformed input message, dropping", "error", err)
		return false, nil
	}
	if msg.Message == "" {
		r.log.Warn("dropping empty message")
		return false, nil
	}

	session, err := r.sessions.FindByID(ctx, r.sessionID)
	if err != nil {
		return false, fmt.Errorf("runner: load session: %w", err)
	}
	attachments := r.syncAttachmentsToSandbox(ctx, session, msg.FileIDs)

	runErr := r.flow.Run(ctx, msg.Message, attachments, func(ev model.Event) error {
		return r.emit(ctx, ev)
	})
	if runErr != nil {
		if errors.Is(runErr, errInterrupted) {
			return false, nil
		}
		return false, runErr
	}

	if r.flow.Status() == flow.StatusExecuting {
		return true, nil
	}
	for _, path := range r.flow.LastAttachments() {
		r.syncFileToStorage(ctx, path)
	}
	return false, nil
}

// emit is the flow's emit callback: enrich tool events, append the
// event durably, broadcast it, react to Title/Message/Wait, and signal
// errInterrupted if newer input has arrived (spec §4.5's per-event
// input-stream check).
func (r *Runner) emit(ctx context.Context, ev model.Event) error {
	if ev.Type == model.EventTool && ev.ToolStatus == model.ToolCalled {
		r.enrichToolEvent(ctx, &ev)
	}

	if err := r.sessions.AddEvent(ctx, r.sessionID, ev); err != nil {
		return fmt.Errorf("runner: append event: %w", err)
	}
	id, err := r.publish.Publish(ctx, r.sessionID, ev)
	if err != nil {
		return fmt.Errorf("runner: publish event: %w", err)
	}
	ev.ID = id

	switch ev.Type {
	case model.EventTitle:
		if err := r.sessions.UpdateTitle(ctx, r.sessionID, ev.Title); err != nil {
			r.log.Warn("update title failed", "error", err)
		}
	case model.EventMessage:
		if err := r.sessions.UpdateLatestMessage(ctx, r.sessionID, ev.Content); err != nil {
			r.log.Warn("update latest message failed", "error", err)
		}
		if err := r.sessions.IncrementUnreadMessageCount(ctx, r.sessionID); err != nil {
			r.log.Warn("increment unread count failed", "error", err)
		}
	case model.EventWait:
		if err := r.sessions.UpdateStatus(ctx, r.sessionID, model.SessionWaiting); err != nil {
			r.log.Warn("mark waiting failed", "error", err)
		}
	}

	if ev.Type != model.EventDone && ev.Type != model.EventWait && !r.input.IsEmpty(ctx) {
		return errInterrupted
	}
	return nil
}

func (r *Runner) finishWithError(ctx context.Context, cause error) {
	r.log.Error("task failed", "error", cause)
	if err := r.emit(ctx, model.NewError(cause.Error())); err != nil {
		r.log.Error("emit error event failed", "error", err)
	}
	if err := r.sessions.UpdateStatus(ctx, r.sessionID, model.SessionCompleted); err != nil {
		r.log.Error("mark completed after error failed", "error", err)
	}
}

func (r *Runner) finishOnCancel(ctx context.Context) {
	r.log.Info("task cancelled")
	if err := r.emit(ctx, model.NewDone()); err != nil {
		r.log.Error("emit done event on cancel failed", "error", err)
	}
	if err := r.sessions.UpdateStatus(ctx, r.sessionID, model.SessionCompleted); err != nil {
		r.log.Error("mark completed after cancel failed", "error", err)
	}
}

// Close tears down the resources this Runner's session owns: the tool
// executor's MCP transports, the browser (if any), and the sandbox
// container. Safe to call once Run has returned (original_source's
// AgentTaskRunner.destroy).
func (r *Runner) Close(ctx context.Context) error {
	var errs []error
	if r.closer != nil {
		if err := r.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tool executor: %w", err))
		}
	}
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if err := r.sandbox.Destroy(ctx); err != nil {
		errs = append(errs, fmt.Errorf("destroy sandbox: %w", err))
	}
	return errors.Join(errs...)
}

// Registry is the process-local table of running tasks, keyed by
// session ID, the Agent Coordinator (C7) consults to avoid starting a
// second Runner over an already-running session and to cancel one on
// stop_session (spec §4.6, §5's "process-local Task Registry").
type Registry struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]context.CancelFunc)}
}

// Start registers cancel under sessionID.
func (reg *Registry) Start(sessionID string, cancel context.CancelFunc) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.tasks[sessionID] = cancel
}

// Cancel advisory-cancels sessionID's task, if one is registered.
func (reg *Registry) Cancel(sessionID string) bool {
	reg.mu.Lock()
	cancel, ok := reg.tasks[sessionID]
	reg.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Remove drops sessionID's entry once its Runner has finished.
func (reg *Registry) Remove(sessionID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.tasks, sessionID)
}

// Running reports whether sessionID currently has a registered task.
func (reg *Registry) Running(sessionID string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.tasks[sessionID]
	return ok
}
