// Package flow implements the Plan–Act Flow (spec §4.4), the state
// machine that drives one Agent's planner/executor pair through a
// create/execute/update/summarize cycle for every incoming message. It
// is a near-direct port of
// original_source/domain/services/flows/plan_act.py's PlanActFlow.run.
package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsforge/agentcore/pkg/model"
)

// Status is the flow's in-memory state machine position, distinct from
// model.SessionStatus (the persisted, task-runner-facing status) and
// model.PlanAggregateStatus (the persisted plan status).
type Status string

const (
	StatusIdle        Status = "idle"
	StatusPlanning    Status = "planning"
	StatusExecuting   Status = "executing"
	StatusUpdating    Status = "updating"
	StatusSummarizing Status = "summarizing"
	StatusCompleted   Status = "completed"
)

// Planner is the subset of *agent.PlannerAgent the flow drives.
type Planner interface {
	CreatePlan(ctx context.Context, message string, attachments []string, emit func(model.Event) error) (*model.Plan, error)
	UpdatePlan(ctx context.Context, plan *model.Plan, lastStep *model.Step, emit func(model.Event) error) error
	RollBack(message string)
}

// Executor is the subset of *agent.ExecutionAgent the flow drives.
// ExecuteStep's waited return tells Run whether the step ended on a
// Wait short-circuit (message_ask_user, ssh_node_exec approval) rather
// than Completed/Failed; see Run's StatusExecuting case.
type Executor interface {
	ExecuteStep(ctx context.Context, plan *model.Plan, step *model.Step, message string, attachments []string, emit func(model.Event) error) (waited bool, err error)
	Summarize(ctx context.Context, emit func(model.Event) error) ([]string, error)
	RollBack(message string)
	CompactMemory()
}

// SessionLookup is the subset of store.SessionRepository the flow
// needs: load the session to decide the resume state, and flip it to
// Running for the duration of one Run call.
type SessionLookup interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error
}

// PlanActFlow owns one Agent's planner/executor pair and the
// create/execute/update/summarize cycle over their shared plan (spec
// §4.4). A flow instance is bound to one session and is not safe for
// concurrent Run calls — the Task Runner that owns it serializes
// messages one at a time, same as original_source's AgentTaskRunner
// draining its input_stream.
type PlanActFlow struct {
	sessionID string
	sessions  SessionLookup
	planner   Planner
	executor  Executor

	status      Status
	plan        *model.Plan
	attachments []string
	log         *slog.Logger
}

// NewPlanActFlow builds a flow bound to sessionID, starting Idle.
func NewPlanActFlow(sessionID string, sessions SessionLookup, planner Planner, executor Executor) *PlanActFlow {
	return &PlanActFlow{
		sessionID: sessionID,
		sessions:  sessions,
		planner:   planner,
		executor:  executor,
		status:    StatusIdle,
		log:       slog.Default().With("component", "flow.plan_act", "session_id", sessionID),
	}
}

// Status reports the flow's current state, for tests and diagnostics.
func (f *PlanActFlow) Status() Status { return f.status }

// Run drives message through one full Plan–Act cycle, forwarding
// every event to emit as it happens (spec §4.4's "lazy sequence of
// Event"). It returns when the cycle reaches Completed (emitting
// Done), early if emit/an agent call returns an error, or — without
// emitting Done — the instant a step's ExecuteStep reports waited=true
// (StatusExecuting case below). Run leaves the flow parked at
// StatusExecuting in that case; the next Run call resumes it.
//
// Resume rule (spec §4.4 rule 1): if the session wasn't Pending when
// Run was called, both agents roll back their last exchange first —
// the message that triggered the interruption is replayed, not
// double-counted. A Running session resumes at Planning; a Waiting
// session resumes at Executing (the step that asked a question or
// needed SSH approval runs again with the new message providing the
// answer).
func (f *PlanActFlow) Run(ctx context.Context, message string, attachments []string, emit func(model.Event) error) error {
	session, err := f.sessions.FindByID(ctx, f.sessionID)
	if err != nil {
		return fmt.Errorf("flow: load session %s: %w", f.sessionID, err)
	}
	if session == nil {
		return fmt.Errorf("flow: session %s not found", f.sessionID)
	}

	if session.Status != model.SessionPending {
		f.log.Debug("session not pending, rolling back", "status", session.Status)
		f.executor.RollBack(message)
		f.planner.RollBack(message)
	}
	if session.Status == model.SessionRunning {
		f.status = StatusPlanning
	}
	if session.Status == model.SessionWaiting {
		f.status = StatusExecuting
	}

	if err := f.sessions.UpdateStatus(ctx, f.sessionID, model.SessionRunning); err != nil {
		return fmt.Errorf("flow: update session status: %w", err)
	}
	f.plan = session.LastPlan()

	var step *model.Step
	for {
		switch f.status {
		case StatusIdle:
			f.status = StatusPlanning

		case StatusPlanning:
			f.log.Info("creating plan")
			plan, err := f.planner.CreatePlan(ctx, message, attachments, planCreatedEmit(emit))
			if err != nil {
				return err
			}
			f.plan = plan
			f.status = StatusExecuting
			if plan.Empty() {
				f.log.Info("plan has no steps, skipping straight to completion")
				f.status = StatusCompleted
			}

		case StatusExecuting:
			f.plan.Status = model.PlanAggregateActive
			step = f.plan.NextPending()
			if step == nil {
				f.status = StatusSummarizing
				continue
			}
			f.log.Info("executing step", "step_id", step.ID)
			waited, err := f.executor.ExecuteStep(ctx, f.plan, step, message, attachments, emit)
			if err != nil {
				return err
			}
			if waited {
				f.log.Info("step waiting on external input", "step_id", step.ID)
				return nil
			}
			f.executor.CompactMemory()
			f.status = StatusUpdating

		case StatusUpdating:
			f.log.Info("updating plan", "last_step_id", step.ID)
			if err := f.planner.UpdatePlan(ctx, f.plan, step, emit); err != nil {
				return err
			}
			f.status = StatusExecuting

		case StatusSummarizing:
			f.log.Info("summarizing")
			paths, err := f.executor.Summarize(ctx, emit)
			if err != nil {
				return err
			}
			f.attachments = paths
			f.status = StatusCompleted

		case StatusCompleted:
			f.plan.Status = model.PlanAggregateCompleted
			if err := emit(model.NewPlanEvent(model.PlanCompleted, f.plan)); err != nil {
				return err
			}
			f.status = StatusIdle
			return emit(model.NewDone())
		}
	}
}

// planCreatedEmit wraps emit so that the moment CreatePlan's own event
// stream reports the new Plan, the flow also announces its title and
// opening message — spec §4.4's rule that Title/Message always
// precede the Plan{Created} event they describe.
func planCreatedEmit(emit func(model.Event) error) func(model.Event) error {
	return func(ev model.Event) error {
		if ev.Type == model.EventPlan && ev.PlanStatus == model.PlanCreated && ev.Plan != nil {
			if err := emit(model.NewTitle(ev.Plan.Title)); err != nil {
				return err
			}
			if err := emit(model.NewMessage(model.RoleAssistant, ev.Plan.Message)); err != nil {
				return err
			}
		}
		return emit(ev)
	}
}

// IsDone reports whether the flow is at rest between messages.
func (f *PlanActFlow) IsDone() bool {
	return f.status == StatusIdle
}

// LastAttachments returns the sandbox file paths Summarize reported on
// the most recently completed cycle, for the Task Runner's
// sync-to-storage pass (spec §4.5) to upload. Empty until a cycle has
// reached StatusSummarizing.
func (f *PlanActFlow) LastAttachments() []string {
	return f.attachments
}
