package model

import "time"

// EventType discriminates the tagged Event union (spec §3).
type EventType string

const (
	EventMessage EventType = "message"
	EventPlan    EventType = "plan"
	EventStep    EventType = "step"
	EventTool    EventType = "tool"
	EventTitle   EventType = "title"
	EventError   EventType = "error"
	EventDone    EventType = "done"
	EventWait    EventType = "wait"
)

// MessageRole identifies who produced a Message event.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ToolStatus tracks the two-phase lifecycle of a Tool event: it is
// emitted once as Calling (arguments decided) and again as Called
// (result available), sharing the same ToolCallID.
type ToolStatus string

const (
	ToolCalling ToolStatus = "calling"
	ToolCalled  ToolStatus = "called"
)

// PlanStatus tracks a Plan event's lifecycle.
type PlanStatus string

const (
	PlanCreated   PlanStatus = "created"
	PlanUpdated   PlanStatus = "updated"
	PlanCompleted PlanStatus = "completed"
)

// StepStatus tracks a Step event's lifecycle, distinct from Step.Status
// (the persisted plan step) though the values line up.
type StepStatus string

const (
	StepEventStarted   StepStatus = "started"
	StepEventCompleted StepStatus = "completed"
	StepEventFailed    StepStatus = "failed"
)

// Event is the tagged variant carried on every stream entry and in the
// Session Store's append-only events sequence. Only the field(s) that
// correspond to Type are meaningful; the others are zero. A flattened
// struct (rather than an interface union) keeps JSON encode/decode and
// storage round-tripping trivial, matching the teacher's events package.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Message
	Role    MessageRole `json:"role,omitempty"`
	Content string      `json:"content,omitempty"`

	// Plan
	Plan       *Plan      `json:"plan,omitempty"`
	PlanStatus PlanStatus `json:"plan_status,omitempty"`

	// Step
	StepID         string     `json:"step_id,omitempty"`
	StepStatus     StepStatus `json:"step_status,omitempty"`
	StepResult     string     `json:"step_result,omitempty"`
	StepSuccess    *bool      `json:"step_success,omitempty"`
	StepAttachment []string   `json:"step_attachments,omitempty"`

	// Tool
	ToolCallID     string         `json:"tool_call_id,omitempty"`
	ToolName       string         `json:"tool_name,omitempty"`
	FunctionName   string         `json:"function_name,omitempty"`
	FunctionArgs   map[string]any `json:"function_args,omitempty"`
	ToolStatus     ToolStatus     `json:"tool_status,omitempty"`
	FunctionResult *ToolResult    `json:"function_result,omitempty"`
	ToolContent    map[string]any `json:"tool_content,omitempty"`

	// Title
	Title string `json:"title,omitempty"`

	// Error
	Error string `json:"error,omitempty"`
}

// NewMessage builds a Message event.
func NewMessage(role MessageRole, content string) Event {
	return Event{Type: EventMessage, Timestamp: time.Now().UTC(), Role: role, Content: content}
}

// NewTitle builds a Title event.
func NewTitle(title string) Event {
	return Event{Type: EventTitle, Timestamp: time.Now().UTC(), Title: title}
}

// NewError builds an Error event.
func NewError(err string) Event {
	return Event{Type: EventError, Timestamp: time.Now().UTC(), Error: err}
}

// NewDone builds the task-terminal Done event.
func NewDone() Event {
	return Event{Type: EventDone, Timestamp: time.Now().UTC()}
}

// NewWait builds the flow-iteration-terminal Wait event.
func NewWait() Event {
	return Event{Type: EventWait, Timestamp: time.Now().UTC()}
}

// NewPlanEvent builds a Plan event (spec §4.3/§4.4: Created, Updated, Completed).
func NewPlanEvent(status PlanStatus, plan *Plan) Event {
	return Event{Type: EventPlan, Timestamp: time.Now().UTC(), Plan: plan, PlanStatus: status}
}

// NewStepEvent builds a Step event mirroring one Step's current fields.
func NewStepEvent(status StepStatus, step *Step) Event {
	return Event{
		Type: EventStep, Timestamp: time.Now().UTC(),
		StepID: step.ID, StepStatus: status,
		StepResult: step.Result, StepSuccess: step.Success, StepAttachment: step.Attachments,
	}
}

// NewToolCalling builds the Calling-phase Tool event for one call.
func NewToolCalling(callID, toolName, functionName string, args map[string]any) Event {
	return Event{
		Type: EventTool, Timestamp: time.Now().UTC(),
		ToolCallID: callID, ToolName: toolName, FunctionName: functionName,
		FunctionArgs: args, ToolStatus: ToolCalling,
	}
}

// NewToolCalled builds the Called-phase Tool event carrying the result.
func NewToolCalled(callID, toolName, functionName string, args map[string]any, result *ToolResult) Event {
	return Event{
		Type: EventTool, Timestamp: time.Now().UTC(),
		ToolCallID: callID, ToolName: toolName, FunctionName: functionName,
		FunctionArgs: args, ToolStatus: ToolCalled, FunctionResult: result,
	}
}

// IsTerminal reports whether this event ends a chat tail (spec §4.6 step 3).
func (e Event) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError || e.Type == EventWait
}
