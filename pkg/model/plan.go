package model

// PlanAggregateStatus is the persisted lifecycle of a Plan (distinct
// from the per-event PlanStatus transition tag).
type PlanAggregateStatus string

const (
	PlanAggregateActive    PlanAggregateStatus = "active"
	PlanAggregateCompleted PlanAggregateStatus = "completed"
)

// Plan is the planner's structured output: a goal decomposed into
// ordered steps, refined by update_plan as execution proceeds.
type Plan struct {
	Title    string              `json:"title"`
	Goal     string              `json:"goal"`
	Language string              `json:"language"`
	Steps    []*Step             `json:"steps"`
	Status   PlanAggregateStatus `json:"status"`
	Message  string              `json:"message,omitempty"`
}

// StepAggregateStatus is the persisted lifecycle of one Step.
type StepAggregateStatus string

const (
	StepPending   StepAggregateStatus = "pending"
	StepRunning   StepAggregateStatus = "running"
	StepCompleted StepAggregateStatus = "completed"
	StepFailed    StepAggregateStatus = "failed"
)

// Step is one unit of planned work.
type Step struct {
	ID          string               `json:"id"`
	Description string               `json:"description"`
	Status      StepAggregateStatus  `json:"status"`
	Success     *bool                `json:"success,omitempty"`
	Result      string               `json:"result,omitempty"`
	Attachments []string             `json:"attachments,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// NextPending returns the first step still Pending, or nil if every
// step has left the Pending state.
func (p *Plan) NextPending() *Step {
	for _, s := range p.Steps {
		if s.Status == StepPending {
			return s
		}
	}
	return nil
}

// CompletedTail returns the steps that are not Pending/Running — the
// ones update_plan must leave untouched, verbatim, when re-planning
// the uncompleted tail.
func (p *Plan) CompletedTail() []*Step {
	var out []*Step
	for _, s := range p.Steps {
		if s.Status == StepCompleted || s.Status == StepFailed {
			out = append(out, s)
		}
	}
	return out
}

// Empty reports whether the plan has no steps at all — the trivially
// complete case (spec §4.3 create_plan).
func (p *Plan) Empty() bool {
	return len(p.Steps) == 0
}
