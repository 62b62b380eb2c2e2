package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/opsforge/agentcore/pkg/apperr"
	"github.com/opsforge/agentcore/pkg/llm"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/store"
)

// createPlanSchema validates PlannerAgent.CreatePlan's final LLM turn
// against spec §4.3's CREATE_PLAN shape, ported from
// original_source/domain/services/prompts/planner.py's
// CreatePlanResponse TypeScript interface.
const createPlanSchema = `{
  "type": "object",
  "properties": {
    "message": {"type": "string"},
    "goal": {"type": "string"},
    "title": {"type": "string"},
    "language": {"type": "string"},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "description": {"type": "string"}
        },
        "required": ["id", "description"]
      }
    }
  },
  "required": ["message", "goal", "title", "language", "steps"]
}`

// updatePlanSchema validates PlannerAgent.UpdatePlan's final turn,
// ported from the same file's UpdatePlanResponse interface.
const updatePlanSchema = `{
  "type": "object",
  "properties": {
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "description": {"type": "string"}
        },
        "required": ["id", "description"]
      }
    }
  },
  "required": ["steps"]
}`

const plannerSystemPrompt = `You are a task planner agent. You create or update a plan for the task:
1. Analyze the user's message and understand the user's needs
2. Determine what tools will be needed to complete the task
3. Determine the working language based on the user's message
4. Generate the plan's goal and steps`

// PlannerAgent owns memory slot "planner" and the two plan-shaping
// operations the Plan–Act Flow drives (spec §4.3, §4.4).
type PlannerAgent struct {
	*BaseAgent
	createSchema *jsonschema.Schema
	updateSchema *jsonschema.Schema
}

// NewPlannerAgent builds a PlannerAgent over client/executor/repo,
// bound to agentModel's "planner" memory slot and compiling its
// response schemas once at construction.
func NewPlannerAgent(client llm.Client, executor ToolExecutor, repo store.AgentRepository, agentModel *model.Agent, tools []llm.ToolDefinition) (*PlannerAgent, error) {
	createSchema, err := compileSchema("create_plan.json", createPlanSchema)
	if err != nil {
		return nil, err
	}
	updateSchema, err := compileSchema("update_plan.json", updatePlanSchema)
	if err != nil {
		return nil, err
	}
	base := newBaseAgent("planner", plannerSystemPrompt, FormatJSONObject, tools, client, executor, repo, agentModel, "planner")
	return &PlannerAgent{BaseAgent: base, createSchema: createSchema, updateSchema: updateSchema}, nil
}

// createPlanPrompt renders the CREATE_PLAN prompt, ported verbatim in
// structure from original_source's CREATE_PLAN_PROMPT.
func createPlanPrompt(message string, attachments []string) string {
	return fmt.Sprintf(`You are now creating a plan based on the user's message:
%s

Note:
- You must use the language of the user's message to execute the task.
- Your plan must be simple and concise; don't add unnecessary detail.
- Your steps must be atomic and independent so the executor can run them one by one with tools.
- Break the task into multiple steps only if it genuinely needs them; otherwise return a single step.
- If the task is infeasible, return an empty steps array and an empty goal.

Return a JSON object with fields: message, goal, title, language, steps (array of {id, description}).

User message:
%s

Attachments:
%s`, message, message, strings.Join(attachments, "\n"))
}

// CreatePlan emits Plan{Created} (and, via events, every intermediate
// Tool/Message event from the underlying execute() loop — though the
// planner is not normally given tools) for message/attachments, and
// returns the parsed Plan. An empty steps array is the trivially
// complete case (spec §4.3, §4.4 rule 2).
func (p *PlannerAgent) CreatePlan(ctx context.Context, message string, attachments []string, emit func(model.Event) error) (*model.Plan, error) {
	var finalText string
	err := p.execute(ctx, createPlanPrompt(message, attachments), func(ev model.Event) error {
		if ev.Type == model.EventMessage {
			// The final turn is structured JSON, not conversational
			// text: capture it and don't forward it as a Message.
			finalText = ev.Content
			return nil
		}
		return emit(ev)
	})
	if err != nil {
		return nil, err
	}

	doc, err := decodeAndValidate(finalText, p.createSchema)
	if err != nil {
		return nil, apperr.ServerError(err, "planner: create_plan response")
	}

	plan := &model.Plan{
		Title:    stringField(doc, "title"),
		Goal:     stringField(doc, "goal"),
		Language: stringField(doc, "language"),
		Message:  stringField(doc, "message"),
		Status:   model.PlanAggregateActive,
	}
	for _, raw := range sliceField(doc, "steps") {
		step, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		plan.Steps = append(plan.Steps, &model.Step{
			ID:          stringField(step, "id"),
			Description: stringField(step, "description"),
			Status:      model.StepPending,
		})
	}

	if err := p.persist(ctx); err != nil {
		return nil, err
	}
	if err := emit(model.NewPlanEvent(model.PlanCreated, plan)); err != nil {
		return nil, err
	}
	return plan, nil
}

// updatePlanPrompt renders the UPDATE_PLAN prompt. lastStep is the
// step whose result drives the re-plan; only the uncompleted tail
// (plan.NextPending onward) is subject to change.
func updatePlanPrompt(plan *model.Plan, lastStep *model.Step) string {
	return fmt.Sprintf(`You are updating the plan based on the last step's result.

Note:
- You may add, remove, or change the remaining uncompleted steps, but never the plan goal.
- Leave descriptions unchanged unless the change is material.
- Only re-plan steps from the first uncompleted step onward; never touch completed steps.
- Re-read the last step's result to judge success; adjust the remaining steps if it failed.

Return a JSON object with field: steps (array of {id, description}) — the updated uncompleted steps only.

Last step:
id=%s description=%s success=%v result=%s error=%s

Plan goal: %s
Plan steps so far: %s`,
		lastStep.ID, lastStep.Description, boolField(lastStep.Success), lastStep.Result, lastStep.Error,
		plan.Goal, planStepsSummary(plan))
}

func boolField(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

func planStepsSummary(plan *model.Plan) string {
	var sb strings.Builder
	for _, s := range plan.Steps {
		fmt.Fprintf(&sb, "[%s:%s] %s\n", s.ID, s.Status, s.Description)
	}
	return sb.String()
}

// UpdatePlan re-plans plan's uncompleted tail after lastStep finished,
// preserving completed steps verbatim (spec §4.3, §4.4 rule 4).
func (p *PlannerAgent) UpdatePlan(ctx context.Context, plan *model.Plan, lastStep *model.Step, emit func(model.Event) error) error {
	var finalText string
	err := p.execute(ctx, updatePlanPrompt(plan, lastStep), func(ev model.Event) error {
		if ev.Type == model.EventMessage {
			finalText = ev.Content
			return nil
		}
		return emit(ev)
	})
	if err != nil {
		return err
	}

	doc, err := decodeAndValidate(finalText, p.updateSchema)
	if err != nil {
		return apperr.ServerError(err, "planner: update_plan response")
	}

	completed := plan.CompletedTail()
	replanned := make([]*model.Step, 0, len(sliceField(doc, "steps")))
	for _, raw := range sliceField(doc, "steps") {
		step, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		replanned = append(replanned, &model.Step{
			ID:          stringField(step, "id"),
			Description: stringField(step, "description"),
			Status:      model.StepPending,
		})
	}
	plan.Steps = append(completed, replanned...)

	if err := p.persist(ctx); err != nil {
		return err
	}
	return emit(model.NewPlanEvent(model.PlanUpdated, plan))
}
