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

// executeStepSchema validates ExecutionAgent.ExecuteStep's final turn,
// ported from original_source/domain/services/prompts/execution.py's
// Response interface ({success, attachments, result}).
const executeStepSchema = `{
  "type": "object",
  "properties": {
    "success": {"type": "boolean"},
    "result": {"type": "string"},
    "attachments": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["success", "result"]
}`

// summarizeSchema validates ExecutionAgent.Summarize's final turn.
const summarizeSchema = `{
  "type": "object",
  "properties": {
    "message": {"type": "string"},
    "attachments": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["message"]
}`

const executionSystemPrompt = `You are a task execution agent. For each step:
1. Analyze the current state and the step's goal
2. Select the next tool call needed to make progress
3. Use exactly one tool call per turn and wait for its result
4. Repeat until the step is complete
5. Report the result in detail`

// ExecutionAgent owns memory slot "execution" and runs one plan step
// at a time, plus the terminal summarize turn (spec §4.3, §4.4).
type ExecutionAgent struct {
	*BaseAgent
	stepSchema      *jsonschema.Schema
	summarizeSchema *jsonschema.Schema
}

// NewExecutionAgent builds an ExecutionAgent over client/executor/repo,
// bound to agentModel's "execution" memory slot.
func NewExecutionAgent(client llm.Client, executor ToolExecutor, repo store.AgentRepository, agentModel *model.Agent, tools []llm.ToolDefinition) (*ExecutionAgent, error) {
	stepSchema, err := compileSchema("execute_step.json", executeStepSchema)
	if err != nil {
		return nil, err
	}
	sumSchema, err := compileSchema("summarize.json", summarizeSchema)
	if err != nil {
		return nil, err
	}
	base := newBaseAgent("execution", executionSystemPrompt, FormatJSONObject, tools, client, executor, repo, agentModel, "execution")
	return &ExecutionAgent{BaseAgent: base, stepSchema: stepSchema, summarizeSchema: sumSchema}, nil
}

func executeStepPrompt(step *model.Step, message string, attachments []string, language string) string {
	return fmt.Sprintf(`You are executing this task:
%s

Note:
- You are performing the task, not the user.
- Use the language of the user's message for all output.
- Use message_ask_user if you need input from the user or control of the browser.
- Deliver the final result to the user, not a todo list or a plan.

Return a JSON object with fields: success (bool), result (string), attachments (array of sandbox file paths).

User message:
%s

Attachments:
%s

Working language:
%s

Task:
%s`, step.Description, message, strings.Join(attachments, "\n"), language, step.Description)
}

// ExecuteStep runs step through the tool-calling loop, emitting
// Step{Started} on entry and Step{Completed|Failed} on exit, with
// the two tool-mediated short-circuits spec §4.3 calls out:
// message_ask_user (Calling → Message, Called → Wait, step ends) and
// ssh_node_exec whose result message is "command requires approval
// before it runs", which pkg/tool.SSHNodeExecTool reports with
// success=true (its Tool{Called} event, then Message, then Wait, step
// ends). Both leave the step in whatever status it already had
// when the short-circuit fired, and report waited=true so the caller
// (the Plan–Act Flow) stops advancing the plan instead of moving on
// to update_plan — the flow itself never inspects the Wait event for
// this, it just reacts to the boolean the agent that emitted it
// already knows (spec §4.4: "Wait must never be intercepted by the
// flow"; the Task Runner, one layer up, is what turns this into
// session.Status = Waiting). The step resumes on the next message via
// roll_back.
func (e *ExecutionAgent) ExecuteStep(ctx context.Context, plan *model.Plan, step *model.Step, message string, attachments []string, emit func(model.Event) error) (bool, error) {
	step.Status = model.StepRunning
	if err := emit(model.NewStepEvent(model.StepEventStarted, step)); err != nil {
		return false, err
	}

	var finalText string
	var waited bool
	runErr := e.execute(ctx, executeStepPrompt(step, message, attachments, plan.Language), func(ev model.Event) error {
		if ev.Type == model.EventTool {
			switch ev.FunctionName {
			case "message_ask_user":
				if ev.ToolStatus == model.ToolCalling {
					text, _ := ev.FunctionArgs["question"].(string)
					return emit(model.NewMessage(model.RoleAssistant, text))
				}
				if ev.ToolStatus == model.ToolCalled {
					waited = true
					if err := emit(model.NewWait()); err != nil {
						return err
					}
					return ErrHalted
				}
				return nil
			case "ssh_node_exec":
				if ev.ToolStatus == model.ToolCalled && ev.FunctionResult != nil && ev.FunctionResult.Message == "command requires approval before it runs" {
					if err := emit(ev); err != nil {
						return err
					}
					if err := emit(model.NewMessage(model.RoleAssistant,
						"The SSH command is waiting for approval. I will continue once it is approved.")); err != nil {
						return err
					}
					waited = true
					if err := emit(model.NewWait()); err != nil {
						return err
					}
					return ErrHalted
				}
			}
		}
		if ev.Type == model.EventMessage {
			finalText = ev.Content
			return nil
		}
		return emit(ev)
	})
	if waited {
		return true, nil
	}
	if runErr != nil {
		step.Status = model.StepFailed
		step.Error = runErr.Error()
		_ = emit(model.NewStepEvent(model.StepEventFailed, step))
		return false, runErr
	}

	doc, err := decodeAndValidate(finalText, e.stepSchema)
	if err != nil {
		step.Status = model.StepFailed
		step.Error = err.Error()
		_ = emit(model.NewStepEvent(model.StepEventFailed, step))
		return false, apperr.ServerError(err, "execution: execute_step response")
	}

	success := boolValue(doc, "success")
	step.Success = &success
	step.Result = stringField(doc, "result")
	for _, raw := range sliceField(doc, "attachments") {
		if s, ok := raw.(string); ok {
			step.Attachments = append(step.Attachments, s)
		}
	}
	if success {
		step.Status = model.StepCompleted
	} else {
		step.Status = model.StepFailed
	}

	if err := e.persist(ctx); err != nil {
		return false, err
	}

	stepStatus := model.StepEventCompleted
	if !success {
		stepStatus = model.StepEventFailed
	}
	if err := emit(model.NewStepEvent(stepStatus, step)); err != nil {
		return false, err
	}
	if step.Result != "" {
		return false, emit(model.NewMessage(model.RoleAssistant, step.Result))
	}
	return false, nil
}

func boolValue(doc map[string]any, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

const summarizePrompt = `You have finished the task; deliver the final result to the user.

Note:
- Explain the final result in detail.
- Use file tools to deliver generated files if necessary.

Return a JSON object with fields: message (string), attachments (array of sandbox file paths).`

// Summarize runs the terminal turn after every step is done, emitting
// one Message and returning the sandbox file paths it wants delivered
// to the user (spec §4.3, §4.4 rule 5). Resolving those paths to
// FileInfo and syncing them to storage is the Task Runner's job
// (sync_to_storage, spec §4.5), not the agent's.
func (e *ExecutionAgent) Summarize(ctx context.Context, emit func(model.Event) error) ([]string, error) {
	var finalText string
	err := e.execute(ctx, summarizePrompt, func(ev model.Event) error {
		if ev.Type == model.EventMessage {
			finalText = ev.Content
			return nil
		}
		return emit(ev)
	})
	if err != nil {
		return nil, err
	}

	doc, err := decodeAndValidate(finalText, e.summarizeSchema)
	if err != nil {
		return nil, apperr.ServerError(err, "execution: summarize response")
	}

	var paths []string
	for _, raw := range sliceField(doc, "attachments") {
		if path, ok := raw.(string); ok {
			paths = append(paths, path)
		}
	}

	if err := e.persist(ctx); err != nil {
		return nil, err
	}
	if err := emit(model.NewMessage(model.RoleAssistant, stringField(doc, "message"))); err != nil {
		return nil, err
	}
	return paths, nil
}
