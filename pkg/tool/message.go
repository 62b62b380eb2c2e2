package tool

import (
	"context"
	"encoding/json"

	"github.com/opsforge/agentcore/pkg/model"
)

const messageSchema = `{"type":"object","properties":{` +
	`"question":{"type":"string","description":"question or status update to show the user"}` +
	`},"required":["question"]}`

// MessageTool is "message_ask_user" (spec §4.3): the ExecutionAgent
// intercepts this call specially around its Calling/Called lifecycle
// (emitting an assistant Message, then a Wait on Called), but the
// tool itself simply echoes the question back as its result so the
// generic tool-dispatch path stays uniform.
type MessageTool struct{}

// NewMessageTool builds a MessageTool.
func NewMessageTool() *MessageTool { return &MessageTool{} }

func (t *MessageTool) Name() string { return "message_ask_user" }
func (t *MessageTool) Description() string {
	return "Ask the user a question or share a status update, then wait for their reply."
}
func (t *MessageTool) Schema() string { return messageSchema }

func (t *MessageTool) Invoke(_ context.Context, argsJSON string) (*model.ToolResult, error) {
	var args struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	if args.Question == "" {
		return errorResult("'question' is required"), nil
	}
	return &model.ToolResult{Success: true, Message: args.Question}, nil
}
