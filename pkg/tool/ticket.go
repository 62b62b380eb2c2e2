package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/store"
)

// Ticket tools let the agent inspect and drive the ticket bound to its
// own session (SPEC_FULL.md §D.3): one per Ticket Dispatcher operation
// an agent is allowed to trigger itself, distinct from the Ticket
// Dispatcher's own create/assign path (pkg/ticketsvc).

const ticketGetSchema = `{"type":"object","properties":{}}`

// TicketGetTool returns the ticket bound to the tool's session, if any.
type TicketGetTool struct {
	tickets   store.TicketRepository
	sessionID string
}

// NewTicketGetTool builds a TicketGetTool bound to sessionID.
func NewTicketGetTool(tickets store.TicketRepository, sessionID string) *TicketGetTool {
	return &TicketGetTool{tickets: tickets, sessionID: sessionID}
}

func (t *TicketGetTool) Name() string        { return "ticket_get" }
func (t *TicketGetTool) Description() string { return "Fetch the support ticket for this session." }
func (t *TicketGetTool) Schema() string      { return ticketGetSchema }

func (t *TicketGetTool) Invoke(ctx context.Context, _ string) (*model.ToolResult, error) {
	ticket, err := t.tickets.FindBySessionID(ctx, t.sessionID)
	if err != nil {
		return errorResult("find ticket failed: %v", err), nil
	}
	if ticket == nil {
		return &model.ToolResult{Success: false, Message: "no ticket is bound to this session"}, nil
	}
	return &model.ToolResult{Success: true, Message: string(ticket.Status), Data: ticket}, nil
}

const ticketUpdateStatusSchema = `{"type":"object","properties":{` +
	`"status":{"type":"string","enum":["open","in_progress","resolved","closed","reopened"]}` +
	`},"required":["status"]}`

// TicketUpdateStatusTool transitions the session's ticket to a new
// status (SPEC_FULL.md §D.3). It only records the status; nothing in
// pkg/ticketsvc reacts to a resolved or closed ticket.
type TicketUpdateStatusTool struct {
	tickets   store.TicketRepository
	sessionID string
}

// NewTicketUpdateStatusTool builds a TicketUpdateStatusTool bound to sessionID.
func NewTicketUpdateStatusTool(tickets store.TicketRepository, sessionID string) *TicketUpdateStatusTool {
	return &TicketUpdateStatusTool{tickets: tickets, sessionID: sessionID}
}

func (t *TicketUpdateStatusTool) Name() string        { return "ticket_update_status" }
func (t *TicketUpdateStatusTool) Description() string { return "Change the status of this session's ticket." }
func (t *TicketUpdateStatusTool) Schema() string      { return ticketUpdateStatusSchema }

func (t *TicketUpdateStatusTool) Invoke(ctx context.Context, argsJSON string) (*model.ToolResult, error) {
	var args struct {
		Status model.TicketStatus `json:"status"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	if args.Status == "" {
		return errorResult("'status' is required"), nil
	}

	ticket, err := t.tickets.FindBySessionID(ctx, t.sessionID)
	if err != nil {
		return errorResult("find ticket failed: %v", err), nil
	}
	if ticket == nil {
		return &model.ToolResult{Success: false, Message: "no ticket is bound to this session"}, nil
	}

	now := time.Now().UTC()
	from := ticket.Status
	if args.Status == model.TicketReopened {
		ticket.Reopen(now)
	} else {
		ticket.Status = args.Status
		ticket.UpdatedAt = now
	}
	ticket.Events = append(ticket.Events, model.TicketEvent{
		ID: uuid.NewString(), Kind: "status_change",
		From: string(from), To: string(ticket.Status), CreatedAt: now,
	})

	if err := t.tickets.Save(ctx, ticket); err != nil {
		return errorResult("save ticket failed: %v", err), nil
	}
	return &model.ToolResult{
		Success: true,
		Message: fmt.Sprintf("status changed from %s to %s", from, ticket.Status),
		Data:    map[string]any{"status": string(ticket.Status)},
	}, nil
}

const ticketReplySchema = `{"type":"object","properties":{` +
	`"body":{"type":"string"}` +
	`},"required":["body"]}`

// TicketReplyTool appends an agent-authored comment to the session's
// ticket, marking FirstResponseAt on the first reply (SLA tracking,
// SPEC_FULL.md §D.3).
type TicketReplyTool struct {
	tickets   store.TicketRepository
	sessionID string
}

// NewTicketReplyTool builds a TicketReplyTool bound to sessionID.
func NewTicketReplyTool(tickets store.TicketRepository, sessionID string) *TicketReplyTool {
	return &TicketReplyTool{tickets: tickets, sessionID: sessionID}
}

func (t *TicketReplyTool) Name() string        { return "ticket_reply" }
func (t *TicketReplyTool) Description() string { return "Post a reply on this session's ticket." }
func (t *TicketReplyTool) Schema() string      { return ticketReplySchema }

func (t *TicketReplyTool) Invoke(ctx context.Context, argsJSON string) (*model.ToolResult, error) {
	var args struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	if args.Body == "" {
		return errorResult("'body' is required"), nil
	}

	ticket, err := t.tickets.FindBySessionID(ctx, t.sessionID)
	if err != nil {
		return errorResult("find ticket failed: %v", err), nil
	}
	if ticket == nil {
		return &model.ToolResult{Success: false, Message: "no ticket is bound to this session"}, nil
	}

	now := time.Now().UTC()
	ticket.Comments = append(ticket.Comments, model.TicketComment{
		ID: uuid.NewString(), AuthorID: "assistant", Body: args.Body, CreatedAt: now,
	})
	ticket.MarkFirstResponse(now)
	ticket.UpdatedAt = now

	if err := t.tickets.Save(ctx, ticket); err != nil {
		return errorResult("save ticket reply failed: %v", err), nil
	}
	return &model.ToolResult{Success: true, Message: "reply posted"}, nil
}
