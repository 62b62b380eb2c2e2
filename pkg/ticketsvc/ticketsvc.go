// Package ticketsvc implements the Ticket Dispatcher (spec §4.6
// extension, component C8, SPEC_FULL.md §D.3): the application-level
// entry point that pairs a support ticket with a fresh agent session
// and asynchronously drives the agent over it whenever the ticket is
// created or a user replies. It is a near-direct port of
// original_source/application/services/ticket_service.py's
// TicketService, trimmed to the SLA fields SPEC_FULL.md §D.3 actually
// carries forward (first_response_at, reopen_count — not
// estimated/spent minutes or sla_due_at, which the distillation
// dropped and this port does not reintroduce).
package ticketsvc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsforge/agentcore/pkg/apperr"
	"github.com/opsforge/agentcore/pkg/coordinator"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/store"
)

// AgentCoordinator is the subset of *coordinator.Coordinator the
// dispatcher drives: one fresh session per ticket, and one
// fire-and-forget chat turn per dispatch.
type AgentCoordinator interface {
	CreateSession(ctx context.Context, userID string) (*model.Session, error)
	Chat(ctx context.Context, req coordinator.ChatRequest, emit func(model.Event) error) error
}

// Dispatcher is the C8 Ticket Dispatcher.
type Dispatcher struct {
	tickets store.TicketRepository
	agents  AgentCoordinator
	log     *slog.Logger
}

// New builds a Dispatcher over tickets and agents.
func New(tickets store.TicketRepository, agents AgentCoordinator) *Dispatcher {
	return &Dispatcher{tickets: tickets, agents: agents, log: slog.Default().With("component", "ticketsvc")}
}

// CreateTicketInput collects CreateTicket's optional fields (spec
// §4.6 extension, mirroring TicketService.create_ticket's parameters).
type CreateTicketInput struct {
	Title       string
	Description string
	NodeIDs     []string
	PluginIDs   []string
	Tags        []string
	Priority    model.TicketPriority
	Urgency     string
}

// CreateTicket validates title/description, allocates a fresh session
// for the ticket, persists the ticket bound to it, and kicks off an
// asynchronous dispatch turn — mirroring create_ticket's
// asyncio.create_task(self._dispatch_to_ai(...)) fire-and-forget call.
func (d *Dispatcher) CreateTicket(ctx context.Context, userID string, in CreateTicketInput) (*model.Ticket, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" {
		return nil, apperr.BadRequest("ticket title is required")
	}
	if description == "" {
		return nil, apperr.BadRequest("ticket description is required")
	}

	session, err := d.agents.CreateSession(ctx, userID)
	if err != nil {
		return nil, apperr.ServerError(err, "create session for ticket")
	}

	now := time.Now().UTC()
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	ticket := &model.Ticket{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      model.TicketOpen,
		Priority:    priority,
		Urgency:     in.Urgency,
		Tags:        cleanTags(in.Tags),
		NodeIDs:     in.NodeIDs,
		PluginIDs:   in.PluginIDs,
		SessionID:   session.ID,
		Comments: []model.TicketComment{
			{ID: uuid.NewString(), AuthorID: "system", Body: "Ticket created and assigned to AI", CreatedAt: now},
		},
		Events: []model.TicketEvent{
			{ID: uuid.NewString(), Kind: "created", CreatedAt: now},
			{ID: uuid.NewString(), Kind: "linked_session", To: session.ID, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.tickets.Save(ctx, ticket); err != nil {
		return nil, apperr.ServerError(err, "save ticket")
	}

	go d.dispatch(ticket.ID, userID, dispatchPrompt(ticket))
	return ticket, nil
}

// ReplyTicket appends a user comment, reopens dispatch, and kicks off
// another asynchronous agent turn carrying the reply (mirroring
// reply_ticket).
func (d *Dispatcher) ReplyTicket(ctx context.Context, ticketID, userID, message string) (*model.Ticket, error) {
	ticket, err := d.ownedTicket(ctx, ticketID, userID)
	if err != nil {
		return nil, err
	}
	clean := strings.TrimSpace(message)
	if clean == "" {
		return nil, apperr.BadRequest("reply message is required")
	}

	now := time.Now().UTC()
	ticket.Comments = append(ticket.Comments, model.TicketComment{ID: uuid.NewString(), AuthorID: userID, Body: clean, CreatedAt: now})
	ticket.Events = append(ticket.Events, model.TicketEvent{ID: uuid.NewString(), Kind: "user_replied", CreatedAt: now})
	ticket.Status = model.TicketInProgress
	ticket.UpdatedAt = now
	if err := d.tickets.Save(ctx, ticket); err != nil {
		return nil, apperr.ServerError(err, "save ticket")
	}

	prompt := fmt.Sprintf("Ticket %s has an update from the user. Please check and continue processing.\n\nUser reply:\n%s", ticket.ID, clean)
	go d.dispatch(ticket.ID, userID, prompt)
	return ticket, nil
}

// GetTicket returns ticketID, requiring it belong to userID.
func (d *Dispatcher) GetTicket(ctx context.Context, ticketID, userID string) (*model.Ticket, error) {
	return d.ownedTicket(ctx, ticketID, userID)
}

// ListTickets returns every ticket belonging to userID.
func (d *Dispatcher) ListTickets(ctx context.Context, userID string) ([]*model.Ticket, error) {
	tickets, err := d.tickets.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.ServerError(err, "list tickets")
	}
	return tickets, nil
}

// GetTicketBySession returns the ticket bound to sessionID, if any —
// used by the ticket_get/ticket_update_status/ticket_reply tools
// (pkg/tool) to resolve the ticket for their own session.
func (d *Dispatcher) GetTicketBySession(ctx context.Context, sessionID string) (*model.Ticket, error) {
	ticket, err := d.tickets.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperr.ServerError(err, "find ticket by session")
	}
	return ticket, nil
}

func (d *Dispatcher) ownedTicket(ctx context.Context, ticketID, userID string) (*model.Ticket, error) {
	ticket, err := d.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, apperr.ServerError(err, "find ticket")
	}
	if ticket == nil || ticket.UserID != userID {
		return nil, apperr.NotFound("ticket %s", ticketID)
	}
	return ticket, nil
}

// dispatch marks the ticket InProgress and drives one chat turn over
// its bound session with message, rolling back to Open with a
// system comment recording the failure if the turn errors. Runs in its
// own goroutine from CreateTicket/ReplyTicket, mirroring
// _dispatch_to_ai's asyncio.create_task fire-and-forget.
func (d *Dispatcher) dispatch(ticketID, userID, message string) {
	ctx := context.Background()
	ticket, err := d.tickets.FindByID(ctx, ticketID)
	if err != nil || ticket == nil {
		d.log.Warn("dispatch: ticket vanished before dispatch", "ticket_id", ticketID, "error", err)
		return
	}

	now := time.Now().UTC()
	ticket.Status = model.TicketInProgress
	ticket.Events = append(ticket.Events, model.TicketEvent{ID: uuid.NewString(), Kind: "auto_dispatched", CreatedAt: now})
	ticket.UpdatedAt = now
	if err := d.tickets.Save(ctx, ticket); err != nil {
		d.log.Warn("dispatch: mark in-progress failed", "ticket_id", ticketID, "error", err)
	}

	req := coordinator.ChatRequest{SessionID: ticket.SessionID, UserID: userID, Message: message}
	chatErr := d.agents.Chat(ctx, req, func(model.Event) error { return nil })
	if chatErr == nil {
		return
	}

	d.log.Error("dispatch failed", "ticket_id", ticketID, "error", chatErr)
	latest, err := d.tickets.FindByID(ctx, ticketID)
	if err != nil || latest == nil {
		return
	}
	failedAt := time.Now().UTC()
	// model.TicketStatus has no dedicated "waiting on user" state (the
	// original's WAITING_USER); Open is the closest existing status for
	// "back in the human queue," so dispatch failures return there.
	latest.Status = model.TicketOpen
	latest.Comments = append(latest.Comments, model.TicketComment{
		ID: uuid.NewString(), AuthorID: "system", Body: fmt.Sprintf("AI dispatch failed: %v", chatErr), CreatedAt: failedAt,
	})
	latest.Events = append(latest.Events, model.TicketEvent{ID: uuid.NewString(), Kind: "ai_responded", CreatedAt: failedAt})
	latest.UpdatedAt = failedAt
	if err := d.tickets.Save(ctx, latest); err != nil {
		d.log.Warn("dispatch: save failure state failed", "ticket_id", ticketID, "error", err)
	}
}

func dispatchPrompt(t *model.Ticket) string {
	nodes := "(none)"
	if len(t.NodeIDs) > 0 {
		nodes = strings.Join(t.NodeIDs, ", ")
	}
	plugins := "(none)"
	if len(t.PluginIDs) > 0 {
		plugins = strings.Join(t.PluginIDs, ", ")
	}
	tags := "(none)"
	if len(t.Tags) > 0 {
		tags = strings.Join(t.Tags, ", ")
	}
	return fmt.Sprintf(
		"Please check ticket [%s] and solve it.\n\nTitle: %s\nDescription: %s\nPriority: %s\nUrgency: %s\nTags: %s\nRelated nodes: %s\nRelated plugins: %s\n\nYou can use ticket tools to read/update/reply this ticket.",
		t.ID, t.Title, t.Description, t.Priority, t.Urgency, tags, nodes, plugins,
	)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
