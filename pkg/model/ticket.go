package model

import "time"

// TicketStatus is the lifecycle of a Ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
	TicketReopened   TicketStatus = "reopened"
)

// TicketPriority is the severity tier assigned to a ticket.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// TicketComment is a reply attached to a ticket, from either the
// reporting user or the agent acting through ticket_reply.
type TicketComment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketEvent records a status/priority/assignment transition for audit.
type TicketEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Ticket is a support request, bijectively bound to the Session the
// dispatcher created to resolve it. SLA fields and the comment/event
// sub-records are carried over from original_source/ (spec.md names
// the type but not these fields — see SPEC_FULL.md §D.3).
type Ticket struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Status          TicketStatus   `json:"status"`
	Priority        TicketPriority `json:"priority"`
	Urgency         string         `json:"urgency,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	NodeIDs         []string       `json:"node_ids,omitempty"`
	PluginIDs       []string       `json:"plugin_ids,omitempty"`
	SessionID       string         `json:"session_id"`
	Comments        []TicketComment `json:"comments,omitempty"`
	Events          []TicketEvent  `json:"events,omitempty"`
	FirstResponseAt *time.Time     `json:"first_response_at,omitempty"`
	ReopenCount     int            `json:"reopen_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// MarkFirstResponse sets FirstResponseAt on the first reply only.
func (t *Ticket) MarkFirstResponse(at time.Time) {
	if t.FirstResponseAt == nil {
		t.FirstResponseAt = &at
	}
}

// Reopen transitions a resolved/closed ticket back to Reopened,
// incrementing ReopenCount.
func (t *Ticket) Reopen(at time.Time) {
	t.Status = TicketReopened
	t.ReopenCount++
	t.UpdatedAt = at
}
