package ticketsvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/agentcore/pkg/apperr"
	"github.com/opsforge/agentcore/pkg/coordinator"
	"github.com/opsforge/agentcore/pkg/model"
)

type fakeTickets struct {
	mu      sync.Mutex
	tickets map[string]*model.Ticket
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{tickets: map[string]*model.Ticket{}}
}

func (f *fakeTickets) Save(ctx context.Context, t *model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tickets[t.ID] = &cp
	return nil
}

func (f *fakeTickets) FindByID(ctx context.Context, id string) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTickets) FindBySessionID(ctx context.Context, sessionID string) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.SessionID == sessionID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeTickets) FindByUserID(ctx context.Context, userID string) ([]*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Ticket
	for _, t := range f.tickets {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeTickets) snapshot(id string) *model.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

type fakeCoordinator struct {
	mu        sync.Mutex
	sessionID string
	chatCalls []coordinator.ChatRequest
	chatErr   error
	chatDone  chan struct{}
}

func (c *fakeCoordinator) CreateSession(ctx context.Context, userID string) (*model.Session, error) {
	return model.NewSession(c.sessionID, userID, "agent-1", model.SessionTicket), nil
}

func (c *fakeCoordinator) Chat(ctx context.Context, req coordinator.ChatRequest, emit func(model.Event) error) error {
	c.mu.Lock()
	c.chatCalls = append(c.chatCalls, req)
	c.mu.Unlock()
	if c.chatDone != nil {
		defer close(c.chatDone)
	}
	return c.chatErr
}

func (c *fakeCoordinator) calls() []coordinator.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]coordinator.ChatRequest, len(c.chatCalls))
	copy(out, c.chatCalls)
	return out
}

func TestDispatcher_CreateTicket_RejectsBlankFields(t *testing.T) {
	d := New(newFakeTickets(), &fakeCoordinator{sessionID: "s1"})

	_, err := d.CreateTicket(context.Background(), "user-1", CreateTicketInput{Title: "  ", Description: "desc"})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = d.CreateTicket(context.Background(), "user-1", CreateTicketInput{Title: "title", Description: "  "})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestDispatcher_CreateTicket_BindsSessionAndDispatches(t *testing.T) {
	tickets := newFakeTickets()
	coord := &fakeCoordinator{sessionID: "s1", chatDone: make(chan struct{})}
	d := New(tickets, coord)

	ticket, err := d.CreateTicket(context.Background(), "user-1", CreateTicketInput{
		Title: "disk full", Description: "node-3 is out of space", NodeIDs: []string{"node-3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", ticket.SessionID)
	assert.Equal(t, model.TicketOpen, ticket.Status)
	require.Len(t, ticket.Comments, 1)
	require.Len(t, ticket.Events, 2)

	select {
	case <-coord.chatDone:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch goroutine never called Chat")
	}

	calls := coord.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "s1", calls[0].SessionID)
	assert.Contains(t, calls[0].Message, ticket.ID)

	saved := tickets.snapshot(ticket.ID)
	require.NotNil(t, saved)
	assert.Equal(t, model.TicketInProgress, saved.Status)
}

func TestDispatcher_CreateTicket_DispatchFailureRecordsSystemComment(t *testing.T) {
	tickets := newFakeTickets()
	coord := &fakeCoordinator{sessionID: "s2", chatErr: errors.New("llm unavailable"), chatDone: make(chan struct{})}
	d := New(tickets, coord)

	ticket, err := d.CreateTicket(context.Background(), "user-1", CreateTicketInput{Title: "t", Description: "d"})
	require.NoError(t, err)

	<-coord.chatDone
	require.Eventually(t, func() bool {
		saved := tickets.snapshot(ticket.ID)
		return saved != nil && saved.Status == model.TicketOpen && len(saved.Comments) == 2
	}, 2*time.Second, 10*time.Millisecond)

	saved := tickets.snapshot(ticket.ID)
	assert.Contains(t, saved.Comments[len(saved.Comments)-1].Body, "llm unavailable")
}

func TestDispatcher_ReplyTicket_RequiresOwnership(t *testing.T) {
	tickets := newFakeTickets()
	require.NoError(t, tickets.Save(context.Background(), &model.Ticket{ID: "t1", UserID: "owner", SessionID: "s1"}))
	d := New(tickets, &fakeCoordinator{sessionID: "s1"})

	_, err := d.ReplyTicket(context.Background(), "t1", "someone-else", "hello")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDispatcher_ReplyTicket_AppendsCommentAndRedispatches(t *testing.T) {
	tickets := newFakeTickets()
	require.NoError(t, tickets.Save(context.Background(), &model.Ticket{ID: "t1", UserID: "owner", SessionID: "s1", Status: model.TicketOpen}))
	coord := &fakeCoordinator{sessionID: "s1", chatDone: make(chan struct{})}
	d := New(tickets, coord)

	ticket, err := d.ReplyTicket(context.Background(), "t1", "owner", "  still broken  ")
	require.NoError(t, err)
	assert.Equal(t, model.TicketInProgress, ticket.Status)
	require.Len(t, ticket.Comments, 1)
	assert.Equal(t, "still broken", ticket.Comments[0].Body)

	<-coord.chatDone
	calls := coord.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Message, "still broken")
}

func TestDispatcher_GetTicket_NotFoundForOtherUser(t *testing.T) {
	tickets := newFakeTickets()
	require.NoError(t, tickets.Save(context.Background(), &model.Ticket{ID: "t1", UserID: "owner"}))
	d := New(tickets, &fakeCoordinator{})

	_, err := d.GetTicket(context.Background(), "t1", "not-owner")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	got, err := d.GetTicket(context.Background(), "t1", "owner")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
}
