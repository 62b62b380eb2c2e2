package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/agentcore/pkg/model"
)

func seedAgent(t *testing.T, repo *PostgresAgentRepository) string {
	t.Helper()
	agent := model.NewAgent(uuid.NewString(), "claude-sonnet-4", 0.2, 4096)
	require.NoError(t, repo.Save(context.Background(), agent))
	return agent.ID
}

func TestSessionRepositorySaveAndFind(t *testing.T) {
	pool := newTestPool(t)
	sessions := NewSessionRepository(pool)
	agentID := seedAgent(t, NewAgentRepository(pool))

	s := model.NewSession(uuid.NewString(), "user-1", agentID, model.SessionChat)
	s.Events = append(s.Events, model.NewMessage(model.RoleUser, "hello"))
	require.NoError(t, sessions.Save(context.Background(), s))

	found, err := sessions.FindByID(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "user-1", found.UserID)
	require.Len(t, found.Events, 1)
	assert.Equal(t, "hello", found.Events[0].Content)
}

func TestSessionRepositoryFindByIDAndUserIDWrongOwnerReturnsNilNotError(t *testing.T) {
	pool := newTestPool(t)
	sessions := NewSessionRepository(pool)
	agentID := seedAgent(t, NewAgentRepository(pool))

	s := model.NewSession(uuid.NewString(), "owner", agentID, model.SessionChat)
	require.NoError(t, sessions.Save(context.Background(), s))

	found, err := sessions.FindByIDAndUserID(context.Background(), s.ID, "someone-else")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = sessions.FindByIDAndUserID(context.Background(), s.ID, "owner")
	require.NoError(t, err)
	require.NotNil(t, found)
}

func TestSessionRepositoryFindByIDMissingReturnsNilNotError(t *testing.T) {
	pool := newTestPool(t)
	sessions := NewSessionRepository(pool)

	found, err := sessions.FindByID(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSessionRepositoryAddEventAppends(t *testing.T) {
	pool := newTestPool(t)
	sessions := NewSessionRepository(pool)
	agentID := seedAgent(t, NewAgentRepository(pool))

	s := model.NewSession(uuid.NewString(), "user-1", agentID, model.SessionChat)
	require.NoError(t, sessions.Save(context.Background(), s))

	require.NoError(t, sessions.AddEvent(context.Background(), s.ID, model.NewMessage(model.RoleUser, "first")))
	require.NoError(t, sessions.AddEvent(context.Background(), s.ID, model.NewMessage(model.RoleAssistant, "second")))

	found, err := sessions.FindByID(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, found.Events, 2)
	assert.Equal(t, "first", found.Events[0].Content)
	assert.Equal(t, "second", found.Events[1].Content)
}

func TestSessionRepositoryUnreadMessageCounters(t *testing.T) {
	pool := newTestPool(t)
	sessions := NewSessionRepository(pool)
	agentID := seedAgent(t, NewAgentRepository(pool))

	s := model.NewSession(uuid.NewString(), "user-1", agentID, model.SessionChat)
	require.NoError(t, sessions.Save(context.Background(), s))

	require.NoError(t, sessions.IncrementUnreadMessageCount(context.Background(), s.ID))
	require.NoError(t, sessions.IncrementUnreadMessageCount(context.Background(), s.ID))
	found, err := sessions.FindByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.UnreadMessageCount)

	require.NoError(t, sessions.DecrementUnreadMessageCount(context.Background(), s.ID))
	require.NoError(t, sessions.DecrementUnreadMessageCount(context.Background(), s.ID))
	require.NoError(t, sessions.DecrementUnreadMessageCount(context.Background(), s.ID))
	found, err = sessions.FindByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, found.UnreadMessageCount, "decrement below zero must clamp")
}

func TestSessionRepositoryGetFileByPath(t *testing.T) {
	pool := newTestPool(t)
	sessions := NewSessionRepository(pool)
	agentID := seedAgent(t, NewAgentRepository(pool))

	s := model.NewSession(uuid.NewString(), "user-1", agentID, model.SessionChat)
	require.NoError(t, sessions.Save(context.Background(), s))

	file := model.FileInfo{FileID: uuid.NewString(), Filename: "report.txt", FilePath: "/workspace/report.txt", UserID: "user-1"}
	require.NoError(t, sessions.AddFile(context.Background(), s.ID, file))

	found, err := sessions.GetFileByPath(context.Background(), s.ID, "/workspace/report.txt")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, file.FileID, found.FileID)

	missing, err := sessions.GetFileByPath(context.Background(), s.ID, "/workspace/missing.txt")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessionRepositoryGetAllFiltersByType(t *testing.T) {
	pool := newTestPool(t)
	sessions := NewSessionRepository(pool)
	agentID := seedAgent(t, NewAgentRepository(pool))

	chat := model.NewSession(uuid.NewString(), "user-1", agentID, model.SessionChat)
	ticket := model.NewSession(uuid.NewString(), "user-1", agentID, model.SessionTicket)
	require.NoError(t, sessions.Save(context.Background(), chat))
	require.NoError(t, sessions.Save(context.Background(), ticket))

	chatType := model.SessionChat
	onlyChat, err := sessions.GetAll(context.Background(), &chatType)
	require.NoError(t, err)
	for _, s := range onlyChat {
		assert.Equal(t, model.SessionChat, s.SessionType)
	}

	all, err := sessions.GetAll(context.Background(), nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 2)
}
