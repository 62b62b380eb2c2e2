// Package store implements the Session/Event Store (spec §4.2,
// component C2) and its parallel repositories (User, Agent, Ticket,
// SSHNode/Approval/Log, MCP config) over PostgreSQL via pgx/v5. The
// Session Store is the only component any other may mutate state
// through (spec §2).
package store

import (
	"context"

	"github.com/opsforge/agentcore/pkg/model"
)

// SessionRepository is the C2 Session/Event Store contract (spec §4.2).
type SessionRepository interface {
	Save(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.Session, error)
	// FindByIDAndUserID returns (nil, nil) — not an error — when the
	// session exists but belongs to another user; authorization lives
	// in the calling layer (spec §4.2).
	FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	UpdateTitle(ctx context.Context, id, title string) error
	UpdateLatestMessage(ctx context.Context, id, message string) error
	AddEvent(ctx context.Context, id string, event model.Event) error
	AddFile(ctx context.Context, id string, file model.FileInfo) error
	RemoveFile(ctx context.Context, id, fileID string) error
	// GetFileByPath is a linear scan over files (spec §4.2).
	GetFileByPath(ctx context.Context, id, path string) (*model.FileInfo, error)
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error
	UpdateUnreadMessageCount(ctx context.Context, id string, count int) error
	IncrementUnreadMessageCount(ctx context.Context, id string) error
	DecrementUnreadMessageCount(ctx context.Context, id string) error
	UpdateSharedStatus(ctx context.Context, id string, shared bool) error
	UpdateSandboxID(ctx context.Context, id, sandboxID string) error
	UpdateTaskID(ctx context.Context, id, taskID string) error
	GetAll(ctx context.Context, sessionType *model.SessionType) ([]*model.Session, error)
}

// AgentRepository persists Agent aggregates (memories, model config).
type AgentRepository interface {
	Save(ctx context.Context, agent *model.Agent) error
	FindByID(ctx context.Context, id string) (*model.Agent, error)
	Delete(ctx context.Context, id string) error
}

// UserRepository is a minimal user lookup surface; authentication
// itself is out of scope (spec §1).
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// User is the minimal row the core needs to resolve ownership.
type User struct {
	ID       string
	Email    string
	IsActive bool
}

// TicketRepository persists Ticket aggregates (spec §3, SPEC_FULL.md §D.3).
type TicketRepository interface {
	Save(ctx context.Context, ticket *model.Ticket) error
	FindByID(ctx context.Context, id string) (*model.Ticket, error)
	FindBySessionID(ctx context.Context, sessionID string) (*model.Ticket, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.Ticket, error)
}

// SSHNodeRepository persists SSHNode aggregates; CountByUserID backs the
// per-user node quota that pkg/sshnode's Service.CreateNode enforces
// (spec §8, SPEC_FULL.md §D.4).
type SSHNodeRepository interface {
	Save(ctx context.Context, node *model.SSHNode) error
	FindByID(ctx context.Context, id string) (*model.SSHNode, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.SSHNode, error)
	Delete(ctx context.Context, id string) error
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// SSHOperationLogRepository appends SSH command execution records.
type SSHOperationLogRepository interface {
	Append(ctx context.Context, entry *model.SSHOperationLog) error
	FindByNodeID(ctx context.Context, nodeID string, limit int) ([]*model.SSHOperationLog, error)
}

// SSHApprovalRepository persists pending/decided approval records.
type SSHApprovalRepository interface {
	Save(ctx context.Context, approval *model.SSHCommandApproval) error
	FindByID(ctx context.Context, id string) (*model.SSHCommandApproval, error)
}

// MCPConfigRepository persists the raw MCP server configuration blob
// (spec §6's MCP config file, mirrored into storage for hot paths that
// don't read the filesystem directly).
type MCPConfigRepository interface {
	Save(ctx context.Context, userID string, configJSON []byte) error
	Load(ctx context.Context, userID string) ([]byte, error)
}
