// Package sshnode implements the SSH Approval Workflow (spec §4.7,
// component C9): SSHNode CRUD under a per-user quota, command execution
// over golang.org/x/crypto/ssh, the AI-initiated approval workflow, the
// user-takeover path, and the node overview/health probe — grounded in
// original_source/node_service.py and tools/ssh_node.py
// (SPEC_FULL.md §D.1, §D.2).
package sshnode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opsforge/agentcore/pkg/apperr"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/store"
)

// Service owns SSHNode CRUD, the per-user quota, and is the entry
// point the ssh_node_exec tool (pkg/tool) and the AI approval workflow
// both drive through.
type Service struct {
	nodes     store.SSHNodeRepository
	logs      store.SSHOperationLogRepository
	approvals store.SSHApprovalRepository
	sessions  store.SessionRepository
	runner    Runner
	log       *slog.Logger
}

// Runner executes a command against a node's SSH endpoint. Split out
// from Service so tests can substitute a fake transport instead of a
// real TCP connection.
type Runner interface {
	Run(ctx context.Context, node *model.SSHNode, command string) (output string, success bool, err error)
}

// NewService builds a Service over its repositories and a command Runner.
func NewService(nodes store.SSHNodeRepository, logs store.SSHOperationLogRepository, approvals store.SSHApprovalRepository, sessions store.SessionRepository, runner Runner) *Service {
	return &Service{nodes: nodes, logs: logs, approvals: approvals, sessions: sessions, runner: runner, log: slog.Default().With("component", "sshnode")}
}

// CreateNode registers a new SSHNode for userID, enforcing the 8-node
// per-user quota (spec §8 testable property, SPEC_FULL.md §D.4).
func (s *Service) CreateNode(ctx context.Context, userID string, node *model.SSHNode) (*model.SSHNode, error) {
	count, err := s.nodes.CountByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.ServerError(err, "count ssh nodes")
	}
	if count >= model.MaxSSHNodesPerUser {
		return nil, apperr.BadRequest("user already has the maximum of %d SSH nodes", model.MaxSSHNodesPerUser)
	}

	now := time.Now().UTC()
	node.ID = uuid.NewString()
	node.UserID = userID
	node.CreatedAt = now
	node.UpdatedAt = now
	if node.SSHPort == 0 {
		node.SSHPort = model.DefaultSSHPort
	}

	if err := s.nodes.Save(ctx, node); err != nil {
		return nil, apperr.ServerError(err, "save ssh node")
	}
	return node, nil
}

// DeleteNode removes a node owned by userID.
func (s *Service) DeleteNode(ctx context.Context, userID, nodeID string) error {
	node, err := s.nodes.FindByID(ctx, nodeID)
	if err != nil {
		return apperr.ServerError(err, "find ssh node")
	}
	if node == nil || node.UserID != userID {
		return apperr.NotFound("ssh node %s", nodeID)
	}
	if err := s.nodes.Delete(ctx, nodeID); err != nil {
		return apperr.ServerError(err, "delete ssh node")
	}
	return nil
}

// ListNodes returns all nodes owned by userID.
func (s *Service) ListNodes(ctx context.Context, userID string) ([]*model.SSHNode, error) {
	nodes, err := s.nodes.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.ServerError(err, "list ssh nodes")
	}
	return nodes, nil
}

// RunDirect executes command on nodeID as a direct user action
// (OperationSource = direct). When syncToAI is set and sessionID is
// non-empty, a synthetic user-role Message is
// appended to the session so the agent's memory stays coherent with
// what the human just did on the node (spec §4.7 "User takeover path",
// SPEC_FULL.md §D.2).
func (s *Service) RunDirect(ctx context.Context, userID, nodeID, command, sessionID string, syncToAI bool) (*model.SSHOperationLog, error) {
	node, err := s.nodes.FindByID(ctx, nodeID)
	if err != nil {
		return nil, apperr.ServerError(err, "find ssh node")
	}
	if node == nil || node.UserID != userID {
		return nil, apperr.NotFound("ssh node %s", nodeID)
	}

	entry := s.execute(ctx, node, command, model.ActorUser, model.SourceDirect)

	if syncToAI && sessionID != "" {
		msg := model.NewMessage(model.RoleUser, fmt.Sprintf(
			"[direct ssh on %s] $ %s\n%s", node.Name, command, entry.Output))
		if err := s.sessions.AddEvent(ctx, sessionID, msg); err != nil {
			s.log.Warn("ssh takeover: failed to sync session", "session_id", sessionID, "error", err)
		}
	}
	return entry, nil
}

// execute runs command against node, logs the operation, and returns
// the persisted log entry. Logging failures never mask the exec result.
func (s *Service) execute(ctx context.Context, node *model.SSHNode, command string, actor model.ActorType, source model.OperationSource) *model.SSHOperationLog {
	output, success, err := s.runner.Run(ctx, node, command)
	if err != nil {
		output = err.Error()
		success = false
	}

	entry := &model.SSHOperationLog{
		ID:        uuid.NewString(),
		NodeID:    node.ID,
		ActorType: actor,
		Source:    source,
		Command:   command,
		Output:    output,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		s.log.Warn("ssh: failed to append operation log", "node_id", node.ID, "error", err)
	}
	return entry
}
