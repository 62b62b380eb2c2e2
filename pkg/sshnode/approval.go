package sshnode

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsforge/agentcore/pkg/apperr"
	"github.com/opsforge/agentcore/pkg/model"
)

// RequestApproval records a pending SSHCommandApproval for an
// AI-issued command on a node that requires approval. Called by the
// ssh_node_exec tool (pkg/tool) when node.SSHRequireApproval is set.
func (s *Service) RequestApproval(ctx context.Context, sessionID, nodeID, command, toolCallID string) (*model.SSHCommandApproval, error) {
	approval := &model.SSHCommandApproval{
		ID:                    uuid.NewString(),
		NodeID:                nodeID,
		SessionID:             sessionID,
		Command:               command,
		Status:                model.ApprovalPending,
		RequestedByToolCallID: toolCallID,
		CreatedAt:             time.Now().UTC(),
	}
	if err := s.approvals.Save(ctx, approval); err != nil {
		return nil, apperr.ServerError(err, "save ssh approval")
	}
	return approval, nil
}

// Approve transitions a pending approval to approved and, once
// recorded, executes the approved command against its node
// (Source = approval). Repeating an already-decided approval is
// idempotent: it returns the existing decision rather than erroring.
func (s *Service) Approve(ctx context.Context, userID, approvalID string) (*model.SSHCommandApproval, *model.SSHOperationLog, error) {
	approval, applied, err := s.decide(ctx, approvalID, model.ApprovalApproved)
	if err != nil {
		return nil, nil, err
	}
	if !applied {
		return approval, nil, nil
	}

	node, err := s.nodes.FindByID(ctx, approval.NodeID)
	if err != nil {
		return approval, nil, apperr.ServerError(err, "find ssh node")
	}
	if node == nil || node.UserID != userID {
		return approval, nil, apperr.NotFound("ssh node %s", approval.NodeID)
	}

	entry := s.execute(ctx, node, approval.Command, model.ActorAssistant, model.SourceApproval)
	return approval, entry, nil
}

// Reject transitions a pending approval to rejected without running
// the command. Idempotent like Approve.
func (s *Service) Reject(ctx context.Context, approvalID string) (*model.SSHCommandApproval, error) {
	approval, _, err := s.decide(ctx, approvalID, model.ApprovalRejected)
	return approval, err
}

// decide applies to on a pending approval, returning applied=false
// (not an error) when the approval was already decided — the caller
// is told "already_<state>" by reading approval.Status, matching
// spec §8's idempotent-decision invariant.
func (s *Service) decide(ctx context.Context, approvalID string, to model.ApprovalStatus) (*model.SSHCommandApproval, bool, error) {
	approval, err := s.approvals.FindByID(ctx, approvalID)
	if err != nil {
		return nil, false, apperr.ServerError(err, "find ssh approval")
	}
	if approval == nil {
		return nil, false, apperr.NotFound("ssh approval %s", approvalID)
	}
	if approval.Status != model.ApprovalPending {
		s.log.Info("ssh approval: already decided", "approval_id", approvalID, "status", approval.Status)
		return approval, false, nil
	}

	now := time.Now().UTC()
	approval.Status = to
	approval.DecidedAt = &now
	if err := s.approvals.Save(ctx, approval); err != nil {
		return nil, false, apperr.ServerError(err, "save ssh approval decision")
	}
	return approval, true, nil
}

// DecisionLabel renders an already-decided approval's status the way
// the approve/reject tool surface reports a repeat decision
// ("already_approved" / "already_rejected").
func DecisionLabel(status model.ApprovalStatus) string {
	return fmt.Sprintf("already_%s", status)
}
