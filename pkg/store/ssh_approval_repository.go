package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opsforge/agentcore/pkg/model"
)

// PostgresSSHApprovalRepository implements SSHApprovalRepository.
type PostgresSSHApprovalRepository struct {
	pool *Pool
}

var _ SSHApprovalRepository = (*PostgresSSHApprovalRepository)(nil)

// NewSSHApprovalRepository builds a PostgresSSHApprovalRepository over pool.
func NewSSHApprovalRepository(pool *Pool) *PostgresSSHApprovalRepository {
	return &PostgresSSHApprovalRepository{pool: pool}
}

func (r *PostgresSSHApprovalRepository) Save(ctx context.Context, a *model.SSHCommandApproval) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ssh_command_approvals (
			id, node_id, session_id, command, status, requested_by_tool_call_id, created_at, decided_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			decided_at = EXCLUDED.decided_at
	`, a.ID, a.NodeID, a.SessionID, a.Command, string(a.Status), a.RequestedByToolCallID, a.CreatedAt, a.DecidedAt)
	if err != nil {
		return fmt.Errorf("store: save ssh approval: %w", err)
	}
	return nil
}

func (r *PostgresSSHApprovalRepository) FindByID(ctx context.Context, id string) (*model.SSHCommandApproval, error) {
	var a model.SSHCommandApproval
	err := r.pool.QueryRow(ctx, `
		SELECT id, node_id, session_id, command, status, requested_by_tool_call_id, created_at, decided_at
		FROM ssh_command_approvals WHERE id = $1
	`, id).Scan(&a.ID, &a.NodeID, &a.SessionID, &a.Command, &a.Status, &a.RequestedByToolCallID, &a.CreatedAt, &a.DecidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find ssh approval: %w", err)
	}
	return &a, nil
}
