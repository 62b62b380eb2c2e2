package store

import (
	"context"
	"fmt"

	"github.com/opsforge/agentcore/pkg/model"
)

// PostgresSSHOperationLogRepository implements SSHOperationLogRepository.
type PostgresSSHOperationLogRepository struct {
	pool *Pool
}

var _ SSHOperationLogRepository = (*PostgresSSHOperationLogRepository)(nil)

// NewSSHOperationLogRepository builds a PostgresSSHOperationLogRepository over pool.
func NewSSHOperationLogRepository(pool *Pool) *PostgresSSHOperationLogRepository {
	return &PostgresSSHOperationLogRepository{pool: pool}
}

func (r *PostgresSSHOperationLogRepository) Append(ctx context.Context, e *model.SSHOperationLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ssh_operation_logs (id, node_id, actor_type, source, command, output, success, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, e.ID, e.NodeID, string(e.ActorType), string(e.Source), e.Command, e.Output, e.Success, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: append ssh operation log: %w", err)
	}
	return nil
}

func (r *PostgresSSHOperationLogRepository) FindByNodeID(ctx context.Context, nodeID string, limit int) ([]*model.SSHOperationLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, node_id, actor_type, source, command, output, success, created_at
		FROM ssh_operation_logs WHERE node_id = $1 ORDER BY created_at DESC LIMIT $2
	`, nodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list ssh operation logs: %w", err)
	}
	defer rows.Close()

	var out []*model.SSHOperationLog
	for rows.Next() {
		var e model.SSHOperationLog
		if err := rows.Scan(&e.ID, &e.NodeID, &e.ActorType, &e.Source, &e.Command, &e.Output, &e.Success, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan ssh operation log: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
