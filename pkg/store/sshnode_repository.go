package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opsforge/agentcore/pkg/model"
)

// PostgresSSHNodeRepository implements SSHNodeRepository over the shared pool.
type PostgresSSHNodeRepository struct {
	pool *Pool
}

var _ SSHNodeRepository = (*PostgresSSHNodeRepository)(nil)

// NewSSHNodeRepository builds a PostgresSSHNodeRepository over pool.
func NewSSHNodeRepository(pool *Pool) *PostgresSSHNodeRepository {
	return &PostgresSSHNodeRepository{pool: pool}
}

func (r *PostgresSSHNodeRepository) Save(ctx context.Context, n *model.SSHNode) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO server_nodes (
			id, user_id, name, ssh_enabled, ssh_host, ssh_port, ssh_username,
			ssh_auth_type, ssh_password, ssh_private_key, ssh_passphrase,
			ssh_require_approval, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			ssh_enabled = EXCLUDED.ssh_enabled,
			ssh_host = EXCLUDED.ssh_host,
			ssh_port = EXCLUDED.ssh_port,
			ssh_username = EXCLUDED.ssh_username,
			ssh_auth_type = EXCLUDED.ssh_auth_type,
			ssh_password = EXCLUDED.ssh_password,
			ssh_private_key = EXCLUDED.ssh_private_key,
			ssh_passphrase = EXCLUDED.ssh_passphrase,
			ssh_require_approval = EXCLUDED.ssh_require_approval,
			updated_at = EXCLUDED.updated_at
	`,
		n.ID, n.UserID, n.Name, n.SSHEnabled, n.SSHHost, n.SSHPort, n.SSHUsername,
		string(n.SSHAuthType), nullString(n.SSHPassword), nullString(n.SSHPrivateKey), nullString(n.SSHPassphrase),
		n.SSHRequireApproval, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save ssh node: %w", err)
	}
	return nil
}

func (r *PostgresSSHNodeRepository) FindByID(ctx context.Context, id string) (*model.SSHNode, error) {
	row := r.pool.QueryRow(ctx, sshNodeSelectColumns+` WHERE id = $1`, id)
	n, err := scanSSHNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find ssh node: %w", err)
	}
	return n, nil
}

func (r *PostgresSSHNodeRepository) FindByUserID(ctx context.Context, userID string) ([]*model.SSHNode, error) {
	rows, err := r.pool.Query(ctx, sshNodeSelectColumns+` WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list ssh nodes: %w", err)
	}
	defer rows.Close()

	var out []*model.SSHNode
	for rows.Next() {
		n, err := scanSSHNode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan ssh node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresSSHNodeRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM server_nodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete ssh node: %w", err)
	}
	return nil
}

// CountByUserID backs the MaxSSHNodesPerUser quota check (spec §4.7, §8).
func (r *PostgresSSHNodeRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM server_nodes WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count ssh nodes: %w", err)
	}
	return count, nil
}

const sshNodeSelectColumns = `
	SELECT id, user_id, name, ssh_enabled, ssh_host, ssh_port, ssh_username,
		ssh_auth_type, ssh_password, ssh_private_key, ssh_passphrase,
		ssh_require_approval, created_at, updated_at
	FROM server_nodes`

func scanSSHNode(row rowScanner) (*model.SSHNode, error) {
	var n model.SSHNode
	var password, privateKey, passphrase *string

	err := row.Scan(
		&n.ID, &n.UserID, &n.Name, &n.SSHEnabled, &n.SSHHost, &n.SSHPort, &n.SSHUsername,
		&n.SSHAuthType, &password, &privateKey, &passphrase,
		&n.SSHRequireApproval, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if password != nil {
		n.SSHPassword = *password
	}
	if privateKey != nil {
		n.SSHPrivateKey = *privateKey
	}
	if passphrase != nil {
		n.SSHPassphrase = *passphrase
	}
	return &n, nil
}
