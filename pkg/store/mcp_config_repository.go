package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// PostgresMCPConfigRepository implements MCPConfigRepository.
type PostgresMCPConfigRepository struct {
	pool *Pool
}

var _ MCPConfigRepository = (*PostgresMCPConfigRepository)(nil)

// NewMCPConfigRepository builds a PostgresMCPConfigRepository over pool.
func NewMCPConfigRepository(pool *Pool) *PostgresMCPConfigRepository {
	return &PostgresMCPConfigRepository{pool: pool}
}

func (r *PostgresMCPConfigRepository) Save(ctx context.Context, userID string, configJSON []byte) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO mcp_configs (user_id, config_json, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET config_json = EXCLUDED.config_json, updated_at = EXCLUDED.updated_at
	`, userID, configJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save mcp config: %w", err)
	}
	return nil
}

func (r *PostgresMCPConfigRepository) Load(ctx context.Context, userID string) ([]byte, error) {
	var configJSON []byte
	err := r.pool.QueryRow(ctx, `SELECT config_json FROM mcp_configs WHERE user_id = $1`, userID).Scan(&configJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load mcp config: %w", err)
	}
	return configJSON, nil
}
