package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opsforge/agentcore/pkg/model"
)

// PostgresAgentRepository implements AgentRepository over the shared pool.
type PostgresAgentRepository struct {
	pool *Pool
}

var _ AgentRepository = (*PostgresAgentRepository)(nil)

// NewAgentRepository builds a PostgresAgentRepository over pool.
func NewAgentRepository(pool *Pool) *PostgresAgentRepository {
	return &PostgresAgentRepository{pool: pool}
}

func (r *PostgresAgentRepository) Save(ctx context.Context, a *model.Agent) error {
	memories, err := json.Marshal(a.Memories)
	if err != nil {
		return fmt.Errorf("store: marshal memories: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO agents (id, model_name, temperature, max_tokens, memories, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			model_name = EXCLUDED.model_name,
			temperature = EXCLUDED.temperature,
			max_tokens = EXCLUDED.max_tokens,
			memories = EXCLUDED.memories,
			updated_at = EXCLUDED.updated_at
	`, a.ID, a.ModelName, a.Temperature, a.MaxTokens, memories, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save agent: %w", err)
	}
	return nil
}

func (r *PostgresAgentRepository) FindByID(ctx context.Context, id string) (*model.Agent, error) {
	var a model.Agent
	var memories []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, model_name, temperature, max_tokens, memories, created_at, updated_at
		FROM agents WHERE id = $1
	`, id).Scan(&a.ID, &a.ModelName, &a.Temperature, &a.MaxTokens, &memories, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find agent: %w", err)
	}
	if err := json.Unmarshal(memories, &a.Memories); err != nil {
		return nil, fmt.Errorf("store: unmarshal memories: %w", err)
	}
	return &a, nil
}

func (r *PostgresAgentRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete agent: %w", err)
	}
	return nil
}
