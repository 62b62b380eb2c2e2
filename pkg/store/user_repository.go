package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresUserRepository implements UserRepository over the shared pool.
type PostgresUserRepository struct {
	pool *Pool
}

var _ UserRepository = (*PostgresUserRepository)(nil)

// NewUserRepository builds a PostgresUserRepository over pool.
func NewUserRepository(pool *Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.scanOne(ctx, `SELECT id, email, is_active FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(ctx, `SELECT id, email, is_active FROM users WHERE email = $1`, email)
}

func (r *PostgresUserRepository) scanOne(ctx context.Context, sql, arg string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, sql, arg).Scan(&u.ID, &u.Email, &u.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find user: %w", err)
	}
	return &u, nil
}
