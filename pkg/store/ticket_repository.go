package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opsforge/agentcore/pkg/model"
)

// PostgresTicketRepository implements TicketRepository over the shared pool.
type PostgresTicketRepository struct {
	pool *Pool
}

var _ TicketRepository = (*PostgresTicketRepository)(nil)

// NewTicketRepository builds a PostgresTicketRepository over pool.
func NewTicketRepository(pool *Pool) *PostgresTicketRepository {
	return &PostgresTicketRepository{pool: pool}
}

func (r *PostgresTicketRepository) Save(ctx context.Context, t *model.Ticket) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("store: marshal tags: %w", err)
	}
	nodeIDs, err := json.Marshal(t.NodeIDs)
	if err != nil {
		return fmt.Errorf("store: marshal node ids: %w", err)
	}
	pluginIDs, err := json.Marshal(t.PluginIDs)
	if err != nil {
		return fmt.Errorf("store: marshal plugin ids: %w", err)
	}
	comments, err := json.Marshal(t.Comments)
	if err != nil {
		return fmt.Errorf("store: marshal comments: %w", err)
	}
	events, err := json.Marshal(t.Events)
	if err != nil {
		return fmt.Errorf("store: marshal ticket events: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO tickets (
			id, user_id, title, description, status, priority, urgency,
			tags, node_ids, plugin_ids, session_id, comments_json, events_json,
			first_response_at, reopen_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			urgency = EXCLUDED.urgency,
			tags = EXCLUDED.tags,
			node_ids = EXCLUDED.node_ids,
			plugin_ids = EXCLUDED.plugin_ids,
			comments_json = EXCLUDED.comments_json,
			events_json = EXCLUDED.events_json,
			first_response_at = EXCLUDED.first_response_at,
			reopen_count = EXCLUDED.reopen_count,
			updated_at = EXCLUDED.updated_at
	`,
		t.ID, t.UserID, t.Title, t.Description, string(t.Status), string(t.Priority), nullString(t.Urgency),
		tags, nodeIDs, pluginIDs, t.SessionID, comments, events,
		t.FirstResponseAt, t.ReopenCount, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save ticket: %w", err)
	}
	return nil
}

func (r *PostgresTicketRepository) FindByID(ctx context.Context, id string) (*model.Ticket, error) {
	return r.scanOne(ctx, ticketSelectColumns+` WHERE id = $1`, id)
}

func (r *PostgresTicketRepository) FindBySessionID(ctx context.Context, sessionID string) (*model.Ticket, error) {
	return r.scanOne(ctx, ticketSelectColumns+` WHERE session_id = $1`, sessionID)
}

func (r *PostgresTicketRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Ticket, error) {
	rows, err := r.pool.Query(ctx, ticketSelectColumns+` WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list tickets: %w", err)
	}
	defer rows.Close()

	var out []*model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan ticket: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresTicketRepository) scanOne(ctx context.Context, sql, arg string) (*model.Ticket, error) {
	row := r.pool.QueryRow(ctx, sql, arg)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find ticket: %w", err)
	}
	return t, nil
}

const ticketSelectColumns = `
	SELECT id, user_id, title, description, status, priority, urgency,
		tags, node_ids, plugin_ids, session_id, comments_json, events_json,
		first_response_at, reopen_count, created_at, updated_at
	FROM tickets`

func scanTicket(row rowScanner) (*model.Ticket, error) {
	var t model.Ticket
	var urgency *string
	var tags, nodeIDs, pluginIDs, comments, events []byte

	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.Priority, &urgency,
		&tags, &nodeIDs, &pluginIDs, &t.SessionID, &comments, &events,
		&t.FirstResponseAt, &t.ReopenCount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if urgency != nil {
		t.Urgency = *urgency
	}
	if err := json.Unmarshal(tags, &t.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(nodeIDs, &t.NodeIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pluginIDs, &t.PluginIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(comments, &t.Comments); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(events, &t.Events); err != nil {
		return nil, err
	}
	return &t, nil
}
