package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opsforge/agentcore/pkg/model"
)

// PostgresSessionRepository implements SessionRepository over the shared pool.
type PostgresSessionRepository struct {
	pool *Pool
	log  *slog.Logger
}

var _ SessionRepository = (*PostgresSessionRepository)(nil)

// NewSessionRepository builds a PostgresSessionRepository over pool.
func NewSessionRepository(pool *Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool, log: slog.Default().With("component", "store.session")}
}

func (r *PostgresSessionRepository) Save(ctx context.Context, s *model.Session) error {
	events, err := json.Marshal(s.Events)
	if err != nil {
		return fmt.Errorf("store: marshal events: %w", err)
	}
	files, err := json.Marshal(s.Files)
	if err != nil {
		return fmt.Errorf("store: marshal files: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO sessions (
			session_id, user_id, agent_id, sandbox_id, task_id, title,
			unread_message_count, latest_message, latest_message_at,
			events_json, files_json, status, session_type, is_shared,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (session_id) DO UPDATE SET
			agent_id = EXCLUDED.agent_id,
			sandbox_id = EXCLUDED.sandbox_id,
			task_id = EXCLUDED.task_id,
			title = EXCLUDED.title,
			unread_message_count = EXCLUDED.unread_message_count,
			latest_message = EXCLUDED.latest_message,
			latest_message_at = EXCLUDED.latest_message_at,
			events_json = EXCLUDED.events_json,
			files_json = EXCLUDED.files_json,
			status = EXCLUDED.status,
			session_type = EXCLUDED.session_type,
			is_shared = EXCLUDED.is_shared,
			updated_at = EXCLUDED.updated_at
	`,
		s.ID, s.UserID, s.AgentID, nullString(s.SandboxID), nullString(s.TaskID), nullString(s.Title),
		s.UnreadMessageCount, nullString(s.LatestMessage), s.LatestMessageAt,
		events, files, string(s.Status), string(s.SessionType), s.IsShared,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		r.log.Error("save session failed", "session_id", s.ID, "error", err)
		return fmt.Errorf("store: save session: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	row := r.pool.QueryRow(ctx, sessionSelectColumns+` WHERE session_id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find session: %w", err)
	}
	return s, nil
}

func (r *PostgresSessionRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Session, error) {
	rows, err := r.pool.Query(ctx, sessionSelectColumns+` WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// FindByIDAndUserID returns (nil, nil) — not an error — when the session
// exists but belongs to another user.
func (r *PostgresSessionRepository) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Session, error) {
	row := r.pool.QueryRow(ctx, sessionSelectColumns+` WHERE session_id = $1 AND user_id = $2`, id, userID)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find session by owner: %w", err)
	}
	return s, nil
}

func (r *PostgresSessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepository) UpdateTitle(ctx context.Context, id, title string) error {
	return r.touch(ctx, `UPDATE sessions SET title = $1, updated_at = $2 WHERE session_id = $3`, title, time.Now().UTC(), id)
}

func (r *PostgresSessionRepository) UpdateLatestMessage(ctx context.Context, id, message string) error {
	return r.touch(ctx, `UPDATE sessions SET latest_message = $1, latest_message_at = $2, updated_at = $2 WHERE session_id = $3`, message, time.Now().UTC(), id)
}

func (r *PostgresSessionRepository) AddEvent(ctx context.Context, id string, event model.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("store: marshal event: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE sessions SET events_json = events_json || $1::jsonb, updated_at = $2
		WHERE session_id = $3
	`, "["+string(payload)+"]", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: add event: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepository) AddFile(ctx context.Context, id string, file model.FileInfo) error {
	payload, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("store: marshal file: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE sessions SET files_json = files_json || $1::jsonb, updated_at = $2
		WHERE session_id = $3
	`, "["+string(payload)+"]", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: add file: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepository) RemoveFile(ctx context.Context, id, fileID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET files_json = (
			SELECT COALESCE(jsonb_agg(f), '[]'::jsonb)
			FROM jsonb_array_elements(files_json) f
			WHERE f->>'file_id' != $1
		), updated_at = $2
		WHERE session_id = $3
	`, fileID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: remove file: %w", err)
	}
	return nil
}

// GetFileByPath is a linear scan over the session's stored files, matching
// the in-memory model's FileByPath behavior.
func (r *PostgresSessionRepository) GetFileByPath(ctx context.Context, id, path string) (*model.FileInfo, error) {
	s, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	f, ok := s.FileByPath(path)
	if !ok {
		return nil, nil
	}
	return f, nil
}

func (r *PostgresSessionRepository) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error {
	return r.touch(ctx, `UPDATE sessions SET status = $1, updated_at = $2 WHERE session_id = $3`, string(status), time.Now().UTC(), id)
}

func (r *PostgresSessionRepository) UpdateUnreadMessageCount(ctx context.Context, id string, count int) error {
	return r.touch(ctx, `UPDATE sessions SET unread_message_count = $1, updated_at = $2 WHERE session_id = $3`, count, time.Now().UTC(), id)
}

func (r *PostgresSessionRepository) IncrementUnreadMessageCount(ctx context.Context, id string) error {
	return r.touch(ctx, `UPDATE sessions SET unread_message_count = unread_message_count + 1, updated_at = $1 WHERE session_id = $2`, time.Now().UTC(), id)
}

func (r *PostgresSessionRepository) DecrementUnreadMessageCount(ctx context.Context, id string) error {
	return r.touch(ctx, `UPDATE sessions SET unread_message_count = GREATEST(unread_message_count - 1, 0), updated_at = $1 WHERE session_id = $2`, time.Now().UTC(), id)
}

func (r *PostgresSessionRepository) UpdateSharedStatus(ctx context.Context, id string, shared bool) error {
	return r.touch(ctx, `UPDATE sessions SET is_shared = $1, updated_at = $2 WHERE session_id = $3`, shared, time.Now().UTC(), id)
}

func (r *PostgresSessionRepository) UpdateSandboxID(ctx context.Context, id, sandboxID string) error {
	return r.touch(ctx, `UPDATE sessions SET sandbox_id = $1, updated_at = $2 WHERE session_id = $3`, nullString(sandboxID), time.Now().UTC(), id)
}

func (r *PostgresSessionRepository) UpdateTaskID(ctx context.Context, id, taskID string) error {
	return r.touch(ctx, `UPDATE sessions SET task_id = $1, updated_at = $2 WHERE session_id = $3`, nullString(taskID), time.Now().UTC(), id)
}

func (r *PostgresSessionRepository) GetAll(ctx context.Context, sessionType *model.SessionType) ([]*model.Session, error) {
	if sessionType == nil {
		rows, err := r.pool.Query(ctx, sessionSelectColumns+` ORDER BY updated_at DESC`)
		if err != nil {
			return nil, fmt.Errorf("store: get all sessions: %w", err)
		}
		defer rows.Close()
		return scanSessions(rows)
	}
	rows, err := r.pool.Query(ctx, sessionSelectColumns+` WHERE session_type = $1 ORDER BY updated_at DESC`, string(*sessionType))
	if err != nil {
		return nil, fmt.Errorf("store: get all sessions by type: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (r *PostgresSessionRepository) touch(ctx context.Context, sql string, args ...any) error {
	_, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("store: update session: %w", err)
	}
	return nil
}

const sessionSelectColumns = `
	SELECT session_id, user_id, agent_id, sandbox_id, task_id, title,
		unread_message_count, latest_message, latest_message_at,
		events_json, files_json, status, session_type, is_shared,
		created_at, updated_at
	FROM sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var s model.Session
	var sandboxID, taskID, title, latestMessage *string
	var eventsJSON, filesJSON []byte

	err := row.Scan(
		&s.ID, &s.UserID, &s.AgentID, &sandboxID, &taskID, &title,
		&s.UnreadMessageCount, &latestMessage, &s.LatestMessageAt,
		&eventsJSON, &filesJSON, &s.Status, &s.SessionType, &s.IsShared,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sandboxID != nil {
		s.SandboxID = *sandboxID
	}
	if taskID != nil {
		s.TaskID = *taskID
	}
	if title != nil {
		s.Title = *title
	}
	if latestMessage != nil {
		s.LatestMessage = *latestMessage
	}
	if err := json.Unmarshal(eventsJSON, &s.Events); err != nil {
		return nil, fmt.Errorf("store: unmarshal events: %w", err)
	}
	if err := json.Unmarshal(filesJSON, &s.Files); err != nil {
		return nil, fmt.Errorf("store: unmarshal files: %w", err)
	}
	return &s, nil
}

type rowsScanner interface {
	Next() bool
	rowScanner
	Err() error
}

func scanSessions(rows rowsScanner) ([]*model.Session, error) {
	var out []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
