// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	commonerrors "llm-council/internal/common/errors"
	"llm-council/internal/common/logger"
	"llm-council/internal/models"
)

// Store persists threads, messages, share tokens and the project context in
// Postgres. Assistant rows keep the published content alongside the full
// audit payload (raw advisor texts, merge artifact, arbiter review).
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS threads (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		gpt_response TEXT,
		claude_response TEXT,
		merge_result JSONB,
		arbiter_review TEXT,
		mode TEXT NOT NULL DEFAULT '',
		tokens_used INTEGER NOT NULL DEFAULT 0,
		estimated_cost NUMERIC(12, 6) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_thread_created ON messages(thread_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS share_tokens (
		token TEXT PRIMARY KEY,
		thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS app_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// InitSchema bootstraps all tables idempotently on startup.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return commonerrors.NewDatabaseQueryFailedError(err)
		}
	}
	s.logger.Info("database schema ready", nil)
	return nil
}

func (s *Store) CreateThread(ctx context.Context, title string) (*models.ThreadSummary, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, title, created_at, updated_at) VALUES ($1, $2, $3, $3)`,
		id, title, now)
	if err != nil {
		return nil, commonerrors.NewDatabaseInsertFailedError(err)
	}

	return &models.ThreadSummary{
		ID:        id,
		Title:     title,
		CreatedAt: now.Format(time.RFC3339),
		UpdatedAt: now.Format(time.RFC3339),
	}, nil
}

func (s *Store) ListThreads(ctx context.Context) ([]models.ThreadSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM threads ORDER BY updated_at DESC`)
	if err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError(err)
	}
	defer rows.Close()

	threads := []models.ThreadSummary{}
	for rows.Next() {
		var t models.ThreadSummary
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&t.ID, &t.Title, &createdAt, &updatedAt); err != nil {
			return nil, commonerrors.NewDatabaseQueryFailedError(err)
		}
		t.CreatedAt = createdAt.Format(time.RFC3339)
		t.UpdatedAt = updatedAt.Format(time.RFC3339)
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError(err)
	}
	return threads, nil
}

func (s *Store) GetThread(ctx context.Context, id string) (*models.ThreadSummary, error) {
	var t models.ThreadSummary
	var createdAt, updatedAt time.Time

	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM threads WHERE id = $1`, id).
		Scan(&t.ID, &t.Title, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, commonerrors.NewThreadNotFoundError(id)
	}
	if err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError(err)
	}

	t.CreatedAt = createdAt.Format(time.RFC3339)
	t.UpdatedAt = updatedAt.Format(time.RFC3339)
	return &t, nil
}

func (s *Store) DeleteThread(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = $1`, id)
	if err != nil {
		return commonerrors.NewDatabaseQueryFailedError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return commonerrors.NewDatabaseQueryFailedError(err)
	}
	if affected == 0 {
		return commonerrors.NewThreadNotFoundError(id)
	}
	return nil
}

// AppendMessage inserts one message and bumps the thread's updated_at.
func (s *Store) AppendMessage(ctx context.Context, threadID string, msg *models.StoredMessage) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", commonerrors.NewDatabaseInsertFailedError(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages
			(id, thread_id, role, content, gpt_response, claude_response,
			 merge_result, arbiter_review, mode, tokens_used, estimated_cost, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, threadID, msg.Role, msg.Content, msg.GPTResponse, msg.ClaudeResponse,
		msg.MergeResult, msg.ArbiterReview, msg.Mode, msg.TokensUsed, msg.EstimatedCost, now)
	if err != nil {
		return "", commonerrors.NewDatabaseInsertFailedError(err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = $1 WHERE id = $2`, now, threadID); err != nil {
		return "", commonerrors.NewDatabaseInsertFailedError(err)
	}

	if err = tx.Commit(); err != nil {
		return "", commonerrors.NewDatabaseInsertFailedError(err)
	}
	return id, nil
}

func (s *Store) GetMessages(ctx context.Context, threadID string) ([]models.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, gpt_response, claude_response, merge_result,
		        arbiter_review, mode, tokens_used, estimated_cost, created_at
		   FROM messages WHERE thread_id = $1 ORDER BY created_at ASC`, threadID)
	if err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError(err)
	}
	defer rows.Close()

	messages := []models.StoredMessage{}
	for rows.Next() {
		var m models.StoredMessage
		var createdAt time.Time
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.GPTResponse, &m.ClaudeResponse,
			&m.MergeResult, &m.ArbiterReview, &m.Mode, &m.TokensUsed, &m.EstimatedCost, &createdAt); err != nil {
			return nil, commonerrors.NewDatabaseQueryFailedError(err)
		}
		m.CreatedAt = createdAt.Format(time.RFC3339)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError(err)
	}
	return messages, nil
}

// GetThreadHistory returns the advisor-visible view of a thread: roles and
// published content only. Raw advisor texts, artifacts and reviews never
// leave the audit columns, which keeps later turns blind by construction.
func (s *Store) GetThreadHistory(ctx context.Context, threadID string) ([]models.HistoryMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE thread_id = $1 ORDER BY created_at ASC`, threadID)
	if err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError(err)
	}
	defer rows.Close()

	history := []models.HistoryMessage{}
	for rows.Next() {
		var h models.HistoryMessage
		if err := rows.Scan(&h.Role, &h.Content); err != nil {
			return nil, commonerrors.NewDatabaseQueryFailedError(err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError(err)
	}
	return history, nil
}

func (s *Store) CreateShareToken(ctx context.Context, threadID string) (string, error) {
	if _, err := s.GetThread(ctx, threadID); err != nil {
		return "", err
	}

	token := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO share_tokens (token, thread_id, created_at) VALUES ($1, $2, $3)`,
		token, threadID, time.Now().UTC())
	if err != nil {
		return "", commonerrors.NewDatabaseInsertFailedError(err)
	}
	return token, nil
}

func (s *Store) ResolveShareToken(ctx context.Context, token string) (string, error) {
	var threadID string
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id FROM share_tokens WHERE token = $1`, token).Scan(&threadID)
	if err == sql.ErrNoRows {
		return "", commonerrors.NewShareTokenNotFoundError(token)
	}
	if err != nil {
		return "", commonerrors.NewDatabaseQueryFailedError(err)
	}
	return threadID, nil
}

const projectContextKey = "project_context"

// GetProjectContext returns the stored project context, or "" when unset.
func (s *Store) GetProjectContext(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM app_config WHERE key = $1`, projectContextKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", commonerrors.NewDatabaseQueryFailedError(err)
	}
	return value, nil
}

func (s *Store) SetProjectContext(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_config (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		projectContextKey, value)
	if err != nil {
		return commonerrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}
