package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/domain"
)

// PostgresReflectionStore implements ReflectionStore on Postgres.
type PostgresReflectionStore struct {
	db *sql.DB
}

func NewPostgresReflectionStore(db *sql.DB) *PostgresReflectionStore {
	return &PostgresReflectionStore{db: db}
}

func (s *PostgresReflectionStore) CreateSession(ctx context.Context, session *domain.ReflectionSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reflection_sessions (id, user_id, dream_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		session.ID, session.UserID, session.DreamID).Scan(&session.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresReflectionStore) GetSession(ctx context.Context, userID string, id uuid.UUID) (*domain.ReflectionSession, error) {
	var sess domain.ReflectionSession
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, dream_id, created_at
		FROM reflection_sessions
		WHERE id = $1 AND user_id = $2`, id, userID).
		Scan(&sess.ID, &sess.UserID, &sess.DreamID, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresReflectionStore) ListSessions(ctx context.Context, userID string, limit, offset int) ([]domain.ReflectionSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, dream_id, created_at
		FROM reflection_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ReflectionSession
	for rows.Next() {
		var sess domain.ReflectionSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.DreamID, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *PostgresReflectionStore) AppendMessage(ctx context.Context, msg *domain.ReflectionMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reflection_messages (id, session_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *PostgresReflectionStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.ReflectionMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM reflection_messages
		WHERE session_id = $1
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.ReflectionMessage
	for rows.Next() {
		var m domain.ReflectionMessage
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.MessageRole(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *PostgresReflectionStore) SessionDates(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at
		FROM reflection_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("session dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		dates = append(dates, t)
	}
	return dates, rows.Err()
}
