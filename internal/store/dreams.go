package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/oneirolabs/oneiro/internal/domain"
)

const dreamColumns = `id, user_id, title, description, image_url, thumbnail_url,
	video_url, audio_url, interpretation, tags, created_at, updated_at`

// PostgresDreamStore implements DreamStore on Postgres.
type PostgresDreamStore struct {
	db *sql.DB
}

func NewPostgresDreamStore(db *sql.DB) *PostgresDreamStore {
	return &PostgresDreamStore{db: db}
}

func (s *PostgresDreamStore) Create(ctx context.Context, params domain.CreateDreamParams) (*domain.Dream, error) {
	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO dreams (id, user_id, title, description, tags)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + dreamColumns

	row := s.db.QueryRowContext(ctx, query,
		uuid.New(), params.UserID, params.Title, params.Description, pq.Array(tags))
	return scanDream(row)
}

func (s *PostgresDreamStore) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Dream, error) {
	query := `SELECT ` + dreamColumns + ` FROM dreams WHERE id = $1 AND user_id = $2`
	return scanDream(s.db.QueryRowContext(ctx, query, id, userID))
}

func (s *PostgresDreamStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Dream, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dreams WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dreams: %w", err)
	}

	query := `
		SELECT ` + dreamColumns + `
		FROM dreams
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list dreams: %w", err)
	}
	defer rows.Close()

	var dreams []domain.Dream
	for rows.Next() {
		d, err := scanDream(rows)
		if err != nil {
			return nil, 0, err
		}
		dreams = append(dreams, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return dreams, total, nil
}

func (s *PostgresDreamStore) Update(ctx context.Context, userID string, id uuid.UUID, params domain.UpdateDreamParams) (*domain.Dream, error) {
	query := `
		UPDATE dreams
		SET title = COALESCE($3, title),
		    description = COALESCE($4, description),
		    tags = COALESCE($5, tags),
		    updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + dreamColumns

	row := s.db.QueryRowContext(ctx, query,
		id, userID, params.Title, params.Description, pq.Array(params.Tags))
	return scanDream(row)
}

func (s *PostgresDreamStore) AttachAssets(ctx context.Context, userID string, id uuid.UUID, assets AssetUpdate) error {
	query := `
		UPDATE dreams
		SET image_url = COALESCE($3, image_url),
		    thumbnail_url = COALESCE($4, thumbnail_url),
		    video_url = COALESCE($5, video_url),
		    audio_url = COALESCE($6, audio_url),
		    interpretation = COALESCE($7, interpretation),
		    updated_at = now()
		WHERE id = $1 AND user_id = $2`

	res, err := s.db.ExecContext(ctx, query,
		id, userID, assets.ImageURL, assets.ThumbnailURL, assets.VideoURL,
		assets.AudioURL, assets.Interpretation)
	if err != nil {
		return fmt.Errorf("attach assets: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresDreamStore) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dreams WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete dream: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresDreamStore) Upsert(ctx context.Context, dream *domain.Dream) error {
	tags := dream.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO dreams (id, user_id, title, description, image_url, thumbnail_url,
			video_url, audio_url, interpretation, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			thumbnail_url = EXCLUDED.thumbnail_url,
			video_url = EXCLUDED.video_url,
			audio_url = EXCLUDED.audio_url,
			interpretation = EXCLUDED.interpretation,
			tags = EXCLUDED.tags,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		dream.ID, dream.UserID, dream.Title, dream.Description,
		dream.ImageURL, dream.ThumbnailURL, dream.VideoURL, dream.AudioURL,
		dream.Interpretation, pq.Array(tags), dream.CreatedAt, dream.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert dream: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDream(row rowScanner) (*domain.Dream, error) {
	var d domain.Dream
	err := row.Scan(
		&d.ID, &d.UserID, &d.Title, &d.Description,
		&d.ImageURL, &d.ThumbnailURL, &d.VideoURL, &d.AudioURL,
		&d.Interpretation, pq.Array(&d.Tags), &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan dream: %w", err)
	}
	return &d, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
