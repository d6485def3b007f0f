package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/domain"
)

const videoJobColumns = `id, dream_id, user_id, status, frames_generated,
	video_url, error_message, retry_count, created_at, updated_at`

// PostgresVideoJobStore implements VideoJobStore on Postgres.
type PostgresVideoJobStore struct {
	db *sql.DB
}

func NewPostgresVideoJobStore(db *sql.DB) *PostgresVideoJobStore {
	return &PostgresVideoJobStore{db: db}
}

func (s *PostgresVideoJobStore) Create(ctx context.Context, job *domain.VideoJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = domain.VideoJobPending
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO video_jobs (id, dream_id, user_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		job.ID, job.DreamID, job.UserID, string(job.Status)).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create video job: %w", err)
	}
	return nil
}

func (s *PostgresVideoJobStore) Get(ctx context.Context, id uuid.UUID) (*domain.VideoJob, error) {
	query := `SELECT ` + videoJobColumns + ` FROM video_jobs WHERE id = $1`
	return scanVideoJob(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresVideoJobStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.VideoJob, error) {
	query := `
		SELECT ` + videoJobColumns + `
		FROM video_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	return s.queryJobs(ctx, query, userID, limit)
}

func (s *PostgresVideoJobStore) ListActive(ctx context.Context, limit int) ([]domain.VideoJob, error) {
	query := `
		SELECT ` + videoJobColumns + `
		FROM video_jobs
		WHERE status IN ('pending', 'processing')
		ORDER BY created_at ASC
		LIMIT $1`
	return s.queryJobs(ctx, query, limit)
}

func (s *PostgresVideoJobStore) Update(ctx context.Context, job *domain.VideoJob) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE video_jobs
		SET status = $2,
		    frames_generated = $3,
		    video_url = $4,
		    error_message = $5,
		    retry_count = $6,
		    updated_at = now()
		WHERE id = $1`,
		job.ID, string(job.Status), job.FramesGenerated, job.VideoURL,
		job.ErrorMessage, job.RetryCount)
	if err != nil {
		return fmt.Errorf("update video job: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresVideoJobStore) queryJobs(ctx context.Context, query string, args ...any) ([]domain.VideoJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query video jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.VideoJob
	for rows.Next() {
		job, err := scanVideoJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanVideoJob(row rowScanner) (*domain.VideoJob, error) {
	var job domain.VideoJob
	var status string
	err := row.Scan(
		&job.ID, &job.DreamID, &job.UserID, &status, &job.FramesGenerated,
		&job.VideoURL, &job.ErrorMessage, &job.RetryCount,
		&job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan video job: %w", err)
	}
	job.Status = domain.VideoJobStatus(status)
	return &job, nil
}
