package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"matchin-backend/internal/models"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	j.Status = models.JobPending

	query := `INSERT INTO jobs (id, session_id, type, status)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	return r.pool.QueryRow(ctx, query, j.ID, j.SessionID, j.Type, j.Status).Scan(&j.CreatedAt)
}

// GetByID only finds jobs of the given session.
func (r *JobRepo) GetByID(ctx context.Context, sessionID, id uuid.UUID) (*models.Job, error) {
	j := &models.Job{}
	query := `SELECT id, session_id, type, status, error_message, created_at, completed_at
		FROM jobs WHERE id = $1 AND session_id = $2`

	err := r.pool.QueryRow(ctx, query, id, sessionID).Scan(
		&j.ID, &j.SessionID, &j.Type, &j.Status, &j.ErrorMessage, &j.CreatedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status, errMsg string) error {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	if status == models.JobPending || status == models.JobProcessing {
		_, err := r.pool.Exec(ctx, "UPDATE jobs SET status = $1, error_message = $2 WHERE id = $3", status, msg, id)
		return err
	}
	_, err := r.pool.Exec(ctx,
		"UPDATE jobs SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4",
		status, msg, time.Now(), id,
	)
	return err
}
