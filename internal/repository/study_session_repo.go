package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"matchin-backend/internal/models"
)

// StudySessionRepo logs flashcard viewer spans. Durations are capped at 12h.
type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

func (r *StudySessionRepo) Start(ctx context.Context, s *models.StudySession) error {
	// Close any span the same session left open (idempotent behavior)
	_, _ = r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET ended_at = NOW(),
			duration_seconds = GREATEST(0, LEAST(43200, EXTRACT(EPOCH FROM (NOW() - started_at))::INT))
		WHERE session_id = $1
		  AND ended_at IS NULL
	`, s.SessionID)

	query := `
		INSERT INTO study_sessions (session_id, deck_id, card_count)
		VALUES ($1, $2, $3)
		RETURNING id, started_at
	`

	return r.pool.QueryRow(ctx, query, s.SessionID, s.DeckID, s.CardCount).Scan(
		&s.ID,
		&s.StartedAt,
	)
}

func (r *StudySessionRepo) Stop(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET ended_at = CASE WHEN ended_at IS NULL THEN NOW() ELSE ended_at END,
			duration_seconds = CASE
				WHEN ended_at IS NULL THEN GREATEST(0, LEAST(43200, EXTRACT(EPOCH FROM (NOW() - started_at))::INT))
				ELSE duration_seconds
			END
		WHERE id = $1
	`, id)
	return err
}

func (r *StudySessionRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, deck_id, card_count, started_at, ended_at, duration_seconds
		FROM study_sessions
		WHERE session_id = $1
		ORDER BY started_at DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.StudySession{}
	for rows.Next() {
		var s models.StudySession
		if err := rows.Scan(&s.ID, &s.SessionID, &s.DeckID, &s.CardCount, &s.StartedAt, &s.EndedAt, &s.DurationSeconds); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
