package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"matchin-backend/internal/models"
)

type DeckRepo struct {
	pool *pgxpool.Pool
}

func NewDeckRepo(pool *pgxpool.Pool) *DeckRepo {
	return &DeckRepo{pool: pool}
}

// SaveDeck stores the deck and its cards in order. A zero ID is assigned.
func (r *DeckRepo) SaveDeck(ctx context.Context, d *models.StoredDeck) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CardCount = len(d.Cards)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin deck transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO decks (id, session_id, document_name, page_count, requested_count, difficulty, card_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	err = tx.QueryRow(ctx, query,
		d.ID, d.SessionID, d.DocumentName, d.PageCount, d.Settings.Count, string(d.Settings.Difficulty), d.CardCount,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert deck: %w", err)
	}

	rows := make([][]any, len(d.Cards))
	for i, c := range d.Cards {
		rows[i] = []any{d.ID, i, c.Question, c.Answer}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"cards"},
		[]string{"deck_id", "position", "question", "answer"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("failed to insert cards: %w", err)
	}

	return tx.Commit(ctx)
}

// ListDecksBySession returns deck headers, newest first, without cards.
func (r *DeckRepo) ListDecksBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.StoredDeck, error) {
	query := `SELECT id, session_id, document_name, page_count, requested_count, difficulty, card_count, created_at
		FROM decks WHERE session_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	decks := []*models.StoredDeck{}
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

// GetDeck loads one deck of a session with its cards. A deck belonging to
// another session is reported as pgx.ErrNoRows.
func (r *DeckRepo) GetDeck(ctx context.Context, sessionID, deckID uuid.UUID) (*models.StoredDeck, error) {
	query := `SELECT id, session_id, document_name, page_count, requested_count, difficulty, card_count, created_at
		FROM decks WHERE id = $1 AND session_id = $2`

	d, err := scanDeck(r.pool.QueryRow(ctx, query, deckID, sessionID))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		"SELECT question, answer FROM cards WHERE deck_id = $1 ORDER BY position ASC", deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	d.Cards = []models.Flashcard{}
	for rows.Next() {
		var c models.Flashcard
		if err := rows.Scan(&c.Question, &c.Answer); err != nil {
			return nil, err
		}
		d.Cards = append(d.Cards, c)
	}
	return d, rows.Err()
}

func scanDeck(row pgx.Row) (*models.StoredDeck, error) {
	d := &models.StoredDeck{}
	var difficulty string
	err := row.Scan(
		&d.ID, &d.SessionID, &d.DocumentName, &d.PageCount,
		&d.Settings.Count, &difficulty, &d.CardCount, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Settings.Difficulty = models.Difficulty(difficulty)
	return d, nil
}
