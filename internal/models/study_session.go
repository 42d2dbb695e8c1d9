package models

import (
	"time"

	"github.com/google/uuid"
)

// StudySession is one open→close span of the flashcard viewer.
type StudySession struct {
	ID              uuid.UUID  `json:"id"`
	SessionID       uuid.UUID  `json:"session_id"`
	DeckID          *uuid.UUID `json:"deck_id"`
	CardCount       int        `json:"card_count"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
}
