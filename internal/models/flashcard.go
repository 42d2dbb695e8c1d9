package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinCardCount     = 3
	MaxCardCount     = 20
	DefaultCardCount = 5
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Label is the Portuguese name shown to the user and sent in the prompt.
func (d Difficulty) Label() string {
	switch d {
	case DifficultyEasy:
		return "Fácil"
	case DifficultyHard:
		return "Difícil"
	default:
		return "Médio"
	}
}

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// ParseDifficulty accepts the enum name in any case or the Portuguese label.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "fácil", "facil":
		return DifficultyEasy, true
	case "medium", "médio", "medio":
		return DifficultyMedium, true
	case "hard", "difícil", "dificil":
		return DifficultyHard, true
	}
	return "", false
}

func (d *Difficulty) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, ok := ParseDifficulty(raw)
	if !ok {
		// Unknown values are kept so validation can reject them explicitly.
		*d = Difficulty(raw)
		return nil
	}
	*d = parsed
	return nil
}

type QuizSettings struct {
	Count      int        `json:"count"`
	Difficulty Difficulty `json:"difficulty"`
}

func DefaultQuizSettings() QuizSettings {
	return QuizSettings{Count: DefaultCardCount, Difficulty: DifficultyMedium}
}

// ClampCount bounds n to [MinCardCount, MaxCardCount].
func ClampCount(n int) int {
	if n < MinCardCount {
		return MinCardCount
	}
	if n > MaxCardCount {
		return MaxCardCount
	}
	return n
}

// Clamp returns s with Count bounded and an invalid Difficulty replaced by fallback.
func (s QuizSettings) Clamp(fallback Difficulty) QuizSettings {
	s.Count = ClampCount(s.Count)
	if !s.Difficulty.Valid() {
		s.Difficulty = fallback
	}
	return s
}

type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// StoredDeck is an archived deck as persisted in Postgres.
type StoredDeck struct {
	ID           uuid.UUID    `json:"id"`
	SessionID    uuid.UUID    `json:"session_id"`
	DocumentName string       `json:"document_name"`
	PageCount    int          `json:"page_count"`
	Settings     QuizSettings `json:"settings"`
	CardCount    int          `json:"card_count"`
	Cards        []Flashcard  `json:"cards,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
