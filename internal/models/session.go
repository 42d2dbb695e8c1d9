package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionMode string

const (
	ModeIdle       SessionMode = "idle"
	ModeExtracting SessionMode = "extracting"
	ModeGenerating SessionMode = "generating"
	ModeReading    SessionMode = "reading"
)

type DocumentSummary struct {
	Name      string `json:"name"`
	PageCount int    `json:"page_count"`
	Text      string `json:"text,omitempty"`
}

type ReviewState struct {
	Index    int       `json:"index"`
	Flipped  bool      `json:"flipped"`
	Size     int       `json:"size"`
	Progress float64   `json:"progress"`
	Card     Flashcard `json:"card"`
}

type SessionSnapshot struct {
	ID         uuid.UUID        `json:"id"`
	Document   *DocumentSummary `json:"document"`
	Settings   QuizSettings     `json:"settings"`
	Deck       []Flashcard      `json:"deck"`
	Extracting bool             `json:"extracting"`
	Generating bool             `json:"generating"`
	Reading    bool             `json:"reading"`
	ViewerOpen bool             `json:"viewer_open"`
	Review     *ReviewState     `json:"review,omitempty"`
	Modes      []SessionMode    `json:"modes"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ActiveModes lists the set mode flags; idle when none are set.
func ActiveModes(extracting, generating, reading bool) []SessionMode {
	var modes []SessionMode
	if extracting {
		modes = append(modes, ModeExtracting)
	}
	if generating {
		modes = append(modes, ModeGenerating)
	}
	if reading {
		modes = append(modes, ModeReading)
	}
	if len(modes) == 0 {
		modes = append(modes, ModeIdle)
	}
	return modes
}

type EventType string

const (
	EventStateChanged    EventType = "state_changed"
	EventError           EventType = "error"
	EventWarning         EventType = "warning"
	EventDeckReady       EventType = "deck_ready"
	EventReviewOpened    EventType = "review_opened"
	EventReviewClosed    EventType = "review_closed"
	EventReadingStarted  EventType = "reading_started"
	EventReadingFinished EventType = "reading_finished"
	EventSessionClosed   EventType = "session_closed"
)

// SessionEvent is emitted after every session transition. Seq increases
// strictly per session; observers may see events out of Seq order and
// should drop snapshots older than the last one applied.
type SessionEvent struct {
	Seq       uint64          `json:"seq"`
	Type      EventType       `json:"type"`
	SessionID uuid.UUID       `json:"session_id"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Snapshot  SessionSnapshot `json:"snapshot"`
	At        time.Time       `json:"at"`
}
