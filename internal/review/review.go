// Package review implements navigation and flip state over a fixed flashcard deck.
//
// A Session is created when the flashcard viewer opens and discarded when it
// closes. The deck is copied on creation and never modified. Every index change
// shows the question side first: the flip flag is cleared before the index
// moves, so an answer never carries over to the next card.
package review

import (
	"errors"

	"matchin-backend/internal/models"
)

var (
	ErrEmptyDeck = errors.New("review: deck is empty")
	ErrClosed    = errors.New("review: session is closed")
)

type Session struct {
	deck    []models.Flashcard
	index   int
	flipped bool
	closed  bool
}

// New opens a session over deck at (0, false).
func New(deck []models.Flashcard) (*Session, error) {
	if len(deck) == 0 {
		return nil, ErrEmptyDeck
	}
	cards := make([]models.Flashcard, len(deck))
	copy(cards, deck)
	return &Session{deck: cards}, nil
}

func (s *Session) Flip() error {
	if s.closed {
		return ErrClosed
	}
	s.flipped = !s.flipped
	return nil
}

// Next advances one card, wrapping to the first. No-op for single-card decks.
func (s *Session) Next() error {
	return s.move(1)
}

// Previous goes back one card, wrapping to the last. No-op for single-card decks.
func (s *Session) Previous() error {
	return s.move(-1)
}

func (s *Session) move(step int) error {
	if s.closed {
		return ErrClosed
	}
	if !s.CanNavigate() {
		return nil
	}
	n := len(s.deck)
	s.flipped = false
	s.index = ((s.index+step)%n + n) % n
	return nil
}

// Close ends the session. Further transitions return ErrClosed.
func (s *Session) Close() {
	s.closed = true
}

func (s *Session) Closed() bool { return s.closed }

func (s *Session) Index() int { return s.index }

func (s *Session) Flipped() bool { return s.flipped }

func (s *Session) Len() int { return len(s.deck) }

func (s *Session) CanNavigate() bool { return len(s.deck) > 1 }

func (s *Session) Current() models.Flashcard { return s.deck[s.index] }

// Progress is (index+1)/N, always in (0, 1].
func (s *Session) Progress() float64 {
	return float64(s.index+1) / float64(len(s.deck))
}

func (s *Session) State() models.ReviewState {
	return models.ReviewState{
		Index:    s.index,
		Flipped:  s.flipped,
		Size:     len(s.deck),
		Progress: s.Progress(),
		Card:     s.Current(),
	}
}
