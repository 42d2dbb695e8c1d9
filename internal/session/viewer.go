package session

import (
	"matchin-backend/internal/models"
	"matchin-backend/internal/review"
)

// OpenReview shows the current deck from the first card, question side up.
// An already open viewer is replaced.
func (s *Session) OpenReview() (models.ReviewState, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.ReviewState{}, ErrClosed
	}
	if len(s.deck) == 0 {
		s.mu.Unlock()
		return models.ReviewState{}, ErrNoDeck
	}

	var events []models.SessionEvent
	if e, ok := s.closeViewerLocked(); ok {
		events = append(events, e)
	}
	viewer, err := review.New(s.deck)
	if err != nil {
		s.mu.Unlock()
		return models.ReviewState{}, err
	}
	s.viewer = viewer
	s.touchLocked()
	state := viewer.State()
	events = append(events, s.eventLocked(models.EventReviewOpened, "", ""))
	s.mu.Unlock()

	s.emit(events...)
	return state, nil
}

func (s *Session) Flip() (models.ReviewState, error) {
	return s.reviewOp((*review.Session).Flip)
}

func (s *Session) Next() (models.ReviewState, error) {
	return s.reviewOp((*review.Session).Next)
}

func (s *Session) Previous() (models.ReviewState, error) {
	return s.reviewOp((*review.Session).Previous)
}

// Review returns the viewer state without changing it.
func (s *Session) Review() (models.ReviewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.ReviewState{}, ErrClosed
	}
	if s.viewer == nil {
		return models.ReviewState{}, ErrNoReview
	}
	return s.viewer.State(), nil
}

// CloseReview hides the viewer. The deck is kept and can be reopened.
func (s *Session) CloseReview() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	e, ok := s.closeViewerLocked()
	if !ok {
		s.mu.Unlock()
		return ErrNoReview
	}
	s.touchLocked()
	s.mu.Unlock()

	s.emit(e)
	return nil
}

func (s *Session) reviewOp(op func(*review.Session) error) (models.ReviewState, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.ReviewState{}, ErrClosed
	}
	if s.viewer == nil {
		s.mu.Unlock()
		return models.ReviewState{}, ErrNoReview
	}
	if err := op(s.viewer); err != nil {
		s.mu.Unlock()
		return models.ReviewState{}, err
	}
	s.touchLocked()
	state := s.viewer.State()
	e := s.eventLocked(models.EventStateChanged, "", "")
	s.mu.Unlock()

	s.emit(e)
	return state, nil
}

// closeViewerLocked closes the open viewer and returns the review_closed
// event to emit.
func (s *Session) closeViewerLocked() (models.SessionEvent, bool) {
	if s.viewer == nil {
		return models.SessionEvent{}, false
	}
	s.viewer.Close()
	s.viewer = nil
	return s.eventLocked(models.EventReviewClosed, "", ""), true
}
