package handlers

import (
	"net/http"

	"matchin-backend/internal/models"
	"matchin-backend/internal/session"
)

// Review endpoints drive the flashcard viewer of a session.

func (h *SessionHandler) OpenReview(w http.ResponseWriter, r *http.Request) {
	h.reviewAction(w, r, (*session.Session).OpenReview)
}

func (h *SessionHandler) FlipCard(w http.ResponseWriter, r *http.Request) {
	h.reviewAction(w, r, (*session.Session).Flip)
}

func (h *SessionHandler) NextCard(w http.ResponseWriter, r *http.Request) {
	h.reviewAction(w, r, (*session.Session).Next)
}

func (h *SessionHandler) PreviousCard(w http.ResponseWriter, r *http.Request) {
	h.reviewAction(w, r, (*session.Session).Previous)
}

func (h *SessionHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	h.reviewAction(w, r, (*session.Session).Review)
}

func (h *SessionHandler) CloseReview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if err := s.CloseReview(); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) reviewAction(w http.ResponseWriter, r *http.Request, op func(*session.Session) (models.ReviewState, error)) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	state, err := op(s)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"review": state})
}
