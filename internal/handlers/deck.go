package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"matchin-backend/internal/models"
)

type DeckReader interface {
	ListDecksBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.StoredDeck, error)
	GetDeck(ctx context.Context, sessionID, deckID uuid.UUID) (*models.StoredDeck, error)
}

type StudySessionReader interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.StudySession, error)
}

// DeckHandler serves the archive of decks and review sessions.
type DeckHandler struct {
	decks   DeckReader
	studies StudySessionReader
}

func NewDeckHandler(decks DeckReader, studies StudySessionReader) *DeckHandler {
	return &DeckHandler{decks: decks, studies: studies}
}

func (h *DeckHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	decks, err := h.decks.ListDecksBySession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list decks", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"decks": decks})
}

func (h *DeckHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	deckID, ok := parseUUIDParam(w, r, "deckID")
	if !ok {
		return
	}

	deck, err := h.decks.GetDeck(r.Context(), sessionID, deckID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

func (h *DeckHandler) StudySessions(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	sessions, err := h.studies.ListBySession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list study sessions", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"study_sessions": sessions})
}
