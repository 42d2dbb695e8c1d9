package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"matchin-backend/internal/models"
	"matchin-backend/internal/review"
	"matchin-backend/internal/services"
	"matchin-backend/internal/session"
	"matchin-backend/internal/speech"
	"matchin-backend/internal/worker"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid ID", map[string]string{name: "must be a UUID"}, r))
		return uuid.Nil, false
	}
	return id, true
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var extractErr *services.ExtractionError
	var genErr *services.GenerationError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &extractErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("EXTRACTION_FAILED", "Erro ao ler o PDF. Tente novamente.", r))
	case errors.As(err, &genErr) && genErr.Kind == services.GenerationMissingCredentials:
		writeJSON(w, http.StatusServiceUnavailable, errorResp("MISSING_API_KEY", "API Key não configurada", r))
	case errors.As(err, &genErr):
		writeJSON(w, http.StatusBadGateway, errorResp("GENERATION_FAILED", "Erro ao gerar cartões. Verifique sua conexão ou API Key.", r))
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "Arquivo excede o tamanho máximo permitido", r))
	case errors.Is(err, session.ErrUnsupportedMedia):
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "Por favor, envie apenas arquivos PDF.", r))
	case errors.Is(err, session.ErrExtractionInFlight), errors.Is(err, session.ErrGenerationInFlight), errors.Is(err, speech.ErrAlreadySpeaking):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", err.Error(), r))
	case errors.Is(err, session.ErrStaleResult):
		writeJSON(w, http.StatusConflict, errorResp("STALE_RESULT", "O estudo foi reiniciado durante o processamento.", r))
	case errors.Is(err, session.ErrNoDocument):
		writeJSON(w, http.StatusConflict, errorResp("NO_DOCUMENT", "Nenhum PDF carregado.", r))
	case errors.Is(err, session.ErrNoDeck):
		writeJSON(w, http.StatusConflict, errorResp("NO_DECK", "Nenhum cartão gerado ainda.", r))
	case errors.Is(err, session.ErrNoReview):
		writeJSON(w, http.StatusConflict, errorResp("NO_REVIEW", "O visualizador de cartões não está aberto.", r))
	case errors.Is(err, session.ErrEmptyDeck):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("EMPTY_DECK", "Nenhum cartão foi gerado a partir deste texto. Tente novamente.", r))
	case errors.Is(err, session.ErrClosed), errors.Is(err, review.ErrClosed):
		writeJSON(w, http.StatusGone, errorResp("SESSION_CLOSED", "Session is closed", r))
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrPoolStopped):
		writeJSON(w, http.StatusServiceUnavailable, errorResp("BUSY", "Server is busy. Please try again later.", r))
	case errors.Is(err, pgx.ErrNoRows):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Resource not found", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
