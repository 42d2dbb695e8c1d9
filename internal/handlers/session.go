package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"matchin-backend/internal/models"
	"matchin-backend/internal/session"
	"matchin-backend/internal/worker"
)

type TokenIssuer interface {
	GenerateToken(sessionID uuid.UUID) (string, error)
}

type JobSubmitter interface {
	Submit(t worker.Task) error
}

type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, sessionID, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status, errMsg string) error
}

type SessionHandler struct {
	manager   *session.Manager
	tokens    TokenIssuer
	jobs      JobSubmitter
	jobStore  JobStore
	maxUpload int64
}

// NewSessionHandler builds the handler; jobStore may be nil.
func NewSessionHandler(manager *session.Manager, tokens TokenIssuer, jobs JobSubmitter, jobStore JobStore, maxUpload int64) *SessionHandler {
	return &SessionHandler{
		manager:   manager,
		tokens:    tokens,
		jobs:      jobs,
		jobStore:  jobStore,
		maxUpload: maxUpload,
	}
}

// loadSession resolves {id} to a live session, writing the error response
// when it cannot.
func (h *SessionHandler) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return nil, false
	}
	s, ok := h.manager.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp("SESSION_NOT_FOUND", "Session not found", r))
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Create()

	token, err := h.tokens.GenerateToken(s.ID())
	if err != nil {
		h.manager.Delete(s.ID())
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue session token", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": s.Snapshot(),
		"token":   token,
	})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if !h.manager.Delete(id) {
		writeJSON(w, http.StatusNotFound, errorResp("SESSION_NOT_FOUND", "Session not found", r))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadDocument accepts one multipart "file" part. The media type is the one
// declared on the part, not sniffed from content.
func (h *SessionHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	limitMsg := fmt.Sprintf("Tamanho máximo de %dMB", h.maxUpload>>20)
	if r.ContentLength > h.maxUpload+(1<<20) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", limitMsg, r))
		return
	}

	// Allow some room for multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", limitMsg, r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", limitMsg, r))
		return
	}

	upload := models.Upload{
		Name:      header.Filename,
		MediaType: header.Header.Get("Content-Type"),
	}
	if !upload.IsPDF() {
		handleServiceError(w, r, session.ErrUnsupportedMedia)
		return
	}

	upload.Data, err = io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Failed to read uploaded file", r))
		return
	}

	if err := s.Upload(r.Context(), upload); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	var req models.QuizSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	settings, err := s.UpdateSettings(req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}

// Generate schedules deck generation and returns immediately. The outcome
// arrives as session events.
func (h *SessionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	settings := s.Settings()
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
			return
		}
	}

	pending, err := s.StartGeneration(settings)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	job := models.Job{
		ID:        uuid.New(),
		SessionID: s.ID(),
		Type:      worker.JobFlashcardGeneration,
		Status:    models.JobPending,
		CreatedAt: time.Now(),
	}
	if h.jobStore != nil {
		if err := h.jobStore.Create(r.Context(), &job); err != nil {
			log.Printf("WARNING: failed to record job %s: %v", job.ID, err)
		}
	}

	if err := h.jobs.Submit(worker.Task{Job: job, Run: pending.Run, Drop: pending.Abandon}); err != nil {
		log.Printf("Failed to queue job %s for session %s: %v", job.ID, s.ID(), err)
		pending.Abandon()
		if h.jobStore != nil {
			if uerr := h.jobStore.UpdateStatus(r.Context(), job.ID, models.JobFailed, err.Error()); uerr != nil {
				log.Printf("WARNING: failed to record job %s: %v", job.ID, uerr)
			}
		}
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   job.ID,
		"settings": pending.Settings(),
	})
}

func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	s.Reset()
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *SessionHandler) ToggleReading(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	reading, err := s.ToggleReading()
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reading": reading})
}

func (h *SessionHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	jobID, ok := parseUUIDParam(w, r, "jobID")
	if !ok {
		return
	}
	if h.jobStore == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
		return
	}

	job, err := h.jobStore.GetByID(r.Context(), sessionID, jobID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
