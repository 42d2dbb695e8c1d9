package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"matchin-backend/internal/middleware"
	"matchin-backend/internal/models"
	"matchin-backend/internal/session"
	"matchin-backend/internal/worker"
)

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, name string, data []byte) (*models.Document, error) {
	return &models.Document{Name: name, Text: "conteúdo da aula", PageCount: 3}, nil
}

type stubGenerator struct {
	cards []models.Flashcard
}

func (g stubGenerator) Generate(ctx context.Context, text string, settings models.QuizSettings) ([]models.Flashcard, error) {
	return g.cards, nil
}

type stubSpeaker struct{}

func (stubSpeaker) Start(text, lang string, onDone func(error)) error { return nil }
func (stubSpeaker) Stop()                                            {}

// syncJobs runs each task inline, or rejects it when err is set.
type syncJobs struct {
	err  error
	jobs []models.Job
}

func (j *syncJobs) Submit(t worker.Task) error {
	if j.err != nil {
		return j.err
	}
	j.jobs = append(j.jobs, t.Job)
	return t.Run(context.Background())
}

type memJobStore struct {
	jobs map[uuid.UUID]*models.Job
	err  error
}

func (m *memJobStore) Create(ctx context.Context, j *models.Job) error {
	if m.err != nil {
		return m.err
	}
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *memJobStore) GetByID(ctx context.Context, sessionID, id uuid.UUID) (*models.Job, error) {
	j, ok := m.jobs[id]
	if !ok || j.SessionID != sessionID {
		return nil, pgx.ErrNoRows
	}
	return j, nil
}

func (m *memJobStore) UpdateStatus(ctx context.Context, id uuid.UUID, status, errMsg string) error {
	if m.err != nil {
		return m.err
	}
	if j, ok := m.jobs[id]; ok {
		j.Status = status
	}
	return nil
}

type testServer struct {
	router  http.Handler
	manager *session.Manager
	jobs    *syncJobs
	store   *memJobStore
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	manager := session.NewManager(func(id uuid.UUID) session.Deps {
		return session.Deps{
			Extractor: stubExtractor{},
			Generator: stubGenerator{cards: []models.Flashcard{
				{Question: "Q1", Answer: "A1"},
				{Question: "Q2", Answer: "A2"},
				{Question: "Q3", Answer: "A3"},
			}},
			Speaker: stubSpeaker{},
		}
	}, time.Hour)
	t.Cleanup(manager.Shutdown)

	jobs := &syncJobs{}
	auth := middleware.NewSessionAuth("test-secret", time.Hour)
	store := &memJobStore{jobs: map[uuid.UUID]*models.Job{}}
	h := NewSessionHandler(manager, auth, jobs, store, maxUpload)

	r := chi.NewRouter()
	r.Post("/sessions", h.Create)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/document", h.UploadDocument)
		r.Put("/settings", h.UpdateSettings)
		r.Post("/generate", h.Generate)
		r.Get("/jobs/{jobID}", h.GetJob)
		r.Post("/reset", h.Reset)
		r.Post("/reading", h.ToggleReading)
		r.Get("/review", h.GetReview)
		r.Post("/review/open", h.OpenReview)
		r.Post("/review/flip", h.FlipCard)
		r.Post("/review/next", h.NextCard)
		r.Post("/review/previous", h.PreviousCard)
		r.Post("/review/close", h.CloseReview)
	})

	return &testServer{router: r, manager: manager, jobs: jobs, store: store}
}

func (ts *testServer) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()
	rr := ts.do(http.MethodPost, "/sessions", nil, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Session models.SessionSnapshot `json:"session"`
		Token   string                 `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode create response: %v", err)
	}
	if resp.Token == "" {
		t.Error("Expected a session token")
	}
	return resp.Session.ID.String()
}

func multipartFile(t *testing.T, name, mediaType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	hdr.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()
	return buf.Bytes(), mw.FormDataContentType()
}

func (ts *testServer) upload(t *testing.T, id, name, mediaType string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartFile(t, name, mediaType, []byte("%PDF-1.4 fake"))
	return ts.do(http.MethodPost, "/sessions/"+id+"/document", body, ct)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode error %q: %v", rr.Body.String(), err)
	}
	return resp.Error
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := ts.createSession(t)

	rr := ts.do(http.MethodGet, "/sessions/"+id+"/", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	rr = ts.do(http.MethodDelete, "/sessions/"+id+"/", nil, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rr.Code)
	}
	rr = ts.do(http.MethodGet, "/sessions/"+id+"/", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rr.Code)
	}
}

func TestInvalidSessionID(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	rr := ts.do(http.MethodGet, "/sessions/not-a-uuid/", nil, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "VALIDATION_ERROR" {
		t.Errorf("Expected VALIDATION_ERROR, got %s", e.Code)
	}
}

func TestUploadDocument(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := ts.createSession(t)

	rr := ts.upload(t, id, "notes.txt", "text/plain")
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("Expected 415 for non-PDF, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "UNSUPPORTED_FORMAT" {
		t.Errorf("Expected UNSUPPORTED_FORMAT, got %s", e.Code)
	}

	rr = ts.upload(t, id, "aula.pdf", "application/pdf")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var snap models.SessionSnapshot
	json.Unmarshal(rr.Body.Bytes(), &snap)
	if snap.Document == nil || snap.Document.Name != "aula.pdf" || snap.Document.PageCount != 3 {
		t.Errorf("Unexpected document: %+v", snap.Document)
	}
}

func TestUploadMissingFile(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := ts.createSession(t)

	rr := ts.do(http.MethodPost, "/sessions/"+id+"/document", []byte("{}"), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t, 8)
	id := ts.createSession(t)

	body, ct := multipartFile(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 64))
	rr := ts.do(http.MethodPost, "/sessions/"+id+"/document", body, ct)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rr.Code)
	}
}

func TestUpdateSettingsClamps(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := ts.createSession(t)

	rr := ts.do(http.MethodPut, "/sessions/"+id+"/settings", []byte(`{"count":25,"difficulty":"Difícil"}`), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var resp struct {
		Settings models.QuizSettings `json:"settings"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Settings.Count != 20 || resp.Settings.Difficulty != models.DifficultyHard {
		t.Errorf("Expected {20 HARD}, got %+v", resp.Settings)
	}

	rr = ts.do(http.MethodPut, "/sessions/"+id+"/settings", []byte(`not json`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad body, got %d", rr.Code)
	}
}

func TestGenerateAndReview(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := ts.createSession(t)

	rr := ts.do(http.MethodPost, "/sessions/"+id+"/generate", nil, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("Expected 409 without document, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "NO_DOCUMENT" {
		t.Errorf("Expected NO_DOCUMENT, got %s", e.Code)
	}

	ts.upload(t, id, "aula.pdf", "application/pdf")
	rr = ts.do(http.MethodPost, "/sessions/"+id+"/generate", []byte(`{"count":3,"difficulty":"EASY"}`), "application/json")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(ts.jobs.jobs) != 1 || ts.jobs.jobs[0].Type != worker.JobFlashcardGeneration {
		t.Fatalf("Expected one flashcard job, got %+v", ts.jobs.jobs)
	}
	jobID := ts.jobs.jobs[0].ID.String()
	rr = ts.do(http.MethodGet, "/sessions/"+id+"/jobs/"+jobID, nil, "")
	if rr.Code != http.StatusOK {
		t.Errorf("Expected recorded job, got %d", rr.Code)
	}
	rr = ts.do(http.MethodGet, "/sessions/"+uuid.NewString()+"/jobs/"+jobID, nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for job of another session, got %d", rr.Code)
	}

	rr = ts.do(http.MethodGet, "/sessions/"+id+"/review", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected open viewer after generation, got %d", rr.Code)
	}

	var resp struct {
		Review models.ReviewState `json:"review"`
	}
	rr = ts.do(http.MethodPost, "/sessions/"+id+"/review/flip", nil, "")
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if !resp.Review.Flipped {
		t.Error("Expected flipped card")
	}
	rr = ts.do(http.MethodPost, "/sessions/"+id+"/review/previous", nil, "")
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Review.Index != 2 || resp.Review.Flipped || resp.Review.Card.Question != "Q3" {
		t.Errorf("Expected wrap to Q3 unflipped, got %+v", resp.Review)
	}
	rr = ts.do(http.MethodPost, "/sessions/"+id+"/review/next", nil, "")
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Review.Index != 0 {
		t.Errorf("Expected wrap to first card, got %d", resp.Review.Index)
	}

	rr = ts.do(http.MethodPost, "/sessions/"+id+"/review/close", nil, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rr.Code)
	}
	rr = ts.do(http.MethodPost, "/sessions/"+id+"/review/next", nil, "")
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 with viewer closed, got %d", rr.Code)
	}

	rr = ts.do(http.MethodPost, "/sessions/"+id+"/review/open", nil, "")
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if rr.Code != http.StatusOK || resp.Review.Index != 0 || resp.Review.Flipped {
		t.Errorf("Expected reopen at (0,false), got %d %+v", rr.Code, resp.Review)
	}
}

func TestGenerateQueueFullReleasesFlag(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := ts.createSession(t)
	ts.upload(t, id, "aula.pdf", "application/pdf")

	ts.jobs.err = worker.ErrQueueFull
	rr := ts.do(http.MethodPost, "/sessions/"+id+"/generate", nil, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rr.Code)
	}

	sid, _ := uuid.Parse(id)
	s, _ := ts.manager.Get(sid)
	if s.Snapshot().Generating {
		t.Error("Expected generating flag released after rejected job")
	}
	for _, j := range ts.store.jobs {
		if j.Status != models.JobFailed {
			t.Errorf("Expected rejected job marked failed, got %s", j.Status)
		}
	}
}

func TestGenerateLogsJobStoreFailures(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := ts.createSession(t)
	ts.upload(t, id, "aula.pdf", "application/pdf")

	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	ts.store.err = errors.New("connection refused")
	ts.jobs.err = worker.ErrQueueFull
	rr := ts.do(http.MethodPost, "/sessions/"+id+"/generate", nil, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rr.Code)
	}

	if n := strings.Count(logs.String(), "WARNING: failed to record job"); n != 2 {
		t.Errorf("Expected create and status failures logged, got %d warnings: %s", n, logs.String())
	}
	sid, _ := uuid.Parse(id)
	s, _ := ts.manager.Get(sid)
	if s.Snapshot().Generating {
		t.Error("Expected generating flag released")
	}
}

func TestResetAndReading(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := ts.createSession(t)

	rr := ts.do(http.MethodPost, "/sessions/"+id+"/reading", nil, "")
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 without document, got %d", rr.Code)
	}

	ts.upload(t, id, "aula.pdf", "application/pdf")
	rr = ts.do(http.MethodPost, "/sessions/"+id+"/reading", nil, "")
	var resp map[string]bool
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if !resp["reading"] {
		t.Errorf("Expected reading started, got %s", rr.Body.String())
	}

	rr = ts.do(http.MethodPost, "/sessions/"+id+"/reset", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var snap models.SessionSnapshot
	json.Unmarshal(rr.Body.Bytes(), &snap)
	if snap.Document != nil || snap.Reading {
		t.Errorf("Expected cleared session, got %+v", snap)
	}
}

func TestHandleServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"generation in flight", session.ErrGenerationInFlight, http.StatusConflict, "CONFLICT"},
		{"stale result", session.ErrStaleResult, http.StatusConflict, "STALE_RESULT"},
		{"empty deck", session.ErrEmptyDeck, http.StatusUnprocessableEntity, "EMPTY_DECK"},
		{"closed", session.ErrClosed, http.StatusGone, "SESSION_CLOSED"},
		{"pool stopped", worker.ErrPoolStopped, http.StatusServiceUnavailable, "BUSY"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "req-1")
			rr := httptest.NewRecorder()
			handleServiceError(rr, req, tt.err)

			if rr.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rr.Code)
			}
			e := decodeError(t, rr)
			if e.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, e.Code)
			}
			if e.RequestID != "req-1" {
				t.Errorf("Expected request id echoed, got %q", e.RequestID)
			}
		})
	}
}
