// Package session holds the state of one study session: the loaded document,
// quiz settings, the generated deck, the flashcard viewer and the mode flags.
//
// All mutations go through Session methods. Adapter calls (extraction,
// generation) run without the lock held; their results are applied only if the
// session epoch is unchanged, so a Reset or a newer upload silently discards
// anything that was still in flight.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"matchin-backend/internal/models"
	"matchin-backend/internal/review"
)

// SpeechLanguage is the language tag used for read-aloud.
const SpeechLanguage = "pt-BR"

type Extractor interface {
	Extract(ctx context.Context, name string, data []byte) (*models.Document, error)
}

type Generator interface {
	Generate(ctx context.Context, text string, settings models.QuizSettings) ([]models.Flashcard, error)
}

// Speaker plays one utterance at a time. onDone runs on natural completion only.
type Speaker interface {
	Start(text, lang string, onDone func(error)) error
	Stop()
}

// Observer receives every event after the session lock is released.
type Observer func(models.SessionEvent)

// Observers fans events out to each non-nil observer in order.
func Observers(observers ...Observer) Observer {
	return func(e models.SessionEvent) {
		for _, o := range observers {
			if o != nil {
				o(e)
			}
		}
	}
}

type Deps struct {
	Extractor Extractor
	Generator Generator
	Speaker   Speaker
	Observer  Observer
}

type Session struct {
	id        uuid.UUID
	extractor Extractor
	generator Generator
	speaker   Speaker
	observe   Observer

	mu         sync.Mutex
	document   *models.Document
	settings   models.QuizSettings
	deck       []models.Flashcard
	viewer     *review.Session
	extracting bool
	generating bool
	reading    bool
	epoch      uint64
	readingSeq uint64
	eventSeq   uint64
	closed     bool
	updatedAt  time.Time
}

func New(id uuid.UUID, deps Deps) *Session {
	return &Session{
		id:        id,
		extractor: deps.Extractor,
		generator: deps.Generator,
		speaker:   deps.Speaker,
		observe:   deps.Observer,
		settings:  models.DefaultQuizSettings(),
		updatedAt: time.Now(),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

// Upload extracts a PDF and makes it the current document. Files whose
// declared media type is not PDF are refused without any state change.
func (s *Session) Upload(ctx context.Context, upload models.Upload) error {
	if !upload.IsPDF() {
		return ErrUnsupportedMedia
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.extracting {
		s.mu.Unlock()
		return ErrExtractionInFlight
	}
	s.extracting = true
	epoch := s.epoch
	s.touchLocked()
	started := s.eventLocked(models.EventStateChanged, "", "")
	s.mu.Unlock()
	s.emit(started)

	doc, err := s.extract(ctx, upload)

	s.mu.Lock()
	s.extracting = false
	s.touchLocked()

	var events []models.SessionEvent
	var result error
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case epoch != s.epoch:
		log.Printf("Session %s: discarding extraction of %q, session changed", s.id, upload.Name)
		result = ErrStaleResult
	case err != nil:
		log.Printf("Session %s: extraction of %q failed: %v", s.id, upload.Name, err)
		result = err
		events = append(events, s.eventLocked(models.EventError, CodeExtractionFailed, msgExtractionFailed))
	default:
		s.stopReadingLocked()
		if e, ok := s.closeViewerLocked(); ok {
			events = append(events, e)
		}
		s.document = doc
		s.deck = nil
		s.epoch++
	}
	events = append(events, s.eventLocked(models.EventStateChanged, "", ""))
	s.mu.Unlock()

	s.emit(events...)
	return result
}

// Generate stores settings and produces a new deck from the current document.
// It is StartGeneration followed by Run.
func (s *Session) Generate(ctx context.Context, settings models.QuizSettings) error {
	p, err := s.StartGeneration(settings)
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

// StartGeneration validates and marks the session as generating. A call made
// while another generation is pending is dropped with ErrGenerationInFlight.
func (s *Session) StartGeneration(settings models.QuizSettings) (*PendingGeneration, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.document == nil {
		s.mu.Unlock()
		return nil, ErrNoDocument
	}
	if s.generating {
		s.mu.Unlock()
		return nil, ErrGenerationInFlight
	}

	s.settings = settings.Clamp(s.settings.Difficulty)
	s.generating = true
	s.touchLocked()
	p := &PendingGeneration{
		session:  s,
		epoch:    s.epoch,
		text:     s.document.Text,
		settings: s.settings,
	}
	started := s.eventLocked(models.EventStateChanged, "", "")
	s.mu.Unlock()

	s.emit(started)
	return p, nil
}

// PendingGeneration is a generation that has been admitted but not yet run.
// Exactly one of Run or Abandon takes effect.
type PendingGeneration struct {
	session  *Session
	epoch    uint64
	text     string
	settings models.QuizSettings

	once sync.Once
}

func (p *PendingGeneration) Settings() models.QuizSettings { return p.settings }

// Run calls the generator and applies its result unless the session moved on.
func (p *PendingGeneration) Run(ctx context.Context) error {
	result := ErrStaleResult
	p.once.Do(func() {
		cards, err := p.session.generate(ctx, p.text, p.settings)
		result = p.session.finishGeneration(p.epoch, cards, err)
	})
	return result
}

// Abandon releases the generating flag without calling the generator.
func (p *PendingGeneration) Abandon() {
	p.once.Do(func() {
		s := p.session
		s.mu.Lock()
		s.generating = false
		s.touchLocked()
		e := s.eventLocked(models.EventStateChanged, "", "")
		s.mu.Unlock()
		s.emit(e)
	})
}

// extract and generate turn adapter panics into errors so the in-flight
// flags are always released.
func (s *Session) extract(ctx context.Context, upload models.Upload) (doc *models.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Session %s: extractor panic: %v", s.id, r)
			doc, err = nil, fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return s.extractor.Extract(ctx, upload.Name, upload.Data)
}

func (s *Session) generate(ctx context.Context, text string, settings models.QuizSettings) (cards []models.Flashcard, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Session %s: generator panic: %v", s.id, r)
			cards, err = nil, fmt.Errorf("generator panic: %v", r)
		}
	}()
	return s.generator.Generate(ctx, text, settings)
}

func (s *Session) finishGeneration(epoch uint64, cards []models.Flashcard, err error) error {
	s.mu.Lock()
	s.generating = false
	s.touchLocked()

	var events []models.SessionEvent
	var result error
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case epoch != s.epoch:
		log.Printf("Session %s: discarding generated deck, session changed", s.id)
		result = ErrStaleResult
	case err != nil:
		log.Printf("Session %s: generation failed: %v", s.id, err)
		result = err
		events = append(events, s.eventLocked(models.EventError, CodeGenerationFailed, msgGenerationFailed))
	case len(cards) == 0:
		log.Printf("WARNING: Session %s: generation returned an empty deck, keeping previous deck", s.id)
		result = ErrEmptyDeck
		events = append(events, s.eventLocked(models.EventWarning, CodeEmptyDeck, msgEmptyDeck))
	default:
		if e, ok := s.closeViewerLocked(); ok {
			events = append(events, e)
		}
		s.deck = append([]models.Flashcard(nil), cards...)
		s.viewer, _ = review.New(s.deck)
		events = append(events,
			s.eventLocked(models.EventDeckReady, "", ""),
			s.eventLocked(models.EventReviewOpened, "", ""),
		)
	}
	events = append(events, s.eventLocked(models.EventStateChanged, "", ""))
	s.mu.Unlock()

	s.emit(events...)
	return result
}

// Reset drops the document and deck and stops reading. Settings are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	var events []models.SessionEvent
	if e, ok := s.closeViewerLocked(); ok {
		events = append(events, e)
	}
	s.stopReadingLocked()
	s.document = nil
	s.deck = nil
	s.epoch++
	s.touchLocked()
	events = append(events, s.eventLocked(models.EventStateChanged, "", ""))
	s.mu.Unlock()

	s.emit(events...)
}

// ToggleReading starts reading the document aloud, or stops it if it is
// already being read. It returns the new reading flag.
func (s *Session) ToggleReading() (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}

	if s.reading {
		s.stopReadingLocked()
		s.touchLocked()
		e := s.eventLocked(models.EventStateChanged, "", "")
		s.mu.Unlock()
		s.emit(e)
		return false, nil
	}

	if s.document == nil {
		s.mu.Unlock()
		return false, ErrNoDocument
	}

	s.readingSeq++
	seq := s.readingSeq
	if err := s.speaker.Start(s.document.Text, SpeechLanguage, func(err error) {
		s.readingFinished(seq, err)
	}); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.reading = true
	s.touchLocked()
	e := s.eventLocked(models.EventReadingStarted, "", "")
	s.mu.Unlock()

	s.emit(e)
	return true, nil
}

func (s *Session) readingFinished(seq uint64, err error) {
	s.mu.Lock()
	if !s.reading || s.readingSeq != seq {
		s.mu.Unlock()
		return
	}
	s.reading = false
	s.touchLocked()

	var events []models.SessionEvent
	if err != nil {
		log.Printf("Session %s: read-aloud failed: %v", s.id, err)
		events = append(events, s.eventLocked(models.EventError, CodeSpeechFailed, msgSpeechFailed))
	}
	events = append(events, s.eventLocked(models.EventReadingFinished, "", ""))
	s.mu.Unlock()

	s.emit(events...)
}

// UpdateSettings stores settings with Count clamped to [3, 20]. An unknown
// difficulty keeps the current one.
func (s *Session) UpdateSettings(settings models.QuizSettings) (models.QuizSettings, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.QuizSettings{}, ErrClosed
	}
	s.settings = settings.Clamp(s.settings.Difficulty)
	applied := s.settings
	s.touchLocked()
	e := s.eventLocked(models.EventStateChanged, "", "")
	s.mu.Unlock()

	s.emit(e)
	return applied, nil
}

// Close tears the session down. Reading is always stopped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var events []models.SessionEvent
	if e, ok := s.closeViewerLocked(); ok {
		events = append(events, e)
	}
	s.stopReadingLocked()
	s.closed = true
	s.touchLocked()
	events = append(events, s.eventLocked(models.EventSessionClosed, "", ""))
	s.mu.Unlock()

	s.emit(events...)
}

func (s *Session) Settings() models.QuizSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(true)
}

// Idle reports whether nothing is running and nothing happened since ttl.
func (s *Session) Idle(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extracting || s.generating || s.reading {
		return false
	}
	return now.Sub(s.updatedAt) > ttl
}

func (s *Session) stopReadingLocked() {
	if !s.reading {
		return
	}
	s.speaker.Stop()
	s.reading = false
	s.readingSeq++
}

func (s *Session) touchLocked() {
	s.updatedAt = time.Now()
}

func (s *Session) snapshotLocked(withText bool) models.SessionSnapshot {
	snap := models.SessionSnapshot{
		ID:         s.id,
		Settings:   s.settings,
		Deck:       append([]models.Flashcard{}, s.deck...),
		Extracting: s.extracting,
		Generating: s.generating,
		Reading:    s.reading,
		ViewerOpen: s.viewer != nil,
		Modes:      models.ActiveModes(s.extracting, s.generating, s.reading),
		UpdatedAt:  s.updatedAt,
	}
	if s.document != nil {
		snap.Document = &models.DocumentSummary{
			Name:      s.document.Name,
			PageCount: s.document.PageCount,
		}
		if withText {
			snap.Document.Text = s.document.Text
		}
	}
	if s.viewer != nil {
		state := s.viewer.State()
		snap.Review = &state
	}
	return snap
}

func (s *Session) eventLocked(t models.EventType, code, message string) models.SessionEvent {
	s.eventSeq++
	return models.SessionEvent{
		Seq:       s.eventSeq,
		Type:      t,
		SessionID: s.id,
		Code:      code,
		Message:   message,
		Snapshot:  s.snapshotLocked(false),
		At:        time.Now(),
	}
}

func (s *Session) emit(events ...models.SessionEvent) {
	if s.observe == nil {
		return
	}
	for _, e := range events {
		s.observe(e)
	}
}
