package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"matchin-backend/internal/models"
)

const (
	archiveQueueSize    = 256
	archiveWriteTimeout = 10 * time.Second
)

type DeckArchive interface {
	SaveDeck(ctx context.Context, d *models.StoredDeck) error
}

type StudyLog interface {
	Start(ctx context.Context, s *models.StudySession) error
	Stop(ctx context.Context, id uuid.UUID) error
}

// Archiver persists generated decks and viewer spans from session events.
// Writes happen on a single goroutine in event order; failures are logged
// and never reach the session.
type Archiver struct {
	decks   DeckArchive
	studies StudyLog

	events   chan models.SessionEvent
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// owned by the loop goroutine
	lastDeck map[uuid.UUID]uuid.UUID
	open     map[uuid.UUID]uuid.UUID
}

func NewArchiver(decks DeckArchive, studies StudyLog) *Archiver {
	return &Archiver{
		decks:    decks,
		studies:  studies,
		events:   make(chan models.SessionEvent, archiveQueueSize),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		lastDeck: make(map[uuid.UUID]uuid.UUID),
		open:     make(map[uuid.UUID]uuid.UUID),
	}
}

func (a *Archiver) Start() {
	go a.loop()
	log.Printf("Archiver started")
}

// Stop writes whatever is queued, then returns.
func (a *Archiver) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		<-a.done
	})
}

// Observe is a session observer. It never blocks: when the queue is full the
// event is dropped.
func (a *Archiver) Observe(e models.SessionEvent) {
	switch e.Type {
	case models.EventDeckReady, models.EventReviewOpened, models.EventReviewClosed, models.EventSessionClosed:
	default:
		return
	}
	select {
	case a.events <- e:
	default:
		log.Printf("WARNING: archive queue full, dropping %s for session %s", e.Type, e.SessionID)
	}
}

func (a *Archiver) loop() {
	defer close(a.done)
	for {
		select {
		case e := <-a.events:
			a.handle(e)
		case <-a.stopChan:
			for {
				select {
				case e := <-a.events:
					a.handle(e)
				default:
					return
				}
			}
		}
	}
}

func (a *Archiver) handle(e models.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveWriteTimeout)
	defer cancel()

	switch e.Type {
	case models.EventDeckReady:
		d := &models.StoredDeck{
			SessionID: e.SessionID,
			Settings:  e.Snapshot.Settings,
			Cards:     e.Snapshot.Deck,
		}
		if doc := e.Snapshot.Document; doc != nil {
			d.DocumentName = doc.Name
			d.PageCount = doc.PageCount
		}
		if err := a.decks.SaveDeck(ctx, d); err != nil {
			log.Printf("WARNING: failed to archive deck for session %s: %v", e.SessionID, err)
			delete(a.lastDeck, e.SessionID)
			return
		}
		a.lastDeck[e.SessionID] = d.ID

	case models.EventReviewOpened:
		a.closeStudy(ctx, e.SessionID)
		s := &models.StudySession{SessionID: e.SessionID}
		if e.Snapshot.Review != nil {
			s.CardCount = e.Snapshot.Review.Size
		}
		if deckID, ok := a.lastDeck[e.SessionID]; ok {
			s.DeckID = &deckID
		}
		if err := a.studies.Start(ctx, s); err != nil {
			log.Printf("WARNING: failed to start study session for %s: %v", e.SessionID, err)
			return
		}
		a.open[e.SessionID] = s.ID

	case models.EventReviewClosed:
		a.closeStudy(ctx, e.SessionID)

	case models.EventSessionClosed:
		a.closeStudy(ctx, e.SessionID)
		delete(a.lastDeck, e.SessionID)
	}
}

func (a *Archiver) closeStudy(ctx context.Context, sessionID uuid.UUID) {
	id, ok := a.open[sessionID]
	if !ok {
		return
	}
	delete(a.open, sessionID)
	if err := a.studies.Stop(ctx, id); err != nil {
		log.Printf("WARNING: failed to stop study session %s: %v", id, err)
	}
}
