package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"matchin-backend/internal/models"
)

const JobFlashcardGeneration = "flashcard-generation"

var (
	ErrPoolStopped = errors.New("worker: pool stopped")
	ErrQueueFull   = errors.New("worker: queue full")
)

// StatusRecorder persists job progress. Failures to record are logged only.
type StatusRecorder interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status, errMsg string) error
}

// Task is a job plus the work to run for it. Drop, if set, is called instead
// of Run when the pool stops before the task is picked up.
type Task struct {
	Job  models.Job
	Run  func(ctx context.Context) error
	Drop func()
}

type Pool struct {
	recorder    StatusRecorder
	workerCount int
	jobTimeout  time.Duration
	queue       chan Task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewPool builds a pool; recorder may be nil.
func NewPool(workerCount, queueSize int, jobTimeout time.Duration, recorder StatusRecorder) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		recorder:    recorder,
		workerCount: workerCount,
		jobTimeout:  jobTimeout,
		queue:       make(chan Task, queueSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

// Stop rejects new tasks, cancels running ones, drops queued ones and waits
// for every worker to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.cancel()
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Submit queues a task without blocking.
func (p *Pool) Submit(t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for t := range p.queue {
		if p.ctx.Err() != nil {
			if t.Drop != nil {
				t.Drop()
			}
			p.record(t.Job, models.JobDropped, "")
			continue
		}
		p.process(id, t)
	}
	log.Printf("Worker %d shutting down", id)
}

func (p *Pool) process(id int, t Task) {
	ctx := p.ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	log.Printf("Worker %d: processing job %s (type: %s)", id, t.Job.ID, t.Job.Type)
	p.record(t.Job, models.JobProcessing, "")
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %d: job %s panicked: %v", id, t.Job.ID, r)
			p.record(t.Job, models.JobFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := t.Run(ctx); err != nil {
		log.Printf("Worker %d: job %s (type: %s) failed: %v", id, t.Job.ID, t.Job.Type, err)
		p.record(t.Job, models.JobFailed, err.Error())
		return
	}
	log.Printf("Worker %d: job %s completed in %s", id, t.Job.ID, time.Since(start).Round(time.Millisecond))
	p.record(t.Job, models.JobCompleted, "")
}

func (p *Pool) record(job models.Job, status, errMsg string) {
	if p.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.recorder.UpdateStatus(ctx, job.ID, status, errMsg); err != nil {
		log.Printf("WARNING: failed to record status %s for job %s: %v", status, job.ID, err)
	}
}
