package writeback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fentz26/classmate/internal/models"
)

// Kind identifies the document a job writes.
type Kind string

const (
	KindDay       Kind = "day"
	KindUserState Kind = "user_state"
	KindEvents    Kind = "events"
)

// Job is one immutable write. Done, when set, is called from the worker
// goroutine with the outcome.
type Job struct {
	UserID  string
	Kind    Kind
	Day     models.Weekday
	Entries []models.ScheduleEntry
	State   models.UserState
	Events  []models.AttendanceEvent
	Done    func(error)
}

// Store is the persistence side the writer saves documents to.
type Store interface {
	SaveDay(ctx context.Context, userID string, day models.Weekday, entries []models.ScheduleEntry) error
	SaveUserState(ctx context.Context, userID string, state models.UserState) error
}

// EventSink receives counted attendance events.
type EventSink interface {
	Record(ctx context.Context, userID string, ev models.AttendanceEvent) error
}

// Writer drains a bounded queue of jobs on a single goroutine, so writes for a
// document land in the order they were enqueued.
type Writer struct {
	store  Store
	events EventSink
	config *Config
	logger *slog.Logger
	queue  chan Job

	mu      sync.Mutex
	stopped bool
	stats   Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Stats counts writer outcomes.
type Stats struct {
	Written int `json:"written"`
	Failed  int `json:"failed"`
	Dropped int `json:"dropped"`
	Pending int `json:"pending"`
}

// New creates a writer. A nil sink discards attendance events.
func New(s Store, events EventSink, cfg *Config, logger *slog.Logger) *Writer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Writer{
		store:  s,
		events: events,
		config: cfg,
		logger: logger.With("component", "writeback"),
		queue:  make(chan Job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the worker loop.
func (w *Writer) Start() {
	w.wg.Add(1)
	go w.loop()
	w.logger.Info("writer started", "queue_size", w.config.QueueSize)
}

// Stop refuses new jobs, flushes what is queued and waits for the loop.
func (w *Writer) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	w.logger.Info("writer stopped")
}

// Enqueue hands a job to the worker without blocking. It reports false when
// the queue is full or the writer is stopped; the job is then not written and
// its Done is not called.
func (w *Writer) Enqueue(job Job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		w.stats.Dropped++
		return false
	}
	select {
	case w.queue <- job:
		return true
	default:
		w.stats.Dropped++
		w.logger.Warn("queue full, dropping write", "user", job.UserID, "kind", job.Kind, "day", job.Day)
		return false
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case job := <-w.queue:
			w.process(job)
		case <-w.ctx.Done():
			for {
				select {
				case job := <-w.queue:
					w.process(job)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) process(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	err := w.write(ctx, job)
	cancel()

	w.mu.Lock()
	if err != nil {
		w.stats.Failed++
	} else {
		w.stats.Written++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("write failed", "user", job.UserID, "kind", job.Kind, "day", job.Day, "error", err)
	}
	if job.Done != nil {
		job.Done(err)
	}
}

func (w *Writer) write(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindDay:
		return w.store.SaveDay(ctx, job.UserID, job.Day, job.Entries)
	case KindUserState:
		return w.store.SaveUserState(ctx, job.UserID, job.State)
	case KindEvents:
		if w.events == nil {
			return nil
		}
		for _, ev := range job.Events {
			if err := w.events.Record(ctx, job.UserID, ev); err != nil {
				return fmt.Errorf("record attendance event: %w", err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// GetStats returns current writer statistics.
func (w *Writer) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.stats
	st.Pending = len(w.queue)
	return st
}
