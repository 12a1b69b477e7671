// Package controlplane provides the HTTP API and service layer for classmate.
package controlplane

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/classmate/internal/audit"
	"github.com/fentz26/classmate/internal/engine"
	"github.com/fentz26/classmate/internal/ids"
	"github.com/fentz26/classmate/internal/ingest"
	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/store"
	"github.com/fentz26/classmate/internal/timetable"
	"github.com/fentz26/classmate/internal/writeback"
)

// Options configures the service.
type Options struct {
	Engine engine.Options
	// Target is the attendance percentage used when a request names none.
	Target float64
	// HydrateWait bounds how long a newly opened session is given to load
	// before requests are served from it.
	HydrateWait time.Duration
}

// Service provides the control plane business logic.
type Service struct {
	store    store.Adapter
	writer   *writeback.Writer
	pipeline *ingest.Pipeline
	audit    *audit.Recorder
	opts     Options
	logger   *slog.Logger

	mu       sync.Mutex
	closed   bool
	sessions map[string]*openSession
}

type openSession struct {
	sess   *engine.Session
	opened time.Time
}

// stalled reports a session that has not loaded within wait of opening.
func (o *openSession) stalled(wait time.Duration) bool {
	select {
	case <-o.sess.Ready():
		return false
	default:
		return time.Since(o.opened) >= wait
	}
}

// NewService creates a new control plane service. The audit recorder may be
// nil when the store keeps no audit log.
func NewService(st store.Adapter, w *writeback.Writer, p *ingest.Pipeline, rec *audit.Recorder, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Engine.IDs == nil {
		opts.Engine.IDs = ids.New()
	}
	if opts.Target == 0 {
		opts.Target = engine.DefaultTarget
	}
	if opts.HydrateWait <= 0 {
		opts.HydrateWait = 3 * time.Second
	}
	return &Service{
		store:    st,
		writer:   w,
		pipeline: p,
		audit:    rec,
		opts:     opts,
		logger:   logger.With("component", "service"),
		sessions: make(map[string]*openSession),
	}
}

// Target returns the default attendance target.
func (s *Service) Target() float64 {
	return s.opts.Target
}

// Session returns the user's session, opening it on first use. A cached
// session that never finished loading is closed and opened again.
func (s *Service) Session(ctx context.Context, userID string) (*engine.Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, store.ErrEmptyUser
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClose
	}
	var stale *engine.Session
	if o, ok := s.sessions[userID]; ok {
		if !o.stalled(s.opts.HydrateWait) {
			s.mu.Unlock()
			return o.sess, nil
		}
		delete(s.sessions, userID)
		stale = o.sess
	}
	sess, err := engine.NewSession(ctx, userID, s.store, s.writer, s.opts.Engine, s.logger)
	if err != nil {
		s.mu.Unlock()
		if stale != nil {
			stale.Close()
		}
		return nil, fmt.Errorf("open session: %w", err)
	}
	s.sessions[userID] = &openSession{sess: sess, opened: time.Now()}
	s.mu.Unlock()

	if stale != nil {
		stale.Close()
		s.logger.Warn("reopened session that never loaded", "user", userID)
	} else {
		s.logger.Info("session opened", "user", userID)
	}
	select {
	case <-sess.Ready():
	case <-time.After(s.opts.HydrateWait):
		s.logger.Warn("session still loading", "user", userID)
	case <-ctx.Done():
	}
	return sess, nil
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close closes every open session.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*openSession)
	s.mu.Unlock()

	for _, o := range sessions {
		o.sess.Close()
	}
}

// --- Ingestion ---

// Preview structures raw timetable text without saving it.
func (s *Service) Preview(raw string) ingest.Preview {
	return s.pipeline.Preview(raw)
}

// PreviewGrid structures a grid without saving it.
func (s *Service) PreviewGrid(grid timetable.Grid) ingest.Preview {
	return s.pipeline.PreviewGrid(grid)
}

// Ingest commits raw text for a user. The days are handed to the user's
// session so they are written after any save it still holds; a session that
// has not loaded holds none, and the days go straight to the store.
func (s *Service) Ingest(ctx context.Context, userID, raw string) (ingest.Preview, error) {
	w, err := s.daysWriter(ctx, userID)
	if err != nil {
		return ingest.Preview{}, err
	}
	return s.pipeline.CommitTo(ctx, userID, raw, w)
}

// IngestGrid commits grid input for a user.
func (s *Service) IngestGrid(ctx context.Context, userID string, grid timetable.Grid) (ingest.Preview, error) {
	w, err := s.daysWriter(ctx, userID)
	if err != nil {
		return ingest.Preview{}, err
	}
	return s.pipeline.CommitGridTo(ctx, userID, grid, w)
}

func (s *Service) daysWriter(ctx context.Context, userID string) (ingest.DaysWriter, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	select {
	case <-sess.Ready():
		return sess, nil
	default:
		return nil, nil
	}
}

// Scans lists a user's archived scans when the store keeps them.
func (s *Service) Scans(ctx context.Context, userID string, limit int) ([]models.ScanRecord, error) {
	arch, ok := s.store.(store.ScanArchive)
	if !ok {
		return []models.ScanRecord{}, nil
	}
	return arch.ListScans(ctx, userID, limit)
}

// --- Audit ---

// Audit lists a user's newest attendance audit records.
func (s *Service) Audit(ctx context.Context, userID string, limit int) ([]models.AuditRecord, error) {
	if s.audit == nil {
		return []models.AuditRecord{}, nil
	}
	return s.audit.List(ctx, userID, limit)
}

// WriterStats reports write-back counters.
func (s *Service) WriterStats() writeback.Stats {
	if s.writer == nil {
		return writeback.Stats{}
	}
	return s.writer.GetStats()
}
