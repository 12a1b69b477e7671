package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/writeback"
)

// echoWindow is how many recently written versions per document are
// recognised as echoes when they come back through a watch.
const echoWindow = 16

// Source streams a user's persisted documents. Each watch delivers the
// current snapshot once and then the latest snapshot after every change.
type Source interface {
	WatchTimetable(ctx context.Context, userID string, fn func(models.WeeklySchedule)) (func(), error)
	WatchUserState(ctx context.Context, userID string, fn func(models.UserState)) (func(), error)
}

// Enqueuer accepts write jobs without blocking.
type Enqueuer interface {
	Enqueue(job writeback.Job) bool
}

type command struct {
	mutate bool
	run    func(st *State, loading bool)
	done   chan struct{}
}

type writeResult struct {
	kind writeback.Kind
	day  models.Weekday
	hash uint64
	ev   models.AttendanceEvent
	err  error
}

// Session owns one user's State. Every operation runs on the session
// goroutine; persistence happens behind it through the writer.
type Session struct {
	userID string
	state  *State
	writer Enqueuer
	logger *slog.Logger

	cmds    chan command
	weeks   chan models.WeeklySchedule
	users   chan models.UserState
	results chan writeResult
	quit    chan struct{}
	done    chan struct{}
	ready   chan struct{}

	closeOnce sync.Once
	unsub     []func()

	// Loop-owned.
	hydrated  bool
	firstWeek *models.WeeklySchedule
	firstUser *models.UserState
	queued    []command
	dayHash   map[models.Weekday]uint64
	userHash  uint64
	wroteDay  map[models.Weekday][]uint64
	wroteUser []uint64
	events    []models.AttendanceEvent
}

// NewSession subscribes to the user's documents and starts the session loop.
// Mutations issued before both first snapshots arrive are held back and run
// in order once they have.
func NewSession(ctx context.Context, userID string, src Source, w Enqueuer, opts Options, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		userID:   userID,
		state:    NewState(opts),
		writer:   w,
		logger:   logger.With("component", "session", "user", userID),
		cmds:     make(chan command),
		weeks:    make(chan models.WeeklySchedule, 1),
		users:    make(chan models.UserState, 1),
		results:  make(chan writeResult, 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
		dayHash:  make(map[models.Weekday]uint64),
		wroteDay: make(map[models.Weekday][]uint64),
	}
	go s.loop()

	unsubWeek, err := src.WatchTimetable(ctx, userID, func(w models.WeeklySchedule) {
		select {
		case s.weeks <- w:
		case <-s.quit:
		}
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.unsub = append(s.unsub, unsubWeek)

	unsubUser, err := src.WatchUserState(ctx, userID, func(u models.UserState) {
		select {
		case s.users <- u:
		case <-s.quit:
		}
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.unsub = append(s.unsub, unsubUser)
	return s, nil
}

// UserID returns the user the session belongs to.
func (s *Session) UserID() string { return s.userID }

// Ready is closed once the session has hydrated.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Close unsubscribes from the store and stops the loop. Commands still
// waiting for hydration fail with ErrSessionClosed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, fn := range s.unsub {
			fn()
		}
		close(s.quit)
		<-s.done
	})
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case c := <-s.cmds:
			s.handle(c)
		case w := <-s.weeks:
			s.onWeek(w)
		case u := <-s.users:
			s.onUser(u)
		case r := <-s.results:
			s.onResult(r)
		}
	}
}

func (s *Session) handle(c command) {
	if c.mutate && !s.hydrated {
		s.queued = append(s.queued, c)
		return
	}
	c.run(s.state, !s.hydrated)
	close(c.done)
	if c.mutate {
		s.flush()
	}
}

func (s *Session) onWeek(w models.WeeklySchedule) {
	if !s.hydrated {
		s.firstWeek = &w
		s.tryHydrate()
		return
	}
	changed := make(map[models.Weekday][]models.ScheduleEntry)
	clean := w.Sanitize()
	for _, day := range models.Weekdays {
		h := hashDoc(normalizeEntries(clean[day]))
		if h == s.dayHash[day] || contains(s.wroteDay[day], h) {
			continue
		}
		s.dayHash[day] = h
		changed[day] = clean[day]
	}
	if len(changed) == 0 {
		return
	}
	s.logger.Info("timetable changed in store", "days", len(changed))
	s.state.ReplaceDays(changed)
	s.flush()
}

func (s *Session) onUser(u models.UserState) {
	if !s.hydrated {
		s.firstUser = &u
		s.tryHydrate()
		return
	}
	h := hashDoc(normalizeUser(u))
	if h == s.userHash || contains(s.wroteUser, h) {
		return
	}
	s.userHash = h
	s.logger.Info("user state changed in store")
	s.state.ReplaceUserState(u)
	s.flush()
}

func (s *Session) tryHydrate() {
	if s.firstWeek == nil || s.firstUser == nil {
		return
	}
	s.state.Hydrate(*s.firstWeek, *s.firstUser)
	clean := s.firstWeek.Sanitize()
	for _, day := range models.Weekdays {
		s.dayHash[day] = hashDoc(normalizeEntries(clean[day]))
	}
	s.userHash = hashDoc(normalizeUser(*s.firstUser))
	s.firstWeek, s.firstUser = nil, nil
	s.hydrated = true
	s.logger.Debug("session hydrated", "queued", len(s.queued))

	queued := s.queued
	s.queued = nil
	for _, c := range queued {
		c.run(s.state, false)
		close(c.done)
	}
	s.flush()
	close(s.ready)
}

// flush enqueues every document whose content differs from what the store
// is known to hold, plus pending attendance events.
func (s *Session) flush() {
	if !s.hydrated {
		return
	}
	s.events = append(s.events, s.state.DrainEvents()...)
	if s.writer == nil {
		s.events = nil
		return
	}

	for _, day := range models.Weekdays {
		entries := normalizeEntries(s.state.Day(day))
		h := hashDoc(entries)
		if h == s.dayHash[day] {
			continue
		}
		s.dayHash[day] = h
		s.wroteDay[day] = remember(s.wroteDay[day], h)
		day := day
		ok := s.writer.Enqueue(writeback.Job{
			UserID:  s.userID,
			Kind:    writeback.KindDay,
			Day:     day,
			Entries: entries,
			Done:    s.reporter(writeResult{kind: writeback.KindDay, day: day, hash: h}),
		})
		if !ok {
			s.dayHash[day] = 0
		}
	}

	user := normalizeUser(s.state.UserState())
	if h := hashDoc(user); h != s.userHash {
		s.userHash = h
		s.wroteUser = remember(s.wroteUser, h)
		ok := s.writer.Enqueue(writeback.Job{
			UserID: s.userID,
			Kind:   writeback.KindUserState,
			State:  user,
			Done:   s.reporter(writeResult{kind: writeback.KindUserState, hash: h}),
		})
		if !ok {
			s.userHash = 0
		}
	}

	pending := s.events
	s.events = nil
	for i, ev := range pending {
		ok := s.writer.Enqueue(writeback.Job{
			UserID: s.userID,
			Kind:   writeback.KindEvents,
			Events: []models.AttendanceEvent{ev},
			Done:   s.reporter(writeResult{kind: writeback.KindEvents, ev: ev}),
		})
		if !ok {
			s.events = append(s.events, pending[i:]...)
			break
		}
	}
}

func (s *Session) reporter(r writeResult) func(error) {
	return func(err error) {
		if err == nil {
			return
		}
		r.err = err
		select {
		case s.results <- r:
		case <-s.quit:
		}
	}
}

// onResult forgets the hash of a failed write so the next flush retries it.
func (s *Session) onResult(r writeResult) {
	s.logger.Warn("write-back failed, will retry", "kind", r.kind, "day", r.day, "error", r.err)
	switch r.kind {
	case writeback.KindDay:
		if s.dayHash[r.day] == r.hash {
			s.dayHash[r.day] = 0
		}
	case writeback.KindUserState:
		if s.userHash == r.hash {
			s.userHash = 0
		}
	case writeback.KindEvents:
		s.events = append(s.events, r.ev)
	}
}

func normalizeEntries(entries []models.ScheduleEntry) []models.ScheduleEntry {
	if entries == nil {
		return []models.ScheduleEntry{}
	}
	return entries
}

func normalizeUser(u models.UserState) models.UserState {
	if u.Tasks == nil {
		u.Tasks = []models.Task{}
	}
	return u
}

func hashDoc(v any) uint64 {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}

func remember(ring []uint64, h uint64) []uint64 {
	ring = append(ring, h)
	if len(ring) > echoWindow {
		ring = ring[len(ring)-echoWindow:]
	}
	return ring
}

func contains(ring []uint64, h uint64) bool {
	for _, v := range ring {
		if v == h {
			return true
		}
	}
	return false
}

func call[T any](ctx context.Context, s *Session, mutate bool, fn func(st *State, loading bool) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	c := command{
		mutate: mutate,
		run: func(st *State, loading bool) {
			out, err = fn(st, loading)
		},
		done: make(chan struct{}),
	}
	select {
	case s.cmds <- c:
	case <-s.done:
		return out, ErrSessionClosed
	case <-ctx.Done():
		return out, ctx.Err()
	}
	select {
	case <-c.done:
		return out, err
	case <-s.done:
		var zero T
		return zero, ErrSessionClosed
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
