package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/writeback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource hands out snapshots only when the test pushes them.
type fakeSource struct {
	mu     sync.Mutex
	weekFn func(models.WeeklySchedule)
	userFn func(models.UserState)
}

func (f *fakeSource) WatchTimetable(ctx context.Context, userID string, fn func(models.WeeklySchedule)) (func(), error) {
	f.mu.Lock()
	f.weekFn = fn
	f.mu.Unlock()
	return func() {}, nil
}

func (f *fakeSource) WatchUserState(ctx context.Context, userID string, fn func(models.UserState)) (func(), error) {
	f.mu.Lock()
	f.userFn = fn
	f.mu.Unlock()
	return func() {}, nil
}

func (f *fakeSource) pushWeek(w models.WeeklySchedule) {
	f.mu.Lock()
	fn := f.weekFn
	f.mu.Unlock()
	fn(w)
}

func (f *fakeSource) pushUser(u models.UserState) {
	f.mu.Lock()
	fn := f.userFn
	f.mu.Unlock()
	fn(u)
}

type fakeWriter struct {
	mu     sync.Mutex
	jobs   []writeback.Job
	reject bool
	fail   error
}

func (f *fakeWriter) Enqueue(job writeback.Job) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	f.jobs = append(f.jobs, job)
	if f.fail != nil && job.Done != nil {
		go job.Done(f.fail)
	}
	return true
}

func (f *fakeWriter) take() []writeback.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	jobs := f.jobs
	f.jobs = nil
	return jobs
}

func (f *fakeWriter) set(reject bool, fail error) {
	f.mu.Lock()
	f.reject, f.fail = reject, fail
	f.mu.Unlock()
}

func daysWritten(jobs []writeback.Job) []models.Weekday {
	var days []models.Weekday
	for _, j := range jobs {
		if j.Kind == writeback.KindDay {
			days = append(days, j.Day)
		}
	}
	return days
}

func countKind(jobs []writeback.Job, kind writeback.Kind) int {
	n := 0
	for _, j := range jobs {
		if j.Kind == kind {
			n++
		}
	}
	return n
}

func newTestSession(t *testing.T, opts Options) (*Session, *fakeSource, *fakeWriter) {
	t.Helper()
	src := &fakeSource{}
	w := &fakeWriter{}
	s, err := NewSession(context.Background(), "u1", src, w, opts, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, src, w
}

func hydrate(t *testing.T, s *Session, src *fakeSource, week models.WeeklySchedule, user models.UserState) {
	t.Helper()
	src.pushWeek(week)
	src.pushUser(user)
	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not hydrate")
	}
}

func TestSessionHydrationGate(t *testing.T) {
	s, src, w := newTestSession(t, Options{})
	ctx := context.Background()

	v, err := s.View(ctx)
	require.NoError(t, err)
	assert.True(t, v.Loading)
	assert.Len(t, v.Week, 7)

	added := make(chan models.Task, 1)
	go func() {
		task, err := s.AddTask(ctx, "Review DSA")
		assert.NoError(t, err)
		added <- task
	}()

	select {
	case <-added:
		t.Fatal("mutation ran before hydration")
	case <-time.After(50 * time.Millisecond):
	}
	src.pushWeek(testWeek())
	assert.Empty(t, w.take(), "no write-back before hydration")

	src.pushUser(models.UserState{})
	var task models.Task
	select {
	case task = <-added:
	case <-time.After(2 * time.Second):
		t.Fatal("queued mutation never ran")
	}

	v, err = s.View(ctx)
	require.NoError(t, err)
	assert.False(t, v.Loading)
	require.Len(t, v.Tasks, 1)
	assert.Equal(t, task.ID, v.Tasks[0].ID)
	assert.Len(t, v.Subjects, 3)

	jobs := w.take()
	assert.Empty(t, daysWritten(jobs), "unchanged days are not written")
	assert.Equal(t, 1, countKind(jobs, writeback.KindUserState))
}

func TestSessionWritesChangedDaysOnly(t *testing.T) {
	s, src, w := newTestSession(t, Options{})
	ctx := context.Background()
	hydrate(t, s, src, testWeek(), models.UserState{})
	w.take()

	tr, err := s.UpdateEntryStatus(ctx, models.Monday, EntryRef{ID: 1}, models.ActionAttend)
	require.NoError(t, err)
	require.True(t, tr.Counted)

	jobs := w.take()
	assert.Equal(t, []models.Weekday{models.Monday}, daysWritten(jobs))
	assert.Equal(t, 1, countKind(jobs, writeback.KindUserState))
	require.Equal(t, 1, countKind(jobs, writeback.KindEvents))

	// Repeating the attend is a no-op and writes nothing.
	_, err = s.UpdateEntryStatus(ctx, models.Monday, EntryRef{ID: 1}, models.ActionAttend)
	require.NoError(t, err)
	assert.Empty(t, w.take())
}

func TestSessionIgnoresEchoesAndAdoptsReingestion(t *testing.T) {
	s, src, w := newTestSession(t, Options{})
	ctx := context.Background()
	hydrate(t, s, src, testWeek(), models.UserState{})

	_, err := s.UpdateEntryStatus(ctx, models.Monday, EntryRef{ID: 1}, models.ActionAttend)
	require.NoError(t, err)
	var written []models.ScheduleEntry
	for _, j := range w.take() {
		if j.Kind == writeback.KindDay {
			written = j.Entries
		}
	}
	require.NotEmpty(t, written)

	// The store echoing our own write back must not disturb state.
	echo := testWeek()
	echo[models.Monday] = written
	src.pushWeek(echo)

	v, err := s.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusAttended, v.Week[models.Monday][0].Status)
	assert.Equal(t, 1, v.Subjects[0].Total)

	// A re-ingested Wednesday is adopted and its subject joins the set.
	reingest := echo
	reingest[models.Wednesday] = []models.ScheduleEntry{entry(20, models.Wednesday, "TOC", models.EntryKindLecture, "08:30", "09:20")}
	src.pushWeek(reingest)

	require.Eventually(t, func() bool {
		v, err := s.View(ctx)
		return err == nil && len(v.Week[models.Wednesday]) == 1 && len(v.Subjects) == 4
	}, 2*time.Second, 10*time.Millisecond)

	v, err = s.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TOC", v.Subjects[3].Name)
	assert.Equal(t, 1, v.Subjects[0].Total, "counts survive re-derivation")
	assert.Empty(t, daysWritten(w.take()), "adopted days are not written back")
}

func TestSessionReingestionLandsAfterQueuedSave(t *testing.T) {
	s, src, w := newTestSession(t, Options{})
	ctx := context.Background()
	hydrate(t, s, src, testWeek(), models.UserState{})

	// A Monday save is still queued when the new timetable arrives.
	_, err := s.UpdateEntryStatus(ctx, models.Monday, EntryRef{ID: 1}, models.ActionAttend)
	require.NoError(t, err)
	scanned := []models.ScheduleEntry{entry(30, models.Monday, "TOC", models.EntryKindLecture, "08:30", "09:20")}
	require.NoError(t, s.ReplaceDays(ctx, map[models.Weekday][]models.ScheduleEntry{models.Monday: scanned}))

	var mondays [][]models.ScheduleEntry
	for _, j := range w.take() {
		if j.Kind == writeback.KindDay && j.Day == models.Monday {
			mondays = append(mondays, j.Entries)
		}
	}
	require.Len(t, mondays, 2)
	assert.Equal(t, models.EntryStatusAttended, mondays[0][0].Status)
	require.Len(t, mondays[1], 1)
	assert.Equal(t, "TOC", mondays[1][0].Subject, "scanned day is written last")

	// The store replays both saves in order.
	stale := testWeek()
	stale[models.Monday] = mondays[0]
	src.pushWeek(stale)
	fresh := testWeek()
	fresh[models.Monday] = mondays[1]
	src.pushWeek(fresh)

	v, err := s.View(ctx)
	require.NoError(t, err)
	require.Len(t, v.Week[models.Monday], 1)
	assert.Equal(t, "TOC", v.Week[models.Monday][0].Subject)
	assert.Empty(t, daysWritten(w.take()), "echoes are not written again")
}

func TestSessionRetriesFailedWrites(t *testing.T) {
	s, src, w := newTestSession(t, Options{})
	ctx := context.Background()
	hydrate(t, s, src, testWeek(), models.UserState{})
	w.take()

	w.set(true, nil)
	_, err := s.UpdateEntryStatus(ctx, models.Tuesday, EntryRef{ID: 10}, models.ActionMiss)
	require.NoError(t, err)
	assert.Empty(t, w.take())

	w.set(false, nil)
	_, err = s.AddTask(ctx, "anything")
	require.NoError(t, err)
	jobs := w.take()
	assert.Equal(t, []models.Weekday{models.Tuesday}, daysWritten(jobs))
	assert.Equal(t, 1, countKind(jobs, writeback.KindEvents), "held event is retried")

	// A write that fails asynchronously is retried on the next mutation.
	w.set(false, errors.New("store down"))
	_, err = s.UpdateEntryStatus(ctx, models.Tuesday, EntryRef{ID: 11}, models.ActionAttend)
	require.NoError(t, err)
	require.Len(t, daysWritten(w.take()), 1)

	w.set(false, nil)
	require.Eventually(t, func() bool {
		if _, err := s.AddTask(ctx, "again"); err != nil {
			return false
		}
		return len(daysWritten(w.take())) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSessionClose(t *testing.T) {
	src := &fakeSource{}
	s, err := NewSession(context.Background(), "u1", src, &fakeWriter{}, Options{}, nil)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := s.AddTask(context.Background(), "never hydrated")
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending command not released")
	}
	_, err = s.View(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}
