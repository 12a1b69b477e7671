package engine

import (
	"context"

	"github.com/fentz26/classmate/internal/models"
)

// View returns a copy of the session state, flagged Loading until hydrated.
func (s *Session) View(ctx context.Context) (View, error) {
	return call(ctx, s, false, func(st *State, loading bool) (View, error) {
		v := st.View()
		v.Loading = loading
		return v, nil
	})
}

// AddTask appends a task to the backlog.
func (s *Session) AddTask(ctx context.Context, label string) (models.Task, error) {
	return call(ctx, s, true, func(st *State, _ bool) (models.Task, error) {
		return st.AddTask(label), nil
	})
}

// MoveTask places a backlog task on a day.
func (s *Session) MoveTask(ctx context.Context, taskID int64, day models.Weekday) (models.ScheduleEntry, error) {
	return call(ctx, s, true, func(st *State, _ bool) (models.ScheduleEntry, error) {
		return st.MoveTaskToScheduleByID(taskID, day)
	})
}

// CompleteTask toggles a task's completed flag.
func (s *Session) CompleteTask(ctx context.Context, taskID int64) (models.Task, error) {
	return call(ctx, s, true, func(st *State, _ bool) (models.Task, error) {
		return st.CompleteTask(taskID)
	})
}

// DeleteTask removes a task from the backlog.
func (s *Session) DeleteTask(ctx context.Context, taskID int64) error {
	_, err := call(ctx, s, true, func(st *State, _ bool) (struct{}, error) {
		return struct{}{}, st.DeleteTask(taskID)
	})
	return err
}

// ReplaceTaskWithNext puts the oldest backlog task on an entry.
func (s *Session) ReplaceTaskWithNext(ctx context.Context, day models.Weekday, entryID int64) (models.ScheduleEntry, error) {
	return call(ctx, s, true, func(st *State, _ bool) (models.ScheduleEntry, error) {
		return st.ReplaceTaskWithNext(day, entryID)
	})
}

// UpdateEntryStatus applies an attendance action to an entry.
func (s *Session) UpdateEntryStatus(ctx context.Context, day models.Weekday, ref EntryRef, action models.Action) (Transition, error) {
	return call(ctx, s, true, func(st *State, _ bool) (Transition, error) {
		return st.UpdateEntryStatus(day, ref, action)
	})
}

// RestoreEntry undoes a cancellation.
func (s *Session) RestoreEntry(ctx context.Context, day models.Weekday, entryID int64) (models.ScheduleEntry, error) {
	return call(ctx, s, true, func(st *State, _ bool) (models.ScheduleEntry, error) {
		return st.RestoreEntry(day, entryID)
	})
}

// ReplaceDays swaps in re-ingested days. Their saves queue on the session's
// writer behind any save it already holds, so the new days land last.
func (s *Session) ReplaceDays(ctx context.Context, days map[models.Weekday][]models.ScheduleEntry) error {
	_, err := call(ctx, s, true, func(st *State, _ bool) (struct{}, error) {
		st.ReplaceDays(days)
		return struct{}{}, nil
	})
	return err
}

// Standings returns every subject with its standing against target.
func (s *Session) Standings(ctx context.Context, target float64) ([]SubjectStanding, error) {
	return call(ctx, s, false, func(st *State, _ bool) ([]SubjectStanding, error) {
		return st.Standings(target)
	})
}

// AddSubject adds a hand-maintained subject.
func (s *Session) AddSubject(ctx context.Context, name string) (models.SubjectAttendance, error) {
	return call(ctx, s, true, func(st *State, _ bool) (models.SubjectAttendance, error) {
		return st.AddSubject(name)
	})
}

// UpdateSubjectAttendance overrides a subject's counters.
func (s *Session) UpdateSubjectAttendance(ctx context.Context, name string, attended, total int) (models.SubjectAttendance, error) {
	return call(ctx, s, true, func(st *State, _ bool) (models.SubjectAttendance, error) {
		return st.UpdateSubjectAttendance(name, attended, total)
	})
}

// ResetSubject zeroes a subject's counters.
func (s *Session) ResetSubject(ctx context.Context, name string) (models.SubjectAttendance, error) {
	return call(ctx, s, true, func(st *State, _ bool) (models.SubjectAttendance, error) {
		return st.ResetSubject(name)
	})
}

// DeleteSubject removes a subject row.
func (s *Session) DeleteSubject(ctx context.Context, name string) error {
	_, err := call(ctx, s, true, func(st *State, _ bool) (struct{}, error) {
		return struct{}{}, st.DeleteSubject(name)
	})
	return err
}

// Advice returns the advice snapshot for target.
func (s *Session) Advice(ctx context.Context, target float64) (Advice, error) {
	return call(ctx, s, false, func(st *State, _ bool) (Advice, error) {
		return st.AdviceSnapshot(target)
	})
}
