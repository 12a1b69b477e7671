package engine

import (
	"strings"
	"time"

	"github.com/fentz26/classmate/internal/models"
)

const clockLayout = "15:04"

// AddTask appends a study task to the backlog.
func (s *State) AddTask(label string) models.Task {
	t := models.Task{
		ID:         s.opts.IDs.Next(),
		Suggestion: strings.TrimSpace(label),
		Kind:       models.TaskKindStudy,
		Duration:   "Flexible",
	}
	s.tasks = append(s.tasks, t)
	return t
}

// Tasks returns a copy of the backlog in FIFO order.
func (s *State) Tasks() []models.Task {
	return append([]models.Task{}, s.tasks...)
}

// MoveTaskToSchedule places a task on a day. The first "Free Slot" entry is
// overwritten in place; failing that the placement policy decides.
func (s *State) MoveTaskToSchedule(task models.Task, day models.Weekday) (models.ScheduleEntry, error) {
	if !validDay(day) {
		return models.ScheduleEntry{}, ErrUnknownDay
	}
	entries := s.week[day]
	for i := range entries {
		if entries[i].IsFreeSlot() {
			e := &entries[i]
			e.Subject = task.Suggestion
			e.Kind = models.EntryKindTask
			e.Status = models.EntryStatusScheduled
			return e.Clone(), nil
		}
	}

	if s.opts.Placement == PlaceFirstFitOnly {
		return models.ScheduleEntry{}, ErrNoFreeSlot
	}

	start := s.opts.DefaultStart
	if n := len(entries); n > 0 {
		start = entries[n-1].EndTime
	}
	// An unreadable end time leaves no place that keeps the day in order.
	from, err := time.Parse(clockLayout, start)
	if err != nil {
		return models.ScheduleEntry{}, ErrNoFreeSlot
	}
	to := from.Add(time.Hour)
	if to.Day() != from.Day() {
		return models.ScheduleEntry{}, ErrNoFreeSlot
	}

	e := models.ScheduleEntry{
		ID:        s.opts.IDs.Next(),
		Day:       day,
		Subject:   task.Suggestion,
		StartTime: from.Format(clockLayout),
		EndTime:   to.Format(clockLayout),
		Status:    models.EntryStatusScheduled,
		Kind:      models.EntryKindTask,
	}
	s.week[day] = append(entries, e)
	return e.Clone(), nil
}

// MoveTaskToScheduleByID moves a backlog task onto a day and removes it from
// the backlog. The backlog is untouched when placement fails.
func (s *State) MoveTaskToScheduleByID(id int64, day models.Weekday) (models.ScheduleEntry, error) {
	i := s.taskIndex(id)
	if i < 0 {
		return models.ScheduleEntry{}, ErrTaskNotFound
	}
	e, err := s.MoveTaskToSchedule(s.tasks[i], day)
	if err != nil {
		return models.ScheduleEntry{}, err
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	return e, nil
}

// CompleteTask toggles the completed flag.
func (s *State) CompleteTask(id int64) (models.Task, error) {
	i := s.taskIndex(id)
	if i < 0 {
		return models.Task{}, ErrTaskNotFound
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	return s.tasks[i], nil
}

// DeleteTask removes a task from the backlog.
func (s *State) DeleteTask(id int64) error {
	i := s.taskIndex(id)
	if i < 0 {
		return ErrTaskNotFound
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	return nil
}

// ReplaceTaskWithNext pops the oldest backlog task onto an entry, whatever the
// entry held before. A class that gets overwritten is remembered for restore.
func (s *State) ReplaceTaskWithNext(day models.Weekday, entryID int64) (models.ScheduleEntry, error) {
	if !validDay(day) {
		return models.ScheduleEntry{}, ErrUnknownDay
	}
	if len(s.tasks) == 0 {
		return models.ScheduleEntry{}, ErrBacklogEmpty
	}
	i := s.entryIndex(day, entryID)
	if i < 0 {
		return models.ScheduleEntry{}, ErrEntryNotFound
	}

	next := s.tasks[0]
	s.tasks = append([]models.Task{}, s.tasks[1:]...)

	e := &s.week[day][i]
	if e.Kind.IsClass() && e.Origin == nil {
		e.Origin = &models.EntryOrigin{Subject: e.Subject, Kind: e.Kind}
	}
	e.Subject = next.Suggestion
	e.Kind = models.EntryKindTask
	e.Status = models.EntryStatusScheduled
	return e.Clone(), nil
}
