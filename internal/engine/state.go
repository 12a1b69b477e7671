// Package engine holds the per-user scheduling and attendance state machine
// and the session that owns it.
package engine

import (
	"time"

	"github.com/fentz26/classmate/internal/ids"
	"github.com/fentz26/classmate/internal/models"
)

// DefaultAppendStart is where an appended task starts on an empty day.
const DefaultAppendStart = "17:00"

// Options tune engine behaviour.
type Options struct {
	Placement    PlacementPolicy
	Cancel       CancelPolicy
	DefaultStart string
	IDs          *ids.Generator
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Placement == "" {
		o.Placement = PlaceFirstFitThenAppend
	}
	if o.Cancel == "" {
		o.Cancel = CancelKeepClass
	}
	if o.DefaultStart == "" {
		o.DefaultStart = DefaultAppendStart
	}
	if o.IDs == nil {
		o.IDs = ids.New()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// View is a read-only copy of a user's state.
type View struct {
	Loading  bool                       `json:"loading"`
	Week     models.WeeklySchedule      `json:"week"`
	Tasks    []models.Task              `json:"tasks"`
	Subjects []models.SubjectAttendance `json:"subjects"`
}

// State is one user's schedule, backlog and attendance. It is not safe for
// concurrent use; a Session serializes access to it.
type State struct {
	opts     Options
	week     models.WeeklySchedule
	tasks    []models.Task
	subjects []models.SubjectAttendance
	events   []models.AttendanceEvent
}

// NewState returns an empty state.
func NewState(opts Options) *State {
	return &State{
		opts:     opts.withDefaults(),
		week:     models.NewWeek(),
		tasks:    []models.Task{},
		subjects: []models.SubjectAttendance{},
	}
}

// Hydrate replaces the whole state with loaded documents and derives the
// subject set from the timetable, carrying over persisted counts.
func (s *State) Hydrate(week models.WeeklySchedule, user models.UserState) {
	s.week = week.Sanitize()
	s.tasks = append([]models.Task{}, user.Tasks...)
	s.subjects = DeriveSubjects(s.week, user.Subjects)
	s.observeIDs()
}

// ReplaceDays swaps in re-ingested days and re-derives the subject set.
func (s *State) ReplaceDays(days map[models.Weekday][]models.ScheduleEntry) {
	if len(days) == 0 {
		return
	}
	next := s.week.Clone()
	for day, entries := range days {
		next[day] = entries
	}
	s.week = next.Sanitize()
	s.subjects = DeriveSubjects(s.week, s.subjects)
	s.observeIDs()
}

// View returns a deep copy of the state.
func (s *State) View() View {
	return View{
		Week:     s.week.Clone(),
		Tasks:    append([]models.Task{}, s.tasks...),
		Subjects: append([]models.SubjectAttendance{}, s.subjects...),
	}
}

// Day returns a copy of one day's entries.
func (s *State) Day(day models.Weekday) []models.ScheduleEntry {
	entries := s.week[day]
	out := make([]models.ScheduleEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// UserState returns the persisted per-user document.
func (s *State) UserState() models.UserState {
	return models.UserState{
		Tasks:    append([]models.Task{}, s.tasks...),
		Subjects: append([]models.SubjectAttendance{}, s.subjects...),
	}
}

// DrainEvents returns and clears the attendance events recorded since the
// previous call.
func (s *State) DrainEvents() []models.AttendanceEvent {
	ev := s.events
	s.events = nil
	return ev
}

func (s *State) observeIDs() {
	for _, entries := range s.week {
		for _, e := range entries {
			s.opts.IDs.Observe(e.ID)
		}
	}
	for _, t := range s.tasks {
		s.opts.IDs.Observe(t.ID)
	}
}

func validDay(day models.Weekday) bool {
	for _, d := range models.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

func (s *State) entryIndex(day models.Weekday, id int64) int {
	for i, e := range s.week[day] {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *State) taskIndex(id int64) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ReplaceUserState adopts a user document changed outside this state.
func (s *State) ReplaceUserState(user models.UserState) {
	s.tasks = append([]models.Task{}, user.Tasks...)
	s.subjects = DeriveSubjects(s.week, user.Subjects)
	s.observeIDs()
}
