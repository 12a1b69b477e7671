package engine

import (
	"strings"

	"github.com/fentz26/classmate/internal/models"
)

// DeriveSubjects builds the subject set from the lecture and lab entries of a
// week, in order of first appearance from Sunday. Counts are carried over from
// previous by name. Previous rows that no longer appear in the week survive
// only when they have history or were added by hand.
func DeriveSubjects(week models.WeeklySchedule, previous []models.SubjectAttendance) []models.SubjectAttendance {
	known := make(map[string]models.SubjectAttendance, len(previous))
	for _, p := range previous {
		known[p.Name] = p
	}

	seen := make(map[string]bool)
	out := []models.SubjectAttendance{}
	for _, day := range models.Weekdays {
		for _, e := range week[day] {
			name := classSubject(e)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			row, ok := known[name]
			if !ok {
				row = models.SubjectAttendance{Name: name}
			}
			out = append(out, row)
		}
	}

	for _, p := range previous {
		if seen[p.Name] {
			continue
		}
		if p.Total > 0 || p.Manual {
			seen[p.Name] = true
			out = append(out, p)
		}
	}
	return out
}

// classSubject is the subject an entry contributes to the subject set. An
// entry that currently holds a task or a free slot still counts for the class
// it replaced.
func classSubject(e models.ScheduleEntry) string {
	if e.Kind.IsClass() {
		return e.Subject
	}
	if e.Origin != nil && e.Origin.Kind.IsClass() {
		return e.Origin.Subject
	}
	return ""
}

// Subjects returns a copy of the attendance rows.
func (s *State) Subjects() []models.SubjectAttendance {
	return append([]models.SubjectAttendance{}, s.subjects...)
}

func (s *State) subjectIndex(name string) int {
	for i, row := range s.subjects {
		if row.Name == name {
			return i
		}
	}
	return -1
}

// HandleAttendanceChange counts one attend or miss against a subject. It
// reports false when the subject is unknown or the action is not counted.
func (s *State) HandleAttendanceChange(subject string, action models.Action) bool {
	return s.countAttendance(subject, action, "", 0)
}

func (s *State) countAttendance(subject string, action models.Action, day models.Weekday, entryID int64) bool {
	switch action {
	case models.ActionAttend, models.ActionMiss:
	default:
		return false
	}
	i := s.subjectIndex(subject)
	if i < 0 {
		return false
	}
	row := &s.subjects[i]
	row.Total++
	if action == models.ActionAttend {
		row.Attended++
	}
	s.events = append(s.events, models.AttendanceEvent{
		Subject: subject,
		Action:  action,
		Day:     day,
		EntryID: entryID,
		At:      s.opts.Now(),
	})
	return true
}

// UpdateSubjectAttendance overrides the counters of a subject.
func (s *State) UpdateSubjectAttendance(name string, attended, total int) (models.SubjectAttendance, error) {
	if attended < 0 || total < 0 || attended > total {
		return models.SubjectAttendance{}, ErrInvalidCounts
	}
	i := s.subjectIndex(name)
	if i < 0 {
		return models.SubjectAttendance{}, ErrSubjectNotFound
	}
	s.subjects[i].Attended = attended
	s.subjects[i].Total = total
	return s.subjects[i], nil
}

// AddSubject adds a zeroed subject that is kept even when the timetable does
// not mention it.
func (s *State) AddSubject(name string) (models.SubjectAttendance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.SubjectAttendance{}, ErrEmptySubject
	}
	if s.subjectIndex(name) >= 0 {
		return models.SubjectAttendance{}, ErrDuplicateSubject
	}
	row := models.SubjectAttendance{Name: name, Manual: true}
	s.subjects = append(s.subjects, row)
	return row, nil
}

// ResetSubject zeroes the counters of a subject.
func (s *State) ResetSubject(name string) (models.SubjectAttendance, error) {
	return s.UpdateSubjectAttendance(name, 0, 0)
}

// DeleteSubject removes a subject row. It comes back on the next
// re-derivation if the timetable still carries it.
func (s *State) DeleteSubject(name string) error {
	i := s.subjectIndex(name)
	if i < 0 {
		return ErrSubjectNotFound
	}
	s.subjects = append(s.subjects[:i:i], s.subjects[i+1:]...)
	return nil
}
