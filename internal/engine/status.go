package engine

import (
	"github.com/fentz26/classmate/internal/models"
)

// EntryRef names the entry an action targets: by ID when set, otherwise the
// first scheduled, non-break entry of the day carrying Subject. When every
// entry with that subject is already settled, the first of them is matched.
type EntryRef struct {
	ID      int64  `json:"entry_id,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// Transition describes the outcome of UpdateEntryStatus.
type Transition struct {
	Applied  bool                 `json:"applied"`
	Previous models.ScheduleEntry `json:"previous"`
	Entry    models.ScheduleEntry `json:"entry"`
	Counted  bool                 `json:"counted"`
}

func (s *State) matchEntry(day models.Weekday, ref EntryRef) int {
	settled := -1
	for i, e := range s.week[day] {
		if e.Kind == models.EntryKindBreak {
			continue
		}
		if ref.ID != 0 {
			if e.ID == ref.ID {
				return i
			}
			continue
		}
		if e.Subject != ref.Subject {
			continue
		}
		if e.Status == models.EntryStatusScheduled {
			return i
		}
		if settled < 0 {
			settled = i
		}
	}
	return settled
}

// UpdateEntryStatus applies attend, miss or cancel to a scheduled entry.
// Entries that are no longer scheduled are left alone and reported with
// Applied false.
func (s *State) UpdateEntryStatus(day models.Weekday, ref EntryRef, action models.Action) (Transition, error) {
	if !validDay(day) {
		return Transition{}, ErrUnknownDay
	}
	switch action {
	case models.ActionAttend, models.ActionMiss, models.ActionCancel:
	default:
		return Transition{}, ErrUnknownAction
	}
	i := s.matchEntry(day, ref)
	if i < 0 {
		return Transition{}, ErrEntryNotFound
	}

	e := &s.week[day][i]
	tr := Transition{Previous: e.Clone()}
	if e.Status != models.EntryStatusScheduled {
		tr.Entry = e.Clone()
		return tr, nil
	}
	tr.Applied = true

	switch e.Kind {
	case models.EntryKindTask:
		switch action {
		case models.ActionAttend, models.ActionMiss:
			releaseToFreeSlot(e)
		case models.ActionCancel:
			if s.opts.Cancel == CancelFreeClass {
				e.Status = models.EntryStatusCancelled
			} else {
				releaseToFreeSlot(e)
			}
		}
	case models.EntryKindLecture, models.EntryKindLab:
		switch action {
		case models.ActionAttend:
			e.Status = models.EntryStatusAttended
			tr.Counted = s.countAttendance(e.Subject, action, day, e.ID)
		case models.ActionMiss:
			e.Status = models.EntryStatusMissed
			tr.Counted = s.countAttendance(e.Subject, action, day, e.ID)
		case models.ActionCancel:
			if s.opts.Cancel == CancelFreeClass {
				e.Origin = &models.EntryOrigin{Subject: e.Subject, Kind: e.Kind}
				releaseToFreeSlot(e)
			} else {
				e.Status = models.EntryStatusCancelled
			}
		}
	}
	tr.Entry = e.Clone()
	return tr, nil
}

// RestoreEntry undoes a cancellation. Cancelled entries go back to scheduled;
// an entry that remembers a class gets that class back.
func (s *State) RestoreEntry(day models.Weekday, id int64) (models.ScheduleEntry, error) {
	if !validDay(day) {
		return models.ScheduleEntry{}, ErrUnknownDay
	}
	i := s.entryIndex(day, id)
	if i < 0 {
		return models.ScheduleEntry{}, ErrEntryNotFound
	}
	e := &s.week[day][i]
	switch e.Status {
	case models.EntryStatusAttended, models.EntryStatusMissed:
		return e.Clone(), ErrTerminalStatus
	}
	if e.Status != models.EntryStatusCancelled && e.Origin == nil {
		return e.Clone(), ErrNotRestorable
	}
	if e.Origin != nil {
		e.Subject = e.Origin.Subject
		e.Kind = e.Origin.Kind
		e.Origin = nil
	}
	e.Status = models.EntryStatusScheduled
	return e.Clone(), nil
}

// releaseToFreeSlot turns an entry back into allocatable time. A remembered
// class stays on the entry.
func releaseToFreeSlot(e *models.ScheduleEntry) {
	e.Subject = models.FreeSlotSubject
	e.Kind = models.EntryKindBreak
	e.Status = models.EntryStatusScheduled
}
