// Package models defines the core domain types for classmate.
package models

import (
	"fmt"
	"strings"
	"time"
)

// FreeSlotSubject is the subject carried by an allocatable break entry.
const FreeSlotSubject = "Free Slot"

// EntryKind classifies a schedule entry.
type EntryKind string

const (
	EntryKindLecture EntryKind = "lecture"
	EntryKindLab     EntryKind = "lab"
	EntryKindBreak   EntryKind = "break"
	EntryKindTask    EntryKind = "task"
)

// IsClass reports whether entries of this kind carry attendance.
func (k EntryKind) IsClass() bool {
	return k == EntryKindLecture || k == EntryKindLab
}

// EntryStatus is the scheduled state of an entry.
type EntryStatus string

const (
	EntryStatusScheduled EntryStatus = "scheduled"
	EntryStatusCancelled EntryStatus = "cancelled"
	EntryStatusAttended  EntryStatus = "attended"
	EntryStatusMissed    EntryStatus = "missed"
)

// CoerceStatus maps anything outside the four known states to scheduled.
func CoerceStatus(s string) EntryStatus {
	switch EntryStatus(s) {
	case EntryStatusScheduled, EntryStatusCancelled, EntryStatusAttended, EntryStatusMissed:
		return EntryStatus(s)
	default:
		return EntryStatusScheduled
	}
}

// CoerceKind maps anything outside the four known kinds to lecture.
func CoerceKind(k string) EntryKind {
	switch EntryKind(k) {
	case EntryKindLecture, EntryKindLab, EntryKindBreak, EntryKindTask:
		return EntryKind(k)
	default:
		return EntryKindLecture
	}
}

// EntryOrigin remembers the class an entry held before it was freed or
// overwritten by a task.
type EntryOrigin struct {
	Subject string    `json:"subject"`
	Kind    EntryKind `json:"kind"`
}

// ScheduleEntry is one unit of time on a given day.
type ScheduleEntry struct {
	ID        int64        `json:"id"`
	Day       Weekday      `json:"day"`
	Subject   string       `json:"subject"`
	StartTime string       `json:"startTime"`
	EndTime   string       `json:"endTime"`
	Status    EntryStatus  `json:"status"`
	Kind      EntryKind    `json:"type"`
	Origin    *EntryOrigin `json:"origin,omitempty"`
}

// IsFreeSlot reports whether the entry can receive a task.
func (e ScheduleEntry) IsFreeSlot() bool {
	return e.Subject == FreeSlotSubject
}

// Clone returns a deep copy of the entry.
func (e ScheduleEntry) Clone() ScheduleEntry {
	c := e
	if e.Origin != nil {
		o := *e.Origin
		c.Origin = &o
	}
	return c
}

// TaskKind categorizes backlog tasks.
type TaskKind string

const (
	TaskKindStudy      TaskKind = "study"
	TaskKindCoding     TaskKind = "coding"
	TaskKindWellness   TaskKind = "wellness"
	TaskKindGroupStudy TaskKind = "group-study"
	TaskKindRefresh    TaskKind = "refresh"
)

// Task is an ad-hoc item waiting in the backlog.
type Task struct {
	ID         int64    `json:"id"`
	Suggestion string   `json:"suggestion"`
	Kind       TaskKind `json:"type"`
	Duration   string   `json:"duration"`
	Completed  bool     `json:"completed"`
}

// SubjectAttendance holds the accumulated counters of one subject.
type SubjectAttendance struct {
	Name     string `json:"name"`
	Attended int    `json:"attended"`
	Total    int    `json:"total"`
	Manual   bool   `json:"manual,omitempty"` // added by hand, kept across re-derivation
}

// UserState is the per-user document persisted next to the timetable.
type UserState struct {
	Tasks    []Task              `json:"tasks"`
	Subjects []SubjectAttendance `json:"subjects,omitempty"`
}

// Action is a user action against a schedule entry.
type Action string

const (
	ActionAttend Action = "attend"
	ActionMiss   Action = "miss"
	ActionCancel Action = "cancel"
)

// ParseAction converts a boundary string into an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAttend, ActionMiss, ActionCancel:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// AttendanceEvent records one counted attend/miss.
type AttendanceEvent struct {
	Subject string    `json:"subject"`
	Action  Action    `json:"action"`
	Day     Weekday   `json:"day"`
	EntryID int64     `json:"entry_id"`
	At      time.Time `json:"at"`
}

// ScanRecord archives a committed timetable scan.
type ScanRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	RawText    string    `json:"raw_text"`
	Normalized string    `json:"normalized"` // JSON of the normalized days
	CreatedAt  time.Time `json:"created_at"`
}

// AuditRecord is the durable trace of one counted attendance event.
type AuditRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Subject    string    `json:"subject"`
	Action     Action    `json:"action"`
	Day        Weekday   `json:"day,omitempty"`
	EntryID    int64     `json:"entry_id,omitempty"`
	InputsHash string    `json:"inputs_hash"`
	RecordedAt time.Time `json:"recorded_at"`
}
