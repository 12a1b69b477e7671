package store

import (
	"context"
	"errors"

	"github.com/fentz26/classmate/internal/models"
)

var (
	// ErrUnknownDay is returned when a day outside Sunday..Saturday is saved.
	ErrUnknownDay = errors.New("unknown day")
	// ErrEmptyUser is returned when no user ID is given.
	ErrEmptyUser = errors.New("user id is required")
)

// Adapter is the persistence boundary for timetables and user state.
//
// Watches deliver the current snapshot once, asynchronously, and then the
// latest snapshot after every change; bursts of changes may be coalesced.
// Absent documents are delivered as empty state. The returned function
// cancels the subscription. The context only bounds subscription setup.
type Adapter interface {
	SaveDay(ctx context.Context, userID string, day models.Weekday, entries []models.ScheduleEntry) error
	SaveUserState(ctx context.Context, userID string, state models.UserState) error
	LoadWeek(ctx context.Context, userID string) (models.WeeklySchedule, error)
	LoadUserState(ctx context.Context, userID string) (models.UserState, error)
	WatchTimetable(ctx context.Context, userID string, fn func(models.WeeklySchedule)) (func(), error)
	WatchUserState(ctx context.Context, userID string, fn func(models.UserState)) (func(), error)
	Close() error
}

// ScanArchive keeps committed timetable scans.
type ScanArchive interface {
	SaveScan(ctx context.Context, rec models.ScanRecord) error
	ListScans(ctx context.Context, userID string, limit int) ([]models.ScanRecord, error)
}

// AuditLog keeps attendance audit records.
type AuditLog interface {
	AppendAudit(ctx context.Context, rec models.AuditRecord) error
	ListAudit(ctx context.Context, userID string, limit int) ([]models.AuditRecord, error)
}

func checkDay(day models.Weekday) error {
	for _, d := range models.Weekdays {
		if d == day {
			return nil
		}
	}
	return ErrUnknownDay
}

// CheckSave validates the keys of a day write.
func CheckSave(userID string, day models.Weekday) error {
	if userID == "" {
		return ErrEmptyUser
	}
	return checkDay(day)
}
