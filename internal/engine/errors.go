package engine

import "errors"

// Sentinel errors for engine operations. None of them leave partial state.
var (
	ErrUnknownDay       = errors.New("unknown day")
	ErrUnknownAction    = errors.New("unknown action")
	ErrTaskNotFound     = errors.New("task not found")
	ErrEntryNotFound    = errors.New("schedule entry not found")
	ErrNoFreeSlot       = errors.New("no free slot available")
	ErrBacklogEmpty     = errors.New("task backlog is empty")
	ErrTerminalStatus   = errors.New("entry already attended or missed")
	ErrNotRestorable    = errors.New("entry has nothing to restore")
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrDuplicateSubject = errors.New("subject already exists")
	ErrEmptySubject     = errors.New("subject name cannot be empty")
	ErrInvalidCounts    = errors.New("attended must be between 0 and total")
	ErrInvalidTarget    = errors.New("target percentage must be between 0 and 100")
	ErrSessionClosed    = errors.New("session closed")
)
