package controlplane

import (
	"errors"
	"net/http"

	"github.com/fentz26/classmate/internal/engine"
	"github.com/fentz26/classmate/internal/ingest"
	"github.com/fentz26/classmate/internal/store"
)

// Sentinel errors for control plane operations.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("resource not found")
	ErrServiceClose = errors.New("service closed")
)

// statusFor maps domain errors to HTTP status codes. Domain failures are
// never reported as 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrTaskNotFound),
		errors.Is(err, engine.ErrEntryNotFound),
		errors.Is(err, engine.ErrSubjectNotFound),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnknownDay),
		errors.Is(err, engine.ErrUnknownAction),
		errors.Is(err, engine.ErrEmptySubject),
		errors.Is(err, engine.ErrInvalidCounts),
		errors.Is(err, engine.ErrInvalidTarget),
		errors.Is(err, store.ErrUnknownDay),
		errors.Is(err, store.ErrEmptyUser),
		errors.Is(err, ingest.ErrEmptyScan),
		errors.Is(err, ingest.ErrNoRecognizer),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNoFreeSlot),
		errors.Is(err, engine.ErrBacklogEmpty),
		errors.Is(err, engine.ErrTerminalStatus),
		errors.Is(err, engine.ErrNotRestorable),
		errors.Is(err, engine.ErrDuplicateSubject):
		return http.StatusConflict
	case errors.Is(err, engine.ErrSessionClosed),
		errors.Is(err, ErrServiceClose):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
