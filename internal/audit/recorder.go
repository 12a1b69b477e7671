// Package audit records counted attendance events for classmate.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/store"
)

// Recorder writes one audit record per counted attend or miss.
type Recorder struct {
	log store.AuditLog
	now func() time.Time
}

// NewRecorder creates a recorder over an audit log.
func NewRecorder(log store.AuditLog) *Recorder {
	return &Recorder{log: log, now: time.Now}
}

// Record writes the audit record of an attendance event.
func (r *Recorder) Record(ctx context.Context, userID string, ev models.AttendanceEvent) error {
	at := ev.At
	if at.IsZero() {
		at = r.now()
	}
	rec := models.AuditRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		Subject:    ev.Subject,
		Action:     ev.Action,
		Day:        ev.Day,
		EntryID:    ev.EntryID,
		InputsHash: hashInputs(ev),
		RecordedAt: at.UTC(),
	}
	if err := r.log.AppendAudit(ctx, rec); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// List returns a user's newest audit records first.
func (r *Recorder) List(ctx context.Context, userID string, limit int) ([]models.AuditRecord, error) {
	return r.log.ListAudit(ctx, userID, limit)
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
