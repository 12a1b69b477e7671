// Package store provides SQLite-backed persistence for classmate.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/classmate/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides access to the classmate SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	subs   *followers
}

// New creates a new Store and runs migrations.
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL lets watch deliveries read while the writer saves.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &Store{
		db:     db,
		logger: logger.With("component", "store"),
		subs:   newFollowers(),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close stops all watches and closes the database connection.
func (s *Store) Close() error {
	s.subs.stopAll()
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS timetable_days (
		user_id TEXT NOT NULL,
		day TEXT NOT NULL,
		entries TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, day)
	);

	CREATE TABLE IF NOT EXISTS user_state (
		user_id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendance_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		action TEXT NOT NULL,
		day TEXT,
		entry_id INTEGER,
		inputs_hash TEXT NOT NULL,
		recorded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		normalized TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_events_user ON attendance_events(user_id, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_scans_user ON scans(user_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func dayKey(userID string) string  { return userID + "/timetable" }
func userKey(userID string) string { return userID + "/state" }

// --- Timetable Operations ---

// SaveDay replaces one day of a user's timetable.
func (s *Store) SaveDay(ctx context.Context, userID string, day models.Weekday, entries []models.ScheduleEntry) error {
	if err := CheckSave(userID, day); err != nil {
		return err
	}
	if entries == nil {
		entries = []models.ScheduleEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO timetable_days (user_id, day, entries, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, day) DO UPDATE SET entries = excluded.entries, updated_at = excluded.updated_at`,
		userID, string(day), string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save day: %w", err)
	}
	s.subs.notify(dayKey(userID))
	return nil
}

// LoadWeek returns the user's timetable with all seven days present.
func (s *Store) LoadWeek(ctx context.Context, userID string) (models.WeeklySchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, entries FROM timetable_days WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query timetable: %w", err)
	}
	defer rows.Close()

	week := models.NewWeek()
	for rows.Next() {
		var day, data string
		if err := rows.Scan(&day, &data); err != nil {
			return nil, fmt.Errorf("scan timetable day: %w", err)
		}
		var entries []models.ScheduleEntry
		if err := json.Unmarshal([]byte(data), &entries); err != nil {
			s.logger.Warn("skipping undecodable day", "user", userID, "day", day, "error", err)
			continue
		}
		week[models.Weekday(day)] = entries
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return week.Sanitize(), nil
}

// --- User State Operations ---

// SaveUserState replaces the user's state document.
func (s *Store) SaveUserState(ctx context.Context, userID string, state models.UserState) error {
	if userID == "" {
		return ErrEmptyUser
	}
	if state.Tasks == nil {
		state.Tasks = []models.Task{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode user state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_state (user_id, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		userID, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save user state: %w", err)
	}
	s.subs.notify(userKey(userID))
	return nil
}

// LoadUserState returns the user's state, empty when none was saved.
func (s *Store) LoadUserState(ctx context.Context, userID string) (models.UserState, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM user_state WHERE user_id = ?`, userID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return models.UserState{Tasks: []models.Task{}}, nil
	}
	if err != nil {
		return models.UserState{}, fmt.Errorf("query user state: %w", err)
	}

	var state models.UserState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return models.UserState{}, fmt.Errorf("decode user state: %w", err)
	}
	if state.Tasks == nil {
		state.Tasks = []models.Task{}
	}
	return state, nil
}

// --- Watch Operations ---

// WatchTimetable follows the user's timetable.
func (s *Store) WatchTimetable(ctx context.Context, userID string, fn func(models.WeeklySchedule)) (func(), error) {
	if userID == "" {
		return nil, ErrEmptyUser
	}
	f := Follow(func(ctx context.Context) error {
		week, err := s.LoadWeek(ctx, userID)
		if err != nil {
			return err
		}
		fn(week)
		return nil
	}, s.logger.With("watch", "timetable", "user", userID))
	unsub := s.subs.add(dayKey(userID), f)
	f.Notify() // covers saves that raced the registration
	return unsub, nil
}

// WatchUserState follows the user's state document.
func (s *Store) WatchUserState(ctx context.Context, userID string, fn func(models.UserState)) (func(), error) {
	if userID == "" {
		return nil, ErrEmptyUser
	}
	f := Follow(func(ctx context.Context) error {
		state, err := s.LoadUserState(ctx, userID)
		if err != nil {
			return err
		}
		fn(state)
		return nil
	}, s.logger.With("watch", "user_state", "user", userID))
	unsub := s.subs.add(userKey(userID), f)
	f.Notify()
	return unsub, nil
}

// --- Audit Operations ---

// AppendAudit writes an attendance audit record.
func (s *Store) AppendAudit(ctx context.Context, rec models.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance_events (id, user_id, subject, action, day, entry_id, inputs_hash, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Subject, string(rec.Action), string(rec.Day), rec.EntryID, rec.InputsHash, rec.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert attendance event: %w", err)
	}
	return nil
}

// ListAudit returns the newest audit records of a user first.
func (s *Store) ListAudit(ctx context.Context, userID string, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, subject, action, day, entry_id, inputs_hash, recorded_at
		 FROM attendance_events WHERE user_id = ? ORDER BY recorded_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query attendance events: %w", err)
	}
	defer rows.Close()

	var recs []models.AuditRecord
	for rows.Next() {
		var rec models.AuditRecord
		var action, day sql.NullString
		var entryID sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Subject, &action, &day, &entryID, &rec.InputsHash, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan attendance event: %w", err)
		}
		rec.Action = models.Action(action.String)
		rec.Day = models.Weekday(day.String)
		rec.EntryID = entryID.Int64
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// --- Scan Operations ---

// SaveScan archives a committed scan.
func (s *Store) SaveScan(ctx context.Context, rec models.ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, user_id, raw_text, normalized, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.RawText, rec.Normalized, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

// ListScans returns the newest scans of a user first.
func (s *Store) ListScans(ctx context.Context, userID string, limit int) ([]models.ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, raw_text, normalized, created_at FROM scans WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var recs []models.ScanRecord
	for rows.Next() {
		var rec models.ScanRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.RawText, &rec.Normalized, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

var (
	_ Adapter     = (*Store)(nil)
	_ ScanArchive = (*Store)(nil)
	_ AuditLog    = (*Store)(nil)
)
