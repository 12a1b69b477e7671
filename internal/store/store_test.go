package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/classmate/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	// Migrations are idempotent.
	if err := s.migrate(); err != nil {
		t.Errorf("Second migrate failed: %v", err)
	}
}

func TestSaveAndLoadDay(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	entries := []models.ScheduleEntry{
		{ID: 1, Day: models.Monday, Subject: "OS", StartTime: "08:30", EndTime: "09:20", Status: models.EntryStatusAttended, Kind: models.EntryKindLecture},
		{ID: 2, Day: models.Monday, Subject: models.FreeSlotSubject, StartTime: "09:20", EndTime: "10:10", Status: "bogus", Kind: models.EntryKindBreak},
	}
	if err := s.SaveDay(ctx, "u1", models.Monday, entries); err != nil {
		t.Fatalf("SaveDay failed: %v", err)
	}

	week, err := s.LoadWeek(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadWeek failed: %v", err)
	}
	if len(week) != 7 {
		t.Errorf("Expected 7 days, got %d", len(week))
	}
	got := week[models.Monday]
	if len(got) != 2 {
		t.Fatalf("Expected 2 Monday entries, got %d", len(got))
	}
	if got[0].Status != models.EntryStatusAttended {
		t.Errorf("Expected attended, got %s", got[0].Status)
	}
	if got[1].Status != models.EntryStatusScheduled {
		t.Errorf("Expected unknown status coerced to scheduled, got %s", got[1].Status)
	}
	if week[models.Tuesday] == nil || len(week[models.Tuesday]) != 0 {
		t.Error("Expected empty, non-nil Tuesday")
	}

	// Full-day replacement.
	if err := s.SaveDay(ctx, "u1", models.Monday, entries[:1]); err != nil {
		t.Fatalf("SaveDay failed: %v", err)
	}
	week, _ = s.LoadWeek(ctx, "u1")
	if len(week[models.Monday]) != 1 {
		t.Errorf("Expected day replaced, got %d entries", len(week[models.Monday]))
	}

	// Other users are isolated.
	other, _ := s.LoadWeek(ctx, "u2")
	if len(other[models.Monday]) != 0 {
		t.Error("Expected no entries for another user")
	}
}

func TestSaveDayRejectsBadKeys(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.SaveDay(ctx, "u1", "Funday", nil); !errors.Is(err, ErrUnknownDay) {
		t.Errorf("Expected ErrUnknownDay, got %v", err)
	}
	if err := s.SaveDay(ctx, "", models.Monday, nil); !errors.Is(err, ErrEmptyUser) {
		t.Errorf("Expected ErrEmptyUser, got %v", err)
	}
}

func TestUserState(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	// Absent state is empty state.
	state, err := s.LoadUserState(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadUserState failed: %v", err)
	}
	if state.Tasks == nil || len(state.Tasks) != 0 {
		t.Errorf("Expected empty task list, got %v", state.Tasks)
	}

	want := models.UserState{
		Tasks:    []models.Task{{ID: 7, Suggestion: "Review", Kind: models.TaskKindStudy, Duration: "Flexible"}},
		Subjects: []models.SubjectAttendance{{Name: "OS", Attended: 3, Total: 4}},
	}
	if err := s.SaveUserState(ctx, "u1", want); err != nil {
		t.Fatalf("SaveUserState failed: %v", err)
	}
	state, err = s.LoadUserState(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadUserState failed: %v", err)
	}
	if len(state.Tasks) != 1 || state.Tasks[0].Suggestion != "Review" {
		t.Errorf("Unexpected tasks: %+v", state.Tasks)
	}
	if len(state.Subjects) != 1 || state.Subjects[0].Attended != 3 {
		t.Errorf("Unexpected subjects: %+v", state.Subjects)
	}
}

func TestWatchTimetable(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var snapshots []models.WeeklySchedule
	unsub, err := s.WatchTimetable(ctx, "u1", func(w models.WeeklySchedule) {
		mu.Lock()
		snapshots = append(snapshots, w)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("WatchTimetable failed: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snapshots) >= 1
	})

	entries := []models.ScheduleEntry{{ID: 1, Subject: "OS", Kind: models.EntryKindLecture, Status: models.EntryStatusScheduled}}
	if err := s.SaveDay(ctx, "u1", models.Friday, entries); err != nil {
		t.Fatalf("SaveDay failed: %v", err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		last := snapshots[len(snapshots)-1]
		return len(last[models.Friday]) == 1
	})

	// Writes for other users do not notify.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	n := len(snapshots)
	mu.Unlock()
	if err := s.SaveDay(ctx, "u2", models.Friday, entries); err != nil {
		t.Fatalf("SaveDay failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	if len(snapshots) != n {
		t.Errorf("Expected no delivery for another user, got %d new", len(snapshots)-n)
	}
	mu.Unlock()

	unsub()
	if err := s.SaveDay(ctx, "u1", models.Friday, nil); err != nil {
		t.Fatalf("SaveDay failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(snapshots) != n {
		t.Errorf("Expected no delivery after unsubscribe")
	}
}

func TestWatchUserState(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	got := make(chan models.UserState, 8)
	unsub, err := s.WatchUserState(ctx, "u1", func(u models.UserState) { got <- u })
	if err != nil {
		t.Fatalf("WatchUserState failed: %v", err)
	}
	defer unsub()

	select {
	case u := <-got:
		if len(u.Tasks) != 0 {
			t.Errorf("Expected empty initial state, got %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No initial snapshot")
	}

	if err := s.SaveUserState(ctx, "u1", models.UserState{Tasks: []models.Task{{ID: 1, Suggestion: "x"}}}); err != nil {
		t.Fatalf("SaveUserState failed: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-got:
			if len(u.Tasks) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("No snapshot after save")
		}
	}
}

func TestAudit(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	for i, action := range []models.Action{models.ActionAttend, models.ActionMiss} {
		rec := models.AuditRecord{
			UserID:     "u1",
			Subject:    "OS",
			Action:     action,
			Day:        models.Monday,
			EntryID:    int64(i + 1),
			InputsHash: "h",
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AppendAudit(ctx, rec); err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
	}

	recs, err := s.ListAudit(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].Action != models.ActionMiss || recs[0].EntryID != 2 {
		t.Errorf("Expected newest first, got %+v", recs[0])
	}
	if recs[0].ID == "" {
		t.Error("Expected generated ID")
	}
}

func TestScans(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.SaveScan(ctx, models.ScanRecord{UserID: "u1", RawText: "MON OS", Normalized: `[{"day":"MON","subjects":["OS"]}]`}); err != nil {
		t.Fatalf("SaveScan failed: %v", err)
	}
	recs, err := s.ListScans(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListScans failed: %v", err)
	}
	if len(recs) != 1 || recs[0].RawText != "MON OS" {
		t.Errorf("Unexpected scans: %+v", recs)
	}
}

func TestFollowerCoalesces(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	release := make(chan struct{})
	f := Follow(func(ctx context.Context) error {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			<-release
		}
		return nil
	}, nil)
	defer f.Stop()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	})
	// Pile up notifications while the first delivery is blocked.
	for i := 0; i < 10; i++ {
		f.Notify()
	}
	close(release)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	})
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("Expected 2 deliveries, got %d", calls)
	}
}

func TestFollowerRetriesFailedDelivery(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	delivered := false
	f := Follow(func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("store unavailable")
		}
		delivered = true
		return nil
	}, nil)
	defer f.Stop()

	// No Notify after the initial one: the follower must retry on its own.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered
	})
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("Expected retries to stop after success, got %d deliveries", calls)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Ping(ctx)
	if err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func newTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
