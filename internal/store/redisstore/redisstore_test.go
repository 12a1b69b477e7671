package redisstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "cm:u1:day:Monday", DayKey("cm", "u1", models.Monday))
	assert.Equal(t, "cm:u1:state", StateKey("cm", "u1"))
	assert.Equal(t, "cm:u1:audit", AuditKey("cm", "u1"))
	assert.Equal(t, "cm:u1:scans", ScansKey("cm", "u1"))
	assert.Equal(t, "cm:u1:changed:timetable", TimetableChannel("cm", "u1"))
	assert.Equal(t, "cm:u1:changed:state", StateChannel("cm", "u1"))
}

// newTestStore connects to the Redis named by CLASSMATE_TEST_REDIS_ADDR under
// a prefix unique to the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("CLASSMATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CLASSMATE_TEST_REDIS_ADDR not set")
	}
	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.Prefix = fmt.Sprintf("classmate-test-%d", time.Now().UnixNano())
	s, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := s.client.Keys(ctx, cfg.Prefix+":*").Result()
		if len(keys) > 0 {
			s.client.Del(ctx, keys...)
		}
		s.Close()
	})
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	week, err := s.LoadWeek(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, week, 7)
	assert.Empty(t, week[models.Monday])

	entries := []models.ScheduleEntry{{ID: 1, Subject: "OS", Kind: models.EntryKindLecture, Status: "weird"}}
	require.NoError(t, s.SaveDay(ctx, "u1", models.Monday, entries))
	week, err = s.LoadWeek(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, week[models.Monday], 1)
	assert.Equal(t, models.EntryStatusScheduled, week[models.Monday][0].Status)
	assert.Equal(t, models.Monday, week[models.Monday][0].Day)

	assert.ErrorIs(t, s.SaveDay(ctx, "u1", "Funday", nil), store.ErrUnknownDay)

	state, err := s.LoadUserState(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, state.Tasks)

	require.NoError(t, s.SaveUserState(ctx, "u1", models.UserState{Subjects: []models.SubjectAttendance{{Name: "OS", Attended: 1, Total: 2}}}))
	state, err = s.LoadUserState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.Subjects[0].Total)
}

func TestWatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	weeks := make(chan models.WeeklySchedule, 8)
	unsub, err := s.WatchTimetable(ctx, "u1", func(w models.WeeklySchedule) { weeks <- w })
	require.NoError(t, err)
	defer unsub()

	select {
	case w := <-weeks:
		assert.Empty(t, w[models.Tuesday])
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	require.NoError(t, s.SaveDay(ctx, "u1", models.Tuesday, []models.ScheduleEntry{{ID: 2, Subject: "SA", Kind: models.EntryKindLab}}))
	require.Eventually(t, func() bool {
		select {
		case w := <-weeks:
			return len(w[models.Tuesday]) == 1
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHistoryLists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendAudit(ctx, models.AuditRecord{UserID: "u1", Subject: "OS", Action: models.ActionAttend}))
	require.NoError(t, s.AppendAudit(ctx, models.AuditRecord{UserID: "u1", Subject: "OS", Action: models.ActionMiss}))
	recs, err := s.ListAudit(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, models.ActionMiss, recs[0].Action)
	assert.NotEmpty(t, recs[0].ID)

	require.NoError(t, s.SaveScan(ctx, models.ScanRecord{UserID: "u1", RawText: "MON OS"}))
	scans, err := s.ListScans(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "MON OS", scans[0].RawText)
}
