package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fentz26/classmate/internal/connectors"
	"github.com/fentz26/classmate/internal/ids"
	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/store"
	"github.com/fentz26/classmate/internal/timetable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	text string
	err  error
}

func (f fakeRecognizer) Name() string { return "fake" }

func (f fakeRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	return f.text, f.err
}

func newTestPipeline(t *testing.T, rec connectors.Recognizer, catalog timetable.Catalog) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	if catalog == nil {
		catalog = timetable.DefaultCatalog()
	}
	p := New(rec, timetable.NewNormalizer(nil), timetable.NewStructurer(catalog, ids.New()), st, nil)
	return p, st
}

func TestPreviewDropsLunch(t *testing.T) {
	catalog := timetable.DefaultCatalog()[:3]
	p, _ := newTestPipeline(t, nil, catalog)

	pv := p.Preview("MON OS - LUNCH")
	assert.Len(t, pv.Slots, 3)
	require.Contains(t, pv.Entries, models.Monday)

	entries := pv.Entries[models.Monday]
	require.Len(t, entries, 2)
	assert.Equal(t, "OS", entries[0].Subject)
	assert.Equal(t, models.EntryKindLecture, entries[0].Kind)
	assert.Equal(t, models.FreeSlotSubject, entries[1].Subject)
	assert.Equal(t, models.EntryKindBreak, entries[1].Kind)
	assert.Equal(t, []models.Weekday{models.Monday}, pv.Days())
}

func TestPreviewFullWeek(t *testing.T) {
	p, _ := newTestPipeline(t, nil, nil)
	raw := "MON A B C D E F G H\nTUE A B C D E F G H\nWED A B C D E F G H\nTHU A B C D E F G H\nFRI A B C D E F G H\n"

	pv := p.Preview(raw)
	assert.Len(t, pv.Slots, 5*len(timetable.DefaultCatalog()))
	assert.Len(t, pv.Days(), 5)
}

func TestCommitReplacesScannedDaysOnly(t *testing.T) {
	p, st := newTestPipeline(t, nil, nil)
	ctx := context.Background()

	keep := []models.ScheduleEntry{{ID: 1, Day: models.Friday, Subject: "SA", Kind: models.EntryKindLab, Status: models.EntryStatusScheduled}}
	require.NoError(t, st.SaveDay(ctx, "u1", models.Friday, keep))

	pv, err := p.Commit(ctx, "u1", "MON OS DBMS\nTUE LUNCH")
	require.NoError(t, err)
	assert.Equal(t, []models.Weekday{models.Monday, models.Tuesday}, pv.Days())

	week, err := st.LoadWeek(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, week[models.Monday], 2)
	assert.Empty(t, week[models.Tuesday])
	assert.Len(t, week[models.Friday], 1, "unscanned day must be untouched")

	scans, err := st.ListScans(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Contains(t, scans[0].Normalized, `"MON"`)
}

type recordingWriter struct {
	batches []map[models.Weekday][]models.ScheduleEntry
	err     error
}

func (w *recordingWriter) ReplaceDays(ctx context.Context, days map[models.Weekday][]models.ScheduleEntry) error {
	w.batches = append(w.batches, days)
	return w.err
}

func TestCommitToWriterBypassesStore(t *testing.T) {
	p, st := newTestPipeline(t, nil, nil)
	ctx := context.Background()
	w := &recordingWriter{}

	pv, err := p.CommitTo(ctx, "u1", "MON OS DBMS\nTUE LUNCH", w)
	require.NoError(t, err)
	require.Len(t, w.batches, 1)
	assert.Len(t, w.batches[0], 2)
	assert.Equal(t, pv.Entries[models.Monday], w.batches[0][models.Monday])
	assert.Empty(t, w.batches[0][models.Tuesday])

	week, err := st.LoadWeek(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, week[models.Monday], "days go through the writer only")

	scans, err := st.ListScans(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, scans, 1)

	w.err = errors.New("session closed")
	_, err = p.CommitTo(ctx, "u1", "WED OS", w)
	assert.ErrorIs(t, err, w.err)
	scans, err = st.ListScans(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, scans, 1, "failed commits are not archived")
}

func TestCommitErrors(t *testing.T) {
	p, _ := newTestPipeline(t, nil, nil)
	ctx := context.Background()

	_, err := p.Commit(ctx, "u1", "garbage line\n")
	assert.ErrorIs(t, err, ErrEmptyScan)

	_, err = p.Commit(ctx, " ", "MON OS")
	assert.ErrorIs(t, err, store.ErrEmptyUser)
}

func TestCommitGrid(t *testing.T) {
	p, st := newTestPipeline(t, nil, timetable.DefaultCatalog()[:4])
	ctx := context.Background()

	str := func(s string) *string { return &s }
	grid := timetable.Grid{
		"WED": {str("OS"), str("-"), str("LUNCH"), nil, str("EXTRA")},
	}
	pv, err := p.CommitGrid(ctx, "u1", grid)
	require.NoError(t, err)
	assert.Equal(t, []models.Weekday{models.Wednesday}, pv.Days())

	week, err := st.LoadWeek(ctx, "u1")
	require.NoError(t, err)
	entries := week[models.Wednesday]
	require.Len(t, entries, 3)
	assert.Equal(t, "OS", entries[0].Subject)
	assert.True(t, entries[1].IsFreeSlot())
	assert.True(t, entries[2].IsFreeSlot())
}

func TestRecognize(t *testing.T) {
	p, _ := newTestPipeline(t, nil, nil)
	_, err := p.Recognize(context.Background(), "scan.png")
	assert.ErrorIs(t, err, ErrNoRecognizer)

	p, _ = newTestPipeline(t, fakeRecognizer{text: "MON OS"}, nil)
	text, err := p.Recognize(context.Background(), "scan.png")
	require.NoError(t, err)
	assert.Equal(t, "MON OS", text)

	boom := errors.New("boom")
	p, _ = newTestPipeline(t, fakeRecognizer{err: boom}, nil)
	_, err = p.Recognize(context.Background(), "scan.png")
	assert.ErrorIs(t, err, boom)
}
