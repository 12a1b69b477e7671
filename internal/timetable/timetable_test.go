package timetable

import (
	"strings"
	"testing"
	"time"

	"github.com/fentz26/classmate/internal/ids"
	"github.com/fentz26/classmate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name string
		raw  string
		want []NormalizedDay
	}{
		{
			name: "aliases and markers",
			raw:  "mon ss-1l 0s - lunch toc",
			want: []NormalizedDay{{Day: "MON", Subjects: []string{"SS-II", "OS", "FREE", "LUNCH", "TOC"}}},
		},
		{
			name: "noise characters stripped",
			raw:  "TUE: SA, IWT | OS.",
			want: []NormalizedDay{{Day: "TUE", Subjects: []string{"SA", "IWT", "OS"}}},
		},
		{
			name: "double dash is free",
			raw:  "WED -- OS",
			want: []NormalizedDay{{Day: "WED", Subjects: []string{"FREE", "OS"}}},
		},
		{
			name: "unknown day dropped",
			raw:  "XYZ OS DBMS\nSUN OS\n\nFRI DBMS",
			want: []NormalizedDay{{Day: "FRI", Subjects: []string{"DBMS"}}},
		},
		{
			name: "blank input",
			raw:  "\n   \n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.raw))
		})
	}
}

func TestNormalizeExtraAliases(t *testing.T) {
	n := NewNormalizer(map[string]string{"DBM5": "DBMS", "0S": "OPSYS"})
	got := n.Normalize("MON DBM5 0S SSII")
	require.Len(t, got, 1)
	assert.Equal(t, []string{"DBMS", "OPSYS", "SS-II"}, got[0].Subjects)
}

func newTestStructurer(catalog Catalog) *Structurer {
	clock := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)
	s := NewStructurer(catalog, ids.NewWithClock(func() time.Time { return clock }))
	s.now = func() time.Time { return clock }
	return s
}

func TestStructureFullWeek(t *testing.T) {
	catalog := DefaultCatalog()
	var lines []string
	for _, day := range []string{"MON", "TUE", "WED", "THU", "FRI"} {
		tokens := []string{day, "MI", "DBMS", "SS-II", "OS", "LUNCH", "SA", "TOC", "-"}
		lines = append(lines, strings.Join(tokens, " "))
	}

	days := NewNormalizer(nil).Normalize(strings.Join(lines, "\n"))
	s := newTestStructurer(catalog)
	slots := s.Structure(days, "u1")
	assert.Len(t, slots, 5*len(catalog))

	week := s.ToWeek(slots)
	seen := map[int64]bool{}
	for _, day := range models.Weekdays {
		for _, e := range week[day] {
			assert.NotEqual(t, "LUNCH", e.Subject)
			assert.False(t, seen[e.ID], "duplicate id %d", e.ID)
			seen[e.ID] = true
		}
	}
	assert.Len(t, week[models.Monday], len(catalog)-1)
	assert.Empty(t, week[models.Saturday])
	assert.Empty(t, week[models.Sunday])
}

func TestStructureRoundTrip(t *testing.T) {
	s := newTestStructurer(DefaultCatalog()[:3])
	slots := s.Structure([]NormalizedDay{{Day: "MON", Subjects: []string{"OS", "FREE", "LUNCH"}}}, "u1")
	require.Len(t, slots, 3)
	assert.Equal(t, ClassificationFree, slots[1].Class)
	assert.Nil(t, slots[1].Subject)
	assert.Equal(t, "u1", slots[0].UserID)

	entries := s.EntriesByDay(slots)[models.Monday]
	require.Len(t, entries, 2)
	assert.Equal(t, models.EntryKindLecture, entries[0].Kind)
	assert.Equal(t, "OS", entries[0].Subject)
	assert.Equal(t, models.EntryKindBreak, entries[1].Kind)
	assert.Equal(t, models.FreeSlotSubject, entries[1].Subject)
	for _, e := range entries {
		assert.Equal(t, models.EntryStatusScheduled, e.Status)
		assert.Equal(t, models.Monday, e.Day)
	}
	assert.Equal(t, "08:30", entries[0].StartTime)
	assert.Equal(t, "10:10", entries[1].EndTime)
}

func TestStructureShortAndLongRows(t *testing.T) {
	s := newTestStructurer(DefaultCatalog()[:2])
	slots := s.Structure([]NormalizedDay{
		{Day: "TUE", Subjects: []string{"OS"}},
		{Day: "WED", Subjects: []string{"OS", "MI", "TOC", "AJP"}},
	}, "")
	assert.Len(t, slots, 3)
}

func TestStructureGrid(t *testing.T) {
	str := func(s string) *string { return &s }
	s := newTestStructurer(DefaultCatalog()[:4])
	grid := Grid{
		"TUE": {str("SA"), str(" - "), str("lunch"), nil, str("extra")},
		"MON": {str("MI"), str("NULL"), str("—"), str("DBMS")},
	}

	slots := s.StructureGrid(grid, "u1")
	require.Len(t, slots, 7)
	assert.Equal(t, "MON", slots[0].Day)
	assert.Equal(t, ClassificationFree, slots[1].Class)
	assert.Equal(t, ClassificationFree, slots[2].Class)
	assert.Equal(t, "DBMS", *slots[3].Subject)
	assert.Equal(t, "TUE", slots[4].Day)

	week := s.ToWeek(slots)
	assert.Len(t, week[models.Tuesday], 3)
}

func TestCatalogValidate(t *testing.T) {
	assert.NoError(t, DefaultCatalog().Validate())
	assert.Error(t, Catalog{}.Validate())
	assert.Error(t, Catalog{{Start: "9:0", End: "10:00"}}.Validate())
	assert.Error(t, Catalog{{Start: "10:00", End: "09:00"}}.Validate())
}

func TestMinutes(t *testing.T) {
	assert.Equal(t, 50, Minutes("08:30", "09:20"))
	assert.Equal(t, 0, Minutes("09:20", "08:30"))
	assert.Equal(t, 0, Minutes("bad", "09:20"))
}
