package timetable

import (
	"sort"
	"strings"

	"github.com/fentz26/classmate/internal/models"
)

// Grid is an already tabulated timetable: day code to one cell per period.
// A nil cell is a free period.
type Grid map[string][]*string

func normalizeCell(cell *string) *string {
	if cell == nil {
		return nil
	}
	v := strings.TrimSpace(*cell)
	switch {
	case v == "", v == "-", v == "—", strings.EqualFold(v, "NULL"):
		return nil
	}
	return &v
}

// StructureGrid turns a grid into structured slots. Lunch cells are skipped,
// columns beyond the catalog are ignored.
func (s *Structurer) StructureGrid(grid Grid, userID string) []StructuredSlot {
	now := s.now()
	var slots []StructuredSlot
	for _, day := range gridDays(grid) {
		for i, cell := range grid[day] {
			if i >= len(s.catalog) {
				break
			}
			subject := normalizeCell(cell)
			if subject != nil && strings.EqualFold(*subject, TokenLunch) {
				continue
			}
			slot := StructuredSlot{
				UserID:    userID,
				Day:       day,
				Start:     s.catalog[i].Start,
				End:       s.catalog[i].End,
				Subject:   subject,
				Class:     ClassificationClass,
				CreatedAt: now,
			}
			if subject == nil {
				slot.Class = ClassificationFree
			}
			slots = append(slots, slot)
		}
	}
	return slots
}

// gridDays orders grid keys by week position; unknown keys sort last.
func gridDays(grid Grid) []string {
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	rank := func(k string) int {
		d, err := models.ParseDay(k)
		if err != nil {
			return len(models.Weekdays)
		}
		for i, w := range models.Weekdays {
			if w == d {
				return i
			}
		}
		return len(models.Weekdays)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}
