package timetable

import (
	"strings"
	"time"

	"github.com/fentz26/classmate/internal/ids"
	"github.com/fentz26/classmate/internal/models"
)

// Classification says whether a structured slot is a class or a free period.
type Classification string

const (
	ClassificationClass Classification = "class"
	ClassificationFree  Classification = "free"
)

// StructuredSlot is one catalog period of one scanned day.
type StructuredSlot struct {
	UserID    string         `json:"user_id,omitempty"`
	Day       string         `json:"day"`
	Start     string         `json:"start"`
	End       string         `json:"end"`
	Subject   *string        `json:"subject"`
	Class     Classification `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsLunch reports whether the slot carries the lunch marker.
func (s StructuredSlot) IsLunch() bool {
	return s.Subject != nil && strings.EqualFold(*s.Subject, TokenLunch)
}

// Structurer pairs normalized tokens with catalog periods.
type Structurer struct {
	catalog Catalog
	ids     *ids.Generator
	now     func() time.Time
}

// NewStructurer creates a structurer for the catalog. A nil generator gets a
// fresh wall-clock one.
func NewStructurer(catalog Catalog, gen *ids.Generator) *Structurer {
	if gen == nil {
		gen = ids.New()
	}
	return &Structurer{catalog: catalog, ids: gen, now: time.Now}
}

// Catalog returns the catalog slots are zipped against.
func (s *Structurer) Catalog() Catalog {
	return s.catalog
}

// Structure zips each day's tokens with the catalog by position. Tokens past
// the end of the catalog are discarded; missing tokens emit nothing.
func (s *Structurer) Structure(days []NormalizedDay, userID string) []StructuredSlot {
	now := s.now()
	var slots []StructuredSlot
	for _, d := range days {
		for i, tok := range d.Subjects {
			if i >= len(s.catalog) {
				break
			}
			slot := StructuredSlot{
				UserID:    userID,
				Day:       d.Day,
				Start:     s.catalog[i].Start,
				End:       s.catalog[i].End,
				Class:     ClassificationClass,
				CreatedAt: now,
			}
			if tok == TokenFree {
				slot.Class = ClassificationFree
			} else {
				subject := tok
				slot.Subject = &subject
			}
			slots = append(slots, slot)
		}
	}
	return slots
}

// EntriesByDay converts structured slots into schedule entries grouped by full
// weekday name. Unknown day codes and lunch slots are dropped.
func (s *Structurer) EntriesByDay(slots []StructuredSlot) map[models.Weekday][]models.ScheduleEntry {
	out := make(map[models.Weekday][]models.ScheduleEntry)
	for _, slot := range slots {
		day, err := models.ParseDay(slot.Day)
		if err != nil {
			continue
		}
		if slot.IsLunch() {
			continue
		}
		out[day] = append(out[day], s.toEntry(day, slot))
	}
	return out
}

// ToWeek is EntriesByDay laid over an otherwise empty week.
func (s *Structurer) ToWeek(slots []StructuredSlot) models.WeeklySchedule {
	week := models.NewWeek()
	for day, entries := range s.EntriesByDay(slots) {
		week[day] = entries
	}
	return week
}

func (s *Structurer) toEntry(day models.Weekday, slot StructuredSlot) models.ScheduleEntry {
	e := models.ScheduleEntry{
		ID:        s.ids.Next(),
		Day:       day,
		StartTime: slot.Start,
		EndTime:   slot.End,
		Status:    models.EntryStatusScheduled,
	}
	if slot.Class == ClassificationFree || slot.Subject == nil {
		e.Kind = models.EntryKindBreak
		e.Subject = models.FreeSlotSubject
	} else {
		e.Kind = models.EntryKindLecture
		e.Subject = *slot.Subject
	}
	return e
}
