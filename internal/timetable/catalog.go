// Package timetable turns recognized timetable text into structured slots and
// schedule entries.
package timetable

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// TimeSlot is one class period shared by every day.
type TimeSlot struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// Catalog is the ordered list of daily periods; index i is period i.
type Catalog []TimeSlot

// DefaultCatalog returns the institution's standard eight periods.
func DefaultCatalog() Catalog {
	return Catalog{
		{Start: "08:30", End: "09:20"},
		{Start: "09:20", End: "10:10"},
		{Start: "10:20", End: "11:10"},
		{Start: "11:10", End: "12:00"},
		{Start: "12:00", End: "12:50"},
		{Start: "12:50", End: "13:40"},
		{Start: "13:40", End: "14:20"},
		{Start: "14:20", End: "15:10"},
	}
}

// Validate checks clock formats and that every slot ends after it starts.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("catalog must contain at least one slot")
	}
	for i, s := range c {
		start, err := ParseClock(s.Start)
		if err != nil {
			return fmt.Errorf("slot %d start: %w", i, err)
		}
		end, err := ParseClock(s.End)
		if err != nil {
			return fmt.Errorf("slot %d end: %w", i, err)
		}
		if !start.Before(end) {
			return fmt.Errorf("slot %d: start %s is not before end %s", i, s.Start, s.End)
		}
	}
	return nil
}

// ParseClock parses an "HH:MM" 24-hour clock time.
func ParseClock(s string) (time.Time, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q", s)
	}
	return t, nil
}

// FormatClock renders a clock time as "HH:MM".
func FormatClock(t time.Time) string {
	return t.Format(clockLayout)
}

// Minutes returns the length of a start/end pair in minutes, or 0 if either
// side does not parse or the range is empty.
func Minutes(start, end string) int {
	s, err := ParseClock(start)
	if err != nil {
		return 0
	}
	e, err := ParseClock(end)
	if err != nil || !s.Before(e) {
		return 0
	}
	return int(e.Sub(s) / time.Minute)
}
