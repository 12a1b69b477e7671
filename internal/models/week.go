package models

import (
	"fmt"
	"strings"
)

// Weekday is a full weekday name, the day vocabulary used at every boundary.
type Weekday string

const (
	Sunday    Weekday = "Sunday"
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
)

// Weekdays lists the seven days in week order, Sunday first.
var Weekdays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

var dayCodes = map[string]Weekday{
	"SUN": Sunday,
	"MON": Monday,
	"TUE": Tuesday,
	"WED": Wednesday,
	"THU": Thursday,
	"FRI": Friday,
	"SAT": Saturday,
}

// DayFromCode maps a 3-letter ingestion code (MON, TUE, ...) to a Weekday.
func DayFromCode(code string) (Weekday, bool) {
	d, ok := dayCodes[strings.ToUpper(strings.TrimSpace(code))]
	return d, ok
}

// ParseDay accepts a full weekday name or a 3-letter code, in any case.
func ParseDay(s string) (Weekday, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if d, ok := dayCodes[v]; ok {
		return d, nil
	}
	for _, d := range Weekdays {
		if strings.ToUpper(string(d)) == v {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown day %q", s)
}

// Code returns the 3-letter code of the day.
func (d Weekday) Code() string {
	if len(d) < 3 {
		return strings.ToUpper(string(d))
	}
	return strings.ToUpper(string(d[:3]))
}

// WeeklySchedule maps every weekday to its ordered entries.
type WeeklySchedule map[Weekday][]ScheduleEntry

// NewWeek returns a schedule with all seven days present and empty.
func NewWeek() WeeklySchedule {
	w := make(WeeklySchedule, len(Weekdays))
	for _, d := range Weekdays {
		w[d] = []ScheduleEntry{}
	}
	return w
}

// Clone deep-copies the schedule, filling in any missing day.
func (w WeeklySchedule) Clone() WeeklySchedule {
	c := NewWeek()
	for day, entries := range w {
		cp := make([]ScheduleEntry, len(entries))
		for i, e := range entries {
			cp[i] = e.Clone()
		}
		c[day] = cp
	}
	return c
}

// Sanitize returns a copy restricted to known days, with statuses and kinds
// coerced and entry days aligned to their key.
func (w WeeklySchedule) Sanitize() WeeklySchedule {
	c := NewWeek()
	for _, day := range Weekdays {
		entries := w[day]
		cp := make([]ScheduleEntry, 0, len(entries))
		for _, e := range entries {
			e = e.Clone()
			e.Day = day
			e.Status = CoerceStatus(string(e.Status))
			e.Kind = CoerceKind(string(e.Kind))
			cp = append(cp, e)
		}
		c[day] = cp
	}
	return c
}
