package engine

import (
	"fmt"
	"math"

	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/timetable"
)

// DefaultTarget is the attendance percentage users aim for unless configured.
const DefaultTarget = 75.0

// Standing summarizes how a subject stands against a target percentage.
type Standing struct {
	Percentage float64 `json:"percentage"`
	OnTrack    bool    `json:"on_track"`
	CanMiss    int     `json:"can_miss"`
	MustAttend int     `json:"must_attend"`
	Message    string  `json:"message"`
}

// ComputeStanding reports the attendance percentage and how many upcoming
// classes can be missed, or must be attended, to stay at target.
func ComputeStanding(attended, total int, target float64) (Standing, error) {
	if target <= 0 || target >= 100 {
		return Standing{}, ErrInvalidTarget
	}
	if attended < 0 || total < 0 || attended > total {
		return Standing{}, ErrInvalidCounts
	}
	if total == 0 {
		return Standing{OnTrack: true, Message: "No classes yet"}, nil
	}

	ratio := target / 100
	a, t := float64(attended), float64(total)
	st := Standing{Percentage: a / t * 100}

	// Small epsilon so 3/4 at 75% is on track despite float error.
	const eps = 1e-9
	if st.Percentage+eps >= target {
		st.OnTrack = true
		st.CanMiss = int(math.Floor((a-ratio*t)/ratio + eps))
		if st.CanMiss > 0 {
			st.Message = fmt.Sprintf("On Track, You may leave next %d %s", st.CanMiss, plural(st.CanMiss))
		} else {
			st.Message = "On Track, but can't miss the next class"
		}
		return st, nil
	}

	st.MustAttend = int(math.Ceil((ratio*t-a)/(1-ratio) - eps))
	st.Message = fmt.Sprintf("You need to attend next %d %s", st.MustAttend, plural(st.MustAttend))
	return st, nil
}

func plural(n int) string {
	if n == 1 {
		return "class"
	}
	return "classes"
}

// SubjectStanding pairs an attendance row with its standing.
type SubjectStanding struct {
	models.SubjectAttendance
	Standing Standing `json:"standing"`
}

// Advice is the read-only snapshot handed to advice collaborators.
type Advice struct {
	Target       float64                `json:"target"`
	Overall      float64                `json:"overall"`
	Subjects     []SubjectStanding      `json:"subjects"`
	FreeMinutes  map[models.Weekday]int `json:"free_minutes"`
	PendingTasks int                    `json:"pending_tasks"`
}

// Standings computes the standing of every subject.
func (s *State) Standings(target float64) ([]SubjectStanding, error) {
	if target <= 0 || target >= 100 {
		return nil, ErrInvalidTarget
	}
	out := make([]SubjectStanding, 0, len(s.subjects))
	for _, row := range s.subjects {
		st, err := ComputeStanding(row.Attended, row.Total, target)
		if err != nil {
			return nil, err
		}
		out = append(out, SubjectStanding{SubjectAttendance: row, Standing: st})
	}
	return out, nil
}

// AdviceSnapshot gathers attendance and free-time metrics.
func (s *State) AdviceSnapshot(target float64) (Advice, error) {
	subjects, err := s.Standings(target)
	if err != nil {
		return Advice{}, err
	}
	adv := Advice{
		Target:      target,
		Subjects:    subjects,
		FreeMinutes: make(map[models.Weekday]int, len(models.Weekdays)),
	}
	var attended, total int
	for _, row := range s.subjects {
		attended += row.Attended
		total += row.Total
	}
	if total > 0 {
		adv.Overall = float64(attended) / float64(total) * 100
	}
	for _, day := range models.Weekdays {
		minutes := 0
		for _, e := range s.week[day] {
			if e.IsFreeSlot() {
				minutes += timetable.Minutes(e.StartTime, e.EndTime)
			}
		}
		adv.FreeMinutes[day] = minutes
	}
	for _, t := range s.tasks {
		if !t.Completed {
			adv.PendingTasks++
		}
	}
	return adv, nil
}
