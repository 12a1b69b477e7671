package tui

import (
	"time"

	"github.com/fentz26/classmate/internal/engine"
)

// focus is the panel receiving keys.
type focus int

const (
	focusWeek focus = iota
	focusTasks
	focusSubjects
)

func (f focus) next() focus { return (f + 1) % 3 }

func (f focus) String() string {
	switch f {
	case focusTasks:
		return "tasks"
	case focusSubjects:
		return "subjects"
	default:
		return "week"
	}
}

type weekLoadedMsg struct {
	view *engine.View
}

type standingsLoadedMsg struct {
	standings []engine.SubjectStanding
}

type daemonStatusMsg struct {
	online bool
}

type cmdResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type tickMsg time.Time
