package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/classmate/internal/engine"
	"github.com/fentz26/classmate/internal/models"
)

var (
	cmdBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

// CmdBarModel manages the command input bar
type CmdBarModel struct {
	input   textinput.Model
	focused bool
	message string
}

// NewCmdBarModel creates a new command bar
func NewCmdBarModel() *CmdBarModel {
	ti := textinput.New()
	ti.Placeholder = "add <label> | move <task> [day] | attend <subject> | subject add <name>"
	ti.CharLimit = 256
	return &CmdBarModel{
		input: ti,
	}
}

// Init initializes the command bar
func (m *CmdBarModel) Init() tea.Cmd {
	return nil
}

// Focused reports whether the bar takes keys.
func (m *CmdBarModel) Focused() bool {
	return m.focused
}

// Focus focuses the command bar
func (m *CmdBarModel) Focus() tea.Cmd {
	m.focused = true
	m.message = ""
	return m.input.Focus()
}

// Blur unfocuses the command bar
func (m *CmdBarModel) Blur() {
	m.focused = false
	m.input.Blur()
	m.input.SetValue("")
}

// Value returns the current input.
func (m *CmdBarModel) Value() string {
	return m.input.Value()
}

// SetValue replaces the input and moves the cursor to its end.
func (m *CmdBarModel) SetValue(v string) {
	m.input.SetValue(v)
	m.input.CursorEnd()
}

// SetWidth sets the input width.
func (m *CmdBarModel) SetWidth(w int) {
	m.input.Width = w
}

// Submit returns the current input and blurs
func (m *CmdBarModel) Submit() string {
	val := m.input.Value()
	m.Blur()
	return val
}

// Update handles messages
func (m *CmdBarModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.Blur()
			return m, nil
		}
	case cmdResultMsg:
		m.message = msg.message
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command bar
func (m *CmdBarModel) View() string {
	if m.focused {
		prompt := promptStyle.Render(": ")
		return cmdBarStyle.Render(prompt + m.input.View())
	}
	if m.message != "" {
		return cmdBarStyle.Render(m.message)
	}
	return cmdBarStyle.Render("Press : to enter command (add, move, done, rm, attend, miss, cancel, restore, subject)")
}

// Execute processes a command. day is the day currently shown.
func (m *CmdBarModel) Execute(client *Client, input string, day models.Weekday) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	return func() tea.Msg {
		var result string

		switch cmd {
		case "add":
			if len(args) < 1 {
				return cmdResultMsg{"Usage: add <label>"}
			}
			task, err := client.AddTask(strings.Join(args, " "))
			if err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			result = fmt.Sprintf("Added task #%d", task.ID)

		case "move":
			if len(args) < 1 {
				return cmdResultMsg{"Usage: move <task-id> [day]"}
			}
			taskID, err := parseTaskID(args[0])
			if err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			target := day
			if len(args) > 1 {
				if target, err = models.ParseDay(args[1]); err != nil {
					return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
				}
			}
			entry, err := client.MoveTask(taskID, target)
			if err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			result = fmt.Sprintf("Placed on %s %s-%s", target, entry.StartTime, entry.EndTime)

		case "done":
			if len(args) != 1 {
				return cmdResultMsg{"Usage: done <task-id>"}
			}
			taskID, err := parseTaskID(args[0])
			if err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			task, err := client.CompleteTask(taskID)
			if err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			result = fmt.Sprintf("Task #%d completed: %v", task.ID, task.Completed)

		case "rm":
			if len(args) != 1 {
				return cmdResultMsg{"Usage: rm <task-id>"}
			}
			taskID, err := parseTaskID(args[0])
			if err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			if err := client.DeleteTask(taskID); err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			result = fmt.Sprintf("Deleted task #%d", taskID)

		case "attend", "miss", "cancel":
			if len(args) < 1 {
				return cmdResultMsg{fmt.Sprintf("Usage: %s <subject>", cmd)}
			}
			action, _ := models.ParseAction(cmd)
			subject := strings.TrimPrefix(strings.Join(args, " "), "@")
			tr, err := client.UpdateStatus(day, engine.EntryRef{Subject: subject}, action)
			if err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			result = describeTransition(tr)

		case "restore":
			if len(args) != 1 {
				return cmdResultMsg{"Usage: restore <entry-id>"}
			}
			entryID, err := parseTaskID(args[0])
			if err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			entry, err := client.Restore(day, entryID)
			if err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			result = fmt.Sprintf("Restored %s", entry.Subject)

		case "subject":
			return cmdResultMsg{subjectCommand(client, args)}

		default:
			result = fmt.Sprintf("Unknown command: %s", cmd)
		}

		return cmdResultMsg{result}
	}
}

func subjectCommand(client *Client, args []string) string {
	if len(args) < 2 {
		return "Usage: subject add|set|reset|rm <name>"
	}
	sub := args[0]
	name := strings.TrimPrefix(strings.Join(args[1:], " "), "@")

	switch sub {
	case "add":
		if _, err := client.AddSubject(name); err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		return "Added subject " + name
	case "set":
		if len(args) < 4 {
			return "Usage: subject set <name> <attended> <total>"
		}
		name = strings.TrimPrefix(strings.Join(args[1:len(args)-2], " "), "@")
		attended, err1 := strconv.Atoi(args[len(args)-2])
		total, err2 := strconv.Atoi(args[len(args)-1])
		if err1 != nil || err2 != nil {
			return "Error: counts must be numbers"
		}
		row, err := client.SetSubject(name, attended, total)
		if err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		return fmt.Sprintf("%s: %d/%d", row.Name, row.Attended, row.Total)
	case "reset":
		if _, err := client.ResetSubject(name); err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		return "Reset " + name
	case "rm":
		if err := client.DeleteSubject(name); err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		return "Deleted subject " + name
	}
	return fmt.Sprintf("Unknown subject command: %s", sub)
}

func parseTaskID(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return v, nil
}

func describeTransition(tr *engine.Transition) string {
	if !tr.Applied {
		return fmt.Sprintf("%s is %s, nothing to change", tr.Entry.Subject, tr.Entry.Status)
	}
	if tr.Entry.Kind == models.EntryKindTask || tr.Entry.IsFreeSlot() {
		return fmt.Sprintf("%s → %s", tr.Previous.Subject, tr.Entry.Subject)
	}
	msg := fmt.Sprintf("%s marked %s", tr.Entry.Subject, tr.Entry.Status)
	if tr.Counted {
		msg += " (counted)"
	}
	return msg
}
