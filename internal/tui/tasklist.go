package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/classmate/internal/models"
)

var (
	listTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	taskOpenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	taskDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
)

// TaskItem implements list.Item for the backlog
type TaskItem struct {
	Task models.Task
}

func (i TaskItem) FilterValue() string { return i.Task.Suggestion }
func (i TaskItem) Title() string       { return i.Task.Suggestion }
func (i TaskItem) Description() string {
	state := taskOpenStyle.Render("○ open")
	if i.Task.Completed {
		state = taskDoneStyle.Render("● done")
	}
	return fmt.Sprintf("%s • %s • #%d", state, i.Task.Duration, i.Task.ID)
}

// TaskListModel manages the backlog panel
type TaskListModel struct {
	list list.Model
}

// NewTaskListModel creates a new backlog list
func NewTaskListModel() *TaskListModel {
	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 40, 20)
	l.Title = "Backlog"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = listTitleStyle

	return &TaskListModel{list: l}
}

// SetSize sets the list dimensions
func (m *TaskListModel) SetSize(w, h int) {
	m.list.SetSize(w, h)
}

// SetTasks replaces the backlog items, keeping the cursor in range.
func (m *TaskListModel) SetTasks(tasks []models.Task) {
	items := make([]list.Item, len(tasks))
	for i, t := range tasks {
		items[i] = TaskItem{Task: t}
	}
	idx := m.list.Index()
	m.list.SetItems(items)
	if idx >= len(items) && len(items) > 0 {
		m.list.Select(len(items) - 1)
	}
}

// SelectedTask returns the currently selected task
func (m *TaskListModel) SelectedTask() *models.Task {
	if item := m.list.SelectedItem(); item != nil {
		task := item.(TaskItem).Task
		return &task
	}
	return nil
}

// Len returns the number of backlog tasks.
func (m *TaskListModel) Len() int {
	return len(m.list.Items())
}

// Update handles navigation keys
func (m *TaskListModel) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

// View renders the backlog
func (m *TaskListModel) View() string {
	return m.list.View()
}
