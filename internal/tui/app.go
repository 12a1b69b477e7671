// Package tui provides the interactive terminal UI for classmate.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/classmate/internal/engine"
	"github.com/fentz26/classmate/internal/models"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	dayTabStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	activePanelStyle = panelStyle.Copy().
				BorderForeground(primaryColor)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// refreshInterval is how often the TUI re-reads the week, so changes made
// elsewhere (re-ingestion, the CLI) show up.
const refreshInterval = 5 * time.Second

// App is the main TUI application model.
type App struct {
	client      *Client
	view        *engine.View
	standings   []engine.SubjectStanding
	target      float64
	dayIdx      int
	entryIdx    int
	subjectIdx  int
	focus       focus
	tasks       *TaskListModel
	cmdbar      *CmdBarModel
	suggestions *Suggestions
	width       int
	height      int
	message     string
	online      bool
}

// New creates a new TUI application. A zero target uses the daemon default.
func New(apiAddr, userID string, target float64) *App {
	return &App{
		client:      NewClient(apiAddr, userID),
		target:      target,
		dayIdx:      int(time.Now().Weekday()),
		tasks:       NewTaskListModel(),
		cmdbar:      NewCmdBarModel(),
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.fetchWeek(),
		a.fetchStandings(),
		a.checkDaemon(),
		a.tickCmd(),
	)
}

func (a *App) day() models.Weekday {
	return models.Weekdays[a.dayIdx]
}

func (a *App) entries() []models.ScheduleEntry {
	if a.view == nil {
		return nil
	}
	return a.view.Week[a.day()]
}

func (a *App) selectedEntry() *models.ScheduleEntry {
	entries := a.entries()
	if a.entryIdx < 0 || a.entryIdx >= len(entries) {
		return nil
	}
	e := entries[a.entryIdx]
	return &e
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.cmdbar.Focused() {
			return a, a.updateCmdBar(msg)
		}
		return a, a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.cmdbar.SetWidth(msg.Width - 6)
		a.tasks.SetSize(a.sideWidth(), max(msg.Height/2-2, 6))

	case weekLoadedMsg:
		a.view = msg.view
		a.online = true
		a.tasks.SetTasks(msg.view.Tasks)
		if n := len(a.entries()); a.entryIdx >= n {
			a.entryIdx = max(0, n-1)
		}
		a.updateReferences()

	case standingsLoadedMsg:
		a.standings = msg.standings
		if a.subjectIdx >= len(a.standings) {
			a.subjectIdx = max(0, len(a.standings)-1)
		}

	case daemonStatusMsg:
		a.online = msg.online

	case tickMsg:
		return a, tea.Batch(a.fetchWeek(), a.fetchStandings(), a.tickCmd())

	case cmdResultMsg:
		a.message = msg.message
		return a, tea.Batch(a.fetchWeek(), a.fetchStandings())

	case errMsg:
		a.message = "Error: " + msg.err.Error()
		a.online = false
	}
	return a, nil
}

func (a *App) updateCmdBar(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "up":
		a.suggestions.Prev()
		return nil
	case "down":
		a.suggestions.Next()
		return nil
	case "tab":
		if a.suggestions.IsVisible() {
			a.cmdbar.SetValue(a.suggestions.Complete(a.cmdbar.Value()))
		}
		return nil
	case "enter":
		if a.suggestions.IsVisible() {
			a.cmdbar.SetValue(a.suggestions.Complete(a.cmdbar.Value()))
			return nil
		}
		input := strings.TrimSpace(a.cmdbar.Submit())
		a.suggestions.Update("")
		return a.runCommand(input)
	}

	_, cmd := a.cmdbar.Update(msg)
	a.suggestions.Update(a.cmdbar.Value())
	return cmd
}

// runCommand handles commands that change the TUI itself and hands the rest
// to the command bar.
func (a *App) runCommand(input string) tea.Cmd {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "q", "quit", "exit":
		return tea.Quit
	case "target":
		if len(fields) != 2 {
			a.message = "Usage: target <percent>"
			return nil
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || v <= 0 || v >= 100 {
			a.message = "Error: target must be between 0 and 100"
			return nil
		}
		a.target = v
		a.message = fmt.Sprintf("Target set to %.0f%%", v)
		return a.fetchStandings()
	}
	return a.cmdbar.Execute(a.client, input, a.day())
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit
	case ":", "/":
		return a.cmdbar.Focus()
	case "tab":
		a.focus = a.focus.next()
		return nil
	case "r":
		return tea.Batch(a.fetchWeek(), a.fetchStandings())
	}

	switch a.focus {
	case focusWeek:
		return a.handleWeekKey(msg)
	case focusTasks:
		return a.handleTaskKey(msg)
	case focusSubjects:
		return a.handleSubjectKey(msg)
	}
	return nil
}

func (a *App) handleWeekKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "left", "h":
		a.dayIdx = (a.dayIdx + len(models.Weekdays) - 1) % len(models.Weekdays)
		a.entryIdx = 0
	case "right", "l":
		a.dayIdx = (a.dayIdx + 1) % len(models.Weekdays)
		a.entryIdx = 0
	case "up", "k":
		if a.entryIdx > 0 {
			a.entryIdx--
		}
	case "down", "j":
		if a.entryIdx < len(a.entries())-1 {
			a.entryIdx++
		}
	case "a":
		return a.markSelected(models.ActionAttend)
	case "m":
		return a.markSelected(models.ActionMiss)
	case "c":
		return a.markSelected(models.ActionCancel)
	case "u":
		return a.onSelected(func(day models.Weekday, e models.ScheduleEntry) (string, error) {
			restored, err := a.client.Restore(day, e.ID)
			if err != nil {
				return "", err
			}
			return "Restored " + restored.Subject, nil
		})
	case "x":
		return a.onSelected(func(day models.Weekday, e models.ScheduleEntry) (string, error) {
			placed, err := a.client.ReplaceWithNext(day, e.ID)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s now holds %s", e.Subject, placed.Subject), nil
		})
	}
	return nil
}

func (a *App) markSelected(action models.Action) tea.Cmd {
	return a.onSelected(func(day models.Weekday, e models.ScheduleEntry) (string, error) {
		tr, err := a.client.UpdateStatus(day, engine.EntryRef{ID: e.ID}, action)
		if err != nil {
			return "", err
		}
		return describeTransition(tr), nil
	})
}

func (a *App) onSelected(fn func(day models.Weekday, e models.ScheduleEntry) (string, error)) tea.Cmd {
	e := a.selectedEntry()
	if e == nil {
		a.message = "No entry selected"
		return nil
	}
	day, entry := a.day(), *e
	return func() tea.Msg {
		msg, err := fn(day, entry)
		if err != nil {
			return cmdResultMsg{"Error: " + err.Error()}
		}
		return cmdResultMsg{msg}
	}
}

func (a *App) handleTaskKey(msg tea.KeyMsg) tea.Cmd {
	task := a.tasks.SelectedTask()
	switch msg.String() {
	case "enter":
		if task == nil {
			return nil
		}
		return a.cmdbar.Execute(a.client, fmt.Sprintf("move %d", task.ID), a.day())
	case "d":
		if task == nil {
			return nil
		}
		return a.cmdbar.Execute(a.client, fmt.Sprintf("done %d", task.ID), a.day())
	case "backspace", "delete":
		if task == nil {
			return nil
		}
		return a.cmdbar.Execute(a.client, fmt.Sprintf("rm %d", task.ID), a.day())
	}
	return a.tasks.Update(msg)
}

func (a *App) handleSubjectKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if a.subjectIdx > 0 {
			a.subjectIdx--
		}
	case "down", "j":
		if a.subjectIdx < len(a.standings)-1 {
			a.subjectIdx++
		}
	case "z":
		if a.subjectIdx < len(a.standings) {
			return a.cmdbar.Execute(a.client, "subject reset "+a.standings[a.subjectIdx].Name, a.day())
		}
	}
	return nil
}

func (a *App) updateReferences() {
	var subjects []string
	for _, s := range a.view.Subjects {
		subjects = append(subjects, s.Name)
	}
	a.suggestions.SetReferences(subjects, a.view.Tasks)
}

func (a *App) sideWidth() int {
	return max(a.width/3, 30)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	status := onlineStyle.Render("● DAEMON")
	if !a.online {
		status = offlineStyle.Render("○ DAEMON")
	}
	header := titleStyle.Render("📚 classmate")
	header += "  " + status
	header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(a.client.UserID())
	if a.view != nil && a.view.Loading {
		header += "  " + lipgloss.NewStyle().Foreground(warningColor).Render("loading…")
	}
	b.WriteString(header + "\n")
	b.WriteString(a.renderTabs() + "\n")

	week := a.panel(focusWeek).Width(max(a.width-a.sideWidth()-6, 30)).Render(a.renderDay())
	side := lipgloss.JoinVertical(lipgloss.Left,
		a.panel(focusTasks).Render(a.tasks.View()),
		a.panel(focusSubjects).Width(a.sideWidth()).Render(a.renderSubjects()),
	)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, week, side) + "\n")

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString(msgStyle.Render(a.message) + "\n")
	}

	b.WriteString(a.cmdbar.View())
	if a.suggestions.IsVisible() {
		b.WriteString("\n" + a.suggestions.Render(a.width))
	}
	b.WriteString("\n")
	b.WriteString(statusBarStyle.Width(a.width).Render(a.statusLine()))
	return b.String()
}

func (a *App) panel(f focus) lipgloss.Style {
	if a.focus == f {
		return activePanelStyle
	}
	return panelStyle
}

func (a *App) renderTabs() string {
	tabs := make([]string, len(models.Weekdays))
	for i, d := range models.Weekdays {
		label := d.Code()
		if i == a.dayIdx {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = dayTabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a *App) renderDay() string {
	if a.view == nil {
		return "Loading week..."
	}
	entries := a.entries()
	if len(entries) == 0 {
		return fmt.Sprintf("Nothing on %s. Ingest a timetable or move a task here.", a.day())
	}

	var lines []string
	for i, e := range entries {
		text := fmt.Sprintf("%s-%s  %-20s %-8s", e.StartTime, e.EndTime, truncate(e.Subject, 20), e.Kind)
		if i == a.entryIdx && a.focus == focusWeek {
			lines = append(lines, selectedStyle.Render("▶ "+text+" "+string(e.Status)))
			continue
		}
		lines = append(lines, "  "+entryStyle(e).Render(text)+" "+StatusBadge(e.Status))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderSubjects() string {
	if len(a.standings) == 0 {
		return "No subjects yet."
	}
	var lines []string
	for i, s := range a.standings {
		pct := "  -  "
		if s.Total > 0 {
			pct = fmt.Sprintf("%4.0f%%", s.Standing.Percentage)
		}
		line := fmt.Sprintf("%-12s %3d/%-3d %s", truncate(s.Name, 12), s.Attended, s.Total, pct)
		if i == a.subjectIdx && a.focus == focusSubjects {
			line = selectedStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line, "    "+StandingStyle(s.Standing).Render(s.Standing.Message))
	}
	return strings.Join(lines, "\n")
}

func (a *App) statusLine() string {
	switch a.focus {
	case focusTasks:
		return fmt.Sprintf(" Tasks: %d | ↑↓:nav | Enter:move to %s | d:done | Del:remove | Tab:panel | ::command", a.tasks.Len(), a.day().Code())
	case focusSubjects:
		return fmt.Sprintf(" Subjects: %d | ↑↓:nav | z:reset | Tab:panel | ::command", len(a.standings))
	}
	return " ←→:day | ↑↓:entry | a:attend | m:miss | c:cancel | u:restore | x:next task | Tab:panel | ::command | q:quit"
}

// StatusBadge renders an entry status with its colour.
func StatusBadge(s models.EntryStatus) string {
	switch s {
	case models.EntryStatusAttended:
		return lipgloss.NewStyle().Foreground(successColor).Render("● attended")
	case models.EntryStatusMissed:
		return lipgloss.NewStyle().Foreground(errorColor).Render("✗ missed")
	case models.EntryStatusCancelled:
		return lipgloss.NewStyle().Foreground(warningColor).Render("◌ cancelled")
	default:
		return lipgloss.NewStyle().Foreground(secondaryColor).Render("○ scheduled")
	}
}

// StandingStyle colours a standing message.
func StandingStyle(st engine.Standing) lipgloss.Style {
	switch {
	case !st.OnTrack:
		return lipgloss.NewStyle().Foreground(errorColor)
	case st.CanMiss == 0:
		return lipgloss.NewStyle().Foreground(warningColor)
	default:
		return lipgloss.NewStyle().Foreground(successColor)
	}
}

func entryStyle(e models.ScheduleEntry) lipgloss.Style {
	switch {
	case e.Kind == models.EntryKindBreak:
		return lipgloss.NewStyle().Foreground(mutedColor)
	case e.Kind == models.EntryKindTask:
		return lipgloss.NewStyle().Foreground(cyanColor)
	default:
		return lipgloss.NewStyle().Foreground(fgColor)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (a *App) fetchWeek() tea.Cmd {
	return func() tea.Msg {
		view, err := a.client.Week()
		if err != nil {
			return errMsg{err}
		}
		return weekLoadedMsg{view}
	}
}

func (a *App) fetchStandings() tea.Cmd {
	target := a.target
	return func() tea.Msg {
		standings, err := a.client.Standings(target)
		if err != nil {
			return errMsg{err}
		}
		return standingsLoadedMsg{standings}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		ok, err := a.client.CheckHealth()
		return daemonStatusMsg{online: err == nil && ok}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
