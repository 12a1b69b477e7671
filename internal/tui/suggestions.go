package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/classmate/internal/models"
)

// Suggestions provides autocomplete for the command bar
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool
	references  []SuggestionItem
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
	Type        string // "command", "subject", "task"
}

var commandSuggestions = []SuggestionItem{
	{Text: "add", Description: "Add a task to the backlog", Type: "command"},
	{Text: "move", Description: "Place a task on the shown day", Type: "command"},
	{Text: "done", Description: "Toggle a task's completed flag", Type: "command"},
	{Text: "rm", Description: "Delete a task", Type: "command"},
	{Text: "attend", Description: "Mark a class attended", Type: "command"},
	{Text: "miss", Description: "Mark a class missed", Type: "command"},
	{Text: "cancel", Description: "Cancel a class or task", Type: "command"},
	{Text: "restore", Description: "Restore a cancelled entry", Type: "command"},
	{Text: "subject", Description: "add | set | reset | rm a subject", Type: "command"},
	{Text: "target", Description: "Change the attendance target", Type: "command"},
}

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{}
}

// SetReferences replaces the @ suggestions with subjects and backlog tasks.
func (s *Suggestions) SetReferences(subjects []string, tasks []models.Task) {
	s.references = s.references[:0]
	for _, name := range subjects {
		s.references = append(s.references, SuggestionItem{Text: name, Description: "subject", Type: "subject"})
	}
	for _, t := range tasks {
		s.references = append(s.references, SuggestionItem{Text: fmt.Sprintf("%d", t.ID), Description: t.Suggestion, Type: "task"})
	}
}

// Update updates suggestions based on current input. The first word
// completes against commands, a word starting with @ against references.
func (s *Suggestions) Update(input string) {
	s.visible = false
	s.filtered = nil
	if input == "" || strings.HasSuffix(input, " ") {
		return
	}

	words := strings.Fields(input)
	last := words[len(words)-1]
	switch {
	case strings.HasPrefix(last, "@"):
		s.items = s.references
		s.filter(strings.ToLower(strings.TrimPrefix(last, "@")))
	case len(words) == 1:
		s.items = commandSuggestions
		s.filter(strings.ToLower(last))
	default:
		return
	}
	s.visible = true
}

// Complete replaces the word being typed with the selected suggestion.
func (s *Suggestions) Complete(input string) string {
	sel := s.Selected()
	if sel == nil {
		return input
	}
	i := strings.LastIndex(input, " ")
	s.visible = false
	return input[:i+1] + sel.Text + " "
}

func (s *Suggestions) filter(query string) {
	s.selectedIdx = 0
	if query == "" {
		s.filtered = s.items
		return
	}

	s.filtered = []SuggestionItem{}
	for _, item := range s.items {
		if strings.HasPrefix(strings.ToLower(item.Text), query) {
			s.filtered = append(s.filtered, item)
		}
	}
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.visible || len(s.filtered) == 0 || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// maxVisibleSuggestions caps the dropdown height.
const maxVisibleSuggestions = 5

// Render draws the dropdown, scrolled so the selection stays visible.
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(max(width-4, 20))
	selected := lipgloss.NewStyle().Background(primaryColor).Foreground(fgColor).Bold(true)
	plain := lipgloss.NewStyle().Foreground(fgColor)
	desc := lipgloss.NewStyle().Foreground(mutedColor).Italic(true)

	first := 0
	if s.selectedIdx >= maxVisibleSuggestions {
		first = s.selectedIdx - maxVisibleSuggestions + 1
	}
	last := min(first+maxVisibleSuggestions, len(s.filtered))

	lines := make([]string, 0, last-first+1)
	for i := first; i < last; i++ {
		item := s.filtered[i]
		text := item.Text
		if item.Type != "command" {
			text = "@" + text
		}
		if i == s.selectedIdx {
			lines = append(lines, selected.Render("▶ "+text)+" "+desc.Render(item.Description))
		} else {
			lines = append(lines, plain.Render("  "+text)+" "+desc.Render(item.Description))
		}
	}
	if hidden := len(s.filtered) - (last - first); hidden > 0 {
		lines = append(lines, desc.Render(fmt.Sprintf("  %d more, ↑↓ to scroll", hidden)))
	}
	return box.Render(strings.Join(lines, "\n"))
}
