package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/tui"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	taskStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
)

var weekCmd = &cobra.Command{
	Use:   "week [day]",
	Short: "Show the weekly schedule",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWeek,
}

func runWeek(cmd *cobra.Command, args []string) error {
	days := models.Weekdays
	if len(args) == 1 {
		day, err := models.ParseDay(args[0])
		if err != nil {
			return err
		}
		days = []models.Weekday{day}
	}

	view, err := newClient().Week()
	if err != nil {
		return err
	}
	if view.Loading {
		fmt.Println(mutedStyle.Render("(schedule still loading)"))
	}
	for _, day := range days {
		entries := view.Week[day]
		if len(entries) == 0 && len(days) > 1 {
			continue
		}
		fmt.Println(headerStyle.Render(string(day)))
		printEntries(entries)
	}

	pending := 0
	for _, t := range view.Tasks {
		if !t.Completed {
			pending++
		}
	}
	fmt.Printf("\n%d tasks in backlog (%d pending), %d subjects tracked\n", len(view.Tasks), pending, len(view.Subjects))
	return nil
}

func printEntries(entries []models.ScheduleEntry) {
	if len(entries) == 0 {
		fmt.Println(mutedStyle.Render("  (empty)"))
		return
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %-5d %s-%s  %-24s %-8s", e.ID, e.StartTime, e.EndTime, e.Subject, e.Kind)
		switch {
		case e.Kind == models.EntryKindBreak:
			line = mutedStyle.Render(line)
		case e.Kind == models.EntryKindTask:
			line = taskStyle.Render(line)
		}
		fmt.Println(line + " " + tui.StatusBadge(e.Status))
	}
}

func joinDays(days []models.Weekday) string {
	if len(days) == 0 {
		return "no days"
	}
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}
