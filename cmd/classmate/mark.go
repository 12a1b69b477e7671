package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/classmate/internal/engine"
	"github.com/fentz26/classmate/internal/models"
)

var markCmd = &cobra.Command{
	Use:   "mark",
	Short: "Record attendance on a day's entries",
}

var markDay string

func init() {
	for _, action := range []models.Action{models.ActionAttend, models.ActionMiss, models.ActionCancel} {
		markCmd.AddCommand(newMarkCmd(action))
	}
	markCmd.AddCommand(markRestoreCmd)
	markCmd.PersistentFlags().StringVar(&markDay, "day", "", "Day of the entry (default today)")
}

func newMarkCmd(action models.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <subject | entry-id>",
		Short: fmt.Sprintf("Mark an entry %s", pastTense(action)),
		Long: fmt.Sprintf(`Mark an entry %s. A numeric argument selects the entry by ID,
anything else the first class of the day with that subject.`, pastTense(action)),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay()
			if err != nil {
				return err
			}
			ref := engine.EntryRef{Subject: strings.Join(args, " ")}
			if len(args) == 1 {
				if id, err := parseID(args[0]); err == nil {
					ref = engine.EntryRef{ID: id}
				}
			}
			tr, err := newClient().UpdateStatus(day, ref, action)
			if err != nil {
				return err
			}
			switch {
			case !tr.Applied:
				fmt.Printf("%s is already %s, nothing changed\n", tr.Entry.Subject, tr.Entry.Status)
			case tr.Counted:
				fmt.Printf("%s marked %s (counted)\n", tr.Entry.Subject, tr.Entry.Status)
			case tr.Entry.Subject != tr.Previous.Subject:
				fmt.Printf("%s freed, slot is now %s\n", tr.Previous.Subject, tr.Entry.Subject)
			default:
				fmt.Printf("%s marked %s\n", tr.Entry.Subject, tr.Entry.Status)
			}
			return nil
		},
	}
}

var markRestoreCmd = &cobra.Command{
	Use:   "restore <entry-id>",
	Short: "Restore a cancelled or freed entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := resolveDay()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		entry, err := newClient().Restore(day, id)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %s (%s-%s)\n", entry.Subject, entry.StartTime, entry.EndTime)
		return nil
	},
}

func resolveDay() (models.Weekday, error) {
	if markDay == "" {
		return today(), nil
	}
	return models.ParseDay(markDay)
}

func today() models.Weekday {
	return models.Weekdays[time.Now().Weekday()]
}

func pastTense(a models.Action) string {
	switch a {
	case models.ActionAttend:
		return "attended"
	case models.ActionMiss:
		return "missed"
	default:
		return "cancelled"
	}
}
