package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fentz26/classmate/internal/tui"
)

var subjectCmd = &cobra.Command{
	Use:   "subject",
	Short: "Manage per-subject attendance",
}

var subjectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subjects with their standing",
	RunE:  runSubjectList,
}

var subjectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Track a subject that is not in the timetable",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubjectAdd,
}

var subjectSetCmd = &cobra.Command{
	Use:   "set <name> <attended> <total>",
	Short: "Override a subject's counters",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runSubjectSet,
}

var subjectResetCmd = &cobra.Command{
	Use:   "reset <name>",
	Short: "Zero a subject's counters",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubjectReset,
}

var subjectRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Stop tracking a subject",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubjectRm,
}

var subjectTarget float64

func init() {
	subjectCmd.AddCommand(subjectListCmd, subjectAddCmd, subjectSetCmd, subjectResetCmd, subjectRmCmd)

	subjectListCmd.Flags().Float64Var(&subjectTarget, "target", 0, "Attendance target percentage (default from daemon config)")
}

func runSubjectList(cmd *cobra.Command, args []string) error {
	standings, err := newClient().Standings(subjectTarget)
	if err != nil {
		return err
	}
	if len(standings) == 0 {
		fmt.Println("No subjects tracked")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tATTENDED\tTOTAL\tPERCENT\tSTANDING")
	for _, s := range standings {
		pct := "-"
		if s.Total > 0 {
			pct = fmt.Sprintf("%.1f%%", s.Standing.Percentage)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", s.Name, s.Attended, s.Total, pct, tui.StandingStyle(s.Standing).Render(s.Standing.Message))
	}
	return w.Flush()
}

func runSubjectAdd(cmd *cobra.Command, args []string) error {
	row, err := newClient().AddSubject(strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Printf("Tracking %s\n", row.Name)
	return nil
}

func runSubjectSet(cmd *cobra.Command, args []string) error {
	n := len(args)
	attended, err := strconv.Atoi(args[n-2])
	if err != nil {
		return fmt.Errorf("invalid attended count %q", args[n-2])
	}
	total, err := strconv.Atoi(args[n-1])
	if err != nil {
		return fmt.Errorf("invalid total count %q", args[n-1])
	}
	row, err := newClient().SetSubject(strings.Join(args[:n-2], " "), attended, total)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d/%d\n", row.Name, row.Attended, row.Total)
	return nil
}

func runSubjectReset(cmd *cobra.Command, args []string) error {
	row, err := newClient().ResetSubject(strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Printf("%s reset to %d/%d\n", row.Name, row.Attended, row.Total)
	return nil
}

func runSubjectRm(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")
	if err := newClient().DeleteSubject(name); err != nil {
		return err
	}
	fmt.Printf("Stopped tracking %s\n", name)
	return nil
}
