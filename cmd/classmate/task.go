package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fentz26/classmate/internal/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the task backlog",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Add a task to the backlog",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backlog tasks",
	RunE:  runTaskList,
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <task-id> <day>",
	Short: "Place a task in a free slot of a day",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskMove,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Toggle a task's completed flag",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <task-id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

var taskReplaceCmd = &cobra.Command{
	Use:   "replace <day> <entry-id>",
	Short: "Replace an entry with the first backlog task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskReplace,
}

var taskPending bool

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskMoveCmd, taskDoneCmd, taskRmCmd, taskReplaceCmd)

	taskListCmd.Flags().BoolVar(&taskPending, "pending", false, "Only show tasks that are not completed")
}

func parseID(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return v, nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	task, err := newClient().AddTask(strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Printf("Created task #%d: %s\n", task.ID, task.Suggestion)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	view, err := newClient().Week()
	if err != nil {
		return err
	}

	var tasks []models.Task
	for _, t := range view.Tasks {
		if taskPending && t.Completed {
			continue
		}
		tasks = append(tasks, t)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK\tTYPE\tDURATION\tDONE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\n", t.ID, truncate(t.Suggestion, 40), t.Kind, t.Duration, t.Completed)
	}
	return w.Flush()
}

func runTaskMove(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	day, err := models.ParseDay(args[1])
	if err != nil {
		return err
	}
	entry, err := newClient().MoveTask(id, day)
	if err != nil {
		return err
	}
	fmt.Printf("Placed %q on %s %s-%s\n", entry.Subject, day, entry.StartTime, entry.EndTime)
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	task, err := newClient().CompleteTask(id)
	if err != nil {
		return err
	}
	state := "open"
	if task.Completed {
		state = "completed"
	}
	fmt.Printf("Task #%d is %s\n", task.ID, state)
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := newClient().DeleteTask(id); err != nil {
		return err
	}
	fmt.Printf("Deleted task #%d\n", id)
	return nil
}

func runTaskReplace(cmd *cobra.Command, args []string) error {
	day, err := models.ParseDay(args[0])
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	entry, err := newClient().ReplaceWithNext(day, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s-%s now holds %q\n", day, entry.StartTime, entry.EndTime, entry.Subject)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
