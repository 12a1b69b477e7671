package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show counted attendance events and advice",
	RunE:  runAudit,
}

var auditLimit int

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Number of records to show")
}

func runAudit(cmd *cobra.Command, args []string) error {
	client := newClient()

	adv, err := client.Advice(0)
	if err != nil {
		return err
	}
	fmt.Printf("Overall attendance %.1f%% (target %.0f%%), %d pending tasks\n", adv.Overall, adv.Target, adv.PendingTasks)

	recs, err := client.Audit(auditLimit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No attendance recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tDAY\tSUBJECT\tACTION\tENTRY")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.RecordedAt.Local().Format(time.DateTime), r.Day, r.Subject, r.Action, r.EntryID)
	}
	return w.Flush()
}
