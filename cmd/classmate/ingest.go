package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/classmate/internal/connectors/localexec"
	"github.com/fentz26/classmate/internal/ingest"
	"github.com/fentz26/classmate/internal/timetable"
	"github.com/fentz26/classmate/internal/tui"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Import a timetable scan",
}

var ingestPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show what a scan would write without saving it",
	RunE:  runIngestPreview,
}

var ingestCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Replace the scanned days of the timetable",
	RunE:  runIngestCommit,
}

var (
	ingestFile  string
	ingestImage string
	ingestGrid  string
)

func init() {
	ingestCmd.AddCommand(ingestPreviewCmd, ingestCommitCmd)

	for _, c := range []*cobra.Command{ingestPreviewCmd, ingestCommitCmd} {
		c.Flags().StringVar(&ingestFile, "file", "", "Text file with one line per day (- for stdin)")
		c.Flags().StringVar(&ingestImage, "image", "", "Timetable image, read with the configured recognizer")
		c.Flags().StringVar(&ingestGrid, "grid", "", "JSON file mapping day codes to cells")
		c.MarkFlagsMutuallyExclusive("file", "image", "grid")
	}
}

// scanInput is either raw text or a grid.
type scanInput struct {
	text string
	grid timetable.Grid
}

func readScan(ctx context.Context) (scanInput, error) {
	switch {
	case ingestFile == "-":
		data, err := io.ReadAll(os.Stdin)
		return scanInput{text: string(data)}, err
	case ingestFile != "":
		data, err := os.ReadFile(ingestFile)
		if err != nil {
			return scanInput{}, err
		}
		return scanInput{text: string(data)}, nil
	case ingestImage != "":
		cfg, err := loadConfig()
		if err != nil {
			return scanInput{}, err
		}
		text, err := localexec.New(cfg.Recognizer).Recognize(ctx, ingestImage)
		if err != nil {
			return scanInput{}, fmt.Errorf("recognize %s: %w", ingestImage, err)
		}
		return scanInput{text: text}, nil
	case ingestGrid != "":
		data, err := os.ReadFile(ingestGrid)
		if err != nil {
			return scanInput{}, err
		}
		var grid timetable.Grid
		if err := json.Unmarshal(data, &grid); err != nil {
			return scanInput{}, fmt.Errorf("parse grid: %w", err)
		}
		return scanInput{grid: grid}, nil
	}
	return scanInput{}, errors.New("one of --file, --image or --grid is required")
}

func runIngestPreview(cmd *cobra.Command, args []string) error {
	in, err := readScan(cmd.Context())
	if err != nil {
		return err
	}
	client := newClient()
	var pv *ingest.Preview
	if in.grid != nil {
		pv, err = client.PreviewGrid(in.grid)
	} else {
		pv, err = client.Preview(in.text)
	}
	if err != nil {
		return err
	}

	days := pv.Days()
	if len(days) == 0 {
		fmt.Println("No recognizable days in the scan.")
		return nil
	}
	for _, day := range days {
		fmt.Println(headerStyle.Render(string(day)))
		printEntries(pv.Entries[day])
	}
	fmt.Printf("\n%d slots across %d days. Run 'classmate ingest commit' to save.\n", len(pv.Slots), len(days))
	return nil
}

func runIngestCommit(cmd *cobra.Command, args []string) error {
	in, err := readScan(cmd.Context())
	if err != nil {
		return err
	}
	client := newClient()
	var res *tui.IngestResult
	if in.grid != nil {
		res, err = client.IngestGrid(in.grid)
	} else {
		res, err = client.Ingest(in.text)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Replaced %s (%d slots)\n", joinDays(res.Days), res.Slots)
	return nil
}
