// Package ingest turns scanned timetables into stored schedule days.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fentz26/classmate/internal/connectors"
	"github.com/fentz26/classmate/internal/models"
	"github.com/fentz26/classmate/internal/store"
	"github.com/fentz26/classmate/internal/timetable"
)

var (
	// ErrNoRecognizer is returned by Recognize when no recognizer is wired.
	ErrNoRecognizer = errors.New("no text recognizer configured")
	// ErrEmptyScan is returned when nothing in the input names a known day.
	ErrEmptyScan = errors.New("scan contains no recognizable days")
)

// DaySaver is the part of the store adapter the pipeline writes through.
type DaySaver interface {
	SaveDay(ctx context.Context, userID string, day models.Weekday, entries []models.ScheduleEntry) error
}

// Preview is what a scan would write, before it is committed.
type Preview struct {
	Normalized []timetable.NormalizedDay                 `json:"normalized,omitempty"`
	Slots      []timetable.StructuredSlot                `json:"slots"`
	Entries    map[models.Weekday][]models.ScheduleEntry `json:"entries"`
}

// Days returns the scanned days in week order.
func (p Preview) Days() []models.Weekday {
	var days []models.Weekday
	for _, d := range models.Weekdays {
		if _, ok := p.Entries[d]; ok {
			days = append(days, d)
		}
	}
	return days
}

// Pipeline runs recognize, normalize, structure and commit.
type Pipeline struct {
	recognizer connectors.Recognizer
	normalizer *timetable.Normalizer
	structurer *timetable.Structurer
	store      DaySaver
	logger     *slog.Logger
}

// New creates a pipeline. The recognizer may be nil when only text or grid
// input is used.
func New(rec connectors.Recognizer, n *timetable.Normalizer, s *timetable.Structurer, st DaySaver, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		recognizer: rec,
		normalizer: n,
		structurer: s,
		store:      st,
		logger:     logger.With("component", "ingest"),
	}
}

// Recognize extracts raw text from a timetable image.
func (p *Pipeline) Recognize(ctx context.Context, imagePath string) (string, error) {
	if p.recognizer == nil {
		return "", ErrNoRecognizer
	}
	text, err := p.recognizer.Recognize(ctx, imagePath)
	if err != nil {
		return "", fmt.Errorf("recognize %s: %w", imagePath, err)
	}
	p.logger.Debug("recognized image", "recognizer", p.recognizer.Name(), "path", imagePath, "bytes", len(text))
	return text, nil
}

// Preview normalizes and structures raw text without writing anything.
// Slots include lunch rows; entries do not.
func (p *Pipeline) Preview(raw string) Preview {
	days := p.normalizer.Normalize(raw)
	slots := p.structurer.Structure(days, "")
	entries := p.structurer.EntriesByDay(slots)
	for _, d := range days {
		if day, err := models.ParseDay(d.Day); err == nil {
			if _, ok := entries[day]; !ok {
				entries[day] = []models.ScheduleEntry{}
			}
		}
	}
	return Preview{Normalized: days, Slots: slots, Entries: entries}
}

// PreviewGrid structures grid input without writing anything.
func (p *Pipeline) PreviewGrid(grid timetable.Grid) Preview {
	slots := p.structurer.StructureGrid(grid, "")
	entries := p.structurer.EntriesByDay(slots)
	for code := range grid {
		if day, err := models.ParseDay(code); err == nil {
			if _, ok := entries[day]; !ok {
				entries[day] = []models.ScheduleEntry{}
			}
		}
	}
	return Preview{Slots: slots, Entries: entries}
}

// DaysWriter replaces a batch of scanned days in one step. An open engine
// session implements it so the days are ordered with its pending saves.
type DaysWriter interface {
	ReplaceDays(ctx context.Context, days map[models.Weekday][]models.ScheduleEntry) error
}

// Commit replaces every day present in the scan. Days absent from the scan
// are left alone. The scan is archived when the store keeps scans.
func (p *Pipeline) Commit(ctx context.Context, userID, raw string) (Preview, error) {
	return p.CommitTo(ctx, userID, raw, nil)
}

// CommitTo is Commit writing the days through w. A nil w saves them to the
// store directly.
func (p *Pipeline) CommitTo(ctx context.Context, userID, raw string, w DaysWriter) (Preview, error) {
	pv := p.Preview(raw)
	if err := p.commit(ctx, userID, pv, w); err != nil {
		return pv, err
	}
	normalized, err := json.Marshal(pv.Normalized)
	if err != nil {
		return pv, fmt.Errorf("encode normalized scan: %w", err)
	}
	p.archive(ctx, models.ScanRecord{UserID: userID, RawText: raw, Normalized: string(normalized)})
	return pv, nil
}

// CommitGrid is Commit for grid input.
func (p *Pipeline) CommitGrid(ctx context.Context, userID string, grid timetable.Grid) (Preview, error) {
	return p.CommitGridTo(ctx, userID, grid, nil)
}

// CommitGridTo is CommitTo for grid input.
func (p *Pipeline) CommitGridTo(ctx context.Context, userID string, grid timetable.Grid, w DaysWriter) (Preview, error) {
	pv := p.PreviewGrid(grid)
	if err := p.commit(ctx, userID, pv, w); err != nil {
		return pv, err
	}
	data, err := json.Marshal(grid)
	if err != nil {
		return pv, fmt.Errorf("encode grid: %w", err)
	}
	p.archive(ctx, models.ScanRecord{UserID: userID, Normalized: string(data)})
	return pv, nil
}

func (p *Pipeline) commit(ctx context.Context, userID string, pv Preview, w DaysWriter) error {
	if strings.TrimSpace(userID) == "" {
		return store.ErrEmptyUser
	}
	days := pv.Days()
	if len(days) == 0 {
		return ErrEmptyScan
	}
	if w != nil {
		batch := make(map[models.Weekday][]models.ScheduleEntry, len(days))
		for _, day := range days {
			batch[day] = cloneEntries(pv.Entries[day])
		}
		if err := w.ReplaceDays(ctx, batch); err != nil {
			return fmt.Errorf("replace days: %w", err)
		}
	} else {
		for _, day := range days {
			if err := p.store.SaveDay(ctx, userID, day, pv.Entries[day]); err != nil {
				return fmt.Errorf("save %s: %w", day, err)
			}
		}
	}
	p.logger.Info("committed scan", "user", userID, "days", len(days), "slots", len(pv.Slots))
	return nil
}

// archive is best effort; a lost archive record never fails a commit.
func (p *Pipeline) archive(ctx context.Context, rec models.ScanRecord) {
	arch, ok := p.store.(store.ScanArchive)
	if !ok {
		return
	}
	if err := arch.SaveScan(ctx, rec); err != nil {
		p.logger.Warn("failed to archive scan", "user", rec.UserID, "error", err)
	}
}

func cloneEntries(entries []models.ScheduleEntry) []models.ScheduleEntry {
	out := make([]models.ScheduleEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
