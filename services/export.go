package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"neurallog/auth"
	"neurallog/db"
	"neurallog/logging"
	"neurallog/models"
)

const (
	ExportSheet       = "Activities"
	ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxColumnWidth    = 50
)

var ExportHeaders = []string{"Date", "Activity Name", "Description", "Duration (min)", "Progress Score", "Notes"}

type ExportStore interface {
	ActivitiesByUser(ctx context.Context, userID int64, order db.Order) ([]models.Activity, error)
}

// Exporter writes a user's activities to an .xlsx workbook on disk.
// Files accumulate in dir; nothing removes old exports.
type Exporter struct {
	store ExportStore
	dir   string
	now   func() time.Time
}

func NewExporter(store ExportStore, dir string) *Exporter {
	return &Exporter{store: store, dir: dir, now: time.Now}
}

type ExportFile struct {
	Path string
	Name string
	Rows int
}

// Export renders owner's activities, oldest date first, and saves the
// workbook under a timestamped name.
func (e *Exporter) Export(ctx context.Context, owner auth.Identity) (ExportFile, error) {
	activities, err := e.store.ActivitiesByUser(ctx, owner.UserID, db.OldestFirst)
	if err != nil {
		return ExportFile{}, err
	}

	f, err := buildWorkbook(activities)
	if err != nil {
		return ExportFile{}, err
	}
	defer f.Close()

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return ExportFile{}, fmt.Errorf("create export dir: %w", err)
	}
	name := "neural_log_export_" + e.now().Format("20060102_150405") + ".xlsx"
	path := filepath.Join(e.dir, name)
	if err := f.SaveAs(path); err != nil {
		return ExportFile{}, fmt.Errorf("save workbook: %w", err)
	}

	logging.Export().WithFields(map[string]any{
		"user_id": owner.UserID,
		"rows":    len(activities),
		"file":    path,
	}).Info("activities exported")
	return ExportFile{Path: path, Name: name, Rows: len(activities)}, nil
}

func buildWorkbook(activities []models.Activity) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		f.Close()
		return nil, err
	}

	widths := make([]int, len(ExportHeaders))
	track := func(values []string) {
		for i, v := range values {
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
	}

	header := make([]any, len(ExportHeaders))
	for i, h := range ExportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	track(ExportHeaders)

	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(ExportHeaders))
	if err := f.SetCellStyle(ExportSheet, "A1", lastCol+"1", style); err != nil {
		f.Close()
		return nil, err
	}

	for i, a := range activities {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{a.Date, a.ActivityName, a.Description, a.Duration, a.ProgressScore, a.Notes}
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
		track([]string{a.Date, a.ActivityName, a.Description, strconv.Itoa(a.Duration), strconv.Itoa(a.ProgressScore), a.Notes})
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(ExportSheet, col, col, float64(min(w+2, maxColumnWidth))); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}
