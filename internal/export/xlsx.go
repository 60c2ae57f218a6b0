package export

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"classcoach/internal/api"
)

// SheetName is the worksheet that holds the history rows.
const SheetName = "Analyses"

// Columns lists the header row in order.
var Columns = []string{
	"ID",
	"Filename",
	"Subject",
	"Grade",
	"Topic",
	"Status",
	"Created",
	"Completed",
	"Overall Score",
	"Words Per Minute",
	"Filler Rate",
	"Speech Rate",
	"Error",
}

// WriteXLSX renders items as a single-sheet workbook to w.
func WriteXLSX(w io.Writer, items []api.Analysis) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, name := range Columns {
		header[i] = name
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := rowValues(item)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", item.ID, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 32); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook to path, replacing any existing file.
func SaveXLSX(path string, items []api.Analysis) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WriteXLSX(file, items)
}

func rowValues(item api.Analysis) []any {
	row := []any{
		item.ID,
		item.OriginalFilename,
		item.Context.Subject,
		item.Context.GradeLevel,
		item.Context.LessonTopic,
		item.Status,
		item.CreatedAt,
		item.CompletedAt,
	}
	row = append(row, optionalScore(item))
	row = append(row, optionalMetric(item.Transcription.Float, "wpm"))
	row = append(row, optionalMetric(item.Transcription.Float, "filler_rate"))
	row = append(row, optionalMetric(item.Prosody.Float, "speech_rate"))
	row = append(row, item.ErrorMessage)
	return row
}

func optionalScore(item api.Analysis) any {
	if score, ok := api.OverallScore(item.Feedback); ok {
		return score
	}
	return ""
}

func optionalMetric(lookup func(string) (float64, bool), key string) any {
	if value, ok := lookup(key); ok {
		return value
	}
	return ""
}
