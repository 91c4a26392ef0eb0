// Package report renders a session's quiz history as an XLSX workbook with a
// score chart.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/mindshift/internal/quiz"
	"github.com/p-n-ai/mindshift/internal/session"
)

const (
	SheetName   = "History"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	percentFormat = 10 // built-in "0.00%"
)

var header = []any{"Date", "Quiz", "Score", "Total", "Percent"}

// PhaseLabel is the human name of a quiz phase.
func PhaseLabel(p quiz.Phase) string {
	if p == quiz.PhasePost {
		return "Post-learning"
	}
	return "Pre-learning"
}

// WriteHistory writes the history workbook to w. The chart is omitted when
// there is nothing to plot.
func WriteHistory(w io.Writer, history []session.ScoreResult) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "E1", bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, r := range history {
		percent := 0.0
		if r.Total > 0 {
			percent = float64(r.Score) / float64(r.Total)
		}
		row := []any{r.Date.Format("2006-01-02"), PhaseLabel(r.Phase), r.Score, r.Total, percent}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if len(history) > 0 {
		last := len(history) + 1
		pct, err := f.NewStyle(&excelize.Style{NumFmt: percentFormat})
		if err != nil {
			return fmt.Errorf("creating percent style: %w", err)
		}
		if err := f.SetCellStyle(SheetName, "E2", fmt.Sprintf("E%d", last), pct); err != nil {
			return fmt.Errorf("styling percentages: %w", err)
		}

		if err := f.AddChart(SheetName, "G2", &excelize.Chart{
			Type: excelize.Line,
			Series: []excelize.ChartSeries{{
				Name:       fmt.Sprintf("%s!$E$1", SheetName),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", SheetName, last),
				Values:     fmt.Sprintf("%s!$E$2:$E$%d", SheetName, last),
			}},
			Title:  []excelize.RichTextRun{{Text: "Quiz scores"}},
			Legend: excelize.ChartLegend{Position: "none"},
		}); err != nil {
			return fmt.Errorf("adding chart: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
