// Package export renders de-identified records as an XLSX workbook.
package export

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/NarendraPati1/deIdentifier/internal/pipeline"
)

const (
	DataSheet    = "PII_PHI_Data"
	SummarySheet = "Summary"

	maxColWidth = 40
)

// Header fills: neutral, PII blue, PHI orange.
const (
	basicFill = "D4EDDA"
	piiFill   = "CCE5FF"
	phiFill   = "FFE5CC"
)

// Workbook builds the results workbook from rows in pipeline.Header order.
// now stamps the summary's processing date.
func Workbook(rows [][]string, now time.Time, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, err
	}

	header := pipeline.Header()
	fills := make([]string, len(header))
	fills[0] = basicFill
	for i, c := range pipeline.Columns {
		if c.PHI {
			fills[i+1] = phiFill
		} else {
			fills[i+1] = piiFill
		}
	}
	if err := writeTable(f, DataSheet, header, rows, fills, maxColWidth); err != nil {
		return nil, err
	}

	piiTypes, phiTypes := typesFound(rows)
	summary := [][]string{
		{"Total Files Processed", fmt.Sprint(len(rows))},
		{"Total PII Types Found", fmt.Sprint(piiTypes)},
		{"Total PHI Types Found", fmt.Sprint(phiTypes)},
		{"Processing Date", now.Format("2006-01-02 15:04:05")},
	}
	if err := writeTable(f, SummarySheet, []string{"Metric", "Value"}, summary, []string{basicFill, basicFill}, 0); err != nil {
		return nil, err
	}

	idx, _ := f.GetSheetIndex(DataSheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	logger.Info("export.xlsx.ok", "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// FileName is the download name for a workbook produced at t.
func FileName(t time.Time) string {
	return "PII_PHI_Results_" + t.Format("20060102_150405") + ".xlsx"
}

// writeTable writes a bold header plus rows and sizes columns to their
// longest cell plus two, capped at maxWidth when positive.
func writeTable(f *excelize.File, sheet string, header []string, rows [][]string, fills []string, maxWidth int) error {
	widths := make([]int, len(header))
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		widths[i] = utf8.RuneCountInString(h)

		style, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true, Size: 12},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fills[i]}},
		})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}

	for r, row := range rows {
		for c := range header {
			v := ""
			if c < len(row) {
				v = row[c]
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
			if n := utf8.RuneCountInString(v); n > widths[c] {
				widths[c] = n
			}
		}
	}

	for i, w := range widths {
		w += 2
		if maxWidth > 0 && w > maxWidth {
			w = maxWidth
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, float64(w)); err != nil {
			return err
		}
	}
	return nil
}

// typesFound counts PII and PHI columns with at least one non-empty cell.
func typesFound(rows [][]string) (pii, phi int) {
	for i, c := range pipeline.Columns {
		for _, row := range rows {
			if i+1 < len(row) && row[i+1] != "" {
				if c.PHI {
					phi++
				} else {
					pii++
				}
				break
			}
		}
	}
	return pii, phi
}
