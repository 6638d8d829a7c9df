package parser

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

type sheet struct {
	name string
	rows [][]string
}

// TabularParser handles CSV files and Excel workbooks, both OOXML (.xlsx)
// and legacy BIFF (.xls). Each sheet renders as a
// marker line, a header line, then one line per non-blank data row.
type TabularParser struct{}

func (p *TabularParser) Parse(_ context.Context, path string) Result {
	var sheets []sheet
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		var rows [][]string
		rows, err = readCSV(path)
		sheets = []sheet{{name: "Sheet1", rows: rows}}
	case ".xls":
		sheets, err = readXLS(path)
		if err != nil {
			// Some exporters write OOXML under an .xls name.
			if ooxml, oerr := readWorkbook(path); oerr == nil {
				sheets, err = ooxml, nil
			}
		}
	default:
		sheets, err = readWorkbook(path)
	}
	if err != nil {
		return failed("processing Excel file: %w", err)
	}

	var lines []string
	for _, s := range sheets {
		lines = append(lines, "=== SHEET: "+s.name+" ===")
		var header []string
		if len(s.rows) > 0 {
			header = s.rows[0]
		}
		lines = append(lines, "[HEADERS] "+joinCells(header))
		for i := 1; i < len(s.rows); i++ {
			if line := joinCells(s.rows[i]); line != "" {
				lines = append(lines, line)
			}
		}
		lines = append(lines, "")
	}
	return textOrEmpty(strings.Join(lines, "\n"))
}

func readWorkbook(path string) ([]sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, err
		}
		out = append(out, sheet{name: name, rows: rows})
	}
	return out, nil
}
