package parser

import (
	"errors"
	"os"

	"github.com/extrame/xls"
)

// readXLS loads every sheet of a legacy BIFF (.xls) workbook.
func readXLS(path string) ([]sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Sheets are decoded lazily from f, so it stays open until all are read.
	wb, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, errors.New("no workbook stream in file")
	}

	var out []sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		out = append(out, sheet{name: ws.Name, rows: rows})
	}
	return out, nil
}
