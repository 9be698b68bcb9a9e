package storage

import (
	"errors"
	"io"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/qepting91/reddit-export/internal/domain"
)

const sheetName = "Sheet1"

func writeXLSX(w io.Writer, ds domain.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(ds.Columns))
	for i, col := range ds.Columns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, r := range ds.Records {
		row := make([]interface{}, len(ds.Columns))
		for j, col := range ds.Columns {
			row[j] = cellValue(col, r[col])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

// cellValue writes canonical numbers as numeric cells so spreadsheets can
// sort and sum them; anything that would not read back identically stays a
// string. Identifiers are always strings.
func cellValue(col, v string) interface{} {
	if v == "" {
		return nil
	}
	if col != domain.FieldID {
		if n, err := strconv.ParseFloat(v, 64); err == nil &&
			!math.IsNaN(n) && !math.IsInf(n, 0) &&
			strconv.FormatFloat(n, 'f', -1, 64) == v {
			return n
		}
	}
	if utf8.RuneCountInString(v) > excelize.TotalCellChars {
		v = string([]rune(v)[:excelize.TotalCellChars])
	}
	return v
}

func loadXLSX(path string) (domain.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.Dataset{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return domain.Dataset{}, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.Dataset{}, err
	}
	if len(rows) == 0 {
		return domain.Dataset{}, errors.New("empty sheet")
	}

	cols := rows[0]
	ds := domain.Dataset{Columns: cols}
	for _, row := range rows[1:] {
		ds.Records = append(ds.Records, rowRecord(cols, row))
	}
	return ds, nil
}
