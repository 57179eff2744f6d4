package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the workbook table writes to.
const SheetName = "financial_data"

// XLSXTable writes rows to a single-sheet workbook. Amounts are numeric
// cells; absent amounts are left blank.
type XLSXTable struct {
	Path string
}

// NewXLSXTable creates a workbook table at path.
func NewXLSXTable(path string) *XLSXTable {
	return &XLSXTable{Path: path}
}

// Write implements Table.
func (t *XLSXTable) Write(_ context.Context, rows []Row) error {
	wb, err := buildWorkbook(rows)
	if err != nil {
		return err
	}
	defer wb.Close()

	return writeFileAtomic(t.Path, func(w io.Writer) error {
		_, err := wb.WriteTo(w)
		return err
	})
}

func buildWorkbook(rows []Row) (*excelize.File, error) {
	wb := excelize.NewFile()
	if err := wb.SetSheetName("Sheet1", SheetName); err != nil {
		wb.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := wb.SetSheetRow(SheetName, "A1", &header); err != nil {
		wb.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			wb.Close()
			return nil, err
		}
		values := r.cells()
		if err := wb.SetSheetRow(SheetName, cell, &values); err != nil {
			wb.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return wb, nil
}

// cells renders the row for a workbook: text columns as strings, amounts as
// integers, absent amounts as nil.
func (r Row) cells() []any {
	out := make([]any, 0, len(Columns))
	out = append(out, r.FileName, r.FilePath, r.HeadlineKind, r.QuarterEndRaw, r.QuarterEnd)
	for _, v := range r.metrics() {
		if v == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, *v)
	}
	return append(out, r.Note, r.Error)
}
