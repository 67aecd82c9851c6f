package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"dashboard/internal/models"

	"github.com/360EntSecGroup-Skylar/excelize/v2"
)

// XLSX reads the first sheet of a workbook; its first row is the header.
type XLSX struct {
	Path string
}

func (s *XLSX) Read(ctx context.Context) ([]models.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	rows, err := ReadXLSX(f)
	if err != nil {
		return nil, fmt.Errorf("read xlsx %s: %w", s.Path, err)
	}
	return rows, nil
}

func ReadXLSX(r io.Reader) ([]models.RawRow, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	records, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("rows of sheet %q: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("sheet %q is empty: no header row", sheets[0])
	}
	return fromRecords(records[0], records[1:])
}
