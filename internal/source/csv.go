package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"dashboard/internal/models"
)

// CSV reads a comma separated file with a header row.
type CSV struct {
	Path string
}

func (s *CSV) Read(ctx context.Context) ([]models.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", s.Path, err)
	}
	return rows, nil
}

// ReadCSV parses CSV data whose first record is the header.
func ReadCSV(r io.Reader) ([]models.RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file: no header row")
	}
	return fromRecords(records[0], records[1:])
}
