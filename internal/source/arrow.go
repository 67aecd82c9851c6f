package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"dashboard/internal/models"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

// Arrow reads an Arrow IPC stream. Dimension columns are strings, the count
// column an integer type; Arrow nulls become missing cells.
type Arrow struct {
	Path string
}

func (s *Arrow) Read(ctx context.Context) ([]models.RawRow, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open arrow: %w", err)
	}
	defer f.Close()

	rows, err := ReadArrow(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read arrow %s: %w", s.Path, err)
	}
	return rows, nil
}

func ReadArrow(ctx context.Context, r io.Reader) ([]models.RawRow, error) {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, err
	}
	defer rdr.Release()

	fields := rdr.Schema().Fields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	idx, err := columns(header)
	if err != nil {
		return nil, err
	}

	var rows []models.RawRow
	for rdr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := rdr.Record()
		n := int(rec.NumRows())
		for i := 0; i < n; i++ {
			row := make(models.RawRow, len(idx))
			for key, col := range idx {
				v, ok, err := cell(rec.Column(col), i)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", header[col], err)
				}
				if ok {
					row[key] = v
				}
			}
			rows = append(rows, row)
		}
	}
	if err := rdr.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return rows, nil
}

// cell renders one value as text. ok is false for nulls.
func cell(a arrow.Array, i int) (string, bool, error) {
	if a.IsNull(i) {
		return "", false, nil
	}
	switch c := a.(type) {
	case *array.String:
		return c.Value(i), true, nil
	case *array.LargeString:
		return c.Value(i), true, nil
	case *array.Int64:
		return strconv.FormatInt(c.Value(i), 10), true, nil
	case *array.Int32:
		return strconv.FormatInt(int64(c.Value(i)), 10), true, nil
	case *array.Uint32:
		return strconv.FormatUint(uint64(c.Value(i)), 10), true, nil
	case *array.Uint64:
		return strconv.FormatUint(c.Value(i), 10), true, nil
	default:
		return "", false, fmt.Errorf("unsupported arrow type %s", a.DataType())
	}
}
