package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dashboard/internal/models"
)

// Reader produces the raw census rows the engine loads. A key missing from a
// row stands for a null cell.
type Reader interface {
	Read(ctx context.Context) ([]models.RawRow, error)
}

// Kind selects a Reader implementation.
type Kind string

const (
	KindCSV      Kind = "csv"
	KindXLSX     Kind = "xlsx"
	KindArrow    Kind = "arrow"
	KindPostgres Kind = "postgres"
)

// Config describes where the dataset lives.
type Config struct {
	Kind Kind
	Path string

	PostgresDSN   string
	PostgresTable string
}

func (cfg *Config) Validate() error {
	switch cfg.Kind {
	case KindCSV, KindXLSX, KindArrow:
		if cfg.Path == "" {
			return fmt.Errorf("%s source requires a path", cfg.Kind)
		}
	case KindPostgres:
		if cfg.PostgresDSN == "" {
			return errors.New("postgres source requires a DSN")
		}
		if cfg.PostgresTable == "" {
			return errors.New("postgres source requires a table")
		}
	default:
		return fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
	return nil
}

// Open returns the Reader for cfg.Kind.
func Open(cfg Config) (Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindCSV:
		return &CSV{Path: cfg.Path}, nil
	case KindXLSX:
		return &XLSX{Path: cfg.Path}, nil
	case KindArrow:
		return &Arrow{Path: cfg.Path}, nil
	default:
		return &Postgres{DSN: cfg.PostgresDSN, Table: cfg.PostgresTable}, nil
	}
}

// columns maps the canonical row keys (field names and "count") to their
// position in header. Unrecognised columns are ignored; the first of
// duplicate columns wins.
func columns(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(models.Fields)+1)
	for i, name := range header {
		key := ""
		if strings.EqualFold(strings.TrimSpace(name), models.CountColumn) {
			key = models.CountColumn
		} else if f, err := models.ParseField(name); err == nil {
			key = string(f)
		}
		if key == "" {
			continue
		}
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}

	for _, f := range models.Fields {
		if _, ok := idx[string(f)]; !ok {
			return nil, fmt.Errorf("missing column %q", f)
		}
	}
	if _, ok := idx[models.CountColumn]; !ok {
		return nil, fmt.Errorf("missing column %q", models.CountColumn)
	}
	return idx, nil
}

// fromRecords turns a header plus string records into raw rows. Short
// records leave the trailing columns null.
func fromRecords(header []string, records [][]string) ([]models.RawRow, error) {
	idx, err := columns(header)
	if err != nil {
		return nil, err
	}
	rows := make([]models.RawRow, 0, len(records))
	for _, rec := range records {
		row := make(models.RawRow, len(idx))
		for key, i := range idx {
			if i < len(rec) {
				row[key] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
