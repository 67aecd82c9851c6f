package source

import (
	"context"
	"fmt"
	"strings"

	"dashboard/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres reads the census extract table. Every column is cast to text so
// count validation stays with the loader; SQL NULL becomes a missing cell.
type Postgres struct {
	DSN   string
	Table string
}

// selectColumns are the census extract's column names, in models.Fields order
// followed by the count.
var selectColumns = []string{"year_desc", "age_desc", "ethnic_desc", "sex_desc", "area_desc", models.CountColumn}

func (s *Postgres) query() string {
	cols := make([]string, len(selectColumns))
	for i, c := range selectColumns {
		cols[i] = pgx.Identifier{c}.Sanitize() + "::text"
	}
	table := pgx.Identifier(strings.Split(s.Table, ".")).Sanitize()
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
}

func (s *Postgres) Read(ctx context.Context) ([]models.RawRow, error) {
	poolConfig, err := pgxpool.ParseConfig(s.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	defer pool.Close()

	rs, err := pool.Query(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	defer rs.Close()

	keys := make([]string, 0, len(selectColumns))
	for _, f := range models.Fields {
		keys = append(keys, string(f))
	}
	keys = append(keys, models.CountColumn)

	var rows []models.RawRow
	for rs.Next() {
		vals := make([]*string, len(keys))
		dest := make([]any, len(keys))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(rows), err)
		}
		row := make(models.RawRow, len(keys))
		for i, v := range vals {
			if v != nil {
				row[keys[i]] = *v
			}
		}
		rows = append(rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.Table, err)
	}
	return rows, nil
}
