package models

import (
	"errors"
	"fmt"
	"strings"
)

// Field is one of the categorical columns usable for grouping or filtering.
type Field string

const (
	FieldYear      Field = "year"
	FieldAge       Field = "age"
	FieldEthnicity Field = "ethnicity"
	FieldSex       Field = "sex"
	FieldArea      Field = "area"
)

// CountColumn is the name of the measure column in raw rows.
const CountColumn = "count"

// Fields lists the dimensions in column order.
var Fields = []Field{FieldYear, FieldAge, FieldEthnicity, FieldSex, FieldArea}

// legacy column names from the census extract
var fieldAliases = map[string]Field{
	"year_desc":   FieldYear,
	"age_desc":    FieldAge,
	"ethnic_desc": FieldEthnicity,
	"ethnic":      FieldEthnicity,
	"sex_desc":    FieldSex,
	"area_desc":   FieldArea,
}

// ParseField resolves a field name, accepting the legacy "_desc" column names.
func ParseField(name string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, f := range Fields {
		if key == string(f) {
			return f, nil
		}
	}
	if f, ok := fieldAliases[key]; ok {
		return f, nil
	}
	return "", &UnknownFieldError{Name: name}
}

// Index returns the column position of f, or -1.
func (f Field) Index() int {
	for i, v := range Fields {
		if v == f {
			return i
		}
	}
	return -1
}

// Valid reports whether f is one of the known dimensions.
func (f Field) Valid() bool { return f.Index() >= 0 }

// Row is one observation: five categorical dimensions and a count.
type Row struct {
	Year      string `json:"year"`
	Age       string `json:"age"`
	Ethnicity string `json:"ethnicity"`
	Sex       string `json:"sex"`
	Area      string `json:"area"`
	Count     int64  `json:"count"`
}

// Value returns the row's value for a dimension.
func (r Row) Value(f Field) string {
	switch f {
	case FieldYear:
		return r.Year
	case FieldAge:
		return r.Age
	case FieldEthnicity:
		return r.Ethnicity
	case FieldSex:
		return r.Sex
	case FieldArea:
		return r.Area
	}
	return ""
}

// RawRow is a row as produced by a source adapter, keyed by field name plus
// CountColumn. A missing key means the cell was null.
type RawRow map[string]string

// FilterSet maps a field to its selected value. Absent fields impose no constraint.
type FilterSet map[Field]string

// Active returns the filters with a non-empty value.
func (fs FilterSet) Active() FilterSet {
	out := make(FilterSet, len(fs))
	for f, v := range fs {
		if v != "" {
			out[f] = v
		}
	}
	return out
}

// ChartKind selects the chart variant.
type ChartKind string

const (
	ChartBar ChartKind = "Bar"
	ChartPie ChartKind = "Pie"
)

// ErrUnknownChartKind is returned for chart kinds other than Bar and Pie.
var ErrUnknownChartKind = errors.New("unknown chart kind")

// ParseChartKind accepts "Bar"/"Pie" in any case.
func ParseChartKind(s string) (ChartKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bar":
		return ChartBar, nil
	case "pie":
		return ChartPie, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChartKind, s)
}

// Group is one aggregated tuple. Secondary is empty for single-field results.
type Group struct {
	Key       string `json:"key"`
	Secondary string `json:"secondary,omitempty"`
	Total     int64  `json:"total"`
}

// AggregationResult is the grouped sum of counts, in first-appearance order.
type AggregationResult struct {
	Primary   Field   `json:"primary"`
	Secondary Field   `json:"secondary,omitempty"`
	Groups    []Group `json:"groups"`
}

// Sum returns the total over all groups.
func (r AggregationResult) Sum() int64 {
	var total int64
	for _, g := range r.Groups {
		total += g.Total
	}
	return total
}

// SchemaError reports a malformed input row.
type SchemaError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("schema error: row %d: %s: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("schema error: row %d: %s %q: %s", e.Row, e.Field, e.Value, e.Reason)
}

// UnknownFieldError reports a field name outside the fixed dimension set.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Name)
}
