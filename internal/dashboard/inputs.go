package dashboard

import (
	"fmt"

	"dashboard/internal/models"
)

// Input names one UI control whose value drives the bindings.
type Input string

const (
	InputStaticChartType Input = "static_chart_type"
	InputChartType       Input = "chart_type"
	InputField           Input = "field"
	InputYear            Input = "year"
	InputSex             Input = "sex"
	InputAge             Input = "age"
	InputEthnicity       Input = "ethnicity"
	InputArea            Input = "area"
)

// AllInputs lists every input the dashboard understands.
var AllInputs = []Input{
	InputStaticChartType, InputChartType, InputField,
	InputYear, InputSex, InputAge, InputEthnicity, InputArea,
}

// filterInputs maps the five filter controls to the field they constrain.
var filterInputs = map[Input]models.Field{
	InputYear:      models.FieldYear,
	InputSex:       models.FieldSex,
	InputAge:       models.FieldAge,
	InputEthnicity: models.FieldEthnicity,
	InputArea:      models.FieldArea,
}

// ParseInput validates an input name.
func ParseInput(name string) (Input, bool) {
	for _, in := range AllInputs {
		if string(in) == name {
			return in, true
		}
	}
	return "", false
}

// Inputs holds current input values. A missing or empty value means unset.
type Inputs map[Input]string

// DefaultInputs returns the initial dashboard state: bar charts grouped by age,
// no filters.
func DefaultInputs() Inputs {
	return Inputs{
		InputStaticChartType: string(models.ChartBar),
		InputChartType:       string(models.ChartBar),
		InputField:           string(models.FieldAge),
	}
}

// Clone returns a copy of in.
func (in Inputs) Clone() Inputs {
	out := make(Inputs, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Merge returns a copy of in with changes applied. A nil value clears the input.
func (in Inputs) Merge(changes map[Input]*string) Inputs {
	out := in.Clone()
	for k, v := range changes {
		if v == nil || *v == "" {
			delete(out, k)
			continue
		}
		out[k] = *v
	}
	return out
}

// Validate checks the inputs that name a chart type or a field. Unset
// inputs are left to the bindings.
func (in Inputs) Validate() error {
	for _, k := range []Input{InputStaticChartType, InputChartType} {
		if v := in[k]; v != "" {
			if _, err := models.ParseChartKind(v); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	if v := in[InputField]; v != "" {
		if _, err := models.ParseField(v); err != nil {
			return fmt.Errorf("%s: %w", InputField, err)
		}
	}
	return nil
}

// Filters builds a FilterSet from the filter inputs.
func (in Inputs) Filters() models.FilterSet {
	fs := make(models.FilterSet)
	for input, field := range filterInputs {
		if v := in[input]; v != "" {
			fs[field] = v
		}
	}
	return fs
}

// changed reports whether any of deps differs between a and b.
func changed(a, b Inputs, deps []Input) bool {
	for _, d := range deps {
		if a[d] != b[d] {
			return true
		}
	}
	return false
}
