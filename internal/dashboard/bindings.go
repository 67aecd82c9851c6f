package dashboard

import (
	"fmt"

	"dashboard/internal/engine"
	"dashboard/internal/models"

	"golang.org/x/sync/errgroup"
)

// Output names.
const (
	OutputInteractive = "interactive-graph"
)

// StaticChart is one of the fixed year-by-category charts.
type StaticChart struct {
	Output    string
	Secondary models.Field
	Title     string
}

// StaticCharts are the four fixed summaries, in display order.
var StaticCharts = []StaticChart{
	{"static-graph-1", models.FieldSex, "Count vs Year (Sex)"},
	{"static-graph-2", models.FieldAge, "Count vs Year (Age)"},
	{"static-graph-3", models.FieldArea, "Count vs Year (Area)"},
	{"static-graph-4", models.FieldEthnicity, "Count vs Year (Ethnic)"},
}

// Outputs lists every output name, static charts first.
func Outputs() []string {
	out := make([]string, 0, len(StaticCharts)+1)
	for _, sc := range StaticCharts {
		out = append(out, sc.Output)
	}
	return append(out, OutputInteractive)
}

// Binding declares which inputs an output set depends on and how to compute it.
// Compute must be pure: it may read the store but never write to it.
type Binding struct {
	Name    string
	Inputs  []Input
	Compute func(in Inputs) (map[string]models.ChartSpec, error)
}

// Bindings returns the dashboard's two independent bindings over store.
func Bindings(store *engine.Store) []Binding {
	return []Binding{
		{
			Name:   "static-charts",
			Inputs: []Input{InputStaticChartType},
			Compute: func(in Inputs) (map[string]models.ChartSpec, error) {
				kind, err := models.ParseChartKind(in[InputStaticChartType])
				if err != nil {
					return nil, err
				}
				return ComputeStatic(store, kind)
			},
		},
		{
			Name: "interactive-chart",
			Inputs: []Input{
				InputChartType, InputField,
				InputYear, InputSex, InputAge, InputEthnicity, InputArea,
			},
			Compute: func(in Inputs) (map[string]models.ChartSpec, error) {
				kind, err := models.ParseChartKind(in[InputChartType])
				if err != nil {
					return nil, err
				}
				spec, err := ComputeInteractive(store, kind, in[InputField], in.Filters())
				if err != nil {
					return nil, err
				}
				return map[string]models.ChartSpec{OutputInteractive: spec}, nil
			},
		},
	}
}

// ComputeStatic builds the four unfiltered year-by-category charts. The
// charts share nothing but the read-only store, so they are built in parallel.
func ComputeStatic(store *engine.Store, kind models.ChartKind) (map[string]models.ChartSpec, error) {
	view, err := engine.Apply(store, nil)
	if err != nil {
		return nil, fmt.Errorf("static charts: %w", err)
	}
	specs := make([]models.ChartSpec, len(StaticCharts))

	var g errgroup.Group
	for i, sc := range StaticCharts {
		g.Go(func() error {
			res, err := engine.Aggregate(view, models.FieldYear, sc.Secondary)
			if err != nil {
				return err
			}
			specs[i], err = engine.Build(res, kind, sc.Title, sc.Secondary)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("static charts: %w", err)
	}

	out := make(map[string]models.ChartSpec, len(specs))
	for i, sc := range StaticCharts {
		out[sc.Output] = specs[i]
	}
	return out, nil
}

// ComputeInteractive filters the store, groups by field and builds the chart.
// Bar charts other than by year are broken down by year as well.
func ComputeInteractive(store *engine.Store, kind models.ChartKind, field string, filters models.FilterSet) (models.ChartSpec, error) {
	groupField, err := models.ParseField(field)
	if err != nil {
		return nil, err
	}

	view, err := engine.Apply(store, filters)
	if err != nil {
		return nil, err
	}

	var res models.AggregationResult
	if kind == models.ChartBar && groupField != models.FieldYear {
		res, err = engine.Aggregate(view, models.FieldYear, groupField)
	} else {
		res, err = engine.Aggregate(view, groupField, "")
	}
	if err != nil {
		return nil, err
	}

	return engine.Build(res, kind, "Count by "+engine.Humanize(field), groupField)
}
