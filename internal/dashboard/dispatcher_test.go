package dashboard

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"dashboard/internal/engine"
	"dashboard/internal/models"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu    sync.Mutex
	specs map[string]models.ChartSpec
	order []string
}

func newRecorder() *recorder { return &recorder{specs: make(map[string]models.ChartSpec)} }

func (r *recorder) publish(out string, spec models.ChartSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[out] = spec
	r.order = append(r.order, out)
}

func countingBinding(name string, calls *int, mu *sync.Mutex, deps ...Input) Binding {
	return Binding{
		Name:   name,
		Inputs: deps,
		Compute: func(in Inputs) (map[string]models.ChartSpec, error) {
			mu.Lock()
			*calls++
			mu.Unlock()
			return map[string]models.ChartSpec{name: &models.BarChart{Title: in[deps[0]]}}, nil
		},
	}
}

func TestDispatcherRecomputesOnlyAffected(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var aCalls, bCalls int
	rec := newRecorder()
	d := NewDispatcher(testLogger(), []Binding{
		countingBinding("a", &aCalls, &mu, InputStaticChartType),
		countingBinding("b", &bCalls, &mu, InputChartType, InputSex),
	}, rec.publish)

	// First update computes everything.
	outs, err := d.Update(Inputs{InputStaticChartType: "Bar", InputChartType: "Pie"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, outs)
	require.Equal(t, 1, aCalls)
	require.Equal(t, 1, bCalls)

	// Same values: nothing to do.
	outs, err = d.Update(Inputs{InputStaticChartType: "Bar", InputChartType: "Pie"})
	require.NoError(t, err)
	require.Empty(t, outs)

	// Only b depends on sex.
	outs, err = d.Update(Inputs{InputStaticChartType: "Bar", InputChartType: "Pie", InputSex: "F"})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, outs)
	require.Equal(t, 1, aCalls)
	require.Equal(t, 2, bCalls)

	// Unrelated input changes trigger nothing.
	outs, err = d.Update(Inputs{InputStaticChartType: "Bar", InputChartType: "Pie", InputSex: "F", InputArea: "Otago"})
	require.NoError(t, err)
	require.Empty(t, outs)

	// Only a depends on the static chart type.
	outs, err = d.Update(Inputs{InputStaticChartType: "Pie", InputChartType: "Pie", InputSex: "F"})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, outs)
	require.Equal(t, "Pie", rec.specs["a"].ChartTitle())
	require.Equal(t, 2, aCalls)
	require.Equal(t, 2, bCalls)
}

func TestDispatcherFailedBindingRetriesAndDoesNotPublish(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fail := true
	rec := newRecorder()
	d := NewDispatcher(testLogger(), []Binding{{
		Name:   "flaky",
		Inputs: []Input{InputField},
		Compute: func(in Inputs) (map[string]models.ChartSpec, error) {
			if fail {
				return nil, boom
			}
			return map[string]models.ChartSpec{"flaky": &models.PieChart{}}, nil
		},
	}}, rec.publish)

	_, err := d.Update(Inputs{InputField: "age"})
	require.ErrorIs(t, err, boom)
	require.Empty(t, rec.specs)

	// The failed binding was never committed, so the same inputs recompute it.
	fail = false
	outs, err := d.Update(Inputs{InputField: "age"})
	require.NoError(t, err)
	require.Equal(t, []string{"flaky"}, outs)
}

func TestDispatcherInputsCopy(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger(), nil, func(string, models.ChartSpec) {})
	in := DefaultInputs()
	_, err := d.Update(in)
	require.NoError(t, err)

	got := d.Inputs()
	got[InputSex] = "M"
	require.NotContains(t, d.Inputs(), InputSex)
}

func censusStore(t *testing.T) *engine.Store {
	t.Helper()
	rows := []models.RawRow{
		{"year": "2020", "age": "0-14", "ethnicity": "Maori", "sex": "M", "area": "Auckland", "count": "5"},
		{"year": "2020", "age": "15-29", "ethnicity": "Asian", "sex": "F", "area": "Otago", "count": "7"},
		{"year": "2021", "age": "0-14", "ethnicity": "Maori", "sex": "M", "area": "Otago", "count": "3"},
	}
	store, err := engine.Load(rows)
	require.NoError(t, err)
	return store
}

func TestDashboardBindings(t *testing.T) {
	t.Parallel()

	store := censusStore(t)
	rec := newRecorder()
	d := NewDispatcher(testLogger(), Bindings(store), rec.publish)

	outs, err := d.Update(DefaultInputs())
	require.NoError(t, err)
	require.ElementsMatch(t, Outputs(), outs)

	for _, sc := range StaticCharts {
		bar, ok := rec.specs[sc.Output].(*models.BarChart)
		require.True(t, ok, sc.Output)
		require.Equal(t, sc.Title, bar.Title)
	}
	inter := rec.specs[OutputInteractive].(*models.BarChart)
	require.Equal(t, "Count by Age", inter.Title)
	require.Equal(t, []string{"0-14", "15-29"}, []string{inter.Series[0].Name, inter.Series[1].Name})

	// Filtering to nothing yields an empty chart, not an error.
	next := DefaultInputs()
	next[InputArea] = "NoSuchArea"
	outs, err = d.Update(next)
	require.NoError(t, err)
	require.Equal(t, []string{OutputInteractive}, outs)
	require.True(t, rec.specs[OutputInteractive].Empty())

	// Unknown group field is reported, and the last good chart stays published.
	bad := next.Clone()
	bad[InputField] = "income"
	_, err = d.Update(bad)
	var ufe *models.UnknownFieldError
	require.ErrorAs(t, err, &ufe)
	require.True(t, rec.specs[OutputInteractive].Empty())
}

func TestComputeInteractive(t *testing.T) {
	t.Parallel()
	store := censusStore(t)

	tests := []struct {
		name    string
		kind    models.ChartKind
		field   string
		filters models.FilterSet
		check   func(t *testing.T, spec models.ChartSpec)
	}{
		{
			name:  "pie_by_sex",
			kind:  models.ChartPie,
			field: "sex_desc",
			check: func(t *testing.T, spec models.ChartSpec) {
				pie := spec.(*models.PieChart)
				require.Equal(t, "Count by Sex Desc", pie.Title)
				require.Equal(t, []string{"M", "F"}, []string{pie.Slices[0].Label, pie.Slices[1].Label})
				require.Equal(t, 53.3, pie.Slices[0].Percent)
			},
		},
		{
			name:    "bar_by_year_filtered",
			kind:    models.ChartBar,
			field:   "year",
			filters: models.FilterSet{models.FieldSex: "M"},
			check: func(t *testing.T, spec models.ChartSpec) {
				bar := spec.(*models.BarChart)
				require.Len(t, bar.Series, 1)
				require.Equal(t, []models.BarPoint{{X: "2020", Y: 5, Text: "5"}, {X: "2021", Y: 3, Text: "3"}}, bar.Series[0].Points)
			},
		},
		{
			name:    "bar_by_area_breaks_down_by_year",
			kind:    models.ChartBar,
			field:   "area",
			filters: models.FilterSet{models.FieldAge: "0-14"},
			check: func(t *testing.T, spec models.ChartSpec) {
				bar := spec.(*models.BarChart)
				require.Equal(t, []string{"2020", "2021"}, bar.Categories)
				require.Equal(t, "Auckland", bar.Series[0].Name)
				require.Equal(t, "Otago", bar.Series[1].Name)
			},
		},
		{
			name:    "no_match",
			kind:    models.ChartPie,
			field:   "area",
			filters: models.FilterSet{models.FieldArea: "NoSuchArea"},
			check: func(t *testing.T, spec models.ChartSpec) {
				require.True(t, spec.Empty())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec, err := ComputeInteractive(store, tt.kind, tt.field, tt.filters)
			require.NoError(t, err)
			tt.check(t, spec)
		})
	}
}

func TestInputsMergeAndFilters(t *testing.T) {
	t.Parallel()

	sex, blank := "F", ""
	in := DefaultInputs().Merge(map[Input]*string{InputSex: &sex, InputYear: &blank})
	require.Equal(t, models.FilterSet{models.FieldSex: "F"}, in.Filters())

	cleared := in.Merge(map[Input]*string{InputSex: nil})
	require.Empty(t, cleared.Filters())
	require.Equal(t, "F", in[InputSex])
}

func TestDispatcherRejectsInvalidInputs(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	d := NewDispatcher(testLogger(), Bindings(censusStore(t)), rec.publish)
	_, err := d.Update(DefaultInputs())
	require.NoError(t, err)

	line, income := "Line", "income"
	_, err = d.Apply(map[Input]*string{InputChartType: &line})
	require.ErrorIs(t, err, models.ErrUnknownChartKind)

	_, err = d.Apply(map[Input]*string{InputField: &income})
	var ufe *models.UnknownFieldError
	require.ErrorAs(t, err, &ufe)

	// Rejected inputs never become current state.
	require.Equal(t, DefaultInputs(), d.Inputs())
}

func TestDispatcherApplyConcurrentChangesAllSurvive(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger(), Bindings(censusStore(t)), func(string, models.ChartSpec) {})
	_, err := d.Update(DefaultInputs())
	require.NoError(t, err)

	changes := map[Input]string{
		InputYear:      "2020",
		InputSex:       "M",
		InputAge:       "0-14",
		InputEthnicity: "Maori",
		InputArea:      "Otago",
	}
	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		errs := make(chan error, len(changes))
		for in, v := range changes {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := d.Apply(map[Input]*string{in: &v})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got := d.Inputs()
		for in, v := range changes {
			require.Equal(t, v, got[in], "round %d input %s", round, in)
		}

		reset := make(map[Input]*string, len(changes))
		for in := range changes {
			reset[in] = nil
		}
		_, err := d.Apply(reset)
		require.NoError(t, err)
	}
}

func TestComputeStaticCoversAllRows(t *testing.T) {
	t.Parallel()

	charts, err := ComputeStatic(censusStore(t), models.ChartBar)
	require.NoError(t, err)
	require.Len(t, charts, len(StaticCharts))

	for out, spec := range charts {
		var total int64
		for _, s := range spec.(*models.BarChart).Series {
			for _, p := range s.Points {
				total += p.Y
			}
		}
		require.Equal(t, int64(15), total, out)
	}
}
