package session

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"dashboard/internal/dashboard"
	"dashboard/internal/engine"
	"dashboard/internal/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) (*Manager, *clockwork.FakeClock) {
	t.Helper()
	store, err := engine.Load([]models.RawRow{
		{"year": "2020", "age": "0-14", "ethnicity": "Maori", "sex": "M", "area": "Auckland", "count": "5"},
		{"year": "2020", "age": "0-14", "ethnicity": "Maori", "sex": "F", "area": "Auckland", "count": "7"},
		{"year": "2021", "age": "0-14", "ethnicity": "Maori", "sex": "M", "area": "Auckland", "count": "3"},
	})
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	m, err := NewManager(Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:  store,
		TTL:    10 * time.Minute,
		Clock:  clock,
	})
	require.NoError(t, err)
	return m, clock
}

func TestSessionsAreIndependent(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)

	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
	require.Len(t, a.Charts(), len(dashboard.Outputs()))
	charts, err := m.Charts(b.ID)
	require.NoError(t, err)
	require.Len(t, charts, len(dashboard.Outputs()))

	pie := "Pie"
	sex := "M"
	updated, err := m.Update(a.ID, map[dashboard.Input]*string{
		dashboard.InputChartType: &pie,
		dashboard.InputField:     ptr("sex"),
		dashboard.InputSex:       &sex,
	})
	require.NoError(t, err)
	require.Equal(t, []string{dashboard.OutputInteractive}, updated)

	aPie, ok := a.Charts()[dashboard.OutputInteractive].(*models.PieChart)
	require.True(t, ok)
	require.Equal(t, []models.PieSlice{{Label: "M", Value: 8, Percent: 100, Text: "M: 100.0% (8)"}}, aPie.Slices)

	_, ok = b.Charts()[dashboard.OutputInteractive].(*models.BarChart)
	require.True(t, ok, "other sessions keep their own inputs")
	require.Equal(t, "", b.Inputs()[dashboard.InputSex])

	// Clearing the filter recomputes again.
	updated, err = m.Update(a.ID, map[dashboard.Input]*string{dashboard.InputSex: nil})
	require.NoError(t, err)
	require.Equal(t, []string{dashboard.OutputInteractive}, updated)
	require.Len(t, a.Charts()[dashboard.OutputInteractive].(*models.PieChart).Slices, 2)
}

func TestSessionConcurrentUpdatesKeepEveryInput(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)

	s, err := m.Create()
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = m.Update(s.ID, map[dashboard.Input]*string{dashboard.InputSex: ptr("M")})
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = m.Update(s.ID, map[dashboard.Input]*string{dashboard.InputArea: ptr("Auckland")})
		}()
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		in := s.Inputs()
		require.Equal(t, "M", in[dashboard.InputSex], "iteration %d", i)
		require.Equal(t, "Auckland", in[dashboard.InputArea], "iteration %d", i)

		_, err := m.Update(s.ID, map[dashboard.Input]*string{dashboard.InputSex: nil, dashboard.InputArea: nil})
		require.NoError(t, err)
	}
}

func TestSessionUnknownField(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)

	s, err := m.Create()
	require.NoError(t, err)
	_, err = m.Update(s.ID, map[dashboard.Input]*string{dashboard.InputField: ptr("income")})
	var ufe *models.UnknownFieldError
	require.ErrorAs(t, err, &ufe)
}

func TestSessionNotFound(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)

	_, err := m.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.Charts("nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.Update("nope", nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	t.Parallel()
	m, clock := testManager(t)

	idle, err := m.Create()
	require.NoError(t, err)
	active, err := m.Create()
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	_, err = m.Get(active.ID)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	require.Equal(t, 1, m.Sweep())
	require.Equal(t, 1, m.Len())

	_, err = m.Get(idle.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(active.ID)
	require.NoError(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	_, err := NewManager(Config{})
	require.Error(t, err)
}

func ptr(s string) *string { return &s }
