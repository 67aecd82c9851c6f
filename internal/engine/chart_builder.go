package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"dashboard/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	pieHole = 0.4
	pieSize = 500
)

var printer = message.NewPrinter(language.English)

// Humanize turns a field name into a label: separators become spaces and each
// word is title-cased ("age_desc" -> "Age Desc").
func Humanize(name string) string {
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(strings.Fields(name), " "))
}

// Build converts an aggregation result into a chart of the given kind. An
// empty result yields a chart with no series or slices.
func Build(result models.AggregationResult, kind models.ChartKind, title string, groupField models.Field) (models.ChartSpec, error) {
	switch kind {
	case models.ChartBar:
		return buildBar(result, title), nil
	case models.ChartPie:
		return buildPie(result, title, groupField)
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnknownChartKind, kind)
}

func buildBar(result models.AggregationResult, title string) *models.BarChart {
	chart := &models.BarChart{
		Kind:       models.ChartBar,
		Title:      title,
		XAxis:      models.Axis{Title: Humanize(string(result.Primary)), Type: "category"},
		YAxis:      models.Axis{Title: "Count"},
		BarMode:    "stack",
		Categories: make([]string, 0),
		Series:     make([]models.BarSeries, 0),
	}
	if len(result.Groups) == 0 {
		return chart
	}

	seenKey := make(map[string]bool)
	seriesIdx := make(map[string]int)
	for _, g := range result.Groups {
		if !seenKey[g.Key] {
			seenKey[g.Key] = true
			chart.Categories = append(chart.Categories, g.Key)
		}

		name := g.Secondary
		if result.Secondary == "" {
			name = Humanize(string(result.Primary))
		}
		i, ok := seriesIdx[name]
		if !ok {
			i = len(chart.Series)
			seriesIdx[name] = i
			chart.Series = append(chart.Series, models.BarSeries{Name: name, TextPosition: "outside"})
		}
		chart.Series[i].Points = append(chart.Series[i].Points, models.BarPoint{
			X:    g.Key,
			Y:    g.Total,
			Text: printer.Sprintf("%d", g.Total),
		})
	}

	sort.Strings(chart.Categories)
	for i := range chart.Series {
		pts := chart.Series[i].Points
		sort.SliceStable(pts, func(a, b int) bool { return pts[a].X < pts[b].X })
	}
	return chart
}

func buildPie(result models.AggregationResult, title string, groupField models.Field) (*models.PieChart, error) {
	chart := &models.PieChart{
		Kind:     models.ChartPie,
		Title:    title,
		Hole:     pieHole,
		TextInfo: "label+percent+value",
		Width:    pieSize,
		Height:   pieSize,
		Slices:   make([]models.PieSlice, 0),
	}

	bySecondary := false
	switch {
	case groupField == "" || groupField == result.Primary:
		bySecondary = groupField == "" && result.Secondary != ""
	case groupField == result.Secondary:
		bySecondary = true
	default:
		return nil, fmt.Errorf("pie %q: result is grouped by %s/%s, not %s", title, result.Primary, result.Secondary, groupField)
	}

	// Re-aggregate to a single dimension
	index := make(map[string]int)
	var total int64
	for _, g := range result.Groups {
		label := g.Key
		if bySecondary {
			label = g.Secondary
		}
		i, ok := index[label]
		if !ok {
			i = len(chart.Slices)
			index[label] = i
			chart.Slices = append(chart.Slices, models.PieSlice{Label: label})
		}
		chart.Slices[i].Value += g.Total
		total += g.Total
	}

	for i := range chart.Slices {
		s := &chart.Slices[i]
		s.Percent = percent(s.Value, total)
		s.Text = printer.Sprintf("%s: %.1f%% (%d)", s.Label, s.Percent, s.Value)
	}
	return chart, nil
}

// percent returns v/total*100 rounded half away from zero to one decimal.
func percent(v, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(v)*1000/float64(total)) / 10
}
