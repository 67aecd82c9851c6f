package render

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"dashboard/internal/models"

	"github.com/wcharczuk/go-chart/v2"
)

const (
	barWidth  = 1024
	barHeight = 500
)

// SVG draws spec to w. Charts with nothing to show render as a blank titled
// canvas so the UI always gets an image.
func SVG(w io.Writer, spec models.ChartSpec) error {
	switch c := spec.(type) {
	case *models.BarChart:
		if c.Empty() {
			return blank(w, c.Title, barWidth, barHeight)
		}
		return stackedBars(c).Render(chart.SVG, w)
	case *models.PieChart:
		if c.Empty() || pieTotal(c) == 0 {
			return blank(w, c.Title, c.Width, c.Height)
		}
		return donut(c).Render(chart.SVG, w)
	case nil:
		return fmt.Errorf("render: nil chart")
	default:
		return fmt.Errorf("render: unsupported chart %T", spec)
	}
}

// stackedBars lays out one bar per x category with one segment per series.
// Every bar carries every series, in series order, so segment colors line up.
func stackedBars(c *models.BarChart) chart.StackedBarChart {
	lookup := make([]map[string]int64, len(c.Series))
	for i, s := range c.Series {
		lookup[i] = make(map[string]int64, len(s.Points))
		for _, p := range s.Points {
			lookup[i][p.X] = p.Y
		}
	}

	bars := make([]chart.StackedBar, 0, len(c.Categories))
	for _, x := range c.Categories {
		values := make([]chart.Value, 0, len(c.Series))
		for i, s := range c.Series {
			values = append(values, chart.Value{Label: s.Name, Value: float64(lookup[i][x])})
		}
		bars = append(bars, chart.StackedBar{Name: x, Values: values})
	}

	return chart.StackedBarChart{
		Title:  c.Title,
		Width:  barWidth,
		Height: barHeight,
		Bars:   bars,
	}
}

func donut(c *models.PieChart) chart.DonutChart {
	values := make([]chart.Value, 0, len(c.Slices))
	for _, s := range c.Slices {
		values = append(values, chart.Value{Label: s.Text, Value: float64(s.Value)})
	}
	return chart.DonutChart{
		Title:  c.Title,
		Width:  c.Width,
		Height: c.Height,
		Values: values,
	}
}

func pieTotal(c *models.PieChart) int64 {
	var total int64
	for _, s := range c.Slices {
		total += s.Value
	}
	return total
}

func blank(w io.Writer, title string, width, height int) error {
	var esc strings.Builder
	if err := xml.EscapeText(&esc, []byte(title)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><text x="%d" y="24" text-anchor="middle">%s</text></svg>`,
		width, height, width/2, esc.String())
	return err
}
