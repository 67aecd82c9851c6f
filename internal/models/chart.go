package models

// ChartSpec is the renderer-agnostic output of the dashboard. It is either a
// *BarChart or a *PieChart; consumers switch on the concrete type.
type ChartSpec interface {
	ChartKind() ChartKind
	ChartTitle() string
	Empty() bool
	chartSpec()
}

// Axis is a layout hint for one chart axis.
type Axis struct {
	Title string `json:"title"`
	Type  string `json:"type,omitempty"` // "category" for discrete axes
}

// BarPoint is one bar segment. Text is the label drawn outside the bar.
type BarPoint struct {
	X    string `json:"x"`
	Y    int64  `json:"y"`
	Text string `json:"text"`
}

// BarSeries is one category of a stacked bar chart.
type BarSeries struct {
	Name         string     `json:"name"`
	Points       []BarPoint `json:"points"`
	TextPosition string     `json:"textPosition"`
}

// BarChart is a stacked bar chart over a discrete x axis.
type BarChart struct {
	Kind       ChartKind   `json:"kind"`
	Title      string      `json:"title"`
	XAxis      Axis        `json:"xAxis"`
	YAxis      Axis        `json:"yAxis"`
	BarMode    string      `json:"barMode"`
	Categories []string    `json:"categories"`
	Series     []BarSeries `json:"series"`
}

func (c *BarChart) ChartKind() ChartKind { return ChartBar }
func (c *BarChart) ChartTitle() string   { return c.Title }
func (c *BarChart) Empty() bool          { return len(c.Series) == 0 }
func (c *BarChart) chartSpec()           {}

// PieSlice is one ring segment. Percent is rounded to one decimal place.
type PieSlice struct {
	Label   string  `json:"label"`
	Value   int64   `json:"value"`
	Percent float64 `json:"percent"`
	Text    string  `json:"text"`
}

// PieChart is a ring chart; Hole is the inner radius fraction.
type PieChart struct {
	Kind     ChartKind  `json:"kind"`
	Title    string     `json:"title"`
	Hole     float64    `json:"hole"`
	TextInfo string     `json:"textInfo"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Slices   []PieSlice `json:"slices"`
}

func (c *PieChart) ChartKind() ChartKind { return ChartPie }
func (c *PieChart) ChartTitle() string   { return c.Title }
func (c *PieChart) Empty() bool          { return len(c.Slices) == 0 }
func (c *PieChart) chartSpec()           {}
