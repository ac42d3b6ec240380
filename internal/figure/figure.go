// Package figure builds render-ready chart descriptions from record slices.
//
// Figures serialize to the JSON shape plotly.js accepts for
// Plotly.react, so the page can hand them to the browser unchanged.
package figure

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/verte-zerg/gapdash/internal/model"
)

// Trace kinds produced by the builders.
const (
	KindTable      = "table"
	KindBar        = "bar"
	KindChoropleth = "choropleth"
)

const (
	paperBackground = "#eef1f7"
	tableHeight     = 550
	barHeight       = 350
	mapHeight       = 550
	mapTopMargin    = 50
	locationModeISO = "ISO-3"
)

// Figure is a chart description: data traces plus layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one data series. Only the fields relevant to Type are set.
type Trace struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`

	// bar
	X            []string  `json:"x,omitempty"`
	Y            []float64 `json:"y,omitempty"`
	Text         []string  `json:"text,omitempty"`
	TextPosition string    `json:"textposition,omitempty"`
	Marker       *Marker   `json:"marker,omitempty"`

	// table
	Header *TableSection `json:"header,omitempty"`
	Cells  *TableSection `json:"cells,omitempty"`

	// choropleth
	Locations     []string   `json:"locations,omitempty"`
	LocationMode  string     `json:"locationmode,omitempty"`
	Z             []float64  `json:"z,omitempty"`
	ZMin          *float64   `json:"zmin,omitempty"`
	ZMax          *float64   `json:"zmax,omitempty"`
	ColorScale    []Stop     `json:"colorscale,omitempty"`
	ColorBar      *ColorBar  `json:"colorbar,omitempty"`
	CustomData    [][]string `json:"customdata,omitempty"`
	HoverTemplate string     `json:"hovertemplate,omitempty"`
}

// Marker styles bars.
type Marker struct {
	Color string `json:"color,omitempty"`
}

// TableSection holds column-major cell values for a table header or body.
type TableSection struct {
	Values [][]string `json:"values"`
	Align  string     `json:"align,omitempty"`
}

// Stop is one [position, color] pair of a continuous color scale.
type Stop struct {
	Position float64
	Color    string
}

// MarshalJSON encodes the stop as a two element array.
func (s Stop) MarshalJSON() ([]byte, error) {
	pos := strconv.FormatFloat(s.Position, 'f', -1, 64)
	return []byte(fmt.Sprintf("[%s,%q]", pos, s.Color)), nil
}

// UnmarshalJSON decodes a [position, color] pair.
func (s *Stop) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("color stop needs 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Position); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &s.Color)
}

// ColorBar describes the legend of a continuous color scale.
type ColorBar struct {
	Title    *Title    `json:"title,omitempty"`
	TickVals []float64 `json:"tickvals,omitempty"`
	TickText []string  `json:"ticktext,omitempty"`
}

// Layout holds figure-wide styling.
type Layout struct {
	Title        *Title   `json:"title,omitempty"`
	PaperBGColor string   `json:"paper_bgcolor,omitempty"`
	Height       int      `json:"height,omitempty"`
	Margin       *Margin  `json:"margin,omitempty"`
	ShowLegend   *bool    `json:"showlegend,omitempty"`
	XAxis        *Axis    `json:"xaxis,omitempty"`
	YAxis        *Axis    `json:"yaxis,omitempty"`
	BarMode      string   `json:"barmode,omitempty"`
	UniformText  *Uniform `json:"uniformtext,omitempty"`
}

// Title is a text label.
type Title struct {
	Text string `json:"text"`
}

// Margin is the plot margin in pixels.
type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

// Axis configures a cartesian axis.
type Axis struct {
	Title         *Title `json:"title,omitempty"`
	CategoryOrder string `json:"categoryorder,omitempty"`
}

// Uniform keeps bar text at a readable size.
type Uniform struct {
	MinSize int    `json:"minsize"`
	Mode    string `json:"mode"`
}

// TitleText returns the figure title or "".
func (f Figure) TitleText() string {
	if f.Layout.Title == nil {
		return ""
	}
	return f.Layout.Title.Text
}

// BarTitle is the title of a top-n ranking chart.
func BarTitle(n int, metric model.Metric, continent string, year int) string {
	return fmt.Sprintf("Top %d %s — %s (%d)", n, metric, continent, year)
}

// MapTitle is the title of a choropleth.
func MapTitle(metric model.Metric, year int) string {
	return fmt.Sprintf("%s in %d", metric, year)
}
