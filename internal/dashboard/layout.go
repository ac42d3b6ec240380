package dashboard

import (
	"context"
	"fmt"

	"github.com/verte-zerg/gapdash/internal/binding"
	"github.com/verte-zerg/gapdash/internal/figure"
	"github.com/verte-zerg/gapdash/internal/model"
	"github.com/verte-zerg/gapdash/internal/stats"
)

// Title is the page heading.
const Title = "🌍 Gapminder Global Insights Dashboard"

// Layout is the static page composition: the dataset grid, the chart
// controls with their three charts and the map settings with the map.
type Layout struct {
	Title       string               `json:"title"`
	Table       Slot                 `json:"table"`
	Controls    Panel                `json:"controls"`
	Charts      []Slot               `json:"charts"`
	MapSettings Panel                `json:"map_settings"`
	Map         Slot                 `json:"map"`
	Rules       []binding.Dependency `json:"rules"`
}

// Panel is a titled group of controls.
type Panel struct {
	Heading  string    `json:"heading"`
	Class    string    `json:"class"`
	Controls []Control `json:"controls"`
}

// Control is a dropdown.
type Control struct {
	ID        binding.InputID `json:"id"`
	Label     string          `json:"label"`
	Options   []Option        `json:"options"`
	Value     any             `json:"value"`
	Clearable bool            `json:"clearable"`
}

// Option is one dropdown entry.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Slot is a figure placeholder. Figure is set once figures are computed.
type Slot struct {
	ID     binding.OutputID `json:"id"`
	Height string           `json:"height"`
	Figure *figure.Figure   `json:"figure,omitempty"`
}

// Layout builds the page structure with options drawn from the dataset.
// Slots carry no figures.
func (d *Dashboard) Layout() Layout {
	years := stats.Years(d.records)
	yearOptions := make([]Option, len(years))
	for i, y := range years {
		yearOptions[i] = Option{Label: fmt.Sprint(y), Value: y}
	}
	continents := stats.Continents(d.records)
	continentOptions := make([]Option, len(continents))
	for i, c := range continents {
		continentOptions[i] = Option{Label: c, Value: c}
	}
	metrics := model.Metrics()
	metricOptions := make([]Option, len(metrics))
	for i, m := range metrics {
		metricOptions[i] = Option{Label: string(m), Value: string(m)}
	}

	return Layout{
		Title: Title,
		Table: Slot{ID: OutputDataset, Height: "500px"},
		Controls: Panel{
			Heading: "Controls",
			Class:   "col-lg-2 col-md-3 col-sm-12 bg-light p-3 rounded shadow-sm",
			Controls: []Control{
				{ID: InputContinent, Label: "Continent", Options: continentOptions, Value: d.defaults.Continent},
				{ID: InputYear, Label: "Year", Options: yearOptions, Value: d.defaults.Year},
			},
		},
		Charts: []Slot{
			{ID: OutputPopulation, Height: "380px"},
			{ID: OutputGDP, Height: "380px"},
			{ID: OutputLifeExp, Height: "380px"},
		},
		MapSettings: Panel{
			Heading: "World Map Settings",
			Class:   "col-lg-3 bg-light p-3 rounded shadow-sm",
			Controls: []Control{
				{ID: InputMapVar, Label: "Variable", Options: metricOptions, Value: string(d.defaults.MapMetric)},
				{ID: InputMapYear, Label: "Year", Options: yearOptions, Value: d.defaults.MapYear},
			},
		},
		Map:   Slot{ID: OutputMap, Height: "600px"},
		Rules: d.graph.Rules(),
	}
}

// Page is the layout with the table and every rule evaluated for state.
func (d *Dashboard) Page(ctx context.Context, state binding.State) (Layout, error) {
	layout := d.Layout()
	batches, err := d.graph.Initial(ctx, state)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to compute initial figures: %w", err)
	}
	table := d.table
	layout.Table.Figure = &table

	figures := make(map[binding.OutputID]figure.Figure)
	for _, b := range batches {
		for id, fig := range b.Outputs {
			figures[id] = fig
		}
	}
	for i := range layout.Charts {
		if fig, ok := figures[layout.Charts[i].ID]; ok {
			layout.Charts[i].Figure = &fig
		}
	}
	if fig, ok := figures[OutputMap]; ok {
		layout.Map.Figure = &fig
	}
	return layout, nil
}

// Slots lists every figure slot in page order.
func (l Layout) Slots() []Slot {
	slots := make([]Slot, 0, len(l.Charts)+2)
	slots = append(slots, l.Table)
	slots = append(slots, l.Charts...)
	return append(slots, l.Map)
}
