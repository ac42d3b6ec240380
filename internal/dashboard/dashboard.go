// Package dashboard composes the Gapminder controls, figure slots and the
// two reaction rules that keep them in sync.
package dashboard

import (
	"context"
	"fmt"

	"github.com/verte-zerg/gapdash/internal/binding"
	"github.com/verte-zerg/gapdash/internal/dataset"
	"github.com/verte-zerg/gapdash/internal/figure"
	"github.com/verte-zerg/gapdash/internal/model"
	"github.com/verte-zerg/gapdash/internal/stats"
)

// Control identifiers.
const (
	InputContinent binding.InputID = "continent"
	InputYear      binding.InputID = "year"
	InputMapVar    binding.InputID = "var_map"
	InputMapYear   binding.InputID = "year_map"
)

// Figure slot identifiers.
const (
	OutputPopulation binding.OutputID = "population"
	OutputGDP        binding.OutputID = "gdp"
	OutputLifeExp    binding.OutputID = "life_exp"
	OutputMap        binding.OutputID = "choropleth_map"
	OutputDataset    binding.OutputID = "dataset"
)

// Rule names.
const (
	RuleMainCharts = "main-charts"
	RuleWorldMap   = "world-map"
)

// DefaultDefaults are the control values used when nothing is configured.
var DefaultDefaults = model.Defaults{
	Continent: "Asia",
	Year:      1952,
	MapMetric: model.MetricLifeExpectancy,
	MapYear:   1952,
	TopN:      stats.DefaultTopN,
}

// chartSlots pairs each main chart slot with the metric it ranks by.
var chartSlots = []struct {
	id     binding.OutputID
	metric model.Metric
}{
	{id: OutputPopulation, metric: model.MetricPopulation},
	{id: OutputGDP, metric: model.MetricGDPPerCapita},
	{id: OutputLifeExp, metric: model.MetricLifeExpectancy},
}

// Dashboard holds the dataset handle and the dependency graph over it.
type Dashboard struct {
	records  []model.Record
	defaults model.Defaults
	graph    *binding.Graph[figure.Figure]
	table    figure.Figure
}

// New builds a dashboard over ds. Zero-valued defaults fall back to
// DefaultDefaults field by field.
func New(ds *dataset.Dataset, defaults model.Defaults, opts ...binding.Option) (*Dashboard, error) {
	if ds == nil {
		return nil, fmt.Errorf("dashboard needs a dataset: %w", dataset.ErrEmpty)
	}
	d := &Dashboard{
		records:  ds.Records(),
		defaults: mergeDefaults(defaults),
	}
	graph, err := binding.NewGraph([]binding.Rule[figure.Figure]{
		{
			Name:    RuleMainCharts,
			Inputs:  []binding.InputID{InputContinent, InputYear},
			Outputs: []binding.OutputID{OutputPopulation, OutputGDP, OutputLifeExp},
			Compute: d.mainCharts,
		},
		{
			Name:    RuleWorldMap,
			Inputs:  []binding.InputID{InputMapVar, InputMapYear},
			Outputs: []binding.OutputID{OutputMap},
			Compute: d.worldMap,
		},
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	d.graph = graph
	d.table = figure.BuildTable(d.records)
	return d, nil
}

func mergeDefaults(d model.Defaults) model.Defaults {
	if d.Continent == "" {
		d.Continent = DefaultDefaults.Continent
	}
	if d.Year == 0 {
		d.Year = DefaultDefaults.Year
	}
	if d.MapMetric == "" {
		d.MapMetric = DefaultDefaults.MapMetric
	}
	if d.MapYear == 0 {
		d.MapYear = DefaultDefaults.MapYear
	}
	if d.TopN <= 0 {
		d.TopN = DefaultDefaults.TopN
	}
	return d
}

// Graph exposes the dependency table.
func (d *Dashboard) Graph() *binding.Graph[figure.Figure] {
	return d.graph
}

// Defaults returns the effective page-load control values.
func (d *Dashboard) Defaults() model.Defaults {
	return d.defaults
}

// DefaultState is the control state at page load.
func (d *Dashboard) DefaultState() binding.State {
	return binding.State{
		InputContinent: d.defaults.Continent,
		InputYear:      d.defaults.Year,
		InputMapVar:    string(d.defaults.MapMetric),
		InputMapYear:   d.defaults.MapYear,
	}
}

// Table is the static dataset grid. It never changes after load.
func (d *Dashboard) Table() figure.Figure {
	return d.table
}

// Records returns a copy of the dataset rows.
func (d *Dashboard) Records() []model.Record {
	out := make([]model.Record, len(d.records))
	copy(out, d.records)
	return out
}

// Update re-evaluates the rules that depend on changed.
func (d *Dashboard) Update(ctx context.Context, changed []binding.InputID, state binding.State) ([]binding.Batch[figure.Figure], error) {
	return d.graph.Dispatch(ctx, changed, state)
}

// Initial evaluates every rule for state.
func (d *Dashboard) Initial(ctx context.Context, state binding.State) ([]binding.Batch[figure.Figure], error) {
	return d.graph.Initial(ctx, state)
}

// ChartParamsFrom rebuilds the bar chart filter from rule inputs. A year
// that is not an integer reads as 0, which matches no rows.
func ChartParamsFrom(in binding.Inputs) model.ChartParams {
	year, _ := in.Int(InputYear)
	return model.ChartParams{Continent: in.String(InputContinent), Year: year}
}

// MapParamsFrom rebuilds the choropleth filter from rule inputs.
func MapParamsFrom(in binding.Inputs) model.MapParams {
	year, _ := in.Int(InputMapYear)
	metric, _ := model.ParseMetric(in.String(InputMapVar))
	return model.MapParams{Metric: metric, Year: year}
}

func (d *Dashboard) mainCharts(_ context.Context, in binding.Inputs) (map[binding.OutputID]figure.Figure, error) {
	p := ChartParamsFrom(in)
	out := make(map[binding.OutputID]figure.Figure, len(chartSlots))
	for _, slot := range chartSlots {
		top := stats.FilterTopN(d.records, p.Continent, p.Year, slot.metric, d.defaults.TopN)
		out[slot.id] = figure.BuildBarChartN(top, slot.metric, p.Continent, p.Year, d.defaults.TopN)
	}
	return out, nil
}

func (d *Dashboard) worldMap(_ context.Context, in binding.Inputs) (map[binding.OutputID]figure.Figure, error) {
	p := MapParamsFrom(in)
	var records []model.Record
	if p.Metric.Valid() {
		records = stats.MapSlice(d.records, p.Year)
	}
	return map[binding.OutputID]figure.Figure{
		OutputMap: figure.BuildChoropleth(records, p.Metric, p.Year),
	}, nil
}
