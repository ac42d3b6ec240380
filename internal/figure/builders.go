package figure

import (
	"math"

	"github.com/verte-zerg/gapdash/internal/model"
	"github.com/verte-zerg/gapdash/internal/stats"
)

const alignLeft = "left"

// BuildTable renders every record as a grid with the dataset column headers.
func BuildTable(records []model.Record) Figure {
	header := make([][]string, len(model.Columns))
	for i, name := range model.Columns {
		header[i] = []string{name}
	}
	rows := stats.RecordRows(records)
	cells := make([][]string, len(model.Columns))
	for col := range cells {
		cells[col] = make([]string, len(rows))
		for i, row := range rows {
			cells[col][i] = row[col]
		}
	}
	return Figure{
		Data: []Trace{{
			Type:   KindTable,
			Header: &TableSection{Values: header, Align: alignLeft},
			Cells:  &TableSection{Values: cells, Align: alignLeft},
		}},
		Layout: Layout{
			PaperBGColor: paperBackground,
			Height:       tableHeight,
			Margin:       &Margin{},
		},
	}
}

// BuildBarChart draws one bar per record, colored per country, titled with
// the default ranking size.
func BuildBarChart(records []model.Record, metric model.Metric, continent string, year int) Figure {
	return BuildBarChartN(records, metric, continent, year, stats.DefaultTopN)
}

// BuildBarChartN is BuildBarChart with an explicit ranking size in the title.
// Records are drawn in the order given.
func BuildBarChartN(records []model.Record, metric model.Metric, continent string, year, n int) Figure {
	traces := make([]Trace, 0, len(records))
	for i, r := range records {
		v := metric.Value(r)
		traces = append(traces, Trace{
			Type:         KindBar,
			Name:         r.Country,
			X:            []string{r.Country},
			Y:            []float64{v},
			Text:         []string{stats.FormatValue(metric, v)},
			TextPosition: "auto",
			Marker:       &Marker{Color: qualitative[i%len(qualitative)]},
		})
	}
	return Figure{
		Data: traces,
		Layout: Layout{
			Title:        &Title{Text: BarTitle(n, metric, continent, year)},
			PaperBGColor: paperBackground,
			Height:       barHeight,
			BarMode:      "relative",
			XAxis:        &Axis{Title: &Title{Text: "Country"}, CategoryOrder: "trace"},
			YAxis:        &Axis{Title: &Title{Text: string(metric)}},
		},
	}
}

// BuildChoropleth shades one region per record, keyed by ISO3 code, on the
// Viridis scale. An empty slice yields a titled figure with no traces.
func BuildChoropleth(records []model.Record, metric model.Metric, year int) Figure {
	fig := Figure{
		Data: []Trace{},
		Layout: Layout{
			Title:        &Title{Text: MapTitle(metric, year)},
			PaperBGColor: paperBackground,
			Height:       mapHeight,
			Margin:       &Margin{T: mapTopMargin},
		},
	}
	if len(records) == 0 {
		return fig
	}

	locations := make([]string, len(records))
	z := make([]float64, len(records))
	custom := make([][]string, len(records))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, r := range records {
		v := metric.Value(r)
		locations[i] = r.ISO3
		z[i] = v
		custom[i] = []string{r.Country, stats.FormatValue(metric, v)}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	tickVals, tickText := colorBarTicks(lo, hi, compactNumber)

	fig.Data = append(fig.Data, Trace{
		Type:          KindChoropleth,
		Locations:     locations,
		LocationMode:  locationModeISO,
		Z:             z,
		ZMin:          &lo,
		ZMax:          &hi,
		ColorScale:    ViridisScale(),
		ColorBar:      &ColorBar{Title: &Title{Text: string(metric)}, TickVals: tickVals, TickText: tickText},
		CustomData:    custom,
		HoverTemplate: "%{location}<br>Country=%{customdata[0]}<br>" + string(metric) + "=%{customdata[1]}<extra></extra>",
	})
	return fig
}

// Regions returns the number of map regions in a choropleth figure.
func Regions(fig Figure) int {
	n := 0
	for _, tr := range fig.Data {
		if tr.Type == KindChoropleth {
			n += len(tr.Locations)
		}
	}
	return n
}
