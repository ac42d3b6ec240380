// Package model defines shared data structures.
package model

import (
	"strings"
	"time"
)

// Record is one country-year observation.
type Record struct {
	Country        string
	Continent      string
	Year           int
	Population     int64
	GDPPerCapita   float64
	LifeExpectancy float64
	ISO3           string
}

// Metric names a numeric column that charts can rank and shade by.
type Metric string

// Supported metrics. The names double as column headers and chart labels.
const (
	MetricPopulation     Metric = "Population"
	MetricGDPPerCapita   Metric = "GDP per Capita"
	MetricLifeExpectancy Metric = "Life Expectancy"
)

// Metrics lists the supported metrics in display order.
func Metrics() []Metric {
	return []Metric{MetricPopulation, MetricGDPPerCapita, MetricLifeExpectancy}
}

// ParseMetric matches a metric by display name, case-insensitively.
func ParseMetric(name string) (Metric, bool) {
	name = strings.TrimSpace(name)
	for _, m := range Metrics() {
		if strings.EqualFold(string(m), name) {
			return m, true
		}
	}
	return Metric(name), false
}

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	switch m {
	case MetricPopulation, MetricGDPPerCapita, MetricLifeExpectancy:
		return true
	}
	return false
}

// Value extracts the metric from a record. Unknown metrics read as 0.
func (m Metric) Value(r Record) float64 {
	switch m {
	case MetricPopulation:
		return float64(r.Population)
	case MetricGDPPerCapita:
		return r.GDPPerCapita
	case MetricLifeExpectancy:
		return r.LifeExpectancy
	default:
		return 0
	}
}

// Columns are the dataset column headers in table order.
var Columns = []string{
	"Country",
	"Continent",
	"Year",
	"Population",
	"GDP per Capita",
	"Life Expectancy",
	"ISO Alpha Country Code",
}

// ChartParams selects the slice shown by the top-N bar charts.
type ChartParams struct {
	Continent string
	Year      int
}

// MapParams selects the slice and shading of the choropleth.
type MapParams struct {
	Metric Metric
	Year   int
}

// Defaults holds the control values used at page load.
type Defaults struct {
	Continent string
	Year      int
	MapMetric Metric
	MapYear   int
	TopN      int
}

// ImportInfo describes one dataset import into the SQLite store.
type ImportInfo struct {
	ID         int64
	ImportedAt time.Time
	Source     string
	Rows       int
}
