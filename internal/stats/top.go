// Package stats contains the dataset transforms and their text rendering.
package stats

import (
	"sort"

	"github.com/verte-zerg/gapdash/internal/model"
)

// DefaultTopN is the number of bars shown per ranking chart.
const DefaultTopN = 15

// FilterTopN returns the n records of a continent and year with the highest
// metric values. Ties keep dataset order. The result is never nil.
func FilterTopN(records []model.Record, continent string, year int, metric model.Metric, n int) []model.Record {
	if n <= 0 {
		return []model.Record{}
	}
	out := make([]model.Record, 0, n)
	for _, r := range records {
		if r.Continent == continent && r.Year == year {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return metric.Value(out[i]) > metric.Value(out[j])
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// MapSlice returns every record for a year in dataset order.
func MapSlice(records []model.Record, year int) []model.Record {
	out := make([]model.Record, 0)
	for _, r := range records {
		if r.Year == year {
			out = append(out, r)
		}
	}
	return out
}

// Continents lists the distinct continents in first-seen order.
func Continents(records []model.Record) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range records {
		if _, ok := seen[r.Continent]; ok {
			continue
		}
		seen[r.Continent] = struct{}{}
		out = append(out, r.Continent)
	}
	return out
}

// Years lists the distinct years in ascending order.
func Years(records []model.Record) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, r := range records {
		if _, ok := seen[r.Year]; ok {
			continue
		}
		seen[r.Year] = struct{}{}
		out = append(out, r.Year)
	}
	sort.Ints(out)
	return out
}
