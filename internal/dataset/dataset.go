// Package dataset loads country-year observations into an immutable table.
package dataset

import (
	"bytes"
	_ "embed" // Bundled sample data.
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/verte-zerg/gapdash/internal/model"
)

//go:embed data/gapminder_sample.csv
var sampleCSV []byte

var (
	// ErrEmpty is returned when a source yields no records.
	ErrEmpty = errors.New("dataset has no records")
	// ErrDuplicateRecord is returned when a (country, year) pair repeats.
	ErrDuplicateRecord = errors.New("duplicate country-year record")
	// ErrInvalidValue is returned for negative or non-finite measures.
	ErrInvalidValue = errors.New("invalid record value")
)

// Dataset is a read-only table of records. Accessors return copies so
// callers can never mutate the shared rows.
type Dataset struct {
	records []model.Record
}

// New validates records and wraps a private copy of them.
func New(records []model.Record) (*Dataset, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	type key struct {
		country string
		year    int
	}
	seen := make(map[key]struct{}, len(records))
	for _, r := range records {
		if err := validate(r); err != nil {
			return nil, err
		}
		k := key{country: r.Country, year: r.Year}
		if _, ok := seen[k]; ok {
			return nil, fmt.Errorf("%w: %s %d", ErrDuplicateRecord, r.Country, r.Year)
		}
		seen[k] = struct{}{}
	}
	own := make([]model.Record, len(records))
	copy(own, records)
	return &Dataset{records: own}, nil
}

// validate rejects values no chart or JSON encoder can represent. The
// same check guards CSV and database sources.
func validate(r model.Record) error {
	switch {
	case r.Population < 0:
		return fmt.Errorf("%w: %s %d population %d", ErrInvalidValue, r.Country, r.Year, r.Population)
	case !measure(r.GDPPerCapita):
		return fmt.Errorf("%w: %s %d GDP per capita %v", ErrInvalidValue, r.Country, r.Year, r.GDPPerCapita)
	case !measure(r.LifeExpectancy):
		return fmt.Errorf("%w: %s %d life expectancy %v", ErrInvalidValue, r.Country, r.Year, r.LifeExpectancy)
	}
	return nil
}

func measure(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Sample returns the dataset bundled with the binary.
func Sample() (*Dataset, error) {
	ds, err := Parse(bytes.NewReader(sampleCSV))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bundled dataset: %w", err)
	}
	return ds, nil
}

// LoadFile reads a CSV dataset from disk.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close of a read-only file.
			_ = cerr
		}
	}()
	ds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return ds, nil
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Records returns a copy of all records in dataset order.
func (d *Dataset) Records() []model.Record {
	out := make([]model.Record, len(d.records))
	copy(out, d.records)
	return out
}

type column int

const (
	colCountry column = iota
	colContinent
	colYear
	colPopulation
	colGDP
	colLifeExp
	colISO3
	columnCount
)

// headerAliases accepts both the display headers and the raw Gapminder
// export headers (country, pop, gdpPercap, lifeExp, iso_alpha).
var headerAliases = map[string]column{
	"country":             colCountry,
	"continent":           colContinent,
	"year":                colYear,
	"population":          colPopulation,
	"pop":                 colPopulation,
	"gdppercapita":        colGDP,
	"gdppercap":           colGDP,
	"lifeexpectancy":      colLifeExp,
	"lifeexp":             colLifeExp,
	"isoalphacountrycode": colISO3,
	"isoalpha":            colISO3,
	"iso3":                colISO3,
}

var columnNames = [columnCount]string{
	"Country", "Continent", "Year", "Population", "GDP per Capita", "Life Expectancy", "ISO Alpha Country Code",
}

// Parse reads CSV data with a header row. Unknown columns are ignored;
// every dataset column must be present.
func Parse(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	var index [columnCount]int
	for i := range index {
		index[i] = -1
	}
	for i, h := range headers {
		if col, ok := headerAliases[normalizeHeader(h)]; ok && index[col] < 0 {
			index[col] = i
		}
	}
	var missing []string
	for col, i := range index {
		if i < 0 {
			missing = append(missing, columnNames[col])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	var records []model.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		rec, err := parseRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return New(records)
}

func parseRow(row []string, index [columnCount]int) (model.Record, error) {
	field := func(col column) string {
		return strings.TrimSpace(row[index[col]])
	}
	year, err := parseYear(field(colYear))
	if err != nil {
		return model.Record{}, err
	}
	pop, err := parsePopulation(field(colPopulation))
	if err != nil {
		return model.Record{}, err
	}
	gdp, err := parseMeasure(field(colGDP))
	if err != nil {
		return model.Record{}, fmt.Errorf("invalid GDP per capita %q", field(colGDP))
	}
	lifeExp, err := parseMeasure(field(colLifeExp))
	if err != nil {
		return model.Record{}, fmt.Errorf("invalid life expectancy %q", field(colLifeExp))
	}
	country := field(colCountry)
	if country == "" {
		return model.Record{}, fmt.Errorf("empty country")
	}
	return model.Record{
		Country:        country,
		Continent:      field(colContinent),
		Year:           year,
		Population:     pop,
		GDPPerCapita:   gdp,
		LifeExpectancy: lifeExp,
		ISO3:           strings.ToUpper(field(colISO3)),
	}, nil
}

// parseYear accepts plain years and date-typed exports ("1952-01-01").
func parseYear(s string) (int, error) {
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	if len(s) > 4 && s[4] == '-' {
		if y, err := strconv.Atoi(s[:4]); err == nil {
			return y, nil
		}
	}
	return 0, fmt.Errorf("invalid year %q", s)
}

// parsePopulation tolerates float-formatted integers ("8425333.0").
func parsePopulation(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid population %q", s)
		}
		return n, nil
	}
	f, err := parseMeasure(s)
	if err != nil || f >= math.MaxInt64 {
		return 0, fmt.Errorf("invalid population %q", s)
	}
	return int64(f), nil
}

// parseMeasure accepts finite, non-negative numbers only.
func parseMeasure(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !measure(f) {
		return 0, ErrInvalidValue
	}
	return f, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	var b strings.Builder
	for _, r := range h {
		if r == ' ' || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
