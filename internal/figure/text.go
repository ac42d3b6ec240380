package figure

import (
	"fmt"
	"io"
	"sort"

	"github.com/verte-zerg/gapdash/internal/stats"
)

// RenderText prints a figure for a terminal, sized to the terminal width.
func RenderText(w io.Writer, fig Figure) error {
	return RenderTextWidth(w, fig, 0)
}

// RenderTextWidth prints a figure with bars of the given width. Tables
// ignore the width.
func RenderTextWidth(w io.Writer, fig Figure, width int) error {
	return renderText(w, fig, func(title string, bars []stats.Bar) error {
		return stats.RenderBars(w, title, bars, width)
	})
}

// RenderTextFit prints a figure whose bar rows fit within columns cells.
func RenderTextFit(w io.Writer, fig Figure, columns int, color bool) error {
	return renderText(w, fig, func(title string, bars []stats.Bar) error {
		return stats.RenderBarsFit(w, title, bars, columns, color)
	})
}

func renderText(w io.Writer, fig Figure, bars func(string, []stats.Bar) error) error {
	title := fig.TitleText()
	if len(fig.Data) == 0 {
		return bars(title, nil)
	}
	switch fig.Data[0].Type {
	case KindTable:
		return renderTable(w, title, fig.Data[0])
	case KindChoropleth:
		return bars(title, mapBars(fig.Data))
	default:
		return bars(title, barBars(fig.Data))
	}
}

func renderTable(w io.Writer, title string, tr Trace) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	if tr.Header == nil || tr.Cells == nil {
		return nil
	}
	headers := make([]string, len(tr.Header.Values))
	for i, col := range tr.Header.Values {
		if len(col) > 0 {
			headers[i] = col[0]
		}
	}
	var rows [][]string
	for col, values := range tr.Cells.Values {
		for i, v := range values {
			if i >= len(rows) {
				rows = append(rows, make([]string, len(tr.Cells.Values)))
			}
			rows[i][col] = v
		}
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No records found.")
		return err
	}
	for _, line := range stats.FormatTable(headers, rows, nil) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func barBars(traces []Trace) []stats.Bar {
	bars := make([]stats.Bar, 0, len(traces))
	for _, tr := range traces {
		for i := range tr.X {
			b := stats.Bar{Label: tr.X[i]}
			if i < len(tr.Y) {
				b.Value = tr.Y[i]
			}
			if i < len(tr.Text) {
				b.Text = tr.Text[i]
			}
			bars = append(bars, b)
		}
	}
	return bars
}

// mapBars lists choropleth regions from the highest value down.
func mapBars(traces []Trace) []stats.Bar {
	var bars []stats.Bar
	for _, tr := range traces {
		for i, loc := range tr.Locations {
			b := stats.Bar{Label: loc}
			if i < len(tr.Z) {
				b.Value = tr.Z[i]
			}
			if i < len(tr.CustomData) && len(tr.CustomData[i]) == 2 {
				b.Label = fmt.Sprintf("%s (%s)", tr.CustomData[i][0], loc)
				b.Text = tr.CustomData[i][1]
			}
			bars = append(bars, b)
		}
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Value > bars[j].Value
	})
	return bars
}
