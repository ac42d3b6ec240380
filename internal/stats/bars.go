package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// Bar is one labelled value in a horizontal bar chart.
type Bar struct {
	Label string
	Value float64
	Text  string
}

type ansiColor struct {
	name string
	code string
}

const (
	minBarWidth         = 10
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

// Eighth-block runes give bars sub-cell resolution.
var partialBlocks = []rune{' ', '▏', '▎', '▍', '▌', '▋', '▊', '▉', '█'}

var colorPalette = []ansiColor{
	{name: "cyan", code: "\x1b[36m"},
	{name: "magenta", code: "\x1b[35m"},
	{name: "yellow", code: "\x1b[33m"},
	{name: "green", code: "\x1b[32m"},
	{name: "blue", code: "\x1b[34m"},
}

// RenderBars prints a horizontal bar chart scaled to the largest value.
// A width of 0 fits the chart to the terminal.
func RenderBars(w io.Writer, title string, bars []Bar, width int) error {
	return renderBars(w, title, bars, width, 0, false)
}

// RenderBarsWithColor renders bars with optional forced color output.
func RenderBarsWithColor(w io.Writer, title string, bars []Bar, width int, forceColor bool) error {
	return renderBars(w, title, bars, width, 0, forceColor)
}

// RenderBarsFit renders bars so that each row fits within columns cells.
func RenderBarsFit(w io.Writer, title string, bars []Bar, columns int, forceColor bool) error {
	return renderBars(w, title, bars, 0, columns, forceColor)
}

func renderBars(w io.Writer, title string, bars []Bar, width, columns int, forceColor bool) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	if len(bars) == 0 {
		_, err := fmt.Fprintln(w, "(no data)")
		return err
	}

	labelWidth, textWidth := 0, 0
	maxVal := 0.0
	for _, b := range bars {
		labelWidth = max(labelWidth, displayWidth(b.Label))
		textWidth = max(textWidth, displayWidth(b.Text))
		if b.Value > maxVal {
			maxVal = b.Value
		}
	}
	if width <= 0 {
		if columns <= 0 {
			columns = terminalWidth()
		}
		width = BarWidthFor(columns, labelWidth, textWidth)
	}
	if width < minBarWidth {
		width = minBarWidth
	}

	useColor := shouldUseColor(w, forceColor)
	for i, b := range bars {
		var row strings.Builder
		row.WriteString(padCell(b.Label, labelWidth, false))
		row.WriteString(axisSeparator)
		bar := barString(b.Value, maxVal, width)
		if useColor && bar != "" {
			row.WriteString(colorPalette[i%len(colorPalette)].code)
			row.WriteString(bar)
			row.WriteString(colorReset)
		} else {
			row.WriteString(bar)
		}
		if b.Text != "" {
			row.WriteByte(' ')
			row.WriteString(b.Text)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// BarWidthFor computes the bar area that fits next to labels and value text.
func BarWidthFor(totalWidth, labelWidth, textWidth int) int {
	if totalWidth <= 0 {
		return minBarWidth
	}
	barWidth := totalWidth - labelWidth - displayWidth(axisSeparator) - textWidth - 1
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}
	return barWidth
}

func barString(v, maxVal float64, width int) string {
	if v <= 0 || maxVal <= 0 || width <= 0 {
		return ""
	}
	eighths := int(math.Round(v / maxVal * float64(width*8)))
	if eighths < 1 {
		eighths = 1
	}
	full, rest := eighths/8, eighths%8
	var b strings.Builder
	b.WriteString(strings.Repeat(string(partialBlocks[8]), full))
	if rest > 0 {
		b.WriteRune(partialBlocks[rest])
	}
	return b.String()
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
