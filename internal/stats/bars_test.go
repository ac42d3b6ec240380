package stats

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderBarsScalesToMaximum(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	bars := []Bar{
		{Label: "China", Value: 100, Text: "100"},
		{Label: "India", Value: 50, Text: "50"},
	}
	var buf bytes.Buffer
	if err := RenderBars(&buf, "Top", bars, 10); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Top" {
		t.Fatalf("unexpected title line: %q", lines[0])
	}
	if lines[1] != "China │ "+strings.Repeat("█", 10)+" 100" {
		t.Fatalf("unexpected first bar: %q", lines[1])
	}
	if lines[2] != "India │ "+strings.Repeat("█", 5)+" 50" {
		t.Fatalf("unexpected second bar: %q", lines[2])
	}
}

func TestRenderBarsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderBars(&buf, "Empty", nil, 0); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if buf.String() != "Empty\n(no data)\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestRenderBarsForcedColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	bars := []Bar{{Label: "A", Value: 1}}
	if err := RenderBarsWithColor(&buf, "", bars, 10, true); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(buf.String(), colorPalette[0].code) || !strings.Contains(buf.String(), colorReset) {
		t.Fatalf("expected ANSI color codes, got %q", buf.String())
	}
}

func TestBarStringPartialBlocks(t *testing.T) {
	if got := barString(1, 8, 1); got != "▏" {
		t.Fatalf("expected one eighth block, got %q", got)
	}
	if got := barString(0, 8, 10); got != "" {
		t.Fatalf("expected empty bar for zero, got %q", got)
	}
	if got := barString(3, 4, 2); got != "█▌" {
		t.Fatalf("unexpected bar: %q", got)
	}
}

func TestBarWidthFor(t *testing.T) {
	if got := BarWidthFor(80, 10, 5); got != 80-10-3-5-1 {
		t.Fatalf("unexpected width: %d", got)
	}
	if got := BarWidthFor(20, 10, 5); got != minBarWidth {
		t.Fatalf("expected minimum width, got %d", got)
	}
	if got := BarWidthFor(0, 10, 5); got != minBarWidth {
		t.Fatalf("expected minimum width for unknown terminal, got %d", got)
	}
}

func TestRenderBarsFitUsesColumns(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	bars := []Bar{{Label: "China", Value: 100, Text: "100"}}
	var buf bytes.Buffer
	if err := RenderBarsFit(&buf, "", bars, 40, false); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	line := strings.Split(buf.String(), "\n")[0]
	if got := displayWidth(line); got != 40 {
		t.Fatalf("expected row of 40 cells, got %d: %q", got, line)
	}
}
