package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/gapdash/internal/dashboard"
	"github.com/verte-zerg/gapdash/internal/dataset"
	"github.com/verte-zerg/gapdash/internal/model"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	ds, err := dataset.Sample()
	if err != nil {
		t.Fatalf("sample dataset: %v", err)
	}
	dash, err := dashboard.New(ds, model.Defaults{})
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	return NewModel(dash)
}

func press(m *Model, key string) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return cmd
}

func TestNewModelComputesEveryOutput(t *testing.T) {
	m := newTestModel(t)
	if m.errMsg != "" {
		t.Fatalf("unexpected error: %s", m.errMsg)
	}
	for _, id := range append(chartOrder, dashboard.OutputMap) {
		if _, ok := m.figures[id]; !ok {
			t.Fatalf("missing figure %s", id)
		}
	}
	if got := m.figures[dashboard.OutputPopulation].TitleText(); got != "Top 15 Population — Asia (1952)" {
		t.Fatalf("unexpected population title: %q", got)
	}
	if got := m.figures[dashboard.OutputMap].TitleText(); got != "Life Expectancy in 1952" {
		t.Fatalf("unexpected map title: %q", got)
	}
}

func TestYearKeyUpdatesOnlyMainCharts(t *testing.T) {
	m := newTestModel(t)
	mapBefore := m.figures[dashboard.OutputMap].TitleText()

	press(m, "y")

	if m.state[dashboard.InputYear] != 2007 {
		t.Fatalf("expected year 2007, got %v", m.state[dashboard.InputYear])
	}
	for _, id := range chartOrder {
		if title := m.figures[id].TitleText(); !strings.HasSuffix(title, "Asia (2007)") {
			t.Fatalf("chart %s not refreshed: %q", id, title)
		}
	}
	if got := m.figures[dashboard.OutputMap].TitleText(); got != mapBefore {
		t.Fatalf("map should not change, got %q", got)
	}
}

func TestControlsWrapAround(t *testing.T) {
	m := newTestModel(t)

	press(m, "v")
	if got := m.figures[dashboard.OutputMap].TitleText(); got != "Population in 1952" {
		t.Fatalf("expected map variable to wrap to Population, got %q", got)
	}

	press(m, "C")
	continents := m.controls[0].values
	last := continents[len(continents)-1]
	if m.state[dashboard.InputContinent] != last {
		t.Fatalf("expected continent %v, got %v", last, m.state[dashboard.InputContinent])
	}
	press(m, "c")
	if m.state[dashboard.InputContinent] != "Asia" {
		t.Fatalf("expected continent to return to Asia, got %v", m.state[dashboard.InputContinent])
	}
}

func TestDispatchErrorIsShown(t *testing.T) {
	m := newTestModel(t)
	delete(m.state, dashboard.InputContinent)

	press(m, "y")

	if !strings.Contains(m.errMsg, "missing input") {
		t.Fatalf("expected missing input error, got %q", m.errMsg)
	}
	if got := m.figures[dashboard.OutputPopulation].TitleText(); !strings.HasSuffix(got, "(1952)") {
		t.Fatalf("figures should keep their previous values, got %q", got)
	}
}

func TestMoveTabWraps(t *testing.T) {
	m := newTestModel(t)
	m.moveTab(-1)
	if m.activeTab != tabDataset {
		t.Fatalf("expected dataset tab, got %d", m.activeTab)
	}
	m.moveTab(1)
	if m.activeTab != tabCharts {
		t.Fatalf("expected charts tab, got %d", m.activeTab)
	}
}

func TestViewFillsWindow(t *testing.T) {
	m := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	lines := strings.Split(view, "\n")
	if len(lines) != 30 {
		t.Fatalf("expected 30 lines, got %d", len(lines))
	}
	for _, want := range []string{"Charts", "World Map", "continent=Asia", "Population"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}

	m.moveTab(-1)
	if view := m.View(); !strings.Contains(view, "Country") {
		t.Fatalf("dataset tab should show the table header")
	}
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t)
	cmd := press(m, "q")
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestTruncateLine(t *testing.T) {
	if got := truncateLine("abcdefgh", 6); got != "abc..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateLine("abc", 6); got != "abc" {
		t.Fatalf("short line should be unchanged: %q", got)
	}
	if got := fitLines("a\nb\nc", 2, 2); got != "a \nb " {
		t.Fatalf("unexpected fit: %q", got)
	}
}
