// Package tui provides the Bubble Tea dashboard interface.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/gapdash/internal/binding"
	"github.com/verte-zerg/gapdash/internal/dashboard"
	"github.com/verte-zerg/gapdash/internal/figure"
	"github.com/verte-zerg/gapdash/internal/model"
	"github.com/verte-zerg/gapdash/internal/stats"
)

const (
	tabCharts = iota
	tabMap
	tabDataset
)

const fallbackWidth = 80

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#3A7BC8"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	titleStyle      = lipgloss.NewStyle().Bold(true)
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// chartOrder is the top-to-bottom order of the charts tab.
var chartOrder = []binding.OutputID{
	dashboard.OutputPopulation,
	dashboard.OutputGDP,
	dashboard.OutputLifeExp,
}

// control is a dropdown driven by a pair of keys.
type control struct {
	id     binding.InputID
	label  string
	next   string
	prev   string
	values []any
}

// Model implements the Bubble Tea dashboard.
type Model struct {
	dash    *dashboard.Dashboard
	state   binding.State
	figures map[binding.OutputID]figure.Figure
	errMsg  string

	controls  []control
	tabs      []string
	activeTab int
	viewports []viewport.Model
	dataTable table.Model
	tableRows int

	width  int
	height int
}

// NewModel constructs a dashboard model with every rule evaluated for the
// default control values.
func NewModel(dash *dashboard.Dashboard) *Model {
	m := &Model{
		dash:    dash,
		state:   dash.DefaultState(),
		figures: make(map[binding.OutputID]figure.Figure),
		tabs:    []string{"Charts", "World Map", "Dataset"},
	}
	m.initControls()
	m.initViewports()
	m.initDataTable()
	batches, err := dash.Initial(context.Background(), m.state)
	if err != nil {
		m.errMsg = err.Error()
	}
	m.applyBatches(batches)
	m.renderTabContents()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		key := msg.String()
		switch key {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "g", "home":
			if m.activeTab == tabDataset {
				m.dataTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabDataset {
				m.dataTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		}
		for i, c := range m.controls {
			switch key {
			case c.next:
				m.cycle(i, 1)
				return m, nil
			case c.prev:
				m.cycle(i, -1)
				return m, nil
			}
		}
		if m.activeTab == tabDataset {
			var cmd tea.Cmd
			m.dataTable, cmd = m.dataTable.Update(msg)
			return m, cmd
		}
		vp := m.viewports[m.activeTab]
		var cmd tea.Cmd
		vp, cmd = vp.Update(msg)
		m.viewports[m.activeTab] = vp
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initControls() {
	records := m.dash.Records()
	years := stats.Years(records)
	yearValues := make([]any, len(years))
	for i, y := range years {
		yearValues[i] = y
	}
	continents := stats.Continents(records)
	continentValues := make([]any, len(continents))
	for i, c := range continents {
		continentValues[i] = c
	}
	metrics := model.Metrics()
	metricValues := make([]any, len(metrics))
	for i, mt := range metrics {
		metricValues[i] = string(mt)
	}
	m.controls = []control{
		{id: dashboard.InputContinent, label: "Continent", next: "c", prev: "C", values: continentValues},
		{id: dashboard.InputYear, label: "Year", next: "y", prev: "Y", values: yearValues},
		{id: dashboard.InputMapVar, label: "Variable", next: "v", prev: "V", values: metricValues},
		{id: dashboard.InputMapYear, label: "Map year", next: "m", prev: "M", values: yearValues},
	}
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initDataTable() {
	rows := stats.RecordRows(m.dash.Records())
	widths := make([]int, len(model.Columns))
	for i, h := range model.Columns {
		widths[i] = lipgloss.Width(h)
	}
	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		for j, cell := range row {
			widths[j] = maxInt(widths[j], lipgloss.Width(cell))
		}
		tableRows[i] = table.Row(row)
	}
	columns := make([]table.Column, len(model.Columns))
	for i, h := range model.Columns {
		columns[i] = table.Column{Title: h, Width: widths[i]}
	}
	m.dataTable = table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithHeight(1),
	)
	m.dataTable.SetStyles(dataTableStyles())
	m.tableRows = len(tableRows)
}

// cycle moves control i by delta through its options and dispatches the
// change to the rules that depend on it.
func (m *Model) cycle(i, delta int) {
	c := m.controls[i]
	n := len(c.values)
	if n == 0 {
		return
	}
	next := 0
	if idx := indexOf(c.values, m.state[c.id]); idx >= 0 {
		next = ((idx+delta)%n + n) % n
	}
	m.state[c.id] = c.values[next]
	m.dispatch(c.id)
}

func (m *Model) dispatch(changed binding.InputID) {
	batches, err := m.dash.Update(context.Background(), []binding.InputID{changed}, m.state)
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	m.applyBatches(batches)
	m.renderTabContents()
}

// applyBatches replaces each output group as a whole.
func (m *Model) applyBatches(batches []binding.Batch[figure.Figure]) {
	for _, b := range batches {
		for id, fig := range b.Outputs {
			m.figures[id] = fig
		}
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 2
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.dataTable.SetWidth(m.width)
	m.dataTable.SetHeight(m.fitTableHeight(vpHeight))
}

// fitTableHeight returns the table height whose rendered view, header
// included, fills bodyHeight lines.
func (m *Model) fitTableHeight(bodyHeight int) int {
	target := maxInt(1, bodyHeight)
	height := maxInt(1, target-1)
	m.dataTable.SetHeight(height)
	if viewHeight := lipgloss.Height(m.dataTable.View()); viewHeight != target {
		height = maxInt(1, height+target-viewHeight)
	}
	return height
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabDataset {
		m.dataTable.Focus()
	} else {
		m.dataTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render(truncateLine(dashboard.Title, m.width))
	tabs := padLines(m.renderTabs(), m.width)
	controls := padLines(m.renderControlSummary(), m.width)
	return title + "\n" + tabs + "\n" + controls
}

func (m *Model) renderControlSummary() string {
	parts := make([]string, 0, len(m.controls))
	for _, c := range m.controls {
		parts = append(parts, fmt.Sprintf("%s=%v", strings.ToLower(c.label), m.state[c.id]))
	}
	summary := "Settings: " + strings.Join(parts, "  ")
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	keys := make([]string, 0, len(m.controls))
	for _, c := range m.controls {
		keys = append(keys, fmt.Sprintf("%s: %s/%s", c.label, c.next, c.prev))
	}
	help := "Nav: left/right  Scroll: up/down  " + strings.Join(keys, "  ") + "  Quit: q"
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderFooter() string {
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderBody(height int) string {
	if m.activeTab == tabDataset {
		if m.tableRows == 0 {
			return fitLines("No records found.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.dataTable.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	width := m.width
	if width <= 0 {
		width = fallbackWidth
	}
	charts := make([]string, 0, len(chartOrder))
	for _, id := range chartOrder {
		charts = append(charts, renderFigure(m.figures, id, width))
	}
	m.viewports[tabCharts].SetContent(strings.Join(charts, "\n"))
	m.viewports[tabMap].SetContent(renderFigure(m.figures, dashboard.OutputMap, width))
}

func renderFigure(figures map[binding.OutputID]figure.Figure, id binding.OutputID, width int) string {
	fig, ok := figures[id]
	if !ok {
		return "Not computed yet."
	}
	var buf bytes.Buffer
	if err := figure.RenderTextFit(&buf, fig, width, true); err != nil {
		return fmt.Sprintf("Failed to render %s: %v", id, err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func dataTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func indexOf(values []any, v any) int {
	want := fmt.Sprint(v)
	for i, candidate := range values {
		if fmt.Sprint(candidate) == want {
			return i
		}
	}
	return -1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
