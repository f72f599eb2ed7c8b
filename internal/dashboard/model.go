package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/fueldash/internal/chart"
	"github.com/verte-zerg/fueldash/internal/log"
	"github.com/verte-zerg/fueldash/internal/model"
	"github.com/verte-zerg/fueldash/internal/stats"
)

const (
	tabChart = iota
	tabTable
	tabTrend
)

const (
	chartHeight        = 12
	trendHeight        = 10
	defaultTrendWindow = 7
)

type phase int

const (
	phaseLoading phase = iota
	phaseReady
	phaseFailed
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#0097A7"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// LoadFunc produces a dataset and must return promptly once ctx is done.
type LoadFunc func(ctx context.Context) (model.Dataset, error)

// Options configures a dashboard model.
type Options struct {
	Source      string
	Load        LoadFunc
	Preferred   model.Selection
	TrendWindow int
	DateLayouts []string
	Logger      *log.Logger
}

type loadedMsg struct {
	seq  int
	ds   model.Dataset
	took time.Duration
}

type loadFailedMsg struct {
	seq int
	err error
}

// Model implements the Bubble Tea fuel price dashboard.
type Model struct {
	opts   Options
	state  *State
	logger *log.Logger

	phase   phase
	loadErr error
	errMsg  string
	seq     int
	cancel  context.CancelFunc
	closed  bool

	tabs        []string
	activeTab   int
	viewports   []viewport.Model
	monthTable  table.Model
	trendWindow int

	width  int
	height int

	formMode   bool
	formInputs []textinput.Model
	formIndex  int
	formError  string

	unsubscribe func()
}

// NewModel constructs a dashboard model. Loading starts from Init.
func NewModel(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	m := &Model{
		opts:        opts,
		state:       NewState(opts.DateLayouts),
		logger:      logger.WithComponent(log.ComponentDashboard),
		tabs:        []string{"Chart", "Table", "Trend"},
		trendWindow: opts.TrendWindow,
	}
	if m.trendWindow <= 0 {
		m.trendWindow = defaultTrendWindow
	}
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	m.monthTable = buildMonthTable(model.MonthlySeries{}, 0)
	m.initForm()
	m.unsubscribe = m.state.Subscribe(func(Snapshot) {
		m.renderTabContents()
	})
	return m
}

// State exposes the reactive state backing the view.
func (m *Model) State() *State {
	return m.state
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.startLoad()
}

// Close cancels any pending load. Results that arrive afterwards are dropped.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *Model) startLoad() tea.Cmd {
	if m.closed || m.opts.Load == nil {
		return nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.seq++
	seq := m.seq
	m.phase = phaseLoading
	m.loadErr = nil
	load := m.opts.Load
	m.logger.Info("loading dataset", log.FieldSource, m.opts.Source)
	return func() tea.Msg {
		started := time.Now()
		ds, err := load(ctx)
		if err != nil {
			return loadFailedMsg{seq: seq, err: err}
		}
		return loadedMsg{seq: seq, ds: ds, took: time.Since(started)}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.applyLoaded(msg)
		return m, nil
	case loadFailedMsg:
		m.applyFailed(msg)
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Close()
			return m, tea.Quit
		}
		if m.formMode {
			return m.updateForm(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *Model) applyLoaded(msg loadedMsg) {
	if m.closed || msg.seq != m.seq {
		return
	}
	m.cancel = nil
	m.phase = phaseReady
	m.loadErr = nil
	m.errMsg = ""
	m.logger.Info("dataset loaded",
		log.FieldSource, msg.ds.Source,
		log.FieldRows, msg.ds.Stats.Rows,
		log.FieldDropped, msg.ds.Stats.Dropped,
		log.FieldRecords, len(msg.ds.Records),
		log.FieldDuration, msg.took.Milliseconds())
	preferred := m.opts.Preferred
	if m.state.Selection().Complete() {
		preferred = m.state.Selection()
	}
	m.state.Replace(msg.ds, preferred)
}

func (m *Model) applyFailed(msg loadFailedMsg) {
	if m.closed || msg.seq != m.seq {
		return
	}
	m.cancel = nil
	m.phase = phaseFailed
	m.loadErr = msg.err
	m.logger.Error("dataset load failed", log.FieldSource, m.opts.Source, log.FieldError, msg.err)
	m.renderTabContents()
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.Close()
		return m, tea.Quit
	case "left", "h":
		m.moveTab(-1)
		return m, tea.ClearScreen
	case "right", "l", "tab":
		m.moveTab(1)
		return m, tea.ClearScreen
	case "r":
		return m, m.startLoad()
	}
	if m.phase != phaseReady {
		return m, nil
	}
	switch msg.String() {
	case "c":
		m.state.CycleCity(1)
	case "C":
		m.state.CycleCity(-1)
	case "y":
		m.state.CycleYear(1)
	case "Y":
		m.state.CycleYear(-1)
	case "f":
		m.state.ToggleFuel()
	case "=":
		m.trendWindow = nextTrendWindow(m.trendWindow)
		m.renderTabContents()
	case "-":
		m.trendWindow = prevTrendWindow(m.trendWindow)
		m.renderTabContents()
	case "/":
		return m.startForm()
	case "g", "home":
		if m.activeTab == tabTable {
			m.monthTable.GotoTop()
		} else {
			m.viewports[m.activeTab].GotoTop()
		}
	case "G", "end":
		if m.activeTab == tabTable {
			m.monthTable.GotoBottom()
		} else {
			m.viewports[m.activeTab].GotoBottom()
		}
	default:
		var cmd tea.Cmd
		if m.activeTab == tabTable {
			m.monthTable, cmd = m.monthTable.Update(msg)
			return m, cmd
		}
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
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

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.formMode && m.errMsg != "" {
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
	_, bodyHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	m.monthTable.SetWidth(m.width)
	m.monthTable.SetHeight(maxInt(1, bodyHeight-1))
	for i := range m.formInputs {
		promptWidth := lipgloss.Width(m.formInputs[i].Prompt)
		m.formInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	m.activeTab = ((m.activeTab+delta)%count + count) % count
	if m.activeTab == tabTable {
		m.monthTable.Focus()
	} else {
		m.monthTable.Blur()
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
	tabs := padLines(m.renderTabs(), m.width)
	return tabs + "\n" + padLines(m.renderSelectionSummary(), m.width)
}

func (m *Model) renderSelectionSummary() string {
	var summary string
	switch m.phase {
	case phaseLoading:
		summary = fmt.Sprintf("Loading %s ...", m.opts.Source)
	case phaseFailed:
		summary = fmt.Sprintf("Source: %s (load failed)", m.opts.Source)
	default:
		sel := m.state.Selection()
		summary = fmt.Sprintf("City: %s  Fuel: %s  Year: %s  Records: %d  Trend window: %d",
			orDash(sel.City), sel.Fuel, orDash(sel.Year), len(m.state.Dataset().Records), m.trendWindow)
	}
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	if m.formMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	help := headerStyle.Render("Tabs: left/right  City: c/C  Fuel: f  Year: y/Y  Select: /  Trend: -/=  Reload: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func (m *Model) renderBody(height int) string {
	if m.formMode {
		return fitLines(m.renderForm(), m.width, height)
	}
	switch m.phase {
	case phaseLoading:
		return fitLines("Loading data...", m.width, height)
	case phaseFailed:
		lines := []string{
			errorStyle.Render(fmt.Sprintf("Failed to load data: %v", m.loadErr)),
			headerStyle.Render("Press r to retry."),
		}
		return fitLines(strings.Join(lines, "\n"), m.width, height)
	}
	if m.state.Dataset().Empty() {
		return fitLines("No records found in source.", m.width, height)
	}
	if m.activeTab == tabTable {
		return fitLines(tableMutedStyle.Render(m.monthTable.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) renderTabContents() {
	if m.phase != phaseReady {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	sel := m.state.Selection()
	series := m.state.Series()
	m.viewports[tabChart].SetContent(renderChart(sel, series, width))
	m.monthTable.SetRows(monthRows(series))
	m.viewports[tabTrend].SetContent(renderTrend(sel, m.state.Daily(), m.trendWindow, width))
}

func renderChart(sel model.Selection, series model.MonthlySeries, width int) string {
	if !sel.Complete() {
		return "No city or year available."
	}
	summary := stats.Summarize(series)
	cards := []string{
		metricCard("Average", chart.FormatPrice(summary.Mean)),
		metricCard("Lowest", monthValue(summary.Min, summary.MinMonth)),
		metricCard("Highest", monthValue(summary.Max, summary.MaxMonth)),
		metricCard("Change", fmt.Sprintf("%+.2f%%", stats.Change(series))),
	}
	var header string
	if width < 80 {
		header = strings.Join(cards, "\n")
	} else {
		header = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	var buf bytes.Buffer
	err := chart.RenderBars(&buf, chart.BarChart{
		Title:  ChartTitle(sel),
		Labels: model.MonthLabels[:],
		Values: series[:],
		Width:  width,
		Height: chartHeight,
		Color:  true,
	})
	if err != nil {
		return fmt.Sprintf("Failed to render chart: %v", err)
	}
	return strings.TrimRight(header+"\n\n"+buf.String(), "\n")
}

// ChartTitle names the series shown for a selection.
func ChartTitle(sel model.Selection) string {
	return fmt.Sprintf("Monthly Average RSP for %s in %s (%s)", sel.Fuel, sel.City, sel.Year)
}

func renderTrend(sel model.Selection, points []stats.DailyPoint, window, width int) string {
	if len(points) == 0 {
		return "No daily prices for this selection."
	}
	var buf bytes.Buffer
	err := chart.PlotLines(&buf, chart.LinePlot{
		Title: fmt.Sprintf("Daily prices in %s (%s), %d-day moving average", sel.City, sel.Year, window),
		Series: []chart.Series{
			{Name: model.Petrol.String(), Values: stats.MovingAverage(stats.FuelValues(points, model.Petrol), window)},
			{Name: model.Diesel.String(), Values: stats.MovingAverage(stats.FuelValues(points, model.Diesel), window)},
		},
		Width:  width,
		Height: trendHeight,
		Color:  true,
	})
	if err != nil {
		return fmt.Sprintf("Failed to render trend: %v", err)
	}
	if buf.Len() == 0 {
		return "No positive prices for this selection."
	}
	return strings.TrimRight(buf.String(), "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func monthValue(v float64, month int) string {
	if month < 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", chart.FormatRupees(v), model.MonthLabels[month])
}

func buildMonthTable(series model.MonthlySeries, height int) table.Model {
	t := table.New(
		table.WithColumns(monthColumns()),
		table.WithRows(monthRows(series)),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetStyles(monthTableStyles())
	return t
}

func monthColumns() []table.Column {
	return []table.Column{
		{Title: "Month", Width: 6},
		{Title: "Average", Width: 10},
		{Title: "vs prev", Width: 9},
	}
}

func monthRows(series model.MonthlySeries) []table.Row {
	rows := make([]table.Row, 0, len(series))
	prev := 0.0
	for i, v := range series {
		delta := "-"
		if v > 0 && prev > 0 {
			delta = fmt.Sprintf("%+.2f", v-prev)
		}
		if v > 0 {
			prev = v
		}
		rows = append(rows, table.Row{model.MonthLabels[i], chart.FormatPrice(v), delta})
	}
	return rows
}

func monthTableStyles() table.Styles {
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

func nextTrendWindow(n int) int {
	if n < 7 {
		return 7
	}
	return n + 7
}

func prevTrendWindow(n int) int {
	if n <= 7 {
		return 1
	}
	return n - 7
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
