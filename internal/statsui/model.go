// Package statsui provides the Bubble Tea analysis interface.
package statsui

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/stats"
)

const (
	tabOverview = iota
	tabExams
	tabWrong
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	answerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB77E"))
	examTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

// CloseMsg is emitted instead of quitting when the model is embedded.
type CloseMsg struct{}

// Model implements the Bubble Tea analysis UI.
type Model struct {
	analysis stats.Analysis
	wrong    []model.Question
	embedded bool

	tabs      []string
	activeTab int
	viewports []viewport.Model
	examTable table.Model

	width  int
	height int

	filterMode  bool
	filterInput textinput.Model
	examFilter  string
}

// Option configures a Model.
type Option func(*Model)

// Embedded makes q and esc emit CloseMsg instead of quitting the program.
func Embedded() Option {
	return func(m *Model) {
		m.embedded = true
	}
}

// NewModel constructs an analysis UI over a and the wrong-question set.
func NewModel(a stats.Analysis, wrong []model.Question, opts ...Option) *Model {
	m := &Model{
		analysis: a,
		wrong:    append([]model.Question(nil), wrong...),
		tabs:     []string{"Overview", "Exams", "Wrong Questions"},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.filterInput = textinput.New()
	m.filterInput.Prompt = "Exam: "
	m.filterInput.Placeholder = "all"
	m.filterInput.Cursor.SetMode(cursor.CursorBlink)
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	m.examTable = buildExamTable(a, 80, 10)
	m.renderTabContents()
	return m
}

// SetSize lays the model out for an embedding parent.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.updateLayout()
	m.renderTabContents()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q", "esc":
			if m.embedded {
				return m, func() tea.Msg { return CloseMsg{} }
			}
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, nil
		case "right", "l", "tab":
			m.moveTab(1)
			return m, nil
		case "/":
			if m.activeTab == tabWrong {
				m.filterMode = true
				m.filterInput.SetValue(m.examFilter)
				return m, m.filterInput.Focus()
			}
			return m, nil
		case "g", "home":
			if m.activeTab == tabExams {
				m.examTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabExams {
				m.examTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabExams {
				var cmd tea.Cmd
				m.examTable, cmd = m.examTable.Update(msg)
				return m, cmd
			}
			var cmd tea.Cmd
			m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(padLines(m.renderTabs(), m.width), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = lipgloss.Height(activeNavStyle.Render("X"))
	footerHeight = 1
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
	m.examTable.SetWidth(m.width)
	m.examTable.SetHeight(maxInt(1, bodyHeight-1))
	m.filterInput.Width = maxInt(10, m.width-lipgloss.Width(m.filterInput.Prompt)-2)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := (m.activeTab + delta + count) % count
	m.activeTab = next
	if m.activeTab == tabExams {
		m.examTable.Focus()
	} else {
		m.examTable.Blur()
	}
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.filterMode = false
		m.filterInput.Blur()
		m.examFilter = strings.TrimSpace(m.filterInput.Value())
		m.renderTabContents()
		m.viewports[tabWrong].GotoTop()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
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

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.filterInput.View()
	}
	quit := "Quit: q"
	if m.embedded {
		quit = "Back: esc"
	}
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  " + quit
	if m.activeTab == tabWrong {
		help = "Nav: left/right  Scroll: up/down  Filter exam: /  " + quit
	}
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderBody() string {
	if m.activeTab == tabExams {
		if m.analysis.Empty() {
			return "No practice records yet."
		}
		return tableMutedStyle.Render(m.examTable.View())
	}
	return m.viewports[m.activeTab].View()
}

func (m *Model) renderTabContents() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.analysis, width))
	m.viewports[tabWrong].SetContent(renderWrongQuestions(m.wrong, m.examFilter, width))
	m.examTable.SetRows(examRows(m.analysis))
}

func renderOverview(a stats.Analysis, width int) string {
	if a.Empty() {
		return "No practice records yet."
	}
	cards := []string{
		metricCard("Answered", fmt.Sprintf("%d", a.Answered)),
		metricCard("Correct", fmt.Sprintf("%d", a.Correct)),
		metricCard("Mean Acc", fmt.Sprintf("%.1f%%", a.MeanAccuracy)),
		metricCard("To Review", fmt.Sprintf("%d", a.WrongTotal)),
	}
	summary := strings.Join(cards, "\n")
	if width >= 60 {
		summary = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}

	bars := make([]stats.Bar, 0, len(a.Rows))
	for _, r := range a.Rows {
		bars = append(bars, stats.Bar{Label: model.ExamLabel(r.ExamID), Percent: r.Percent})
	}
	var buf bytes.Buffer
	if err := stats.PlotBars(&buf, "Accuracy by exam", bars, width, true); err != nil {
		return summary + "\n\n" + fmt.Sprintf("Failed to render accuracy: %v", err)
	}
	return strings.TrimRight(summary+"\n\n"+buf.String(), "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderWrongQuestions(wrong []model.Question, examFilter string, width int) string {
	groups := map[string][]model.Question{}
	for _, q := range wrong {
		key := q.ExamID.Key()
		if examFilter != "" && key != examFilter {
			continue
		}
		groups[key] = append(groups[key], q)
	}
	if len(groups) == 0 {
		if examFilter != "" {
			return fmt.Sprintf("No wrong questions for %s.", model.ExamLabel(examFilter))
		}
		return "No wrong questions. Nice work."
	}
	exams := make([]string, 0, len(groups))
	for exam := range groups {
		exams = append(exams, exam)
	}
	model.SortExamIDs(exams)

	textStyle := lipgloss.NewStyle().Width(maxInt(20, width-4))
	var b strings.Builder
	for _, exam := range exams {
		qs := groups[exam]
		b.WriteString(examTitleStyle.Render(fmt.Sprintf("%s (%d)", model.ExamLabel(exam), len(qs))))
		b.WriteString("\n")
		for _, q := range qs {
			title := q.Label
			if title == "" {
				title = q.ID
			}
			b.WriteString(headerStyle.Render(fmt.Sprintf("Part %d · %s", q.Part, title)))
			b.WriteString("\n")
			if strings.TrimSpace(q.Text) != "" {
				b.WriteString(textStyle.Render(q.Text))
				b.WriteString("\n")
			}
			for _, opt := range sortedOptions(q.Options) {
				line := fmt.Sprintf("  %s. %s", opt.Key, opt.Text)
				if opt.Key == q.Answer {
					line = answerStyle.Render(line + "  ✓")
				}
				b.WriteString(line)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortedOptions(opts []model.Option) []model.Option {
	out := append([]model.Option(nil), opts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

func buildExamTable(a stats.Analysis, width, height int) table.Model {
	columns := []table.Column{
		{Title: "Exam", Width: 14},
		{Title: "Answered", Width: 9},
		{Title: "Correct", Width: 8},
		{Title: "Wrong", Width: 6},
		{Title: "Accuracy", Width: 9},
		{Title: "To Review", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(examRows(a)),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(tableStyles())
	return t
}

func examRows(a stats.Analysis) []table.Row {
	cells := stats.TableRows(a)
	rows := make([]table.Row, 0, len(cells))
	for _, c := range cells {
		rows = append(rows, table.Row(c))
	}
	return rows
}

func tableStyles() table.Styles {
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
