// Package tui provides the Bubble Tea quiz interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuiquiz/internal/app"
	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/session"
	"github.com/verte-zerg/tuiquiz/internal/stats"
	"github.com/verte-zerg/tuiquiz/internal/statsui"
)

type view int

const (
	viewMenu view = iota
	viewExamSelect
	viewQuestion
	viewSummary
	viewAnalysis
	viewUsers
	viewAddUser
	viewConfirm
)

type examPurpose int

const (
	examForPractice examPurpose = iota
	examForReview
)

type menuItem struct {
	label  string
	action func(m *Model) tea.Cmd
}

type confirmAction struct {
	prompt string
	run    func(ctx context.Context) error
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	rightAnswerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB77E"))
	selectedStyle    = currentWordStyle.Copy().Bold(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

// Options configures the quiz UI.
type Options struct {
	// ShowTranslation reveals option translations once a question is answered.
	ShowTranslation bool
}

// Model implements the Bubble Tea quiz UI. It is also the app's Presenter.
type Model struct {
	app  *app.App
	opts Options
	ctx  context.Context

	width  int
	height int

	stack  []view
	cursor int
	status string

	purpose  examPurpose
	exams    []string
	question app.QuestionView
	summary  app.SummaryView
	analysis *statsui.Model
	wrong    []model.Question
	users    []model.User
	userID   string
	confirm  confirmAction
	input    textinput.Model
}

// NewModel constructs the quiz UI over a and registers it as a's presenter.
// A round already in progress is shown immediately.
func NewModel(ctx context.Context, a *app.App, opts Options) *Model {
	input := textinput.New()
	input.Prompt = "Name: "
	input.Placeholder = "new user"
	input.CharLimit = 40
	input.Cursor.SetMode(cursor.CursorBlink)

	m := &Model{
		app:   a,
		opts:  opts,
		ctx:   ctx,
		stack: []view{viewMenu},
		input: input,
	}
	a.SetPresenter(m)
	m.userID = a.CurrentUser().ID
	a.Present()
	return m
}

// ShowQuestion implements app.Presenter.
func (m *Model) ShowQuestion(v app.QuestionView) {
	m.question = v
	m.show(viewQuestion)
}

// ShowSummary implements app.Presenter.
func (m *Model) ShowSummary(v app.SummaryView) {
	m.summary = v
	m.show(viewSummary)
}

// ShowAnalysis implements app.Presenter.
func (m *Model) ShowAnalysis(a stats.Analysis) {
	m.analysis = statsui.NewModel(a, m.wrong, statsui.Embedded())
	if m.width > 0 {
		m.analysis.SetSize(m.width, m.bodyHeight())
	}
	m.push(viewAnalysis)
}

// ShowUserList implements app.Presenter.
func (m *Model) ShowUserList(list []model.User, currentID string) {
	m.users = list
	m.userID = currentID
	if m.top() == viewUsers && m.cursor >= len(list) {
		m.cursor = maxInt(0, len(list)-1)
	}
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
		m.input.Width = maxInt(10, m.contentWidth()-lipgloss.Width(m.input.Prompt)-1)
		if m.analysis != nil {
			m.analysis.SetSize(m.width, m.bodyHeight())
		}
		return m, nil
	case statsui.CloseMsg:
		m.pop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.flush()
			return m, tea.Quit
		}
		m.status = ""
		switch m.top() {
		case viewMenu:
			return m, m.updateMenu(msg)
		case viewExamSelect:
			return m, m.updateExamSelect(msg)
		case viewQuestion:
			return m, m.updateQuestion(msg)
		case viewSummary:
			return m, m.updateSummary(msg)
		case viewAnalysis:
			_, cmd := m.analysis.Update(msg)
			return m, cmd
		case viewUsers:
			return m, m.updateUsers(msg)
		case viewAddUser:
			return m, m.updateAddUser(msg)
		case viewConfirm:
			return m, m.updateConfirm(msg)
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch m.top() {
	case viewMenu:
		content = m.renderMenu()
	case viewExamSelect:
		content = m.renderExamSelect()
	case viewQuestion:
		content = m.renderQuestion()
	case viewSummary:
		content = m.renderSummary()
	case viewAnalysis:
		if m.width > 0 && m.height > 0 {
			return m.analysis.View() + "\n" + m.renderStatus()
		}
		content = ""
	case viewUsers:
		content = m.renderUsers()
	case viewAddUser:
		content = titleStyle.Render("Add user") + "\n\n" + m.input.View()
	case viewConfirm:
		content = m.confirm.prompt + "\n\n" + footerStyle.Render("y: confirm  n/esc: cancel")
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	content = lipgloss.NewStyle().Width(m.contentWidth()).Render(content)
	footer := m.renderFooter()
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) contentWidth() int {
	w := int(float64(m.width) * 0.70)
	if w < 1 {
		w = 1
	}
	return w
}

func (m *Model) bodyHeight() int {
	return maxInt(1, m.height-1)
}

func (m *Model) top() view {
	return m.stack[len(m.stack)-1]
}

func (m *Model) push(v view) {
	if m.top() != v {
		m.stack = append(m.stack, v)
	}
	m.cursor = 0
}

func (m *Model) pop() {
	if len(m.stack) > 1 {
		m.stack = m.stack[:len(m.stack)-1]
	}
	m.cursor = 0
}

// show makes v the only view above the menu.
func (m *Model) show(v view) {
	if m.top() == v {
		return
	}
	m.stack = []view{viewMenu, v}
	m.cursor = 0
}

func (m *Model) fail(err error) {
	if err != nil {
		m.status = err.Error()
	}
}

func (m *Model) flush() {
	m.fail(m.app.Flush(m.ctx))
}

func (m *Model) menuItems() []menuItem {
	items := []menuItem{}
	if st := m.app.State(); st.Phase == session.InRound {
		items = append(items, menuItem{label: "Continue: " + st.DisplayLabel(), action: func(m *Model) tea.Cmd {
			m.app.Present()
			return nil
		}})
	}
	items = append(items,
		menuItem{label: "All Practice", action: func(m *Model) tea.Cmd {
			m.fail(m.app.StartAll(m.ctx))
			return nil
		}},
		menuItem{label: "Single Exam", action: func(m *Model) tea.Cmd {
			m.openExamSelect(examForPractice)
			return nil
		}},
		menuItem{label: fmt.Sprintf("Wrong Review (%d)", len(m.app.Data().WrongQuestions)), action: func(m *Model) tea.Cmd {
			m.startReview("")
			return nil
		}},
		menuItem{label: "Review by Exam", action: func(m *Model) tea.Cmd {
			m.openExamSelect(examForReview)
			return nil
		}},
		menuItem{label: "Analysis", action: func(m *Model) tea.Cmd {
			m.wrong = m.app.Data().WrongQuestions
			m.app.Analysis()
			return nil
		}},
		menuItem{label: "Users", action: func(m *Model) tea.Cmd {
			m.app.Users()
			m.push(viewUsers)
			m.cursor = indexOfUser(m.users, m.userID)
			return nil
		}},
		menuItem{label: "Clear History", action: func(m *Model) tea.Cmd {
			name := m.app.CurrentUser().Name
			m.ask(fmt.Sprintf("Clear all practice history of %s?", name), m.app.ClearHistory)
			return nil
		}},
		menuItem{label: "Quit", action: func(m *Model) tea.Cmd {
			m.flush()
			return tea.Quit
		}},
	)
	return items
}

func (m *Model) startReview(examID string) {
	if len(m.app.Data().WrongQuestions) == 0 {
		m.status = "No wrong questions to review."
		return
	}
	m.fail(m.app.StartReview(m.ctx, examID))
}

func (m *Model) openExamSelect(p examPurpose) {
	if m.app.Bank() == nil {
		m.fail(app.ErrBankNotLoaded)
		return
	}
	m.purpose = p
	if p == examForReview {
		m.exams = wrongExams(m.app.Data().WrongQuestions)
		if len(m.exams) == 0 {
			m.status = "No wrong questions to review."
			return
		}
	} else {
		m.exams = m.app.ExamIDs()
	}
	m.push(viewExamSelect)
}

func (m *Model) ask(prompt string, run func(ctx context.Context) error) {
	m.confirm = confirmAction{prompt: prompt, run: run}
	m.push(viewConfirm)
}

func (m *Model) updateMenu(msg tea.KeyMsg) tea.Cmd {
	items := m.menuItems()
	switch msg.String() {
	case "q", "esc":
		m.flush()
		return tea.Quit
	case "up", "k":
		m.cursor = (m.cursor - 1 + len(items)) % len(items)
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(items)
	case "enter", " ":
		if m.cursor >= len(items) {
			m.cursor = 0
		}
		return items[m.cursor].action(m)
	}
	return nil
}

func (m *Model) updateExamSelect(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "q":
		m.pop()
	case "up", "k":
		if len(m.exams) > 0 {
			m.cursor = (m.cursor - 1 + len(m.exams)) % len(m.exams)
		}
	case "down", "j":
		if len(m.exams) > 0 {
			m.cursor = (m.cursor + 1) % len(m.exams)
		}
	case "enter", " ":
		if m.cursor >= len(m.exams) {
			return nil
		}
		exam := m.exams[m.cursor]
		if m.purpose == examForReview {
			m.startReview(exam)
		} else {
			m.fail(m.app.StartExam(m.ctx, exam))
		}
	}
	return nil
}

func (m *Model) updateQuestion(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	switch key {
	case "esc", "q":
		m.flush()
		m.stack = []view{viewMenu}
		m.cursor = 0
		return nil
	case "enter", "n", "right":
		if !m.question.Answered {
			return nil
		}
		m.fail(m.app.Next(m.ctx))
		return nil
	case "s":
		m.fail(m.app.Next(m.ctx))
		return nil
	}
	if m.question.Answered {
		return nil
	}
	if choice, ok := optionForKey(m.question.Question.Options, key); ok {
		_, err := m.app.Answer(m.ctx, choice)
		m.fail(err)
	}
	return nil
}

func (m *Model) updateSummary(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter", "esc", "q", " ":
		m.stack = []view{viewMenu}
		m.cursor = 0
	case "r":
		m.startReview("")
	}
	return nil
}

func (m *Model) updateUsers(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "q":
		m.pop()
	case "up", "k":
		if len(m.users) > 0 {
			m.cursor = (m.cursor - 1 + len(m.users)) % len(m.users)
		}
	case "down", "j":
		if len(m.users) > 0 {
			m.cursor = (m.cursor + 1) % len(m.users)
		}
	case "enter", " ":
		if m.cursor < len(m.users) {
			m.fail(m.app.SwitchUser(m.ctx, m.users[m.cursor].ID))
			m.stack = []view{viewMenu, viewUsers}
			m.cursor = indexOfUser(m.users, m.userID)
		}
	case "a":
		m.input.SetValue("")
		m.push(viewAddUser)
		return m.input.Focus()
	case "d", "x":
		if m.cursor >= len(m.users) {
			return nil
		}
		target := m.users[m.cursor]
		m.ask(fmt.Sprintf("Delete user %s and all of their records?", target.Name), func(ctx context.Context) error {
			return m.app.DeleteUser(ctx, target.ID)
		})
	}
	return nil
}

func (m *Model) updateAddUser(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.input.Blur()
		m.pop()
		return nil
	case tea.KeyEnter:
		name := m.input.Value()
		_, err := m.app.AddUser(m.ctx, name)
		if err != nil && errors.Is(err, model.ErrValidation) {
			m.fail(err)
			return nil
		}
		m.fail(err)
		m.input.Blur()
		m.stack = []view{viewMenu, viewUsers}
		m.cursor = indexOfUser(m.users, m.userID)
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		m.pop()
		back := append([]view(nil), m.stack...)
		m.fail(m.confirm.run(m.ctx))
		m.confirm = confirmAction{}
		// A resumed round must not pull the user out of the panel they came from.
		m.stack = back
		m.cursor = 0
		if m.top() == viewUsers {
			m.cursor = indexOfUser(m.users, m.userID)
		}
	case "n", "N", "esc", "q":
		m.pop()
		m.confirm = confirmAction{}
	}
	return nil
}

func (m *Model) renderMenu() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("tuiquiz"))
	b.WriteString("  ")
	b.WriteString(footerStyle.Render("User: " + m.app.CurrentUser().Name))
	if m.app.Bank() == nil {
		b.WriteString("  ")
		b.WriteString(statusStyle.Render("No questions loaded"))
	}
	b.WriteString("\n\n")
	for i, item := range m.menuItems() {
		b.WriteString(renderChoice(item.label, i == m.cursor))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderExamSelect() string {
	title := "Choose an exam"
	if m.purpose == examForReview {
		title = "Review wrong questions of"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	for i, exam := range m.visibleExams() {
		b.WriteString(renderChoice(model.ExamLabel(exam), i+m.examOffset() == m.cursor))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// visibleExams windows the exam list around the cursor.
func (m *Model) visibleExams() []string {
	off := m.examOffset()
	end := minInt(len(m.exams), off+m.listHeight())
	return m.exams[off:end]
}

func (m *Model) examOffset() int {
	h := m.listHeight()
	if m.cursor < h {
		return 0
	}
	return m.cursor - h + 1
}

func (m *Model) listHeight() int {
	if m.height <= 0 {
		return len(m.exams) + 1
	}
	return maxInt(1, m.height-6)
}

func (m *Model) renderQuestion() string {
	v := m.question
	q := v.Question
	width := m.contentWidth()
	if m.width == 0 {
		width = 0
	}

	var b strings.Builder
	header := fmt.Sprintf("%s  %d/%d  %s · Part %d", v.Label, v.Index+1, v.Total, model.ExamLabel(q.ExamID.Key()), q.Part)
	b.WriteString(footerStyle.Render(header))
	b.WriteString("\n")
	if q.Label != "" {
		b.WriteString(titleStyle.Render(q.Label))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if strings.TrimSpace(q.Text) != "" {
		b.WriteString(wrapText(q.Text, correctStyle, width))
		b.WriteString("\n\n")
	}
	for _, opt := range q.Options {
		b.WriteString(wrapText(opt.Key+". "+opt.Text, optionStyle(v, opt.Key), width))
		b.WriteString("\n")
		if v.Answered && m.opts.ShowTranslation {
			if tr := translationFor(q, opt.Key); tr != "" {
				b.WriteString(wrapText("   "+tr, footerStyle, width))
				b.WriteString("\n")
			}
		}
	}
	if v.Answered {
		b.WriteString("\n")
		if v.Correct {
			b.WriteString(rightAnswerStyle.Render("Correct!"))
		} else {
			b.WriteString(incorrectStyle.Render(fmt.Sprintf("Wrong. The answer is %s.", q.Answer)))
		}
		if m.opts.ShowTranslation && len(q.Translation) == 0 && strings.TrimSpace(q.TranslationRaw) != "" {
			b.WriteString("\n")
			b.WriteString(wrapText(q.TranslationRaw, footerStyle, width))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func translationFor(q model.Question, key string) string {
	if tr, ok := q.Translation[key]; ok {
		return strings.TrimSpace(tr)
	}
	return strings.TrimSpace(q.Translation[strings.ToUpper(key)])
}

func optionStyle(v app.QuestionView, key string) lipgloss.Style {
	if !v.Answered {
		return correctStyle
	}
	switch {
	case key == v.Question.Answer:
		return rightAnswerStyle
	case key == v.Chosen:
		return incorrectStyle
	default:
		return pendingStyle
	}
}

func (m *Model) renderSummary() string {
	s := m.summary.Summary
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.summary.Label + " complete"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Total %d  Correct %d  Wrong %d  Accuracy %d%%", s.Total, s.Correct, s.Wrong, s.Percent))
	b.WriteString("\n")
	if len(m.summary.Wrong) > 0 {
		b.WriteString("\n")
		b.WriteString(footerStyle.Render("Missed this round:"))
		b.WriteString("\n")
		for _, q := range m.summary.Wrong {
			line := fmt.Sprintf("%s · Part %d · %s  answer %s", model.ExamLabel(q.ExamID.Key()), q.Part, q.Label, q.Answer)
			b.WriteString(truncateLine(line, m.contentWidth()))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderUsers() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Users"))
	b.WriteString("\n\n")
	for i, u := range m.users {
		label := u.Name
		if u.ID == m.userID {
			label += "  (current)"
		}
		b.WriteString(renderChoice(label, i == m.cursor))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	return statusStyle.Render(truncateLine(m.status, m.width))
}

func (m *Model) renderFooter() string {
	if m.status != "" {
		return m.renderStatus()
	}
	var segments []string
	switch m.top() {
	case viewQuestion:
		v := m.question
		progress := 0
		if v.Total > 0 {
			progress = int(float64(v.Index) / float64(v.Total) * 100)
		}
		st := m.app.State()
		segments = append(segments,
			fmt.Sprintf("Progress %d%%", progress),
			fmt.Sprintf("Round %d/%d wrong", st.Wrongs(), st.Answers()),
		)
		if v.Answered {
			segments = append(segments, "Next: enter")
		} else {
			segments = append(segments, "Answer: a-d", "Skip: s")
		}
		segments = append(segments, "Menu: esc")
	case viewSummary:
		segments = append(segments, "Menu: enter", "Review wrong: r")
	case viewUsers:
		segments = append(segments, "Switch: enter", "Add: a", "Delete: d", "Back: esc")
	case viewExamSelect:
		segments = append(segments, "Start: enter", "Back: esc")
	case viewAddUser:
		segments = append(segments, "Save: enter", "Cancel: esc")
	case viewMenu:
		segments = append(segments, "User "+m.app.CurrentUser().Name, "Select: enter", "Quit: q")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func renderChoice(label string, selected bool) string {
	if selected {
		return selectedStyle.Render("> " + label)
	}
	return correctStyle.Render("  " + label)
}

// optionForKey maps a key press to an option key: the option letter in
// either case, or its 1-based position.
func optionForKey(opts []model.Option, key string) (string, bool) {
	for i, opt := range opts {
		if strings.EqualFold(opt.Key, key) || key == fmt.Sprintf("%d", i+1) {
			return opt.Key, true
		}
	}
	return "", false
}

func wrongExams(wrong []model.Question) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, q := range wrong {
		key := q.ExamID.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	model.SortExamIDs(out)
	return out
}

func indexOfUser(list []model.User, id string) int {
	for i, u := range list {
		if u.ID == id {
			return i
		}
	}
	return 0
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
