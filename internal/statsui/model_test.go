package statsui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/stats"
)

func sampleData() (stats.Analysis, []model.Question) {
	wrong := []model.Question{
		{ID: "q1", ExamID: "2", Part: 1, Label: "Question 1", Text: "first", Answer: "B",
			Options: []model.Option{{Key: "A", Text: "one"}, {Key: "B", Text: "two"}}},
		{ID: "q9", ExamID: "10", Part: 3, Label: "Question 9", Answer: "A"},
	}
	cumulative := map[string]model.ExamStats{
		"2":  {Total: 4, Correct: 3, Wrong: 1},
		"10": {Total: 2, Correct: 1, Wrong: 1},
	}
	return stats.BuildAnalysis(wrong, cumulative, nil, nil), wrong
}

func TestMoveTabWraps(t *testing.T) {
	a, wrong := sampleData()
	m := NewModel(a, wrong)
	m.moveTab(-1)
	if m.activeTab != tabWrong {
		t.Fatalf("expected wrap to last tab, got %d", m.activeTab)
	}
	m.moveTab(1)
	if m.activeTab != tabOverview {
		t.Fatalf("expected wrap to first tab, got %d", m.activeTab)
	}
}

func TestViewFitsWindow(t *testing.T) {
	a, wrong := sampleData()
	m := NewModel(a, wrong)
	m.Update(tea.WindowSizeMsg{Width: 90, Height: 24})
	out := m.View()
	if got := len(strings.Split(out, "\n")); got != 24 {
		t.Fatalf("expected 24 lines, got %d", got)
	}
	if !strings.Contains(out, "Overview") || !strings.Contains(out, "Answered") {
		t.Fatalf("expected overview content, got %s", out)
	}
}

func TestWrongQuestionsGroupedAndFiltered(t *testing.T) {
	_, wrong := sampleData()
	out := renderWrongQuestions(wrong, "", 80)
	if strings.Index(out, "Exam 2") > strings.Index(out, "Exam 10") {
		t.Fatalf("expected exams in numeric order:\n%s", out)
	}
	if !strings.Contains(out, "B. two") {
		t.Fatalf("expected options listed:\n%s", out)
	}
	filtered := renderWrongQuestions(wrong, "10", 80)
	if strings.Contains(filtered, "Exam 2 ") || !strings.Contains(filtered, "Question 9") {
		t.Fatalf("expected only exam 10:\n%s", filtered)
	}
	if none := renderWrongQuestions(nil, "", 80); !strings.Contains(none, "No wrong questions") {
		t.Fatalf("expected empty message, got %q", none)
	}
}

func TestEmbeddedEscEmitsClose(t *testing.T) {
	a, wrong := sampleData()
	m := NewModel(a, wrong, Embedded())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	if _, ok := cmd().(CloseMsg); !ok {
		t.Fatalf("expected CloseMsg")
	}
}

func TestFilterInputAppliesExam(t *testing.T) {
	a, wrong := sampleData()
	m := NewModel(a, wrong)
	m.activeTab = tabWrong
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if !m.filterMode {
		t.Fatalf("expected filter mode")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("10")})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.filterMode || m.examFilter != "10" {
		t.Fatalf("expected filter 10 applied, got %q (mode %v)", m.examFilter, m.filterMode)
	}
}
