package tui

import (
	"strings"
	"testing"

	"github.com/verte-zerg/tuiquiz/internal/app"
	"github.com/verte-zerg/tuiquiz/internal/model"
)

func TestRenderFooterQuestion(t *testing.T) {
	m := newTestModel(t)
	press(m, "enter")
	if m.top() != viewQuestion {
		t.Fatalf("expected question view, got %v", m.top())
	}
	out := m.renderFooter()
	if !containsAll(out, []string{"Progress 0%", "Round 0/0 wrong", "Answer: a-d", "Menu: esc"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}

	press(m, "b")
	out = m.renderFooter()
	if !containsAll(out, []string{"Round 1/1 wrong", "Next: enter"}) {
		t.Fatalf("footer missing answered segments: %s", out)
	}
}

func TestRenderFooterShowsStatus(t *testing.T) {
	m := newTestModel(t)
	m.status = "storage unavailable"
	if out := m.renderFooter(); !strings.Contains(out, "storage unavailable") {
		t.Fatalf("expected status in footer, got %s", out)
	}
}

func TestOptionStyleAfterAnswer(t *testing.T) {
	v := app.QuestionView{
		Question: model.Question{Answer: "A"},
		Answered: true,
		Chosen:   "B",
	}
	if optionStyle(v, "A").Render("x") != rightAnswerStyle.Render("x") {
		t.Fatalf("expected right answer style for the answer")
	}
	if optionStyle(v, "B").Render("x") != incorrectStyle.Render("x") {
		t.Fatalf("expected incorrect style for the wrong choice")
	}
	if optionStyle(v, "C").Render("x") != pendingStyle.Render("x") {
		t.Fatalf("expected pending style for other options")
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func TestTranslationShownAfterAnswer(t *testing.T) {
	m := newTestModel(t)
	m.opts.ShowTranslation = true
	m.question = app.QuestionView{
		Question: model.Question{
			Text:        "Pick",
			Options:     []model.Option{{Key: "a", Text: "yes"}, {Key: "b", Text: "no"}},
			Answer:      "a",
			Translation: map[string]string{"A": "はい"},
		},
		Total: 1,
	}
	if strings.Contains(m.renderQuestion(), footerStyle.Render("は")) {
		t.Fatalf("expected translation hidden before answering")
	}
	m.question.Answered = true
	m.question.Chosen = "a"
	m.question.Correct = true
	if !strings.Contains(m.renderQuestion(), footerStyle.Render("は")) {
		t.Fatalf("expected translation after answering")
	}
}
