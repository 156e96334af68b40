package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/verte-zerg/tuiquiz/internal/bank"
	"github.com/verte-zerg/tuiquiz/internal/generator"
	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/session"
	"github.com/verte-zerg/tuiquiz/internal/stats"
	"github.com/verte-zerg/tuiquiz/internal/store"
	"github.com/verte-zerg/tuiquiz/internal/users"
)

type recorder struct {
	questions []QuestionView
	summaries []SummaryView
	analyses  []stats.Analysis
	userLists [][]model.User
	currentID string
}

func (r *recorder) ShowQuestion(v QuestionView) {
	r.questions = append(r.questions, v)
}

func (r *recorder) ShowSummary(v SummaryView) {
	r.summaries = append(r.summaries, v)
}

func (r *recorder) ShowAnalysis(a stats.Analysis) {
	r.analyses = append(r.analyses, a)
}

func (r *recorder) ShowUserList(list []model.User, currentID string) {
	r.userLists = append(r.userLists, list)
	r.currentID = currentID
}

func (r *recorder) lastQuestion(t *testing.T) QuestionView {
	t.Helper()
	if len(r.questions) == 0 {
		t.Fatalf("no question shown")
	}
	return r.questions[len(r.questions)-1]
}

func testBank(t *testing.T) *bank.Bank {
	t.Helper()
	var qs []model.Question
	for exam := 1; exam <= 2; exam++ {
		for i := 1; i <= 3; i++ {
			qs = append(qs, model.Question{
				ID:      fmt.Sprintf("e%d-q%d", exam, i),
				ExamID:  model.ExamID(fmt.Sprint(exam)),
				Text:    "question",
				Options: []model.Option{{Key: "A"}, {Key: "B"}},
				Answer:  "A",
			})
		}
	}
	b, err := bank.New(qs)
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	return b
}

type harness struct {
	kv  *store.Memory
	rec *recorder
	app *App
}

func newHarness(t *testing.T, kv *store.Memory) *harness {
	t.Helper()
	rec := &recorder{}
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	a := New(kv, rec, WithGenerator(generator.NewWithSeed(1)), WithClock(func() time.Time { return clock }))
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return &harness{kv: kv, rec: rec, app: a}
}

func TestStartBeforeBankFails(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	ctx := context.Background()
	if err := h.app.StartAll(ctx); !errors.Is(err, ErrBankNotLoaded) {
		t.Fatalf("expected ErrBankNotLoaded, got %v", err)
	}
	if err := h.app.StartExam(ctx, "1"); !errors.Is(err, ErrBankNotLoaded) {
		t.Fatalf("expected ErrBankNotLoaded, got %v", err)
	}
	if err := h.app.StartReview(ctx, ""); !errors.Is(err, ErrBankNotLoaded) {
		t.Fatalf("expected ErrBankNotLoaded, got %v", err)
	}
}

func TestExamRoundFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, store.NewMemory())
	if _, err := h.app.SetBank(ctx, testBank(t)); err != nil {
		t.Fatalf("set bank: %v", err)
	}
	if err := h.app.StartExam(ctx, "2"); err != nil {
		t.Fatalf("start exam: %v", err)
	}
	v := h.rec.lastQuestion(t)
	if v.Question.ID != "e2-q1" || v.Total != 3 || v.Label != "Exam 2" || v.Answered {
		t.Fatalf("unexpected first question: %+v", v)
	}

	for i, key := range []string{"A", "B", "A"} {
		if _, err := h.app.Answer(ctx, key); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if v := h.rec.lastQuestion(t); !v.Answered || v.Chosen != key {
			t.Fatalf("expected answered view, got %+v", v)
		}
		if err := h.app.Next(ctx); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}
	if len(h.rec.summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(h.rec.summaries))
	}
	sum := h.rec.summaries[0]
	if sum.Summary.Total != 3 || sum.Summary.Wrong != 1 || len(sum.Wrong) != 1 || sum.Wrong[0].ID != "e2-q2" {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	a := h.app.Analysis()
	row, ok := a.Row("2")
	if !ok || row.Total != 3 || row.Wrong != 1 || row.Percent != 67 {
		t.Fatalf("unexpected analysis row: %+v", row)
	}
	if len(h.rec.analyses) != 1 {
		t.Fatalf("expected analysis presented")
	}
}

func TestAnalysisIncludesLiveRound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, store.NewMemory())
	_, _ = h.app.SetBank(ctx, testBank(t))
	_ = h.app.StartAll(ctx)
	_, _ = h.app.Answer(ctx, "B")

	a := h.app.Analysis()
	if a.Answered != 1 || a.WrongTotal != 1 {
		t.Fatalf("expected live answer in analysis, got %+v", a)
	}
	if stored := h.app.records.LoadUserData(ctx, h.app.CurrentUser().ID); len(stored.ExamStats) != 0 {
		t.Fatalf("expected stats uncommitted mid-round")
	}
}

func TestReviewUsesWrongSet(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, store.NewMemory())
	_, _ = h.app.SetBank(ctx, testBank(t))
	_ = h.app.StartAll(ctx)
	for i := 0; i < 6; i++ {
		key := "A"
		if i%2 == 0 {
			key = "B"
		}
		_, _ = h.app.Answer(ctx, key)
		_ = h.app.Next(ctx)
	}
	if got := len(h.app.Data().WrongQuestions); got != 3 {
		t.Fatalf("expected 3 wrong questions, got %d", got)
	}

	if err := h.app.StartReview(ctx, "1"); err != nil {
		t.Fatalf("review: %v", err)
	}
	st := h.app.State()
	if st.Mode != model.ModeWrongReview || st.DisplayLabel() != "Wrong Review: Exam 1" {
		t.Fatalf("unexpected review round: %+v", st)
	}
	for _, q := range st.Set {
		if q.ExamID.Key() != "1" {
			t.Fatalf("expected only exam 1 questions, got %s", q.ID)
		}
	}

	if err := h.app.StartReview(ctx, "9"); err != nil {
		t.Fatalf("review: %v", err)
	}
	if h.app.State().Phase != session.RoundComplete {
		t.Fatalf("expected empty review to complete immediately")
	}
}

func TestSwitchUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, store.NewMemory())
	_, _ = h.app.SetBank(ctx, testBank(t))
	first := h.app.CurrentUser()

	_ = h.app.StartExam(ctx, "1")
	_, _ = h.app.Answer(ctx, "B")
	_ = h.app.Next(ctx)

	second, err := h.app.AddUser(ctx, "Second")
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if h.app.CurrentUser().ID != second.ID || h.app.State().Phase != session.Idle {
		t.Fatalf("expected fresh idle state for new user")
	}
	if len(h.app.Data().WrongQuestions) != 0 {
		t.Fatalf("expected empty records for new user")
	}
	if h.rec.currentID != second.ID {
		t.Fatalf("expected user list presented with new current user")
	}

	if err := h.app.SwitchUser(ctx, first.ID); err != nil {
		t.Fatalf("switch: %v", err)
	}
	st := h.app.State()
	if st.Phase != session.InRound || st.Index != 1 || st.PerExamWrongs["1"] != 1 {
		t.Fatalf("expected first user's round resumed, got phase=%v index=%d", st.Phase, st.Index)
	}
	if len(h.app.Data().WrongQuestions) != 1 {
		t.Fatalf("expected first user's wrong set loaded")
	}
	if err := h.app.SwitchUser(ctx, "nobody"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if h.app.CurrentUser().ID != first.ID {
		t.Fatalf("expected unknown switch to keep current user")
	}
}

func TestAddUserRejectsBlankName(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	if _, err := h.app.AddUser(context.Background(), "   "); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if list, _ := h.app.Users(); len(list) != 1 {
		t.Fatalf("expected registry unchanged, got %d users", len(list))
	}
}

func TestDeleteActiveUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, store.NewMemory())
	_, _ = h.app.SetBank(ctx, testBank(t))
	first := h.app.CurrentUser()

	if err := h.app.DeleteUser(ctx, first.ID); !errors.Is(err, users.ErrLastUser) {
		t.Fatalf("expected last user error, got %v", err)
	}
	second, _ := h.app.AddUser(ctx, "Second")
	_ = h.app.StartAll(ctx)
	_, _ = h.app.Answer(ctx, "B")

	if err := h.app.DeleteUser(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if h.app.CurrentUser().ID != first.ID {
		t.Fatalf("expected first user active after delete")
	}
	if h.app.State().Phase != session.Idle {
		t.Fatalf("expected deleted user's round dropped")
	}
	for _, key := range store.UserKeys(second.ID) {
		if _, ok, _ := h.kv.Get(ctx, key); ok {
			t.Fatalf("expected %s purged", key)
		}
	}
}

func TestClearHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, store.NewMemory())
	_, _ = h.app.SetBank(ctx, testBank(t))
	_ = h.app.StartAll(ctx)
	_, _ = h.app.Answer(ctx, "B")

	if err := h.app.ClearHistory(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(h.app.Data().WrongQuestions) != 0 || h.app.State().Phase != session.Idle {
		t.Fatalf("expected cleared state")
	}
	if !h.app.Analysis().Empty() {
		t.Fatalf("expected empty analysis after clear")
	}
}

func TestRestartResumesRound(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	h := newHarness(t, kv)
	_, _ = h.app.SetBank(ctx, testBank(t))
	_ = h.app.StartAll(ctx)
	_, _ = h.app.Answer(ctx, "A")
	_ = h.app.Next(ctx)
	_, _ = h.app.Answer(ctx, "B")

	again := newHarness(t, kv)
	resumed, err := again.app.SetBank(ctx, testBank(t))
	if err != nil || !resumed {
		t.Fatalf("expected resume, got %v %v", resumed, err)
	}
	v := again.rec.lastQuestion(t)
	if v.Index != 1 || !v.Answered || v.Chosen != "B" || v.Correct {
		t.Fatalf("unexpected resumed question view: %+v", v)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, store.NewMemory())
	_, _ = h.app.SetBank(ctx, testBank(t))
	_ = h.app.StartExam(ctx, "1")
	_, _ = h.app.Answer(ctx, "B")

	raw, err := h.app.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	other := newHarness(t, store.NewMemory())
	_, _ = other.app.SetBank(ctx, testBank(t))
	if _, err := other.app.Import(ctx, []byte("{broken")); !errors.Is(err, model.ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
	if _, err := other.app.Import(ctx, raw); err != nil {
		t.Fatalf("import: %v", err)
	}
	if other.app.CurrentUser().ID != h.app.CurrentUser().ID {
		t.Fatalf("expected imported current user")
	}
	st := other.app.State()
	if st.Phase != session.InRound || st.PerExamWrongs["1"] != 1 || !st.Answered {
		t.Fatalf("expected imported round resumed, got %+v", st)
	}
	if len(other.app.Data().WrongQuestions) != 1 {
		t.Fatalf("expected imported wrong set")
	}
}
