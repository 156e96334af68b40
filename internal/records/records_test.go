package records

import (
	"context"
	"errors"
	"testing"

	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/store"
)

func question(id, exam, answer string) model.Question {
	return model.Question{
		ID:     id,
		ExamID: model.ExamID(exam),
		Text:   "question " + id,
		Options: []model.Option{
			{Key: "A", Text: "first"},
			{Key: "B", Text: "second"},
		},
		Answer: answer,
	}
}

func TestRecordWrongAnswerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())

	added, err := s.RecordWrongAnswer(ctx, "u1", question("q1", "1", "A"))
	if err != nil || !added {
		t.Fatalf("expected first record to be added, got added=%v err=%v", added, err)
	}
	added, err = s.RecordWrongAnswer(ctx, "u1", question("q1", "1", "A"))
	if err != nil || added {
		t.Fatalf("expected duplicate to be ignored, got added=%v err=%v", added, err)
	}
	if got := len(s.LoadUserData(ctx, "u1").WrongQuestions); got != 1 {
		t.Fatalf("expected 1 wrong question, got %d", got)
	}
	if got := len(s.LoadUserData(ctx, "u2").WrongQuestions); got != 0 {
		t.Fatalf("expected records namespaced by user, got %d", got)
	}
}

func TestCommitRoundStatsIsAdditive(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())

	if err := s.CommitRoundStats(ctx, "u1", map[string]int{"1": 2, "2": 3}, map[string]int{"1": 1}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.CommitRoundStats(ctx, "u1", map[string]int{"1": 4}, map[string]int{"1": 2}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	stats := s.LoadUserData(ctx, "u1").ExamStats
	if got := stats["1"]; got != (model.ExamStats{Total: 6, Correct: 3, Wrong: 3}) {
		t.Fatalf("unexpected exam 1 stats: %+v", got)
	}
	if got := stats["2"]; got != (model.ExamStats{Total: 3, Correct: 3, Wrong: 0}) {
		t.Fatalf("unexpected exam 2 stats: %+v", got)
	}
}

func TestLoadUserDataDegradesOnCorruptRecords(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	_ = kv.Set(ctx, store.UserKey("u1", store.WrongQuestions), "not json")
	_ = kv.Set(ctx, store.UserKey("u1", store.ExamStats), "[1,2]")
	data := New(kv).LoadUserData(ctx, "u1")
	if len(data.WrongQuestions) != 0 || len(data.ExamStats) != 0 {
		t.Fatalf("expected empty defaults, got %+v", data)
	}

	// A corrupt set is replaced by the next recorded answer.
	if _, err := New(kv).RecordWrongAnswer(ctx, "u1", question("q1", "1", "A")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := len(New(kv).LoadUserData(ctx, "u1").WrongQuestions); got != 1 {
		t.Fatalf("expected 1 wrong question, got %d", got)
	}
}

func TestRecordWrongAnswerReportsStorageFailure(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	kv.Fail(errors.New("disabled"))
	if _, err := New(kv).RecordWrongAnswer(ctx, "u1", question("q1", "1", "A")); !errors.Is(err, model.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestClearHistoryPurgesAllRecords(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := New(kv)
	_, _ = s.RecordWrongAnswer(ctx, "u1", question("q1", "1", "A"))
	_ = s.CommitRoundStats(ctx, "u1", map[string]int{"1": 1}, map[string]int{"1": 1})
	_ = s.SaveProgress(ctx, "u1", model.Progress{Mode: model.ModeAll, QuestionIDs: []string{"q1"}})
	_, _ = s.RecordWrongAnswer(ctx, "u2", question("q1", "1", "A"))

	if err := s.ClearHistory(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if data := s.Export(ctx, "u1"); len(data.WrongQuestions) != 0 || len(data.ExamStats) != 0 || data.Progress != nil {
		t.Fatalf("expected u1 history cleared, got %+v", data)
	}
	if got := len(s.LoadUserData(ctx, "u2").WrongQuestions); got != 1 {
		t.Fatalf("expected u2 history kept, got %d", got)
	}
}

func TestProgressRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())
	if _, ok := s.LoadProgress(ctx, "u1"); ok {
		t.Fatalf("expected no progress")
	}
	p := model.Progress{Mode: model.ModeSingleExam, CurrentIndex: 2, QuestionIDs: []string{"a", "b", "c"}, Timestamp: 42}
	if err := s.SaveProgress(ctx, "u1", p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok := s.LoadProgress(ctx, "u1")
	if !ok || got.CurrentIndex != 2 || got.Mode != model.ModeSingleExam || len(got.QuestionIDs) != 3 {
		t.Fatalf("unexpected progress: %+v", got)
	}
	if err := s.ClearProgress(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := s.LoadProgress(ctx, "u1"); ok {
		t.Fatalf("expected progress cleared")
	}
}

func TestEntriesDefaults(t *testing.T) {
	entries, err := Entries("u1", model.UserData{})
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected wrong set and stats only, got %d entries", len(entries))
	}
	if entries[0].Value != "[]" || entries[1].Value != "{}" {
		t.Fatalf("unexpected defaults: %+v", entries)
	}
}
