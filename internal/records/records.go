// Package records persists per-user wrong answers, exam stats and round progress.
package records

import (
	"context"
	"errors"

	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/store"
)

// Store accumulates durable practice records namespaced by user id.
// Reads never fail: missing or corrupt records load as empty.
type Store struct {
	kv store.KV
}

// New returns a record store persisting through kv.
func New(kv store.KV) *Store {
	return &Store{kv: kv}
}

// RecordWrongAnswer adds q to the user's wrong-question set unless its id is
// already present, writing through immediately.
func (s *Store) RecordWrongAnswer(ctx context.Context, userID string, q model.Question) (bool, error) {
	wrong, err := s.readWrongQuestions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, existing := range wrong {
		if existing.ID == q.ID {
			return false, nil
		}
	}
	wrong = append(wrong, q)
	if err := store.SetJSON(ctx, s.kv, store.UserKey(userID, store.WrongQuestions), wrong); err != nil {
		return true, err
	}
	return true, nil
}

// CommitRoundStats adds one round's per-exam tallies onto the cumulative stats.
func (s *Store) CommitRoundStats(ctx context.Context, userID string, totals, wrongs map[string]int) error {
	if len(totals) == 0 {
		return nil
	}
	stats, err := s.readExamStats(ctx, userID)
	if err != nil {
		return err
	}
	for examID, total := range totals {
		stats[examID] = stats[examID].Add(total, wrongs[examID])
	}
	return store.SetJSON(ctx, s.kv, store.UserKey(userID, store.ExamStats), stats)
}

// LoadUserData returns the user's wrong-question set and cumulative stats.
func (s *Store) LoadUserData(ctx context.Context, userID string) model.UserData {
	return model.UserData{
		WrongQuestions: s.wrongQuestions(ctx, userID),
		ExamStats:      s.examStats(ctx, userID),
	}
}

// ClearHistory purges the user's wrong questions, stats and progress in one step.
func (s *Store) ClearHistory(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, store.UserKeys(userID)...)
}

// SaveProgress persists the in-progress round snapshot.
func (s *Store) SaveProgress(ctx context.Context, userID string, p model.Progress) error {
	return store.SetJSON(ctx, s.kv, store.UserKey(userID, store.Progress), p)
}

// LoadProgress returns the persisted round snapshot, if any.
func (s *Store) LoadProgress(ctx context.Context, userID string) (model.Progress, bool) {
	var p model.Progress
	ok, err := store.GetJSON(ctx, s.kv, store.UserKey(userID, store.Progress), &p)
	if err != nil || !ok {
		return model.Progress{}, false
	}
	return p, true
}

// ClearProgress discards the round snapshot.
func (s *Store) ClearProgress(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, store.UserKey(userID, store.Progress))
}

// Export reads every record of the user, including progress, straight from storage.
func (s *Store) Export(ctx context.Context, userID string) model.UserData {
	data := s.LoadUserData(ctx, userID)
	if p, ok := s.LoadProgress(ctx, userID); ok {
		data.Progress = &p
	}
	return data
}

// Entries encodes a user's records as batch writes. Nil collections are
// written as empty ones and progress only when present.
func Entries(userID string, data model.UserData) ([]store.Entry, error) {
	wrong := data.WrongQuestions
	if wrong == nil {
		wrong = []model.Question{}
	}
	stats := data.ExamStats
	if stats == nil {
		stats = map[string]model.ExamStats{}
	}
	wrongEntry, err := store.JSONEntry(store.UserKey(userID, store.WrongQuestions), wrong)
	if err != nil {
		return nil, err
	}
	statsEntry, err := store.JSONEntry(store.UserKey(userID, store.ExamStats), stats)
	if err != nil {
		return nil, err
	}
	entries := []store.Entry{wrongEntry, statsEntry}
	if data.Progress != nil {
		progressEntry, err := store.JSONEntry(store.UserKey(userID, store.Progress), data.Progress)
		if err != nil {
			return nil, err
		}
		entries = append(entries, progressEntry)
	}
	return entries, nil
}

func (s *Store) wrongQuestions(ctx context.Context, userID string) []model.Question {
	wrong, err := s.readWrongQuestions(ctx, userID)
	if err != nil {
		return []model.Question{}
	}
	return wrong
}

func (s *Store) examStats(ctx context.Context, userID string) map[string]model.ExamStats {
	stats, err := s.readExamStats(ctx, userID)
	if err != nil {
		return map[string]model.ExamStats{}
	}
	return stats
}

// readWrongQuestions reads a corrupt record as empty; storage failures are returned.
func (s *Store) readWrongQuestions(ctx context.Context, userID string) ([]model.Question, error) {
	var wrong []model.Question
	ok, err := store.GetJSON(ctx, s.kv, store.UserKey(userID, store.WrongQuestions), &wrong)
	if err != nil && !errors.Is(err, store.ErrCorrupt) {
		return nil, err
	}
	if !ok || wrong == nil {
		return []model.Question{}, nil
	}
	return wrong, nil
}

func (s *Store) readExamStats(ctx context.Context, userID string) (map[string]model.ExamStats, error) {
	var stats map[string]model.ExamStats
	ok, err := store.GetJSON(ctx, s.kv, store.UserKey(userID, store.ExamStats), &stats)
	if err != nil && !errors.Is(err, store.ErrCorrupt) {
		return nil, err
	}
	if !ok || stats == nil {
		return map[string]model.ExamStats{}, nil
	}
	return stats, nil
}
