// Package session implements the practice round state machine.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/verte-zerg/tuiquiz/internal/model"
)

// DefaultSnapshotTTL is how long a persisted round stays resumable.
const DefaultSnapshotTTL = 7 * 24 * time.Hour

// Records is the durable side of a round: wrong answers, stats and the
// resumable snapshot.
type Records interface {
	RecordWrongAnswer(ctx context.Context, userID string, q model.Question) (bool, error)
	CommitRoundStats(ctx context.Context, userID string, totals, wrongs map[string]int) error
	SaveProgress(ctx context.Context, userID string, p model.Progress) error
	LoadProgress(ctx context.Context, userID string) (model.Progress, bool)
	ClearProgress(ctx context.Context, userID string) error
}

// Lookup resolves question ids against the loaded bank.
type Lookup interface {
	Lookup(id string) (model.Question, bool)
}

// Phase is the machine's top-level state.
type Phase int

// Round phases.
const (
	Idle Phase = iota
	InRound
	RoundComplete
)

func (p Phase) String() string {
	switch p {
	case InRound:
		return "in-round"
	case RoundComplete:
		return "round-complete"
	default:
		return "idle"
	}
}

// Result describes one accepted or ignored answer.
type Result struct {
	Accepted bool
	Correct  bool
	Chosen   string
	Question model.Question
}

// Machine tracks one user's practice round. It is not safe for concurrent use.
type Machine struct {
	records Records
	userID  string
	state   State
	now     func() time.Time
	ttl     time.Duration
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithSnapshotTTL overrides DefaultSnapshotTTL. Non-positive values are ignored.
func WithSnapshotTTL(ttl time.Duration) Option {
	return func(m *Machine) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// New returns an idle machine for userID.
func New(records Records, userID string, opts ...Option) *Machine {
	m := &Machine{
		records: records,
		userID:  userID,
		state:   newState(model.ModeNone, "", nil),
		now:     time.Now,
		ttl:     DefaultSnapshotTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UserID returns the user whose round the machine tracks.
func (m *Machine) UserID() string {
	return m.userID
}

// State returns a copy of the current round state.
func (m *Machine) State() State {
	return m.state.clone()
}

// Reset drops the in-memory round and binds the machine to userID.
// Nothing is persisted.
func (m *Machine) Reset(userID string) {
	m.userID = userID
	m.state = newState(model.ModeNone, "", nil)
}

// Start begins a new round over set. An unfinished round with answers is
// committed as abandoned and any persisted snapshot is discarded. An empty
// set completes immediately with a zero tally.
func (m *Machine) Start(ctx context.Context, mode model.Mode, label string, set []model.Question) error {
	var errs []error
	if m.state.Phase == InRound && len(m.state.PerExamTotals) > 0 {
		errs = append(errs, m.records.CommitRoundStats(ctx, m.userID, m.state.PerExamTotals, m.state.PerExamWrongs))
	}
	errs = append(errs, m.records.ClearProgress(ctx, m.userID))

	m.state = newState(mode, label, set)
	if len(m.state.Set) == 0 {
		m.state.Phase = RoundComplete
		return errors.Join(errs...)
	}
	m.state.Phase = InRound
	errs = append(errs, m.saveProgress(ctx))
	return errors.Join(errs...)
}

// Answer grades chosenKey against the current question. Only the first
// answer per question counts; later calls return a Result with Accepted false.
// Storage errors are returned after the in-memory state has been updated.
func (m *Machine) Answer(ctx context.Context, chosenKey string) (Result, error) {
	q, ok := m.state.Current()
	if m.state.Phase != InRound || !ok || m.state.Answered {
		return Result{}, nil
	}

	correct := chosenKey == q.Answer
	examKey := q.ExamID.Key()
	m.state.PerExamTotals[examKey]++
	m.state.Answered = true
	m.state.Chosen = chosenKey

	var errs []error
	if !correct {
		m.state.PerExamWrongs[examKey]++
		if !containsQuestion(m.state.RoundWrong, q.ID) {
			m.state.RoundWrong = append(m.state.RoundWrong, q)
		}
		if _, err := m.records.RecordWrongAnswer(ctx, m.userID, q); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, m.saveProgress(ctx))
	return Result{Accepted: true, Correct: correct, Chosen: chosenKey, Question: q}, errors.Join(errs...)
}

// Advance moves to the next question. Moving past the last question completes
// the round: stats are committed once and the snapshot is discarded.
func (m *Machine) Advance(ctx context.Context) error {
	if m.state.Phase != InRound {
		return nil
	}
	m.state.Index++
	m.state.Answered = false
	m.state.Chosen = ""
	if m.state.Index >= len(m.state.Set) {
		m.state.Index = len(m.state.Set)
		return m.finish(ctx)
	}
	return m.saveProgress(ctx)
}

// Flush persists the snapshot of an in-progress round.
func (m *Machine) Flush(ctx context.Context) error {
	if m.state.Phase != InRound {
		return nil
	}
	return m.saveProgress(ctx)
}

// Restore loads the user's persisted snapshot and resumes it.
func (m *Machine) Restore(ctx context.Context, bank Lookup) (bool, error) {
	p, ok := m.records.LoadProgress(ctx, m.userID)
	if !ok {
		m.state = newState(model.ModeNone, "", nil)
		return false, nil
	}
	return m.Resume(ctx, p, bank)
}

// Resume rehydrates a round from p. Snapshots older than the TTL, with an
// unknown mode, or with no question ids left in bank are discarded and the
// machine stays idle. A snapshot already at the end completes its round.
func (m *Machine) Resume(ctx context.Context, p model.Progress, bank Lookup) (bool, error) {
	m.state = newState(model.ModeNone, "", nil)
	if m.expired(p) || !p.Mode.Valid() {
		return false, m.records.ClearProgress(ctx, m.userID)
	}
	set := resolve(bank, p.QuestionIDs)
	if len(set) == 0 {
		return false, m.records.ClearProgress(ctx, m.userID)
	}

	st := newState(p.Mode, p.Label, nil)
	st.Set = set
	st.Index = clamp(p.CurrentIndex, 0, len(set))
	st.RoundWrong = resolve(bank, p.WrongQuestionIDs)
	for k, v := range p.PerExamTotals {
		st.PerExamTotals[k] = v
	}
	for k, v := range p.PerExamWrongs {
		st.PerExamWrongs[k] = v
	}
	st.Answered = p.Answered && st.Index < len(set)
	if st.Answered {
		st.Chosen = p.Chosen
	}
	st.Phase = InRound
	m.state = st

	if st.Index == len(set) {
		return true, m.finish(ctx)
	}
	return true, nil
}

func (m *Machine) finish(ctx context.Context) error {
	m.state.Phase = RoundComplete
	return errors.Join(
		m.records.CommitRoundStats(ctx, m.userID, m.state.PerExamTotals, m.state.PerExamWrongs),
		m.records.ClearProgress(ctx, m.userID),
	)
}

func (m *Machine) saveProgress(ctx context.Context) error {
	return m.records.SaveProgress(ctx, m.userID, m.state.Snapshot(m.now()))
}

func (m *Machine) expired(p model.Progress) bool {
	if p.Timestamp <= 0 {
		return false
	}
	return m.now().Sub(p.SavedAt()) > m.ttl
}

func resolve(bank Lookup, ids []string) []model.Question {
	if bank == nil {
		return nil
	}
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := bank.Lookup(id); ok {
			out = append(out, q)
		}
	}
	return out
}

func containsQuestion(list []model.Question, id string) bool {
	for _, q := range list {
		if q.ID == id {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
