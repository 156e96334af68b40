package session

import (
	"time"

	"github.com/verte-zerg/tuiquiz/internal/model"
)

// State is the round state. 0 <= Index <= len(Set); the round is complete
// when Index == len(Set).
type State struct {
	Phase         Phase
	Mode          model.Mode
	Label         string
	Set           []model.Question
	Index         int
	RoundWrong    []model.Question
	PerExamTotals map[string]int
	PerExamWrongs map[string]int
	Answered      bool
	Chosen        string
}

func newState(mode model.Mode, label string, set []model.Question) State {
	return State{
		Mode:          mode,
		Label:         label,
		Set:           append([]model.Question(nil), set...),
		PerExamTotals: map[string]int{},
		PerExamWrongs: map[string]int{},
	}
}

// Current returns the question at Index.
func (s State) Current() (model.Question, bool) {
	if s.Index < 0 || s.Index >= len(s.Set) {
		return model.Question{}, false
	}
	return s.Set[s.Index], true
}

// Answers returns how many questions were answered this round.
func (s State) Answers() int {
	n := 0
	for _, v := range s.PerExamTotals {
		n += v
	}
	return n
}

// Wrongs returns how many answers were wrong this round.
func (s State) Wrongs() int {
	n := 0
	for _, v := range s.PerExamWrongs {
		n += v
	}
	return n
}

// DisplayLabel returns the round label, falling back to the mode name.
func (s State) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Mode.Label()
}

// Snapshot encodes the state as a resumable progress record.
func (s State) Snapshot(now time.Time) model.Progress {
	return model.Progress{
		Mode:             s.Mode,
		Label:            s.Label,
		CurrentIndex:     s.Index,
		QuestionIDs:      questionIDs(s.Set),
		WrongQuestionIDs: questionIDs(s.RoundWrong),
		PerExamTotals:    copyCounts(s.PerExamTotals),
		PerExamWrongs:    copyCounts(s.PerExamWrongs),
		Answered:         s.Answered,
		Chosen:           s.Chosen,
		Timestamp:        now.UnixMilli(),
	}
}

func (s State) clone() State {
	out := s
	out.Set = append([]model.Question(nil), s.Set...)
	out.RoundWrong = append([]model.Question(nil), s.RoundWrong...)
	out.PerExamTotals = copyCounts(s.PerExamTotals)
	out.PerExamWrongs = copyCounts(s.PerExamWrongs)
	return out
}

func questionIDs(qs []model.Question) []string {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
