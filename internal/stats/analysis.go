// Package stats contains practice analysis calculations and reporting.
package stats

import (
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"

	"github.com/verte-zerg/tuiquiz/internal/model"
)

// ExamRow is the analysis of one exam.
type ExamRow struct {
	ExamID         string
	Total          int
	Correct        int
	Wrong          int
	Percent        int
	WrongQuestions int
}

// HasWrong reports whether the exam has questions in the wrong set.
func (r ExamRow) HasWrong() bool {
	return r.WrongQuestions > 0
}

// Analysis is the per-exam breakdown shown in the analysis view.
type Analysis struct {
	Rows       []ExamRow
	WrongTotal int
	Answered   int
	Correct    int
	// MeanAccuracy is the mean percent over exams with answers.
	MeanAccuracy float64
}

// Empty reports whether there is anything to show.
func (a Analysis) Empty() bool {
	return len(a.Rows) == 0
}

// Row returns the analysis of one exam.
func (a Analysis) Row(examID string) (ExamRow, bool) {
	for _, r := range a.Rows {
		if r.ExamID == examID {
			return r, true
		}
	}
	return ExamRow{}, false
}

// BuildAnalysis merges cumulative stats with the live round tallies and
// groups the wrong set by exam. Exams without stats fall back to their
// wrong-question count.
func BuildAnalysis(wrong []model.Question, cumulative map[string]model.ExamStats, roundTotals, roundWrongs map[string]int) Analysis {
	merged := map[string]model.ExamStats{}
	for exam, s := range cumulative {
		merged[exam] = s
	}
	for exam, total := range roundTotals {
		merged[exam] = merged[exam].Add(total, roundWrongs[exam])
	}

	wrongByExam := map[string]int{}
	for _, q := range wrong {
		wrongByExam[q.ExamID.Key()]++
	}

	exams := make([]string, 0, len(merged)+len(wrongByExam))
	seen := map[string]bool{}
	for exam := range merged {
		if !seen[exam] {
			seen[exam] = true
			exams = append(exams, exam)
		}
	}
	for exam := range wrongByExam {
		if !seen[exam] {
			seen[exam] = true
			exams = append(exams, exam)
		}
	}
	model.SortExamIDs(exams)

	a := Analysis{WrongTotal: len(wrong)}
	var percents []float64
	for _, exam := range exams {
		s := merged[exam]
		wrongCount := wrongByExam[exam]
		total := s.Total
		if total == 0 {
			total = wrongCount
		}
		wrongAnswers := s.Wrong
		if wrongAnswers == 0 {
			wrongAnswers = wrongCount
		}
		if wrongAnswers > total {
			wrongAnswers = total
		}
		if total == 0 && wrongCount == 0 {
			continue
		}
		row := ExamRow{
			ExamID:         exam,
			Total:          total,
			Correct:        total - wrongAnswers,
			Wrong:          wrongAnswers,
			Percent:        percent(total-wrongAnswers, total),
			WrongQuestions: wrongCount,
		}
		a.Rows = append(a.Rows, row)
		a.Answered += row.Total
		a.Correct += row.Correct
		if row.Total > 0 {
			percents = append(percents, float64(row.Percent))
		}
	}
	if mean, err := mstats.Mean(percents); err == nil {
		a.MeanAccuracy = mean
	}
	return a
}

// WeakestExams returns up to top exam ids with the lowest accuracy.
func WeakestExams(a Analysis, top int) []string {
	candidates := make([]ExamRow, 0, len(a.Rows))
	for _, r := range a.Rows {
		if r.Total > 0 && r.Wrong > 0 {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Percent == candidates[j].Percent {
			return candidates[i].Wrong > candidates[j].Wrong
		}
		return candidates[i].Percent < candidates[j].Percent
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	out := make([]string, 0, top)
	for _, r := range candidates[:top] {
		out = append(out, r.ExamID)
	}
	return out
}

// RoundSummary is the end-of-round result.
type RoundSummary struct {
	Total   int
	Correct int
	Wrong   int
	Percent int
}

// Summarize builds the summary for a round of total questions with wrong misses.
func Summarize(total, wrong int) RoundSummary {
	if wrong > total {
		wrong = total
	}
	return RoundSummary{
		Total:   total,
		Correct: total - wrong,
		Wrong:   wrong,
		Percent: percent(total-wrong, total),
	}
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
