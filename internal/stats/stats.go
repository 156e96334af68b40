package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/tuiquiz/internal/model"
)

// RenderSummary prints the end-of-round summary.
func RenderSummary(w io.Writer, s RoundSummary) error {
	if _, err := fmt.Fprintln(w, "Round Complete"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Questions: %d\n", s.Total); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Correct: %d\n", s.Correct); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Wrong: %d\n", s.Wrong); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Accuracy: %d%%\n", s.Percent); err != nil {
		return err
	}
	return nil
}

// RenderAnalysis prints the per-exam table followed by accuracy bars.
func RenderAnalysis(w io.Writer, a Analysis) error {
	return RenderAnalysisWithSize(w, a, 0, false)
}

// RenderAnalysisWithSize prints the analysis with bars sized to totalWidth.
// A zero width uses the terminal width.
func RenderAnalysisWithSize(w io.Writer, a Analysis, totalWidth int, forceColor bool) error {
	if a.Empty() {
		_, err := fmt.Fprintln(w, "No practice records yet.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Overview"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Answered: %d  Correct: %d  Wrong questions: %d  Mean accuracy: %.1f%%\n",
		a.Answered, a.Correct, a.WrongTotal, a.MeanAccuracy); err != nil {
		return err
	}
	if weak := WeakestExams(a, 3); len(weak) > 0 {
		names := make([]string, len(weak))
		for i, exam := range weak {
			names[i] = model.ExamLabel(exam)
		}
		if _, err := fmt.Fprintf(w, "Focus: %s\n", strings.Join(names, ", ")); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}

	for _, line := range TableLines(a) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}

	bars := make([]Bar, 0, len(a.Rows))
	for _, r := range a.Rows {
		bars = append(bars, Bar{Label: model.ExamLabel(r.ExamID), Percent: r.Percent})
	}
	return PlotBars(w, "Accuracy", bars, totalWidth, forceColor)
}

// TableHeaders are the analysis table columns.
var TableHeaders = []string{"Exam", "Answered", "Correct", "Wrong", "Accuracy", "To Review"}

// TableRows formats the analysis rows as table cells.
func TableRows(a Analysis) [][]string {
	rows := make([][]string, 0, len(a.Rows))
	for _, r := range a.Rows {
		rows = append(rows, []string{
			model.ExamLabel(r.ExamID),
			fmt.Sprintf("%d", r.Total),
			fmt.Sprintf("%d", r.Correct),
			fmt.Sprintf("%d", r.Wrong),
			fmt.Sprintf("%d%%", r.Percent),
			fmt.Sprintf("%d", r.WrongQuestions),
		})
	}
	return rows
}

// TableLines renders the analysis table as aligned lines.
func TableLines(a Analysis) []string {
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}
	return formatTable(TableHeaders, TableRows(a), rightAlign)
}
