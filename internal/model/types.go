// Package model defines shared data structures.
package model

import "time"

// Mode selects the question source of a round.
type Mode string

// Round modes as persisted in progress snapshots.
const (
	ModeNone        Mode = ""
	ModeAll         Mode = "all"
	ModeSingleExam  Mode = "exam"
	ModeWrongReview Mode = "review"
)

// Label returns a human readable mode name.
func (m Mode) Label() string {
	switch m {
	case ModeAll:
		return "All Practice"
	case ModeSingleExam:
		return "Single Exam"
	case ModeWrongReview:
		return "Wrong Review"
	default:
		return "Not Selected"
	}
}

// Valid reports whether m is one of the round modes.
func (m Mode) Valid() bool {
	return m == ModeAll || m == ModeSingleExam || m == ModeWrongReview
}

// Option is one answer choice of a question.
type Option struct {
	Key  string `json:"key" yaml:"key"`
	Text string `json:"text" yaml:"text"`
}

// Question is an immutable multiple-choice question from the bank.
type Question struct {
	ID             string            `json:"id" yaml:"id"`
	OriginalID     string            `json:"originalId,omitempty" yaml:"originalId,omitempty"`
	ExamID         ExamID            `json:"examId" yaml:"examId"`
	Part           int               `json:"part" yaml:"part"`
	Label          string            `json:"label" yaml:"label"`
	Type           string            `json:"type,omitempty" yaml:"type,omitempty"`
	Text           string            `json:"text" yaml:"text"`
	Image          string            `json:"image,omitempty" yaml:"image,omitempty"`
	Audio          string            `json:"audio,omitempty" yaml:"audio,omitempty"`
	Options        []Option          `json:"options" yaml:"options"`
	Answer         string            `json:"answer" yaml:"answer"`
	Translation    map[string]string `json:"translation,omitempty" yaml:"translation,omitempty"`
	TranslationRaw string            `json:"translationRaw,omitempty" yaml:"translationRaw,omitempty"`
	HasGroup       bool              `json:"hasGroup,omitempty" yaml:"hasGroup,omitempty"`
	Group          any               `json:"group,omitempty" yaml:"group,omitempty"`
}

// User is a practice profile.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExamStats accumulates answers for one exam. Correct+Wrong always equals Total.
type ExamStats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

// Add merges a round tally into the cumulative stats.
func (s ExamStats) Add(total, wrong int) ExamStats {
	return ExamStats{
		Total:   s.Total + total,
		Correct: s.Correct + (total - wrong),
		Wrong:   s.Wrong + wrong,
	}
}

// Progress is the persisted snapshot of an in-progress round.
// Questions are stored by id and resolved against the bank on resume.
type Progress struct {
	Mode             Mode           `json:"mode"`
	Label            string         `json:"label,omitempty"`
	CurrentIndex     int            `json:"currentIndex"`
	QuestionIDs      []string       `json:"questionIds"`
	WrongQuestionIDs []string       `json:"wrongQuestionIds"`
	PerExamTotals    map[string]int `json:"perExamTotals"`
	PerExamWrongs    map[string]int `json:"perExamWrongs"`
	Answered         bool           `json:"answered,omitempty"`
	Chosen           string         `json:"chosen,omitempty"`
	Timestamp        int64          `json:"timestamp"`
}

// SavedAt returns the snapshot timestamp.
func (p Progress) SavedAt() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// UserData is one user's durable practice records.
type UserData struct {
	WrongQuestions []Question           `json:"wrongQuestions"`
	ExamStats      map[string]ExamStats `json:"examStats"`
	Progress       *Progress            `json:"progress"`
}

// SnapshotVersion is the current export document version.
const SnapshotVersion = 1

// Snapshot is the portable export document covering every user.
type Snapshot struct {
	Version       int                 `json:"version"`
	ExportedAt    time.Time           `json:"exportedAt"`
	Users         []User              `json:"users"`
	CurrentUserID string              `json:"currentUserId"`
	Data          map[string]UserData `json:"data"`
}
