package bank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/verte-zerg/tuiquiz/internal/model"
)

// RawOption is an option of the upstream bank format.
type RawOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// RawQuestion is a question of the upstream bank format.
type RawQuestion struct {
	ID            looseString  `json:"id"`
	OriginalID    looseString  `json:"originalId"`
	Part          int          `json:"part"`
	ExamID        model.ExamID `json:"examId"`
	QuestionLabel string       `json:"questionLabel"`
	Image         string       `json:"image"`
	Audio         string       `json:"audio"`
	Text          string       `json:"text"`
	Options       []RawOption  `json:"options"`
	CorrectAnswer string       `json:"correctAnswer"`
	Translation   string       `json:"translation"`
	HasGroup      bool         `json:"hasGroup"`
	GroupContent  any          `json:"groupContent"`
}

// MultipleChoice is the only question type produced by Convert.
const MultipleChoice = "multiple_choice"

var (
	answerMarker     = regexp.MustCompile(`[(（]\s*正解\s*[)）]`)
	translationEntry = regexp.MustCompile(`^([a-dA-D])\.\s*(.*)$`)
)

// Convert maps upstream questions to the bank schema.
func Convert(raw []RawQuestion) []model.Question {
	out := make([]model.Question, 0, len(raw))
	for _, r := range raw {
		options := make([]model.Option, 0, len(r.Options))
		for _, opt := range r.Options {
			options = append(options, model.Option{Key: opt.Label, Text: cleanOptionText(opt.Text)})
		}
		translation, merged := parseTranslation(r.Translation)
		out = append(out, model.Question{
			ID:             string(r.ID),
			OriginalID:     string(r.OriginalID),
			ExamID:         r.ExamID,
			Part:           r.Part,
			Label:          r.QuestionLabel,
			Type:           MultipleChoice,
			Text:           r.Text,
			Image:          r.Image,
			Audio:          r.Audio,
			Options:        options,
			Answer:         r.CorrectAnswer,
			Translation:    translation,
			TranslationRaw: merged,
			HasGroup:       r.HasGroup,
			Group:          r.GroupContent,
		})
	}
	return out
}

// ConvertFile converts an upstream JSON bank at in and writes the result to out.
// It returns the number of converted questions.
func ConvertFile(in, out string) (int, error) {
	data, err := os.ReadFile(in)
	if err != nil {
		return 0, err
	}
	var raw []RawQuestion
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return 0, fmt.Errorf("%w: expected an array of questions: %v", ErrInvalidBank, err)
	}
	questions := Convert(raw)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(questions); err != nil {
		return 0, err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	return len(questions), nil
}

func cleanOptionText(text string) string {
	return strings.TrimSpace(answerMarker.ReplaceAllString(text, ""))
}

// parseTranslation splits an "a. ... b. ..." block into per-option text.
// Lines before the first key are dropped from the map but kept in merged.
func parseTranslation(raw string) (map[string]string, string) {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	merged := strings.Join(lines, "\n")

	result := map[string]string{}
	current := ""
	var buffer []string
	flush := func() {
		if current != "" && len(buffer) > 0 {
			if text := strings.TrimSpace(strings.Join(buffer, "\n")); text != "" {
				result[current] = text
			}
		}
		buffer = nil
	}
	for _, line := range lines {
		if m := translationEntry.FindStringSubmatch(line); m != nil {
			flush()
			current = strings.ToUpper(m[1])
			if rest := strings.TrimSpace(m[2]); rest != "" {
				buffer = append(buffer, rest)
			}
			continue
		}
		if current != "" {
			buffer = append(buffer, line)
		}
	}
	flush()
	if len(result) == 0 {
		return nil, merged
	}
	return result, merged
}

// looseString accepts a JSON string, number or null.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var id model.ExamID
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = looseString(id)
	return nil
}
