package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnknownExam is the tally key for questions without an exam id.
const UnknownExam = "unknown"

// ExamID identifies an exam. Banks carry it as a JSON number or string.
type ExamID string

// Key returns the tally map key for the exam.
func (e ExamID) Key() string {
	s := strings.TrimSpace(string(e))
	if s == "" {
		return UnknownExam
	}
	return s
}

// UnmarshalJSON accepts numbers, strings and null.
func (e *ExamID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ExamID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*e = ExamID(n.String())
	return nil
}

// MarshalJSON writes integer ids as numbers so banks keep their shape.
func (e ExamID) MarshalJSON() ([]byte, error) {
	s := string(e)
	if s == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// UnmarshalYAML accepts any scalar.
func (e *ExamID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode || value.Tag == "!!null" {
		*e = ""
		return nil
	}
	*e = ExamID(value.Value)
	return nil
}

// CompareExamIDs orders numeric ids numerically, then other ids lexically,
// with the unknown exam last.
func CompareExamIDs(a, b string) int {
	if a == b {
		return 0
	}
	if a == UnknownExam {
		return 1
	}
	if b == UnknownExam {
		return -1
	}
	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if na < nb {
			return -1
		}
		if na > nb {
			return 1
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortExamIDs sorts ids in place using CompareExamIDs.
func SortExamIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return CompareExamIDs(ids[i], ids[j]) < 0
	})
}

// ExamLabel returns a display name for an exam key.
func ExamLabel(key string) string {
	if key == "" || key == UnknownExam {
		return "Unknown Exam"
	}
	return "Exam " + key
}
