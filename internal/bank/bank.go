// Package bank loads the static question bank.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/tuiquiz/internal/model"
	"gopkg.in/yaml.v3"
)

// ErrInvalidBank marks a bank document that cannot be used.
var ErrInvalidBank = errors.New("invalid question bank")

// Format is the encoding of a bank document.
type Format int

// Supported bank encodings.
const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the encoding from a file name or URL path.
func FormatFor(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Bank is an immutable, ordered set of questions indexed by id.
type Bank struct {
	questions  []model.Question
	byID       map[string]int
	duplicates int
}

// New indexes questions. Ids must be non-empty. A repeated id keeps its
// first occurrence and later copies are skipped.
func New(questions []model.Question) (*Bank, error) {
	b := &Bank{
		questions: make([]model.Question, 0, len(questions)),
		byID:      make(map[string]int, len(questions)),
	}
	for i, q := range questions {
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			return nil, fmt.Errorf("%w: question %d has no id", ErrInvalidBank, i)
		}
		if _, dup := b.byID[q.ID]; dup {
			b.duplicates++
			continue
		}
		b.byID[q.ID] = len(b.questions)
		b.questions = append(b.questions, q)
	}
	if len(b.questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrInvalidBank)
	}
	return b, nil
}

// Decode parses a bank document.
func Decode(data []byte, format Format) (*Bank, error) {
	var questions []model.Question
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &questions); err != nil {
			return nil, fmt.Errorf("%w: yaml: %v", ErrInvalidBank, err)
		}
	default:
		if err := json.Unmarshal(bytes.TrimSpace(data), &questions); err != nil {
			return nil, fmt.Errorf("%w: json: %v", ErrInvalidBank, err)
		}
	}
	return New(questions)
}

// Load reads a bank file. Files ending in .yaml or .yml are read as YAML.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, FormatFor(path))
}

// Fetch loads a bank from an http(s) URL or a local path.
func Fetch(ctx context.Context, src string) (*Bank, error) {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Load(src)
	}
	resp, err := httpRequest(ctx, src)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close for read-only response body.
			_ = cerr
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch bank: %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bank: %w", err)
	}
	return Decode(data, FormatFor(path.Base(u.Path)))
}

// Lookup resolves a question id. A nil bank resolves nothing.
func (b *Bank) Lookup(id string) (model.Question, bool) {
	if b == nil {
		return model.Question{}, false
	}
	i, ok := b.byID[id]
	if !ok {
		return model.Question{}, false
	}
	return b.questions[i], true
}

// Len returns the number of questions.
func (b *Bank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.questions)
}

// Duplicates returns how many questions were skipped for a repeated id.
func (b *Bank) Duplicates() int {
	if b == nil {
		return 0
	}
	return b.duplicates
}

// Questions returns every question in bank order.
func (b *Bank) Questions() []model.Question {
	if b == nil {
		return nil
	}
	return append([]model.Question(nil), b.questions...)
}

// ByExam returns the questions of one exam in bank order.
func (b *Bank) ByExam(examID string) []model.Question {
	if b == nil {
		return nil
	}
	var out []model.Question
	for _, q := range b.questions {
		if q.ExamID.Key() == examID {
			out = append(out, q)
		}
	}
	return out
}

// ExamIDs returns the distinct exam ids, numeric ids first.
func (b *Bank) ExamIDs() []string {
	if b == nil {
		return nil
	}
	seen := map[string]bool{}
	var ids []string
	for _, q := range b.questions {
		key := q.ExamID.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		ids = append(ids, key)
	}
	model.SortExamIDs(ids)
	return ids
}

func httpRequest(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
