// Package generator builds practice round question sets.
package generator

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/tuiquiz/internal/model"
)

// Options controls how a round set is drawn from the candidates.
type Options struct {
	// Shuffle randomizes question order.
	Shuffle bool
	// Limit caps the set size. Zero or negative means no cap.
	Limit int
	// ExamBias weights shuffled draws toward exams by key: a question's
	// weight is 1 + ExamBias[exam]. Ignored unless Shuffle is set.
	ExamBias map[string]float64
}

// Generator produces round sets.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Build returns a new slice drawn from questions. Without Shuffle the
// candidate order is kept.
func (g *Generator) Build(questions []model.Question, opts Options) []model.Question {
	var out []model.Question
	switch {
	case !opts.Shuffle:
		out = append([]model.Question(nil), questions...)
	case len(opts.ExamBias) > 0:
		out = g.weighted(questions, opts.ExamBias)
	default:
		out = append([]model.Question(nil), questions...)
		g.rnd.Shuffle(len(out), func(i, j int) {
			out[i], out[j] = out[j], out[i]
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// weighted draws every question once, without replacement, favoring heavy ones.
func (g *Generator) weighted(questions []model.Question, bias map[string]float64) []model.Question {
	pool := append([]model.Question(nil), questions...)
	weights := make([]float64, len(pool))
	total := 0.0
	for i, q := range pool {
		w := 1.0 + bias[q.ExamID.Key()]
		if w < 1 {
			w = 1
		}
		weights[i] = w
		total += w
	}

	result := make([]model.Question, 0, len(pool))
	for len(pool) > 0 {
		r := g.rnd.Float64() * total
		acc := 0.0
		idx := len(pool) - 1
		for j, w := range weights {
			acc += w
			if r <= acc {
				idx = j
				break
			}
		}
		result = append(result, pool[idx])
		total -= weights[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		weights = append(weights[:idx], weights[idx+1:]...)
	}
	return result
}

// ErrorRates converts cumulative stats into an ExamBias map scaled by factor.
func ErrorRates(stats map[string]model.ExamStats, factor float64) map[string]float64 {
	if factor <= 0 {
		return nil
	}
	out := map[string]float64{}
	for exam, s := range stats {
		if s.Total <= 0 {
			continue
		}
		out[exam] = float64(s.Wrong) / float64(s.Total) * factor
	}
	return out
}
