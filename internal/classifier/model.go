package classifier

import (
	"math"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"filecat/internal/filecat"
)

// Model is a multinomial naive Bayes model over file name tokens.
// It is immutable once built.
type Model struct {
	Version string `json:"version"`

	// Docs is the number of training samples per category.
	Docs map[string]int `json:"docs"`
	// Tokens counts token occurrences per category.
	Tokens map[string]map[string]int `json:"tokens"`
	// TokenTotals is the sum of Tokens per category.
	TokenTotals map[string]int `json:"tokenTotals"`
	// Vocabulary is the number of distinct tokens across all categories.
	Vocabulary int `json:"vocabulary"`
	// Samples is the total number of training samples.
	Samples int `json:"samples"`
}

// Tokenize splits a file name into lower-cased word tokens plus one
// "ext:<extension>" token. Single-character fragments are dropped.
//
//	Tokenize("My_Holiday.Video-2023.MKV") = [my holiday video 2023 ext:mkv]
func Tokenize(filename string) []string {
	name := filepath.Base(filename)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	fields := strings.FieldsFunc(strings.ToLower(stem), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		tokens = append(tokens, f)
	}
	if ext != "" {
		tokens = append(tokens, "ext:"+ext)
	}
	return tokens
}

// Fit builds a model from samples. The result depends only on the multiset
// of samples, not their order.
func Fit(samples []filecat.Sample) *Model {
	sorted := append([]filecat.Sample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].Filename < sorted[j].Filename
	})

	m := &Model{
		Docs:        make(map[string]int),
		Tokens:      make(map[string]map[string]int),
		TokenTotals: make(map[string]int),
	}
	vocab := make(map[string]struct{})
	for _, s := range sorted {
		if s.Category == "" {
			continue
		}
		m.Samples++
		m.Docs[s.Category]++
		counts := m.Tokens[s.Category]
		if counts == nil {
			counts = make(map[string]int)
			m.Tokens[s.Category] = counts
		}
		for _, tok := range Tokenize(s.Filename) {
			counts[tok]++
			m.TokenTotals[s.Category]++
			vocab[tok] = struct{}{}
		}
	}
	m.Vocabulary = len(vocab)
	return m
}

// Categories returns the known categories, sorted.
func (m *Model) Categories() []string {
	out := make([]string, 0, len(m.Docs))
	for c := range m.Docs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Predict returns the most likely category and its posterior probability.
// Ties go to the alphabetically first category.
func (m *Model) Predict(filename string) (filecat.Prediction, bool) {
	categories := m.Categories()
	if len(categories) == 0 {
		return filecat.Prediction{}, false
	}
	tokens := Tokenize(filename)
	vocab := float64(m.Vocabulary + 1)

	scores := make([]float64, len(categories))
	best := 0
	for i, c := range categories {
		score := math.Log(float64(m.Docs[c]) / float64(m.Samples))
		denom := float64(m.TokenTotals[c]) + vocab
		for _, tok := range tokens {
			score += math.Log((float64(m.Tokens[c][tok]) + 1) / denom)
		}
		scores[i] = score
		if score > scores[best] {
			best = i
		}
	}

	// Normalize log scores to a posterior for the winner.
	var sum float64
	for _, s := range scores {
		sum += math.Exp(s - scores[best])
	}
	return filecat.Prediction{
		Category:   categories[best],
		Confidence: 1 / sum,
	}, true
}
