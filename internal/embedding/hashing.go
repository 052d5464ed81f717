// Package embedding provides an offline embedder used when no embedding API is configured.
package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// DefaultDimensions matches the all-MiniLM-L6-v2 output size.
const DefaultDimensions = 384

var ErrEmptyText = errors.New("text cannot be empty")

// HashingEmbedder maps tokens into a fixed number of buckets (the hashing
// trick) and L2-normalizes the result. It needs no corpus and no network,
// so vectors stay comparable across restarts and snapshots.
type HashingEmbedder struct {
	dimensions   int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashingEmbedder{
		dimensions:   dimensions,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+`),
		stopwords:    defaultStopwords(),
	}
}

func (e *HashingEmbedder) Dimensions() int { return e.dimensions }

// GenerateEmbedding returns a unit-length vector for text.
func (e *HashingEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	counts := make(map[string]int)
	for _, tok := range e.tokenize(text) {
		counts[tok]++
	}

	vec := make([]float64, e.dimensions)
	for tok, n := range counts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		sign := 1.0
		if (sum>>63)&1 == 1 {
			sign = -1.0
		}
		vec[idx] += sign * (1 + math.Log(float64(n)))
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, e.dimensions)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// tokenize lowercases words and splits Han runs into overlapping bigrams so
// Chinese text, which has no spaces, still yields useful features.
func (e *HashingEmbedder) tokenize(text string) []string {
	words := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := e.stopwords[w]; stop {
			continue
		}
		tokens = append(tokens, splitScripts([]rune(w))...)
	}
	return tokens
}

// splitScripts keeps non-Han runs as whole words and turns Han runs into bigrams.
func splitScripts(runes []rune) []string {
	var out []string
	start := 0
	for start < len(runes) {
		han := isHan(runes[start])
		end := start + 1
		for end < len(runes) && isHan(runes[end]) == han {
			end++
		}
		run := runes[start:end]
		switch {
		case !han:
			out = append(out, string(run))
		case len(run) == 1:
			out = append(out, string(run))
		default:
			for i := 0; i+1 < len(run); i++ {
				out = append(out, string(run[i:i+2]))
			}
		}
		start = end
	}
	return out
}

func isHan(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "how", "in", "is", "it",
		"of", "on", "or", "that", "the", "this", "to", "what", "when", "which", "why", "with",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
