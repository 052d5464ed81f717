package classifier

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Embedder turns text into a vector. Both the hashing and the OpenAI
// embedders satisfy it.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// DefaultTemperature spreads hashing-embedder cosines, which rarely exceed
// 0.5, across the softmax: a 0.3 lead over two other labels scores about 0.9.
const DefaultTemperature = 0.1

// LabelEvidence scores how well the content stored under label matches a
// question vector. service.KnowledgeStore implements it.
type LabelEvidence interface {
	ContentSimilarity(ctx context.Context, vec []float32, label string) (float64, error)
}

// EmbeddingSimilarity scores each label by the better of two cosines: the
// question against the label's name, and, with evidence set, the question
// against the label's closest stored chunk. The raw cosines go through a
// softmax, so scores are always positive and the best label of n scores at
// least 1/n. Labels then compete: a question close to nothing spreads
// evenly, falls below the threshold and routes to the fallback.
// Label name vectors are cached since the set of knowledge bases changes rarely.
type EmbeddingSimilarity struct {
	embedder    Embedder
	evidence    LabelEvidence
	temperature float64
	labels      *cache.Cache
}

func NewEmbeddingSimilarity(embedder Embedder) *EmbeddingSimilarity {
	return &EmbeddingSimilarity{
		embedder:    embedder,
		temperature: DefaultTemperature,
		labels:      cache.New(30*time.Minute, time.Hour),
	}
}

// WithEvidence adds content similarity from the knowledge bases themselves.
// The evidence must store vectors from the same embedder.
func (e *EmbeddingSimilarity) WithEvidence(evidence LabelEvidence) *EmbeddingSimilarity {
	e.evidence = evidence
	return e
}

func (e *EmbeddingSimilarity) Classify(ctx context.Context, text string, labels []string) (map[string]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}

	question, err := e.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	raw := make([]float64, len(labels))
	for i, label := range labels {
		vec, err := e.labelVector(ctx, label)
		if err != nil {
			return nil, err
		}
		raw[i] = cosine(question, vec)

		if e.evidence != nil {
			content, err := e.evidence.ContentSimilarity(ctx, question, label)
			if err != nil {
				return nil, fmt.Errorf("failed to score content of %q: %w", label, err)
			}
			raw[i] = math.Max(raw[i], content)
		}
	}
	return softmax(labels, raw, e.temperature), nil
}

// softmax maps raw scores to (0,1], shifting by the maximum so the exponent
// never overflows and the best label gets the largest share.
func softmax(labels []string, raw []float64, temperature float64) map[string]float64 {
	best := math.Inf(-1)
	for _, r := range raw {
		best = math.Max(best, r)
	}
	weights := make([]float64, len(raw))
	var sum float64
	for i, r := range raw {
		weights[i] = math.Exp((r - best) / temperature)
		sum += weights[i]
	}
	scores := make(map[string]float64, len(labels))
	for i, label := range labels {
		scores[label] = weights[i] / sum
	}
	return scores
}

func (e *EmbeddingSimilarity) labelVector(ctx context.Context, label string) ([]float32, error) {
	if cached, found := e.labels.Get(label); found {
		return cached.([]float32), nil
	}

	vec, err := e.embedder.GenerateEmbedding(ctx, labelText(label))
	if err != nil {
		return nil, fmt.Errorf("failed to embed label %q: %w", label, err)
	}
	e.labels.Set(label, vec, cache.DefaultExpiration)
	return vec, nil
}

// labelText turns "system-design" into "system design".
func labelText(label string) string {
	return strings.NewReplacer("-", " ", "_", " ").Replace(label)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
