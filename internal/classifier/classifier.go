// Package classifier scores a question against candidate labels for intent routing.
package classifier

import (
	"context"
	"errors"
)

var (
	ErrNoLabels  = errors.New("no candidate labels")
	ErrEmptyText = errors.New("text cannot be empty")
)

// Classifier performs zero-shot multi-label classification. Scores are
// independent per label and lie in [0, 1].
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (map[string]float64, error)
}
