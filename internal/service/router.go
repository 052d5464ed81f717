package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/telemetry"
)

// DefaultRouteThreshold is the minimum score for a knowledge base to match.
const DefaultRouteThreshold = 0.5

// Classifier scores text against candidate labels, each score in [0,1].
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (map[string]float64, error)
}

// IntentRouter picks the knowledge bases relevant to a question.
type IntentRouter struct {
	classifier Classifier
	threshold  float64
	timeout    time.Duration
}

func NewIntentRouter(classifier Classifier, threshold float64, timeout time.Duration) *IntentRouter {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultRouteThreshold
	}
	return &IntentRouter{
		classifier: classifier,
		threshold:  threshold,
		timeout:    timeout,
	}
}

type labelScore struct {
	label string
	score float64
}

// RouteE classifies question against kbs. Matched names are those scoring at
// least the threshold, best first. Confidence is their mean score, or the
// best score overall when nothing matched. A classifier that scores every
// label 0 has told us nothing and fails like any other classifier error.
func (r *IntentRouter) RouteE(ctx context.Context, question string, kbs []string) (domain.Route, error) {
	labels := candidateLabels(kbs)
	if len(labels) == 0 {
		return domain.EmptyRoute(), nil
	}

	ctx, span := telemetry.StartSpan(ctx, "router.classify", telemetry.SpanAttributes{Operation: "route"})
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	scores, err := r.classifier.Classify(ctx, question, labels)
	if err != nil {
		span.SetError(err)
		return domain.EmptyRoute(), domain.Wrap(domain.ErrClassificationFail, err)
	}

	ranked := make([]labelScore, 0, len(labels))
	for _, l := range labels {
		ranked = append(ranked, labelScore{label: l, score: scores[l]})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if ranked[0].score <= 0 {
		err := errors.New("classifier scored every label 0")
		span.SetError(err)
		return domain.EmptyRoute(), domain.Wrap(domain.ErrClassificationFail, err)
	}

	route := domain.Route{MatchedKBs: []string{}}
	var sum float64
	for _, ls := range ranked {
		if ls.score >= r.threshold {
			route.MatchedKBs = append(route.MatchedKBs, ls.label)
			sum += ls.score
		}
	}

	if len(route.MatchedKBs) > 0 {
		route.Confidence = sum / float64(len(route.MatchedKBs))
	} else {
		route.Confidence = ranked[0].score
	}
	return route, nil
}

// Route is RouteE with classifier failures reported and degraded to an empty route.
func (r *IntentRouter) Route(ctx context.Context, question string, kbs []string) domain.Route {
	route, err := r.RouteE(ctx, question, kbs)
	if err != nil {
		telemetry.ReportDegraded(ctx, "route", err)
		return domain.EmptyRoute()
	}
	return route
}

// Threshold returns the configured match threshold.
func (r *IntentRouter) Threshold() float64 {
	return r.threshold
}

// candidateLabels normalizes and deduplicates kbs, keeping their order.
func candidateLabels(kbs []string) []string {
	seen := make(map[string]struct{}, len(kbs))
	labels := make([]string, 0, len(kbs))
	for _, kb := range kbs {
		name := domain.NormalizeKnowledgeBaseName(kb)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		labels = append(labels, name)
	}
	return labels
}
