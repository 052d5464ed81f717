// Package telemetry wraps Sentry for the QA pipeline: one span per ingest,
// search, route and generate step, plus reporting for failures that are
// swallowed so a request can still be answered.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

const serverName = "interviewqa"

// untraced lists transactions that are never sampled.
var untraced = map[string]bool{
	"GET /":        true,
	"GET /health":  true,
	"OPTIONS /ask": true,
}

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry and returns a flush function. An empty DSN, or a
// client that fails to start, leaves tracing off.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serverName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			if untraced[ctx.Span.Name] {
				return 0.0
			}
			var root sentry.SpanID
			if ctx.Span.ParentSpanID != root {
				if ctx.Span.Sampled.Bool() {
					return 1.0
				}
				return 0.0
			}
			return cfg.TracesSampleRate
		}),
	})
	if err != nil {
		log.Printf("sentry: failed to initialize (continuing without tracing): %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// SpanAttributes tag a pipeline span. Empty fields are not set.
type SpanAttributes struct {
	KnowledgeBase string
	Source        string
	Operation     string
	Upstream      string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	if a.KnowledgeBase != "" {
		span.SetTag("knowledge_base", a.KnowledgeBase)
	}
	if a.Source != "" {
		span.SetTag("source", a.Source)
	}
	if a.Upstream != "" {
		span.SetTag("upstream", a.Upstream)
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// Span is a nil-safe handle on a sentry span.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetData records a value such as a chunk count on the span.
func (s *Span) SetData(key string, value any) {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// SetError marks the span failed and captures err on the span's hub.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

func (s *Span) Context() context.Context {
	if s.inner != nil {
		return s.inner.Context()
	}
	return context.Background()
}

// StartSpan opens a child of the span in ctx, or a new transaction when
// ctx carries none (offline ingest, the inbox watcher).
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// ReportDegraded logs err, leaves a breadcrumb and captures it tagged with
// operation. Callers continue with a fallback (empty context, global only).
func ReportDegraded(ctx context.Context, operation string, err error) {
	if err == nil {
		return
	}
	log.Printf("%s degraded: %v", operation, err)

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  "degraded",
		Message:   operation,
		Level:     sentry.LevelWarning,
		Timestamp: time.Now(),
	}, nil)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("degraded_operation", operation)
		hub.CaptureException(err)
	})
}
