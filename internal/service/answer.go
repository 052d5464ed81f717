package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/ratelimit"
	"github.com/cloo-solutions/interviewqa/internal/telemetry"
)

// LLM completes a single prompt. DashScope and OpenAI-compatible clients implement it.
type LLM interface {
	Complete(ctx context.Context, prompt string) (domain.Completion, error)
}

// WebSearcher returns web results used to enrich the prompt.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]domain.WebResult, error)
}

// AnswerGenerator turns retrieved context and a question into an interview-style answer.
type AnswerGenerator struct {
	llm     LLM
	web     WebSearcher
	limiter *ratelimit.Limiter
	timeout time.Duration
}

// NewAnswerGenerator accepts a nil llm; GenerateE then fails with ErrLLMNotConfigured.
func NewAnswerGenerator(llm LLM, limiter *ratelimit.Limiter, timeout time.Duration) *AnswerGenerator {
	return &AnswerGenerator{
		llm:     llm,
		limiter: limiter,
		timeout: timeout,
	}
}

// WithWebSearch adds web results to every prompt.
func (g *AnswerGenerator) WithWebSearch(web WebSearcher) *AnswerGenerator {
	g.web = web
	return g
}

// GenerateE builds the prompt, calls the LLM and renders its completion.
func (g *AnswerGenerator) GenerateE(ctx context.Context, contextText, question string) (string, error) {
	if g.llm == nil {
		return "", domain.ErrLLMNotConfigured
	}

	ctx, span := telemetry.StartSpan(ctx, "answer.generate", telemetry.SpanAttributes{Operation: "generate"})
	defer span.End()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(contextText, question, g.searchWeb(ctx, question))

	if err := g.limiter.Wait(ctx); err != nil {
		span.SetError(err)
		return "", domain.Wrap(domain.ErrLLMRequestFailed, err)
	}

	completion, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		g.limiter.Observe(err)
		span.SetError(err)
		return "", err
	}

	answer := domain.RenderCompletion(completion)
	if strings.TrimSpace(answer) == "" {
		return "", domain.ErrEmptyCompletion
	}
	return answer, nil
}

// Generate always returns displayable text. Failures are reported and
// rendered as an error message in place of the answer.
func (g *AnswerGenerator) Generate(ctx context.Context, contextText, question string) string {
	answer, err := g.GenerateE(ctx, contextText, question)
	if err != nil {
		telemetry.ReportDegraded(ctx, "generate", err)
		return fmt.Sprintf("生成回答失败：%v", err)
	}
	return answer
}

func (g *AnswerGenerator) searchWeb(ctx context.Context, question string) []domain.WebResult {
	if g.web == nil {
		return nil
	}
	results, err := g.web.Search(ctx, question)
	if err != nil {
		telemetry.ReportDegraded(ctx, "web search", err)
		return nil
	}
	return results
}
