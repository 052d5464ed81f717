package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/telemetry"
)

// DefaultTopK is the number of chunks retrieved per knowledge base.
const DefaultTopK = 3

// AskResult is the answer to one question.
type AskResult struct {
	Answer        string   `json:"answer"`
	Confidence    float64  `json:"confidence"`
	MatchedKBs    []string `json:"matched_kbs"`
	ContextLength int      `json:"context_length"`
}

// QAService routes a question, retrieves context and generates the answer.
type QAService struct {
	registry  *KnowledgeBaseService
	router    *IntentRouter
	store     *KnowledgeStore
	generator *AnswerGenerator
	topK      int
}

func NewQAService(registry *KnowledgeBaseService, router *IntentRouter, store *KnowledgeStore, generator *AnswerGenerator, topK int) *QAService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &QAService{
		registry:  registry,
		router:    router,
		store:     store,
		generator: generator,
		topK:      topK,
	}
}

// Ask answers question. Routing and retrieval failures degrade to searching
// global; generation failures come back as the answer text.
func (s *QAService) Ask(ctx context.Context, question string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	kbs, err := s.registry.List(ctx)
	if err != nil {
		telemetry.ReportDegraded(ctx, "list knowledge bases", err)
		kbs = []string{domain.GlobalKnowledgeBase}
	}

	route := s.router.Route(ctx, question, kbs)
	targets := route.MatchedKBs
	if len(targets) == 0 {
		targets = []string{domain.GlobalKnowledgeBase}
	}

	chunks := s.retrieve(ctx, question, targets)
	answer := s.generator.Generate(ctx, FormatContexts(chunks), question)

	return &AskResult{
		Answer:        answer,
		Confidence:    route.Confidence,
		MatchedKBs:    targets,
		ContextLength: len(chunks),
	}, nil
}

// AskIn answers question from kb alone, skipping the router. An empty kb
// behaves like Ask.
func (s *QAService) AskIn(ctx context.Context, question, kb string) (*AskResult, error) {
	name := domain.NormalizeKnowledgeBaseName(kb)
	if name == "" {
		return s.Ask(ctx, question)
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	stats, err := s.registry.Stats(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, domain.ErrKnowledgeBaseNotFound
	}

	chunks := s.retrieve(ctx, question, []string{name})
	answer := s.generator.Generate(ctx, FormatContexts(chunks), question)

	return &AskResult{
		Answer:        answer,
		Confidence:    1,
		MatchedKBs:    []string{name},
		ContextLength: len(chunks),
	}, nil
}

// retrieve searches each knowledge base in turn. A chunk found through
// both its own knowledge base and the global mirror is kept once. Equal text
// from different PDFs is kept for each.
func (s *QAService) retrieve(ctx context.Context, question string, kbs []string) []domain.ScoredChunk {
	seen := make(map[string]struct{})
	var out []domain.ScoredChunk
	for _, kb := range kbs {
		for _, hit := range s.store.Search(ctx, question, s.topK, kb) {
			key := fmt.Sprintf("%s\x00%s\x00%d", hit.Chunk.Origin(), hit.Chunk.Source, hit.Chunk.ChunkIndex)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, hit)
		}
	}
	return out
}
