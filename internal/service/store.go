package service

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/telemetry"
	"github.com/google/uuid"
)

// ChunkIndex is the similarity index behind the store. The in-memory index
// and the pgvector repository both implement it.
type ChunkIndex interface {
	InitializeEmpty(ctx context.Context) error
	Insert(ctx context.Context, chunks []domain.Chunk) error
	Delete(ctx context.Context, ids []string) error
	Search(ctx context.Context, vec []float32, topK int, kb string) ([]domain.ScoredChunk, error)
	All(ctx context.Context) ([]domain.Chunk, error)
	KnowledgeBases(ctx context.Context) ([]string, error)
	ChunkIDs(ctx context.Context, kb string) ([]string, error)
	Stats(ctx context.Context, kb string) (domain.KnowledgeBaseStats, bool, error)
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbeddingClient is implemented by embedders that accept many inputs
// per call; ingestion then embeds a whole PDF in a few requests.
type BatchEmbeddingClient interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// UUIDGenerator generates unique identifiers
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeStore embeds chunks on the way in and queries on the way out.
// Every multi-step mutation (mirror into global, scan then delete, ensure
// global then create) runs under its writer lock.
type KnowledgeStore struct {
	index        ChunkIndex
	embedder     EmbeddingClient
	embedTimeout time.Duration

	writeMu sync.Mutex
}

func NewKnowledgeStore(index ChunkIndex, embedder EmbeddingClient, embedTimeout time.Duration) *KnowledgeStore {
	return &KnowledgeStore{
		index:        index,
		embedder:     embedder,
		embedTimeout: embedTimeout,
	}
}

// InitializeEmpty resets the index to an empty state.
func (s *KnowledgeStore) InitializeEmpty(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.index.InitializeEmpty(ctx)
}

// Insert embeds and stores chunks. Chunks are not deduplicated.
func (s *KnowledgeStore) Insert(ctx context.Context, chunks []domain.Chunk) error {
	if err := s.embedChunks(ctx, chunks); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.insertLocked(ctx, chunks)
}

// Delete removes chunks by id. Unknown ids are ignored.
func (s *KnowledgeStore) Delete(ctx context.Context, ids []string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.deleteLocked(ctx, ids)
}

// SearchE returns up to topK chunks of kb ranked by similarity to query.
func (s *KnowledgeStore) SearchE(ctx context.Context, query string, topK int, kb string) ([]domain.ScoredChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.search", telemetry.SpanAttributes{
		KnowledgeBase: kb,
		Operation:     "search",
	})
	defer span.End()

	vec, err := s.embed(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	results, err := s.index.Search(ctx, vec, topK, domain.NormalizeKnowledgeBaseName(kb))
	if err != nil {
		span.SetError(err)
		return nil, domain.Wrap(domain.ErrStorageFailed, err)
	}
	span.SetData("hits", len(results))
	return results, nil
}

// Search is SearchE with failures reported and degraded to no results.
func (s *KnowledgeStore) Search(ctx context.Context, query string, topK int, kb string) []domain.ScoredChunk {
	results, err := s.SearchE(ctx, query, topK, kb)
	if err != nil {
		telemetry.ReportDegraded(ctx, "search "+kb, err)
		return []domain.ScoredChunk{}
	}
	return results
}

// ContentSimilarity is the score of the chunk in kb closest to vec, or 0 when
// kb holds nothing. Global mirrors every knowledge base, so it has no
// content of its own to compare and always scores 0.
func (s *KnowledgeStore) ContentSimilarity(ctx context.Context, vec []float32, kb string) (float64, error) {
	kb = domain.NormalizeKnowledgeBaseName(kb)
	if kb == "" || kb == domain.GlobalKnowledgeBase {
		return 0, nil
	}

	results, err := s.index.Search(ctx, vec, 1, kb)
	if err != nil {
		return 0, domain.Wrap(domain.ErrStorageFailed, err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return float64(results[0].Score), nil
}

// All returns every stored chunk, markers included.
func (s *KnowledgeStore) All(ctx context.Context) ([]domain.Chunk, error) {
	return s.index.All(ctx)
}

func (s *KnowledgeStore) insertLocked(ctx context.Context, chunks []domain.Chunk) error {
	if err := s.index.Insert(ctx, chunks); err != nil {
		return domain.Wrap(domain.ErrStorageFailed, err)
	}
	return nil
}

func (s *KnowledgeStore) deleteLocked(ctx context.Context, ids []string) error {
	if err := s.index.Delete(ctx, ids); err != nil {
		return domain.Wrap(domain.ErrStorageFailed, err)
	}
	return nil
}

// embedChunks fills in missing embeddings. Markers carry no content and
// stay unembedded.
func (s *KnowledgeStore) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	var pending []int
	for i := range chunks {
		if !chunks[i].Marker && len(chunks[i].Embedding) == 0 {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	if batcher, ok := s.embedder.(BatchEmbeddingClient); ok {
		texts := make([]string, len(pending))
		for j, i := range pending {
			texts[j] = chunks[i].Content
		}
		vecs, err := s.embedBatch(ctx, batcher, texts)
		if err != nil {
			return err
		}
		for j, i := range pending {
			chunks[i].Embedding = vecs[j]
		}
		return nil
	}

	for _, i := range pending {
		vec, err := s.embed(ctx, chunks[i].Content)
		if err != nil {
			return err
		}
		chunks[i].Embedding = vec
	}
	return nil
}

func (s *KnowledgeStore) embedBatch(ctx context.Context, batcher BatchEmbeddingClient, texts []string) ([][]float32, error) {
	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}
	vecs, err := batcher.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, domain.Wrap(domain.ErrEmbeddingFailed, err)
	}
	return vecs, nil
}

func (s *KnowledgeStore) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}

	vec, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, domain.Wrap(domain.ErrEmbeddingFailed, err)
	}
	return vec, nil
}
