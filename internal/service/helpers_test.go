package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/embedding"
	"github.com/cloo-solutions/interviewqa/internal/vectorstore"
	"github.com/stretchr/testify/mock"
)

// fakeExtractor returns fixed text for any path.
type fakeExtractor struct {
	text  string
	err   error
	paths []string
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	return f.text, f.err
}

// seqUUIDs yields id-0001, id-0002, ...
type seqUUIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqUUIDs) NewString() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Complete(ctx context.Context, prompt string) (domain.Completion, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Completion), args.Error(1)
}

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, text string, labels []string) (map[string]float64, error) {
	args := m.Called(ctx, text, labels)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

type MockWebSearcher struct {
	mock.Mock
}

func (m *MockWebSearcher) Search(ctx context.Context, query string) ([]domain.WebResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WebResult), args.Error(1)
}

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// recordingArchive keeps object keys and bodies in memory.
type recordingArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	err     error
}

func newRecordingArchive() *recordingArchive {
	return &recordingArchive{objects: make(map[string][]byte)}
}

func (a *recordingArchive) PutObject(_ context.Context, key string, body io.Reader, _ string) error {
	if a.err != nil {
		return a.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = data
	return nil
}

func (a *recordingArchive) DeletePrefix(_ context.Context, prefix string) (int, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, prefix)
	return 1, nil
}

func newTestStore(t *testing.T) (*KnowledgeStore, *vectorstore.MemoryIndex) {
	t.Helper()
	idx := vectorstore.NewMemoryIndex()
	return NewKnowledgeStore(idx, embedding.NewHashingEmbedder(64), 0), idx
}

func newTestIngest(store *KnowledgeStore, text string) (*IngestService, *fakeExtractor) {
	ext := &fakeExtractor{text: text}
	svc := NewIngestService(store, ext, ChunkConfig{Size: 1000, Overlap: 200})
	svc.uuidGen = &seqUUIDs{}
	return svc, ext
}

func newTestRegistry(store *KnowledgeStore) *KnowledgeBaseService {
	reg := NewKnowledgeBaseService(store)
	reg.uuidGen = &seqUUIDs{n: 9000}
	return reg
}

func chunksOf(all []domain.Chunk, kb string) []domain.Chunk {
	var out []domain.Chunk
	for _, c := range all {
		if c.KnowledgeBase == kb && !c.Marker {
			out = append(out, c)
		}
	}
	return out
}
