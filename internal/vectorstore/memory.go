// Package vectorstore holds the in-process chunk index and its on-disk snapshot.
package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/cloo-solutions/interviewqa/internal/domain"
)

type entry struct {
	chunk domain.Chunk
	seq   uint64
}

// registry tracks one knowledge base: the ids of its chunks, how many of
// them are documents (not markers), and a refcount per source file.
type registry struct {
	ids       map[string]struct{}
	documents int
	sources   map[string]int
}

func newRegistry() *registry {
	return &registry{
		ids:     make(map[string]struct{}),
		sources: make(map[string]int),
	}
}

// MemoryIndex is a brute-force cosine index. Membership and stats queries are
// answered from per knowledge base registries, never by scanning chunks.
type MemoryIndex struct {
	mu      sync.RWMutex
	chunks  map[string]*entry
	kbs     map[string]*registry
	nextSeq uint64
	version uint64
}

func NewMemoryIndex() *MemoryIndex {
	idx := &MemoryIndex{}
	idx.reset()
	return idx
}

func (m *MemoryIndex) reset() {
	m.chunks = make(map[string]*entry)
	m.kbs = make(map[string]*registry)
	m.nextSeq = 0
}

// InitializeEmpty drops all content.
func (m *MemoryIndex) InitializeEmpty(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reset()
	m.version++
	return nil
}

// Insert stores chunks as given. Chunks are not deduplicated; reusing an id
// replaces the earlier chunk.
func (m *MemoryIndex) Insert(_ context.Context, chunks []domain.Chunk) error {
	for i := range chunks {
		if err := domain.ValidateChunk(&chunks[i]); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range chunks {
		m.put(c)
	}
	if len(chunks) > 0 {
		m.version++
	}
	return nil
}

func (m *MemoryIndex) put(c domain.Chunk) {
	if _, exists := m.chunks[c.ID]; exists {
		m.remove(c.ID)
	}

	m.chunks[c.ID] = &entry{chunk: c, seq: m.nextSeq}
	m.nextSeq++

	reg, ok := m.kbs[c.KnowledgeBase]
	if !ok {
		reg = newRegistry()
		m.kbs[c.KnowledgeBase] = reg
	}
	reg.ids[c.ID] = struct{}{}
	if !c.Marker {
		reg.documents++
		reg.sources[c.Source]++
	}
}

func (m *MemoryIndex) remove(id string) bool {
	e, ok := m.chunks[id]
	if !ok {
		return false
	}
	delete(m.chunks, id)

	c := e.chunk
	reg := m.kbs[c.KnowledgeBase]
	delete(reg.ids, id)
	if !c.Marker {
		reg.documents--
		reg.sources[c.Source]--
		if reg.sources[c.Source] <= 0 {
			delete(reg.sources, c.Source)
		}
	}
	if len(reg.ids) == 0 {
		delete(m.kbs, c.KnowledgeBase)
	}
	return true
}

// Delete removes chunks by id. Unknown ids are ignored.
func (m *MemoryIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := false
	for _, id := range ids {
		if m.remove(id) {
			removed = true
		}
	}
	if removed {
		m.version++
	}
	return nil
}

// Search ranks the document chunks of kb by cosine similarity to vec.
func (m *MemoryIndex) Search(_ context.Context, vec []float32, topK int, kb string) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.kbs[kb]
	if !ok {
		return []domain.ScoredChunk{}, nil
	}

	type hit struct {
		scored domain.ScoredChunk
		seq    uint64
	}
	hits := make([]hit, 0, len(reg.ids))
	for id := range reg.ids {
		e := m.chunks[id]
		if e.chunk.Marker || len(e.chunk.Embedding) != len(vec) {
			continue
		}
		hits = append(hits, hit{
			scored: domain.ScoredChunk{Chunk: e.chunk, Score: cosine(vec, e.chunk.Embedding)},
			seq:    e.seq,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].scored.Score != hits[j].scored.Score {
			return hits[i].scored.Score > hits[j].scored.Score
		}
		return hits[i].seq < hits[j].seq
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = h.scored
	}
	return out, nil
}

// All returns every stored chunk, markers included, in insertion order.
func (m *MemoryIndex) All(_ context.Context) ([]domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ordered(), nil
}

func (m *MemoryIndex) ordered() []domain.Chunk {
	entries := make([]*entry, 0, len(m.chunks))
	for _, e := range m.chunks {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]domain.Chunk, len(entries))
	for i, e := range entries {
		out[i] = e.chunk
	}
	return out
}

// KnowledgeBases returns the sorted names of every knowledge base holding at
// least one chunk.
func (m *MemoryIndex) KnowledgeBases(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.kbs))
	for name := range m.kbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ChunkIDs returns the ids of every chunk tagged kb, markers included.
func (m *MemoryIndex) ChunkIDs(_ context.Context, kb string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.kbs[kb]
	if !ok {
		return []string{}, nil
	}
	ids := make([]string, 0, len(reg.ids))
	for id := range reg.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Stats reports document and source counts for kb. ok is false when kb does not exist.
func (m *MemoryIndex) Stats(_ context.Context, kb string) (domain.KnowledgeBaseStats, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.kbs[kb]
	if !ok {
		return domain.KnowledgeBaseStats{}, false, nil
	}

	sources := make([]string, 0, len(reg.sources))
	for s := range reg.sources {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	return domain.KnowledgeBaseStats{
		Name:          kb,
		DocumentCount: reg.documents,
		SourceCount:   len(sources),
		Sources:       sources,
	}, true, nil
}

// Version increases on every mutation. The snapshot job uses it to skip
// writes when nothing changed.
func (m *MemoryIndex) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Export returns all chunks in insertion order along with the current version.
func (m *MemoryIndex) Export() ([]domain.Chunk, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ordered(), m.version
}

// Restore replaces the index contents with chunks, rebuilding the registries.
func (m *MemoryIndex) Restore(chunks []domain.Chunk) error {
	for i := range chunks {
		if err := domain.ValidateChunk(&chunks[i]); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.reset()
	for _, c := range chunks {
		m.put(c)
	}
	m.version++
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
