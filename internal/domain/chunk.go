package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// GlobalKnowledgeBase mirrors every ingested chunk and is the fallback search target.
	GlobalKnowledgeBase = "global"
	// SystemKnowledgeBase is reserved: it can be neither created nor deleted.
	SystemKnowledgeBase = "system"
)

// Chunk is the unit of storage and retrieval: a bounded span of extracted PDF text.
type Chunk struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Source        string    `json:"source"`
	KnowledgeBase string    `json:"knowledge_base"`
	ChunkIndex    int       `json:"chunk_id"`
	TotalChunks   int       `json:"total_chunks"`
	OriginalKB    string    `json:"original_kb,omitempty"`
	Marker        bool      `json:"marker,omitempty"`
	Offset        int       `json:"offset"`
	Embedding     []float32 `json:"embedding,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// NormalizeKnowledgeBaseName is the single normalization applied to every knowledge base name.
func NormalizeKnowledgeBaseName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsProtectedKnowledgeBase reports whether name may never be deleted.
func IsProtectedKnowledgeBase(name string) bool {
	switch NormalizeKnowledgeBaseName(name) {
	case GlobalKnowledgeBase, SystemKnowledgeBase:
		return true
	}
	return false
}

// IsReservedKnowledgeBaseName reports whether name may never hold documents.
// global is protected but not reserved since it receives every mirror.
func IsReservedKnowledgeBaseName(name string) bool {
	return NormalizeKnowledgeBaseName(name) == SystemKnowledgeBase
}

// NewMarkerChunk returns the empty chunk that makes a knowledge base exist without documents.
func NewMarkerChunk(id, knowledgeBase string, createdAt time.Time) Chunk {
	return Chunk{
		ID:            id,
		Source:        "",
		KnowledgeBase: NormalizeKnowledgeBaseName(knowledgeBase),
		Marker:        true,
		CreatedAt:     createdAt,
	}
}

// MirrorToGlobal returns the copy of c stored in the global knowledge base.
func (c Chunk) MirrorToGlobal(id string) Chunk {
	mirror := c
	mirror.ID = id
	mirror.OriginalKB = c.KnowledgeBase
	mirror.KnowledgeBase = GlobalKnowledgeBase
	if c.Embedding != nil {
		mirror.Embedding = append([]float32(nil), c.Embedding...)
	}
	return mirror
}

// Origin is the knowledge base c was ingested into, also for a global mirror.
func (c Chunk) Origin() string {
	if c.OriginalKB != "" {
		return c.OriginalKB
	}
	return c.KnowledgeBase
}

// ValidateChunk validates a Chunk before it is stored
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if c.KnowledgeBase == "" {
		return fmt.Errorf("chunk knowledge base is required")
	}
	if c.KnowledgeBase != NormalizeKnowledgeBaseName(c.KnowledgeBase) {
		return fmt.Errorf("chunk knowledge base %q is not normalized", c.KnowledgeBase)
	}
	if !c.Marker && strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("chunk content is required")
	}
	return nil
}
