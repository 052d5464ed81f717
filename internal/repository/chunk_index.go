package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const chunkColumns = `id, knowledge_base, source, content, chunk_index, total_chunks, char_offset, original_kb, marker, embedding, created_at`

// ChunkIndex stores chunks in Postgres and ranks them with pgvector's cosine
// distance. It survives restarts, so it needs no snapshot.
type ChunkIndex struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewChunkIndex(pool *pgxpool.Pool) *ChunkIndex {
	return &ChunkIndex{pool: pool, db: pool}
}

// InitializeEmpty removes every stored chunk.
func (r *ChunkIndex) InitializeEmpty(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `TRUNCATE TABLE kb_chunks`)
	return err
}

// Insert writes all chunks in one transaction.
func (r *ChunkIndex) Insert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if err := domain.ValidateChunk(&chunks[i]); err != nil {
			return err
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		var embedding *pgvector.Vector
		if len(c.Embedding) > 0 {
			v := pgvector.NewVector(c.Embedding)
			embedding = &v
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO kb_chunks
				(id, knowledge_base, source, content, chunk_index, total_chunks, char_offset, original_kb, marker, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (id) DO UPDATE SET
				knowledge_base = EXCLUDED.knowledge_base,
				source = EXCLUDED.source,
				content = EXCLUDED.content,
				chunk_index = EXCLUDED.chunk_index,
				total_chunks = EXCLUDED.total_chunks,
				char_offset = EXCLUDED.char_offset,
				original_kb = EXCLUDED.original_kb,
				marker = EXCLUDED.marker,
				embedding = EXCLUDED.embedding,
				created_at = EXCLUDED.created_at`,
			c.ID,
			c.KnowledgeBase,
			c.Source,
			c.Content,
			c.ChunkIndex,
			c.TotalChunks,
			c.Offset,
			nullableString(c.OriginalKB),
			c.Marker,
			embedding,
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// Delete removes chunks by id. Unknown ids are ignored.
func (r *ChunkIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM kb_chunks WHERE id = ANY($1)`, ids)
	return err
}

// Search returns the topK document chunks of kb closest to vec.
func (r *ChunkIndex) Search(ctx context.Context, vec []float32, topK int, kb string) ([]domain.ScoredChunk, error) {
	if topK <= 0 || len(vec) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`, 1 - (embedding <=> $1) AS score
		 FROM kb_chunks
		 WHERE knowledge_base = $2
		   AND NOT marker
		   AND embedding IS NOT NULL
		   AND vector_dims(embedding) = $4
		 ORDER BY embedding <=> $1, seq
		 LIMIT $3`,
		pgvector.NewVector(vec), kb, topK, len(vec),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ScoredChunk, 0, topK)
	for rows.Next() {
		var hit domain.ScoredChunk
		var score float64
		if err := scanChunk(rows, &hit.Chunk, &score); err != nil {
			return nil, err
		}
		hit.Score = float32(score)
		results = append(results, hit)
	}
	return results, rows.Err()
}

// All returns every chunk, markers included, in insertion order.
func (r *ChunkIndex) All(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx, `SELECT `+chunkColumns+` FROM kb_chunks ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0)
	for rows.Next() {
		var c domain.Chunk
		if err := scanChunk(rows, &c); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (r *ChunkIndex) KnowledgeBases(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT knowledge_base FROM kb_chunks ORDER BY knowledge_base`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *ChunkIndex) ChunkIDs(ctx context.Context, kb string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM kb_chunks WHERE knowledge_base = $1 ORDER BY id`, kb)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats reports document and source counts for kb. ok is false when kb has no chunks.
func (r *ChunkIndex) Stats(ctx context.Context, kb string) (domain.KnowledgeBaseStats, bool, error) {
	var total, documents int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT marker) FROM kb_chunks WHERE knowledge_base = $1`,
		kb,
	).Scan(&total, &documents)
	if err != nil {
		return domain.KnowledgeBaseStats{}, false, err
	}
	if total == 0 {
		return domain.KnowledgeBaseStats{}, false, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT source FROM kb_chunks WHERE knowledge_base = $1 AND NOT marker ORDER BY source`,
		kb,
	)
	if err != nil {
		return domain.KnowledgeBaseStats{}, false, err
	}
	defer rows.Close()

	sources := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return domain.KnowledgeBaseStats{}, false, err
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return domain.KnowledgeBaseStats{}, false, err
	}

	return domain.KnowledgeBaseStats{
		Name:          kb,
		DocumentCount: documents,
		SourceCount:   len(sources),
		Sources:       sources,
	}, true, nil
}

func scanChunk(row pgx.Row, c *domain.Chunk, extra ...any) error {
	var originalKB *string
	var embedding *pgvector.Vector
	dest := []any{
		&c.ID,
		&c.KnowledgeBase,
		&c.Source,
		&c.Content,
		&c.ChunkIndex,
		&c.TotalChunks,
		&c.Offset,
		&originalKB,
		&c.Marker,
		&embedding,
		&c.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	if originalKB != nil {
		c.OriginalKB = *originalKB
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
