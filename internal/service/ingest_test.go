package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// threePageText is about 2500 runes once page markers are added.
func threePageText() string {
	runes := []rune(sampleText(2460))
	return pdf.JoinPages([]string{
		string(runes[:820]),
		string(runes[820:1640]),
		string(runes[1640:]),
	})
}

func TestIngestService_MirrorsIntoGlobal(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)
	text := threePageText()
	svc, _ := newTestIngest(store, text)

	n, err := svc.Ingest(ctx, "/tmp/uploads/Java-Basics.pdf", "Java")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 3)

	all, err := idx.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2*n)

	java := chunksOf(all, "java")
	global := chunksOf(all, "global")
	require.Len(t, java, n)
	require.Len(t, global, n)
	for i := range java {
		assert.Equal(t, "Java-Basics.pdf", java[i].Source)
		assert.Empty(t, java[i].OriginalKB)
		assert.Equal(t, n, java[i].TotalChunks)
		assert.NotEmpty(t, java[i].Embedding)
	}
	for _, g := range global {
		assert.Equal(t, "java", g.OriginalKB)
	}

	stats, ok, err := idx.Stats(ctx, "java")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, n, stats.DocumentCount)
	assert.Equal(t, 1, stats.SourceCount)
}

func TestIngestService_GlobalIsNotDuplicated(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)
	svc, _ := newTestIngest(store, sampleText(1500))

	n, err := svc.Ingest(ctx, "notes.pdf", " GLOBAL ")
	require.NoError(t, err)

	all, _ := idx.All(ctx)
	assert.Len(t, all, n)
	for _, c := range all {
		assert.Equal(t, "global", c.KnowledgeBase)
		assert.Empty(t, c.OriginalKB)
	}
}

func TestIngestService_ChunksReconstructText(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)
	text := threePageText()
	svc, _ := newTestIngest(store, text)

	_, err := svc.Ingest(ctx, "a.pdf", "java")
	require.NoError(t, err)

	all, _ := idx.All(ctx)
	java := chunksOf(all, "java")
	sort.Slice(java, func(i, j int) bool { return java[i].ChunkIndex < java[j].ChunkIndex })

	segments := make([]Segment, len(java))
	for i, c := range java {
		segments[i] = Segment{Text: c.Content, Start: c.Offset}
	}
	assert.Equal(t, pdf.StripPageMarkers(text), pdf.StripPageMarkers(reconstruct(segments)))
}

func TestIngestService_SkipsBlankText(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)
	svc, _ := newTestIngest(store, "  \n\n  ")

	n, err := svc.Ingest(ctx, "blank.pdf", "java")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, _ := idx.All(ctx)
	assert.Empty(t, all)
}

func TestIngestService_Errors(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	svc, _ := newTestIngest(store, "text")
	_, err := svc.Ingest(ctx, "a.pdf", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidKnowledgeBaseName)

	svc, ext := newTestIngest(store, "")
	ext.err = domain.ErrFileNotFound
	_, err = svc.Ingest(ctx, "missing.pdf", "java")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestIngestService_RejectsReservedName(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)
	svc, ext := newTestIngest(store, sampleText(400))

	_, err := svc.Ingest(ctx, "a.pdf", "SYSTEM")
	assert.ErrorIs(t, err, domain.ErrReservedKnowledgeBaseName)

	_, err = svc.IngestReader(ctx, "a.pdf", strings.NewReader("%PDF-1.4"), "system")
	assert.ErrorIs(t, err, domain.ErrReservedKnowledgeBaseName)

	assert.Empty(t, ext.paths)
	all, _ := idx.All(ctx)
	assert.Empty(t, all)
}

func TestIngestService_EmbeddingFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	m := new(MockEmbeddingClient)
	m.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("quota"))

	store, idx := newTestStore(t)
	store.embedder = m
	svc, _ := newTestIngest(store, "some content")

	_, err := svc.Ingest(ctx, "a.pdf", "java")
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)

	all, _ := idx.All(ctx)
	assert.Empty(t, all)
}

func TestIngestService_IngestReader(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)
	svc, ext := newTestIngest(store, "volatile guarantees visibility")
	archive := newRecordingArchive()
	svc.WithArchive(archive)

	n, err := svc.IngestReader(ctx, "../../etc/Concurrency.PDF", strings.NewReader("%PDF-1.4 body"), "java")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, ext.paths, 1)
	assert.True(t, strings.HasSuffix(ext.paths[0], "Concurrency.PDF"))

	all, _ := idx.All(ctx)
	assert.Equal(t, "Concurrency.PDF", all[0].Source)
	assert.Equal(t, []byte("%PDF-1.4 body"), archive.objects["java/Concurrency.PDF"])
}

func TestIngestService_IngestReaderRejectsNonPDF(t *testing.T) {
	store, _ := newTestStore(t)
	svc, ext := newTestIngest(store, "text")

	_, err := svc.IngestReader(context.Background(), "notes.docx", strings.NewReader("x"), "java")

	assert.ErrorIs(t, err, domain.ErrNotPDF)
	assert.Empty(t, ext.paths)
}

func TestIngestService_ArchiveFailureDoesNotFailIngest(t *testing.T) {
	store, _ := newTestStore(t)
	svc, _ := newTestIngest(store, "text")
	archive := newRecordingArchive()
	archive.err = errors.New("bucket gone")
	svc.WithArchive(archive)

	n, err := svc.IngestReader(context.Background(), "a.pdf", strings.NewReader("x"), "java")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
