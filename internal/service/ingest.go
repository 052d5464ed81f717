package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/telemetry"
)

// TextExtractor reads the text of a PDF, pages joined by page markers.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ArchiveStore keeps a copy of every ingested PDF.
type ArchiveStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// IngestService turns PDFs into chunks in a knowledge base and its global mirror.
type IngestService struct {
	store     *KnowledgeStore
	extractor TextExtractor
	splitter  *Splitter
	uuidGen   UUIDGenerator
	archive   ArchiveStore
	now       func() time.Time
}

func NewIngestService(store *KnowledgeStore, extractor TextExtractor, cfg ChunkConfig) *IngestService {
	return &IngestService{
		store:     store,
		extractor: extractor,
		splitter:  NewSplitter(cfg),
		uuidGen:   &DefaultUUIDGenerator{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithArchive enables copying ingested PDFs to archive.
func (s *IngestService) WithArchive(archive ArchiveStore) *IngestService {
	s.archive = archive
	return s
}

// ArchiveKey is the object key of a PDF archived for kb.
func ArchiveKey(kb, source string) string {
	return path.Join(ArchivePrefix(kb), source)
}

// ArchivePrefix is the key prefix holding every PDF archived for kb.
func ArchivePrefix(kb string) string {
	return domain.NormalizeKnowledgeBaseName(kb) + "/"
}

// Ingest extracts, chunks and stores the PDF at filePath in kb. When kb is
// not global every chunk is mirrored into global. It returns the number of
// chunks produced, not counting mirrors.
func (s *IngestService) Ingest(ctx context.Context, filePath, kb string) (int, error) {
	kb = domain.NormalizeKnowledgeBaseName(kb)
	if kb == "" {
		return 0, domain.ErrInvalidKnowledgeBaseName
	}
	if domain.IsReservedKnowledgeBaseName(kb) {
		return 0, domain.ErrReservedKnowledgeBaseName
	}
	source := filepath.Base(filePath)

	ctx, span := telemetry.StartSpan(ctx, "ingest.pdf", telemetry.SpanAttributes{
		KnowledgeBase: kb,
		Source:        source,
		Operation:     "ingest",
	})
	defer span.End()

	text, err := s.extractor.Extract(ctx, filePath)
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	segments := nonEmptySegments(s.splitter.Split(text))
	if len(segments) == 0 {
		log.Printf("ingest: %s produced no text, nothing stored in %s", source, kb)
		return 0, nil
	}

	createdAt := s.now()
	chunks := make([]domain.Chunk, 0, len(segments))
	for i, seg := range segments {
		chunks = append(chunks, domain.Chunk{
			ID:            s.uuidGen.NewString(),
			Content:       seg.Text,
			Source:        source,
			KnowledgeBase: kb,
			ChunkIndex:    i,
			TotalChunks:   len(segments),
			Offset:        seg.Start,
			CreatedAt:     createdAt,
		})
	}

	if err := s.store.embedChunks(ctx, chunks); err != nil {
		span.SetError(err)
		return 0, err
	}

	records := chunks
	if kb != domain.GlobalKnowledgeBase {
		records = make([]domain.Chunk, 0, 2*len(chunks))
		records = append(records, chunks...)
		for _, c := range chunks {
			records = append(records, c.MirrorToGlobal(s.uuidGen.NewString()))
		}
	}

	s.store.writeMu.Lock()
	err = s.store.insertLocked(ctx, records)
	s.store.writeMu.Unlock()
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	span.SetData("chunks", len(chunks))
	log.Printf("ingest: added %d chunks from %s to %s", len(chunks), source, kb)
	s.archivePDF(ctx, filePath, kb, source)
	return len(chunks), nil
}

// IngestReader spools an uploaded PDF to a temporary file named after the
// upload and ingests it.
func (s *IngestService) IngestReader(ctx context.Context, filename string, r io.Reader, kb string) (int, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if !IsPDFName(name) {
		return 0, domain.ErrNotPDF
	}

	dir, err := os.MkdirTemp("", "interviewqa-upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create upload dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to write upload file: %w", err)
	}

	return s.Ingest(ctx, dst, kb)
}

// IsPDFName reports whether name has a .pdf extension, in any case.
func IsPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// archivePDF is best effort: the chunks are already stored.
func (s *IngestService) archivePDF(ctx context.Context, filePath, kb, source string) {
	if s.archive == nil {
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		telemetry.ReportDegraded(ctx, "archive "+source, err)
		return
	}
	defer f.Close()

	if err := s.archive.PutObject(ctx, ArchiveKey(kb, source), f, "application/pdf"); err != nil {
		telemetry.ReportDegraded(ctx, "archive "+source, err)
	}
}
