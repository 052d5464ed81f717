package service

import (
	"context"
	"log"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/telemetry"
)

// KnowledgeBaseService lists, creates, deletes and describes knowledge bases.
// A knowledge base exists while at least one chunk, possibly a marker, carries its name.
type KnowledgeBaseService struct {
	store   *KnowledgeStore
	uuidGen UUIDGenerator
	archive ArchiveStore
	now     func() time.Time
}

func NewKnowledgeBaseService(store *KnowledgeStore) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		store:   store,
		uuidGen: &DefaultUUIDGenerator{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithArchive makes Delete also remove archived PDFs of the knowledge base.
func (s *KnowledgeBaseService) WithArchive(archive ArchiveStore) *KnowledgeBaseService {
	s.archive = archive
	return s
}

// List returns the sorted knowledge base names, or just global when the store is empty.
func (s *KnowledgeBaseService) List(ctx context.Context) ([]string, error) {
	names, err := s.store.index.KnowledgeBases(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStorageFailed, err)
	}
	if len(names) == 0 {
		return []string{domain.GlobalKnowledgeBase}, nil
	}
	return names, nil
}

// EnsureGlobal inserts a global marker when global holds no chunks.
func (s *KnowledgeBaseService) EnsureGlobal(ctx context.Context) error {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()
	return s.ensureGlobalLocked(ctx)
}

func (s *KnowledgeBaseService) ensureGlobalLocked(ctx context.Context) error {
	_, exists, err := s.store.index.Stats(ctx, domain.GlobalKnowledgeBase)
	if err != nil {
		return domain.Wrap(domain.ErrStorageFailed, err)
	}
	if exists {
		return nil
	}
	log.Printf("registry: recreating %s knowledge base", domain.GlobalKnowledgeBase)
	return s.store.insertLocked(ctx, []domain.Chunk{
		domain.NewMarkerChunk(s.uuidGen.NewString(), domain.GlobalKnowledgeBase, s.now()),
	})
}

// Create registers name with a marker chunk and returns the normalized name.
// An existing name yields ErrKnowledgeBaseAlreadyExists, which callers report
// as a warning. Reserved names are refused.
func (s *KnowledgeBaseService) Create(ctx context.Context, name string) (string, error) {
	kb := domain.NormalizeKnowledgeBaseName(name)
	if kb == "" {
		return "", domain.ErrInvalidKnowledgeBaseName
	}
	if domain.IsReservedKnowledgeBaseName(kb) {
		return "", domain.ErrReservedKnowledgeBaseName
	}

	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	_, exists, err := s.store.index.Stats(ctx, kb)
	if err != nil {
		return "", domain.Wrap(domain.ErrStorageFailed, err)
	}
	if exists {
		return kb, domain.ErrKnowledgeBaseAlreadyExists
	}

	if err := s.ensureGlobalLocked(ctx); err != nil {
		return "", err
	}
	if kb == domain.GlobalKnowledgeBase {
		return kb, nil
	}

	if err := s.store.insertLocked(ctx, []domain.Chunk{
		domain.NewMarkerChunk(s.uuidGen.NewString(), kb, s.now()),
	}); err != nil {
		return "", err
	}
	log.Printf("registry: created knowledge base %s", kb)
	return kb, nil
}

// Delete removes every chunk of name and returns how many were removed.
// global and system are protected. A name with no chunks yields
// ErrKnowledgeBaseNotFound, which callers report as a warning.
func (s *KnowledgeBaseService) Delete(ctx context.Context, name string) (int, error) {
	kb := domain.NormalizeKnowledgeBaseName(name)
	if kb == "" {
		return 0, domain.ErrInvalidKnowledgeBaseName
	}
	if domain.IsProtectedKnowledgeBase(kb) {
		return 0, domain.ErrProtectedKnowledgeBase
	}

	ids, err := s.deleteAll(ctx, kb)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, domain.ErrKnowledgeBaseNotFound
	}

	log.Printf("registry: deleted knowledge base %s (%d chunks)", kb, len(ids))
	s.deleteArchive(ctx, kb)
	return len(ids), nil
}

func (s *KnowledgeBaseService) deleteAll(ctx context.Context, kb string) ([]string, error) {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	ids, err := s.store.index.ChunkIDs(ctx, kb)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStorageFailed, err)
	}
	if len(ids) == 0 {
		return ids, nil
	}
	return ids, s.store.deleteLocked(ctx, ids)
}

// Stats describes one knowledge base, or every knowledge base when name is empty.
func (s *KnowledgeBaseService) Stats(ctx context.Context, name string) ([]domain.KnowledgeBaseStats, error) {
	kb := domain.NormalizeKnowledgeBaseName(name)
	if kb != "" {
		stats, ok, err := s.store.index.Stats(ctx, kb)
		if err != nil {
			return nil, domain.Wrap(domain.ErrStorageFailed, err)
		}
		if !ok {
			if kb == domain.GlobalKnowledgeBase {
				return []domain.KnowledgeBaseStats{emptyStats(kb)}, nil
			}
			return nil, domain.ErrKnowledgeBaseNotFound
		}
		return []domain.KnowledgeBaseStats{stats}, nil
	}

	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	all := make([]domain.KnowledgeBaseStats, 0, len(names))
	for _, n := range names {
		stats, ok, err := s.store.index.Stats(ctx, n)
		if err != nil {
			return nil, domain.Wrap(domain.ErrStorageFailed, err)
		}
		if !ok {
			stats = emptyStats(n)
		}
		all = append(all, stats)
	}
	return all, nil
}

func emptyStats(kb string) domain.KnowledgeBaseStats {
	return domain.KnowledgeBaseStats{Name: kb, Sources: []string{}}
}

func (s *KnowledgeBaseService) deleteArchive(ctx context.Context, kb string) {
	if s.archive == nil {
		return
	}
	n, err := s.archive.DeletePrefix(ctx, ArchivePrefix(kb))
	if err != nil {
		telemetry.ReportDegraded(ctx, "archive delete "+kb, err)
		return
	}
	if n > 0 {
		log.Printf("registry: removed %d archived PDFs for %s", n, kb)
	}
}
