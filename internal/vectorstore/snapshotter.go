package vectorstore

import (
	"context"
	"sync"
)

// Snapshotter ties a MemoryIndex to its SnapshotStore and skips saves when
// the index has not changed since the last one.
type Snapshotter struct {
	index *MemoryIndex
	store *SnapshotStore

	mu    sync.Mutex
	saved uint64
	dirty bool
}

func NewSnapshotter(index *MemoryIndex, store *SnapshotStore) *Snapshotter {
	return &Snapshotter{index: index, store: store, dirty: true}
}

// Load restores the index from the store and returns the number of chunks
// read. An empty snapshot leaves the index empty.
func (s *Snapshotter) Load(ctx context.Context) (int, error) {
	chunks, err := s.store.Load()
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		if err := s.index.InitializeEmpty(ctx); err != nil {
			return 0, err
		}
	} else if err := s.index.Restore(chunks); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.saved = s.index.Version()
	s.dirty = false
	s.mu.Unlock()
	return len(chunks), nil
}

// Save writes the index if it changed since the last Load or Save. It
// reports whether anything was written.
func (s *Snapshotter) Save(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, version := s.index.Export()
	if !s.dirty && version == s.saved {
		return false, nil
	}
	if err := s.store.Save(chunks); err != nil {
		return false, err
	}
	s.saved = version
	s.dirty = false
	return true, nil
}

func (s *Snapshotter) Close() error {
	return s.store.Close()
}
