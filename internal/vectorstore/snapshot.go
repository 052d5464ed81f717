package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"go.etcd.io/bbolt"
)

var (
	bucketChunks = []byte("chunks")
	bucketMeta   = []byte("meta")
	keySavedAt   = []byte("saved_at")
)

// SnapshotStore persists the memory index to a bbolt file. Each Save
// replaces the previous snapshot in one transaction.
type SnapshotStore struct {
	db *bbolt.DB
}

func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketChunks); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SnapshotStore{db: db}, nil
}

// Save writes chunks in order, replacing any earlier snapshot.
func (s *SnapshotStore) Save(chunks []domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketChunks); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(bucketChunks)
		if err != nil {
			return err
		}

		for i, c := range chunks {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("failed to encode chunk %s: %w", c.ID, err)
			}
			if err := b.Put(seqKey(uint64(i)), data); err != nil {
				return err
			}
		}

		savedAt, err := time.Now().UTC().MarshalText()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keySavedAt, savedAt)
	})
}

// Load returns the snapshot's chunks in the order they were saved.
func (s *SnapshotStore) Load() ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var c domain.Chunk
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to decode chunk at key %x: %w", k, err)
			}
			chunks = append(chunks, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// SavedAt returns when the last snapshot was written, or the zero time.
func (s *SnapshotStore) SavedAt() (time.Time, error) {
	var t time.Time
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketMeta).Get(keySavedAt)
		if raw == nil {
			return nil
		}
		return t.UnmarshalText(raw)
	})
	return t, err
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// seqKey is big-endian so bbolt's byte ordering matches insertion order.
func seqKey(i uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, i)
	return k
}
