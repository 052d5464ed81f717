package jobs

import (
	"context"
	"fmt"
	"log"
)

// Snapshotter persists the in-memory index. vectorstore.Snapshotter implements it.
type Snapshotter interface {
	Save(ctx context.Context) (bool, error)
}

// SnapshotJob writes a snapshot on every tick when the index changed.
type SnapshotJob struct {
	snapshotter Snapshotter
}

func NewSnapshotJob(snapshotter Snapshotter) *SnapshotJob {
	return &SnapshotJob{snapshotter: snapshotter}
}

// Run saves the index when it changed since the last save.
func (j *SnapshotJob) Run(ctx context.Context) error {
	saved, err := j.snapshotter.Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	if saved {
		log.Println("snapshot: index saved")
	}
	return nil
}
