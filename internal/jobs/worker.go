// Package jobs runs periodic background work such as index snapshots.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultFinalTimeout bounds the run made on Stop.
const DefaultFinalTimeout = 30 * time.Second

// Job is one unit of periodic work.
type Job interface {
	Run(ctx context.Context) error
}

// Worker runs its job on every tick and once more on Stop, so work queued
// since the last tick (an unsaved index change) is not lost on shutdown.
type Worker struct {
	name         string
	job          Job
	interval     time.Duration
	finalTimeout time.Duration

	stop     chan struct{}
	done     chan struct{}
	start    sync.Once
	shutdown sync.Once
	failures int
}

// NewWorker creates a worker; name prefixes its log lines.
func NewWorker(name string, job Job, interval time.Duration) *Worker {
	return &Worker{
		name:         name,
		job:          job,
		interval:     interval,
		finalTimeout: DefaultFinalTimeout,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the loop in a goroutine. Later calls do nothing.
func (w *Worker) Start(ctx context.Context) {
	w.start.Do(func() {
		log.Printf("%s: worker started, interval %v", w.name, w.interval)
		go w.loop(ctx)
	})
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s: worker stopped: context cancelled", w.name)
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce logs the first failure of a streak and the recovery, not every tick.
func (w *Worker) runOnce(ctx context.Context) {
	err := w.job.Run(ctx)
	switch {
	case err != nil:
		w.failures++
		if w.failures == 1 {
			log.Printf("%s: run failed: %v", w.name, err)
		}
	case w.failures > 0:
		log.Printf("%s: recovered after %d failed runs", w.name, w.failures)
		w.failures = 0
	}
}

// Stop halts the loop and runs the job a final time. It is safe to call
// more than once and before Start.
func (w *Worker) Stop() {
	w.shutdown.Do(func() {
		// Never started: mark done so the wait below returns at once.
		w.start.Do(func() { close(w.done) })
		close(w.stop)
		<-w.done

		ctx, cancel := context.WithTimeout(context.Background(), w.finalTimeout)
		defer cancel()
		if err := w.job.Run(ctx); err != nil {
			log.Printf("%s: final run failed: %v", w.name, err)
		}
		log.Printf("%s: worker shutdown complete", w.name)
	})
}
