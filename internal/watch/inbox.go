// Package watch ingests PDFs dropped into an inbox directory.
//
// A file directly under the root goes to global; a file under root/<name>/
// goes to the knowledge base <name>.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/telemetry"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce waits for a copy to finish before ingesting.
const DefaultDebounce = 2 * time.Second

// Ingester stores one PDF in a knowledge base.
type Ingester interface {
	Ingest(ctx context.Context, filePath, kb string) (int, error)
}

// Inbox watches root and its first-level subdirectories.
type Inbox struct {
	root     string
	ingester Ingester
	debounce time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewInbox(root string, ingester Ingester, debounce time.Duration) *Inbox {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Inbox{
		root:     filepath.Clean(root),
		ingester: ingester,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
}

// Start begins watching. It returns once the watches are in place; events
// are handled until ctx is done or Close is called.
func (in *Inbox) Start(ctx context.Context) error {
	if err := os.MkdirAll(in.root, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox %s: %w", in.root, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(in.root); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", in.root, err)
	}

	entries, err := os.ReadDir(in.root)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to read inbox %s: %w", in.root, err)
	}
	for _, e := range entries {
		if e.IsDir() && !isHidden(e.Name()) {
			if err := watcher.Add(filepath.Join(in.root, e.Name())); err != nil {
				log.Printf("watch: cannot watch %s: %v", e.Name(), err)
			}
		}
	}

	in.watcher = watcher
	in.wg.Add(1)
	go in.loop(ctx)

	log.Printf("watch: ingesting PDFs dropped into %s", in.root)
	return nil
}

// Close stops the watcher and drops ingests that have not started yet.
func (in *Inbox) Close() error {
	in.mu.Lock()
	for path, t := range in.pending {
		t.Stop()
		delete(in.pending, path)
	}
	in.mu.Unlock()

	if in.watcher == nil {
		return nil
	}
	err := in.watcher.Close()
	in.wg.Wait()
	return err
}

func (in *Inbox) loop(ctx context.Context) {
	defer in.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			in.handleEvent(ctx, ev)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %v", err)
		}
	}
}

func (in *Inbox) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if filepath.Dir(ev.Name) == in.root && !isHidden(info.Name()) {
			if err := in.watcher.Add(ev.Name); err != nil {
				log.Printf("watch: cannot watch %s: %v", ev.Name, err)
			}
		}
		return
	}

	kb, ok := in.KnowledgeBaseFor(ev.Name)
	if !ok {
		return
	}
	in.schedule(ctx, ev.Name, kb)
}

// KnowledgeBaseFor maps a file path inside the inbox to its knowledge base.
// Hidden files, non-PDFs and paths outside the inbox are rejected.
func (in *Inbox) KnowledgeBaseFor(path string) (string, bool) {
	rel, err := filepath.Rel(in.root, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	name := parts[len(parts)-1]
	if isHidden(name) || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", false
	}

	switch len(parts) {
	case 1:
		return domain.GlobalKnowledgeBase, true
	case 2:
		if isHidden(parts[0]) {
			return "", false
		}
		kb := domain.NormalizeKnowledgeBaseName(parts[0])
		return kb, kb != ""
	default:
		return "", false
	}
}

// schedule restarts the debounce timer for path so a file still being
// written is ingested once, after the last event.
func (in *Inbox) schedule(ctx context.Context, path, kb string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if t, ok := in.pending[path]; ok {
		t.Stop()
	}
	in.pending[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.pending, path)
		in.mu.Unlock()
		in.ingest(ctx, path, kb)
	})
}

func (in *Inbox) ingest(ctx context.Context, path, kb string) {
	if ctx.Err() != nil {
		return
	}
	n, err := in.ingester.Ingest(ctx, path, kb)
	if err != nil {
		telemetry.ReportDegraded(ctx, "inbox ingest "+filepath.Base(path), err)
		return
	}
	log.Printf("watch: ingested %s into %s (%d chunks)", filepath.Base(path), kb, n)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
