// Package watch adapts filesystem events for the ingest directory into
// queue insertions: an fsnotify watcher feeds a per-path debounce that
// stats a new file until its size stops moving, then enqueues it.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Adapter watches a single root directory non-recursively for new video
// files and hands settled paths off to the enqueue callback once their
// size stops changing.
type Adapter struct {
	root            string
	extensions      map[string]bool
	checkInterval   time.Duration
	minStableChecks int
	enqueue         func(ctx context.Context, path string) error

	mu      sync.Mutex
	pending map[string]context.CancelFunc
}

// New builds an Adapter. extensions are matched case-insensitively and
// should include the leading dot (".mp4").
func New(root string, extensions []string, checkInterval time.Duration, minStableChecks int, enqueue func(ctx context.Context, path string) error) *Adapter {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}
	if minStableChecks <= 0 {
		minStableChecks = 2
	}
	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(e)] = true
	}
	return &Adapter{
		root:            root,
		extensions:      extSet,
		checkInterval:   checkInterval,
		minStableChecks: minStableChecks,
		enqueue:         enqueue,
		pending:         make(map[string]context.CancelFunc),
	}
}

// Run blocks, dispatching settled files to the enqueue callback until ctx is
// canceled. In-flight stability checks are canceled on shutdown. The adapter
// performs no directory sweep at startup, so a file whose check was canceled
// is enqueued only if a new Create or Rename event fires for it later.
func (a *Adapter) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(a.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			a.cancelAll()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			a.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watch adapter fsnotify error", "error", err)
		}
	}
}

func (a *Adapter) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	if !a.extensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	a.mu.Lock()
	if cancel, ok := a.pending[event.Name]; ok {
		cancel()
	}
	checkCtx, cancel := context.WithCancel(ctx)
	a.pending[event.Name] = cancel
	a.mu.Unlock()

	go a.awaitStability(checkCtx, event.Name)
}

func (a *Adapter) awaitStability(ctx context.Context, path string) {
	defer func() {
		a.mu.Lock()
		delete(a.pending, path)
		a.mu.Unlock()
	}()

	if !waitStable(ctx, path, a.checkInterval, a.minStableChecks) {
		return
	}

	if err := a.enqueue(ctx, path); err != nil {
		slog.Error("failed to enqueue settled file", "path", path, "error", err)
	}
}

func (a *Adapter) cancelAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, cancel := range a.pending {
		cancel()
	}
}
