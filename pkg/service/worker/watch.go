package worker

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/service/loader"
	"github.com/secmon-lab/syllabus/pkg/utils/errutil"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 2 * time.Second

// DocsWatcher re-ingests documents of a local directory when they are
// created or written. Bursts of events are coalesced per file.
type DocsWatcher struct {
	ingester Ingester
	dir      *loader.Dir
	debounce time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	wg      sync.WaitGroup

	stopCh chan struct{}
	doneCh chan struct{}
}

type WatchOption func(*DocsWatcher)

func WithDebounce(d time.Duration) WatchOption {
	return func(w *DocsWatcher) {
		w.debounce = d
	}
}

func NewDocsWatcher(ingester Ingester, dir *loader.Dir, opts ...WatchOption) *DocsWatcher {
	w := &DocsWatcher{
		ingester: ingester,
		dir:      dir,
		debounce: DefaultDebounce,
		pending:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the directory and begins handling events in the background.
func (w *DocsWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return goerr.Wrap(err, "failed to create file watcher")
	}
	if err := watcher.Add(w.dir.Root()); err != nil {
		_ = watcher.Close()
		return goerr.Wrap(err, "failed to watch directory", goerr.V("dir", w.dir.Root()))
	}
	w.watcher = watcher

	logging.From(ctx).Info("Watching course documents", "dir", w.dir.Root(), "debounce", w.debounce.String())

	go w.run(ctx)
	return nil
}

// Stop closes the watcher and waits for in-flight ingestion to finish.
func (w *DocsWatcher) Stop() {
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	if w.timer != nil && w.timer.Stop() {
		w.wg.Done()
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *DocsWatcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer func() { _ = w.watcher.Close() }()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			if !loader.IsParsable(name) {
				continue
			}
			w.schedule(ctx, name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.From(ctx).Warn("File watcher error", "error", err.Error())

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (w *DocsWatcher) schedule(ctx context.Context, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[name] = struct{}{}
	if w.timer != nil && w.timer.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.flush(ctx)
	})
}

func (w *DocsWatcher) flush(ctx context.Context) {
	w.mu.Lock()
	names := make([]string, 0, len(w.pending))
	for name := range w.pending {
		names = append(names, name)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		course, err := w.ingester.IngestFile(ctx, w.dir, name)
		if err != nil {
			_ = errutil.Handle(ctx, err, "failed to re-ingest document")
			continue
		}
		logging.From(ctx).Info("Re-ingested course document", "file", name, "course", course.Title)
	}
}
