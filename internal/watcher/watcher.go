// Package watcher keeps file-backed sources in step with directories on disk
// using fsnotify: created and modified files are re-ingested after a debounce,
// removed or renamed files have their source deleted.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/kura/internal/models"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Target is what the watcher feeds. The indexer implements it.
type Target interface {
	IngestFile(ctx context.Context, path string) (*models.Source, error)
	DeleteFile(ctx context.Context, path string) error
	Accepts(path string) bool
}

// Options configures which directories are watched.
type Options struct {
	Roots     []string
	Recursive bool
	Debounce  time.Duration
}

// Watcher watches directories and forwards file changes to a Target.
type Watcher struct {
	target    Target
	roots     []string
	recursive bool
	debounce  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	ctx     context.Context
	pending map[string]*time.Timer
	started bool
	done    chan struct{}
	once    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher for target. Roots are made absolute; Start creates
// missing ones.
func New(target Target, opts Options, wopts ...Option) *Watcher {
	w := &Watcher{
		target:    target,
		recursive: opts.Recursive,
		debounce:  opts.Debounce,
		logger:    zap.NewNop(),
		pending:   make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	for _, r := range opts.Roots {
		if abs, err := filepath.Abs(r); err == nil {
			w.roots = append(w.roots, filepath.Clean(abs))
		}
	}
	for _, opt := range wopts {
		opt(w)
	}
	return w
}

// Start adds the roots to fsnotify and processes events until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := os.MkdirAll(root, 0755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := w.addTree(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.ctx = ctx
	w.started = true
	w.logger.Info("watching directories", zap.Strings("roots", w.roots), zap.Bool("recursive", w.recursive))
	go w.run(ctx, fsw)
	return nil
}

// addTree watches dir, and its subdirectories when recursive. Hidden
// directories below dir are skipped.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	if !w.recursive {
		return fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.target.Accepts(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
		if w.target.Accepts(path) {
			w.remove(path)
		}
	}
}

// handleNewDirectory watches a directory created or moved under a root and
// ingests what it already contains.
func (w *Watcher) handleNewDirectory(dir string) {
	if hidden(filepath.Base(dir)) {
		return
	}
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	if w.recursive {
		if err := w.addTree(fsw, dir); err != nil {
			w.logger.Warn("failed to watch directory", zap.String("path", dir), zap.Error(err))
		}
	}
	w.syncDirectory(w.context(), dir)
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		if inDir(root, path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(w.context(), path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) context() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return context.Background()
	}
	return w.ctx
}

func (w *Watcher) ingest(ctx context.Context, path string) bool {
	if ctx.Err() != nil {
		return false
	}
	src, err := w.target.IngestFile(ctx, path)
	if err != nil {
		w.logger.Warn("failed to ingest file", zap.String("path", path), zap.Error(err))
		return false
	}
	w.logger.Debug("file ingested", zap.String("path", path), zap.String("source_id", src.ID))
	return true
}

func (w *Watcher) remove(path string) {
	err := w.target.DeleteFile(w.context(), path)
	switch {
	case err == nil:
		w.logger.Info("file source removed", zap.String("path", path))
	case models.IsNotFound(err):
		w.logger.Debug("removed file was not ingested", zap.String("path", path))
	default:
		w.logger.Warn("failed to remove file source", zap.String("path", path), zap.Error(err))
	}
}

// SyncReport counts the outcome of Sync.
type SyncReport struct {
	Files  int
	Failed int
}

// Sync ingests every accepted file under the roots. Unchanged files are
// skipped by the target, so it is cheap to run on every start.
func (w *Watcher) Sync(ctx context.Context) SyncReport {
	var total SyncReport
	for _, root := range w.roots {
		r := w.syncDirectory(ctx, root)
		total.Files += r.Files
		total.Failed += r.Failed
	}
	w.logger.Info("initial sync finished", zap.Int("files", total.Files), zap.Int("failed", total.Failed))
	return total
}

func (w *Watcher) syncDirectory(ctx context.Context, dir string) SyncReport {
	var report SyncReport
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if path != dir && (!w.recursive || hidden(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.target.Accepts(path) {
			return nil
		}
		report.Files++
		if !w.ingest(ctx, path) {
			report.Failed++
		}
		return nil
	})
	return report
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// Stop stops watching and drops pending ingestions.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.once.Do(func() { close(w.done) })
}
