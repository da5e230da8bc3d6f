package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/ignore"
	"github.com/morozRed/engview/internal/parser"
	"github.com/morozRed/engview/internal/queue"
)

const (
	DefaultStabilityThreshold = 500 * time.Millisecond
	DefaultPollInterval       = 100 * time.Millisecond
)

type WatchOptions struct {
	// StabilityThreshold is how long a file's size must stay unchanged
	// before an add or change is acted on.
	StabilityThreshold time.Duration
	PollInterval       time.Duration
}

func (o *WatchOptions) defaults() {
	if o.StabilityThreshold <= 0 {
		o.StabilityThreshold = DefaultStabilityThreshold
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
}

type EventKind int

const (
	FileAdded EventKind = iota + 1
	FileChanged
	FileRemoved
)

func (k EventKind) String() string {
	switch k {
	case FileAdded:
		return "added"
	case FileChanged:
		return "changed"
	case FileRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// WatchEvent is delivered after a file settled or disappeared. Scheduled is
// true when a stale narrative file was queued or extracted.
type WatchEvent struct {
	Kind      EventKind
	Path      string
	ID        string
	Format    parser.Format
	Scheduled bool
	Err       error
}

// Watcher follows the data directory. Files present when it starts are not
// reported; the startup scan covers them. Removing a file never touches its
// metadata so manual edits survive the file briefly going away.
type Watcher struct {
	scanner *Scanner
	opts    WatchOptions
	fsw     *fsnotify.Watcher
	matcher *ignore.Matcher
	exts    extSet
	logger  *zap.Logger

	mu       sync.Mutex
	known    map[string]struct{}
	settling map[string]struct{}
	onEvent  []func(WatchEvent)

	wg sync.WaitGroup
}

// Watch registers every directory under the scanner root.
func (s *Scanner) Watch(opts WatchOptions) (*Watcher, error) {
	opts.defaults()
	rules, err := ignore.Load(s.opts.Root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		scanner:  s,
		opts:     opts,
		fsw:      fsw,
		matcher:  ignore.NewMatcher(rules),
		exts:     extensionSet(s.opts.Extensions),
		logger:   s.logger.Named("watcher"),
		known:    make(map[string]struct{}),
		settling: make(map[string]struct{}),
	}
	if err := w.addTree(s.opts.Root, nil); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.logger.Info("watching data directory",
		zap.String("root", s.opts.Root),
		zap.Int("files", len(w.known)))
	return w, nil
}

// OnEvent registers fn; call before Run.
func (w *Watcher) OnEvent(fn func(WatchEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onEvent = append(w.onEvent, fn)
}

// Run processes filesystem events until ctx is done, then closes the
// underlying watcher and waits for in-flight settle checks.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.wg.Wait()
	defer func() { _ = w.fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopped")
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	path := event.Name
	rel := w.rel(path)

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.matcher.ShouldIgnore(rel, true) {
				return
			}
			// Files written before the directory was registered are new too.
			var created []string
			if err := w.addTree(path, &created); err != nil {
				w.logger.Warn("cannot watch new directory", zap.String("dir", rel), zap.Error(err))
			}
			for _, f := range created {
				w.settle(ctx, f, FileAdded)
			}
			return
		}
		if w.wanted(path) {
			w.settle(ctx, path, w.kindFor(path))
		}
	case event.Has(fsnotify.Write):
		if w.wanted(path) {
			w.settle(ctx, path, w.kindFor(path))
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		_, wasKnown := w.known[path]
		delete(w.known, path)
		w.mu.Unlock()
		if wasKnown {
			w.logger.Info("project file removed, metadata kept", zap.String("file", rel))
			w.emit(w.event(FileRemoved, path))
		}
	}
}

func (w *Watcher) kindFor(path string) EventKind {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.known[path]; ok {
		return FileChanged
	}
	return FileAdded
}

func (w *Watcher) wanted(path string) bool {
	if !w.exts.has(filepath.Ext(path)) {
		return false
	}
	return !w.matcher.ShouldIgnore(w.rel(path), false)
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.scanner.opts.Root, path)
	if err != nil {
		return path
	}
	return rel
}

// addTree registers dir and its subdirectories. Matching files found are
// recorded as known; when created is non-nil they are also appended to it.
func (w *Watcher) addTree(dir string, created *[]string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		rel := w.rel(path)
		if path != w.scanner.opts.Root && w.matcher.ShouldIgnore(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", rel, err)
			}
			return nil
		}
		if !w.exts.has(filepath.Ext(path)) {
			return nil
		}
		if created != nil {
			*created = append(*created, path)
			return nil
		}
		w.mu.Lock()
		w.known[path] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

// settle starts a size-stability wait for path unless one is running.
func (w *Watcher) settle(ctx context.Context, path string, kind EventKind) {
	w.mu.Lock()
	if _, busy := w.settling[path]; busy {
		w.mu.Unlock()
		return
	}
	w.settling[path] = struct{}{}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.settling, path)
			w.mu.Unlock()
		}()

		if err := waitStable(ctx, path, w.opts.StabilityThreshold, w.opts.PollInterval); err != nil {
			if !errors.Is(err, context.Canceled) {
				w.logger.Debug("file did not settle", zap.String("file", w.rel(path)), zap.Error(err))
			}
			return
		}
		w.fire(ctx, path, kind)
	}()
}

func (w *Watcher) fire(ctx context.Context, path string, kind EventKind) {
	w.mu.Lock()
	w.known[path] = struct{}{}
	w.mu.Unlock()

	ev := w.event(kind, path)
	w.logger.Info("project file "+kind.String(), zap.String("file", w.rel(path)), zap.Stringer("format", ev.Format))

	if ev.Format == parser.FormatPrt {
		file, err := StatFile(path)
		if err != nil {
			ev.Err = err
		} else {
			ev.Scheduled, ev.Err = w.scanner.Refresh(ctx, file, queue.PriorityHigh)
		}
		if ev.Err != nil {
			w.logger.Error("narrative refresh failed", zap.String("file", w.rel(path)), zap.Error(ev.Err))
		}
	}
	w.emit(ev)
}

func (w *Watcher) event(kind EventKind, path string) WatchEvent {
	format, _ := parser.DetectByExtension(path)
	return WatchEvent{Kind: kind, Path: path, ID: parser.NormalizeID(path), Format: format}
}

func (w *Watcher) emit(ev WatchEvent) {
	w.mu.Lock()
	fns := append([]func(WatchEvent){}, w.onEvent...)
	w.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// waitStable polls path until its size has not changed for threshold.
func waitStable(ctx context.Context, path string, threshold, poll time.Duration) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	size := info.Size()
	stableSince := time.Now()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.Size() != size {
				size = info.Size()
				stableSince = time.Now()
				continue
			}
			if time.Since(stableSince) >= threshold {
				return nil
			}
		}
	}
}
