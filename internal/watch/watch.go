// Package watch optimizes images as they land in a media directory.
//
// Events are debounced per path: a file is optimized once it has been
// quiet for the settle delay. Files the watcher itself just wrote are
// recognized by size and left alone.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AnyUserName/imgopt/internal/backup"
	"github.com/AnyUserName/imgopt/internal/derivative"
	"github.com/AnyUserName/imgopt/internal/engine"
	"github.com/AnyUserName/imgopt/internal/format"
	"github.com/AnyUserName/imgopt/internal/hasher"
)

// DefaultSettle is how long a file must be quiet before it is processed.
const DefaultSettle = 2 * time.Second

// Optimizer is the part of the engine the watcher drives.
type Optimizer interface {
	OptimizeFile(ctx context.Context, path string, attachmentID int64) (*engine.Result, error)
}

// Watcher watches a directory tree.
type Watcher struct {
	root   string
	opt    Optimizer
	settle time.Duration
	log    *slog.Logger

	// OnResult, when set, is called after each processed file.
	OnResult func(path string, res *engine.Result, err error)

	mu      sync.Mutex
	pending map[string]*time.Timer
	own     map[string]int64 // path -> size the engine left behind
	wg      sync.WaitGroup
}

// New returns a watcher over root. settle <= 0 uses DefaultSettle.
// A relative root is made absolute so event paths match the library's.
func New(root string, opt Optimizer, settle time.Duration, log *slog.Logger) *Watcher {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		root:    root,
		opt:     opt,
		settle:  settle,
		log:     log,
		pending: map[string]*time.Timer{},
		own:     map[string]int64{},
	}
}

// Run watches until ctx is done. In-flight files finish before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.log.Info("watching", "root", w.root, "settle", w.settle)

	defer w.wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, ev.Name); err != nil {
				w.log.Warn("watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}

	if !w.wants(ev.Name) {
		return
	}
	w.schedule(ctx, ev.Name)
}

// wants filters out temp files, sidecars and WebP derivatives.
func (w *Watcher) wants(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || backup.IsBackup(name) {
		return false
	}
	f, ok := format.FromExt(name)
	if !ok {
		return false
	}
	if f == format.WebP {
		stem := strings.TrimSuffix(path, filepath.Ext(path))
		for _, ext := range []string{".png", ".jpg", ".jpeg"} {
			if derivative.PathFor(stem+ext) == path {
				if _, err := os.Stat(stem + ext); err == nil {
					return false
				}
			}
		}
	}
	return true
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		// A false Reset means f already ran or is about to, and will run
		// once more.
		if !t.Reset(w.settle) {
			w.wg.Add(1)
		}
		return
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.process(ctx, path)
	})
}

func (w *Watcher) process(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	size, ok := w.own[path]
	w.mu.Unlock()
	if ok && size == info.Size() {
		w.log.Debug("ignoring own write", "path", path)
		return
	}

	res, err := w.opt.OptimizeFile(ctx, path, w.attachmentID(path))
	if err == nil {
		w.mu.Lock()
		w.own[path] = int64(res.NewSize)
		if res.WebPPath != "" {
			if fi, err := os.Stat(res.WebPPath); err == nil {
				w.own[res.WebPPath] = fi.Size()
			}
		}
		w.mu.Unlock()
	} else if !errors.Is(err, format.ErrNotApplicable) {
		w.log.Warn("optimize failed", "path", path, "error", err)
	}

	if w.OnResult != nil {
		w.OnResult(path, res, err)
	}
}

// attachmentID uses the library's ID scheme for the file's relative path.
func (w *Watcher) attachmentID(path string) int64 {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return 0
	}
	return hasher.PathID(filepath.ToSlash(rel))
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// wait stops pending timers and waits for running ones.
func (w *Watcher) wait() {
	w.mu.Lock()
	for p, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, p)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
