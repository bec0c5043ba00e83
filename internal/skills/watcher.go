package skills

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a Loader's summary when files under its workspace
// directory change.
type Watcher struct {
	loader  *Loader
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher watches the loader's directory and each skill directory in
// it. The directory must exist.
func NewWatcher(loader *Loader, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loader.Dir() == "" {
		return nil, fmt.Errorf("skills watcher: no directory configured")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("skills watcher: %w", err)
	}
	w := &Watcher{loader: loader, watcher: fw, logger: logger}

	if err := fw.Add(loader.Dir()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", loader.Dir(), err)
	}
	entries, err := os.ReadDir(loader.Dir())
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("read skills dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.add(filepath.Join(loader.Dir(), e.Name()))
		}
	}
	return w, nil
}

func (w *Watcher) add(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("skills watch failed", "dir", dir, "error", err)
	}
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("skills watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	// New skill directories need their own watch.
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.add(ev.Name)
		}
	}
	w.logger.Debug("skills changed", "path", ev.Name, "op", ev.Op.String())
	w.loader.Invalidate()
}
