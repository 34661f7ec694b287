// Package watch reruns a build whenever one of its source files changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a
// rebuild starts.
const DefaultDebounce = 200 * time.Millisecond

// BuildFunc performs one build and returns the files it read. Those files'
// directories are watched for the next change.
type BuildFunc func(ctx context.Context) ([]string, error)

// Options configure a watch loop.
type Options struct {
	Debounce time.Duration
	// Extensions filters events by file extension. Defaults to .ts, .tsx
	// and .json.
	Extensions []string
	// Paths are watched from the start and after every build, so a loop
	// whose first build fails still sees the fix.
	Paths  []string
	Logger *slog.Logger
}

// Run builds once, then rebuilds after every burst of relevant changes
// until ctx is done. Builds run sequentially on the calling goroutine; a
// failed build is logged and the loop keeps watching.
func Run(ctx context.Context, opts Options, build BuildFunc) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".ts", ".tsx", ".json"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	watched := map[string]bool{}
	syncDirs(w, watched, opts.Paths, logger)
	rebuild := func() {
		files, err := build(ctx)
		if err != nil {
			logger.Error("build failed", "error", err)
		}
		if len(files) > 0 {
			syncDirs(w, watched, append(append([]string(nil), files...), opts.Paths...), logger)
		}
	}
	rebuild()

	timer := time.NewTimer(opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, opts.Extensions) {
				continue
			}
			logger.Debug("change detected", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(opts.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case <-timer.C:
			rebuild()
		}
	}
}

func relevant(ev fsnotify.Event, exts []string) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return slices.Contains(exts, filepath.Ext(ev.Name))
}

// syncDirs makes the watched directory set match the directories of files.
func syncDirs(w *fsnotify.Watcher, watched map[string]bool, files []string, logger *slog.Logger) {
	want := map[string]bool{}
	for _, f := range files {
		want[filepath.Dir(f)] = true
	}
	for dir := range watched {
		if !want[dir] {
			_ = w.Remove(dir)
			delete(watched, dir)
		}
	}
	for dir := range want {
		if watched[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			logger.Warn("cannot watch directory", "dir", dir, "error", err)
			continue
		}
		watched[dir] = true
	}
}
