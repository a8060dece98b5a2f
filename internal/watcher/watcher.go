// Package watcher watches an import directory and reports batches of
// snapshot files written into it.
package watcher

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/dockyard/internal/log"
)

// Watcher monitors a directory and sends the paths of changed snapshot
// files once writes have been quiet for the debounce interval.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	pattern   string
	debounce  time.Duration
	batches   chan []string
	done      chan struct{}
	stopOnce  sync.Once
}

// Config holds watcher configuration options.
type Config struct {
	Dir         string
	Pattern     string // glob matched against the base name
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		Pattern:     "*.json",
		DebounceDur: 500 * time.Millisecond,
	}
}

// New creates a new directory watcher.
func New(cfg Config) (*Watcher, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = "*"
	}
	if _, err := filepath.Match(cfg.Pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", cfg.Pattern, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		dir:       cfg.Dir,
		pattern:   cfg.Pattern,
		debounce:  cfg.DebounceDur,
		batches:   make(chan []string, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the directory.
// Returns a channel that receives each debounced batch of paths, sorted.
// If the previous batch has not been received yet, the paths are held and
// offered again after another debounce interval.
func (w *Watcher) Start() (<-chan []string, error) {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", w.dir, err)
	}
	log.Debug(log.CatWatcher, "watching import directory", "dir", w.dir, "pattern", w.pattern)

	go w.loop()

	return w.batches, nil
}

// Stop terminates the watcher and releases resources. Safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// pendingSet collects paths until the debounce timer fires.
type pendingSet map[string]struct{}

func (p pendingSet) sorted() []string {
	batch := make([]string, 0, len(p))
	for path := range p {
		batch = append(batch, path)
	}
	slices.Sort(batch)
	return batch
}

func (w *Watcher) loop() {
	pending := make(pendingSet)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	restart := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				// Gone before the batch fired; nothing left to import.
				delete(pending, event.Name)
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				pending[event.Name] = struct{}{}
				restart()
			}

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := pending.sorted()
			select {
			case w.batches <- batch:
				clear(pending)
			default:
				log.Debug(log.CatWatcher, "previous batch not consumed, deferring", "paths", len(batch))
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.WarnErr(log.CatWatcher, "file watcher error", err, "dir", w.dir)
		}
	}
}

// matches reports whether name is a snapshot file. Hidden files are
// skipped; atomic writers stage their temp files that way.
func (w *Watcher) matches(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ok, _ := filepath.Match(w.pattern, base)
	return ok
}
