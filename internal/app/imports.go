package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/zjrosen/dockyard/internal/log"
	"github.com/zjrosen/dockyard/internal/watcher"
)

// ErrImportFailed is returned when a file does not hold a valid snapshot.
var ErrImportFailed = errors.New("import failed")

// ImportFile imports the snapshot stored in path and returns the new key.
func (s *Session) ImportFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading snapshot: %w", err)
	}
	key, ok := s.Registry.ImportSnapshot(string(data))
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrImportFailed)
	}
	return key, nil
}

// ImportResult reports one file handled by WatchImports.
type ImportResult struct {
	Path string
	Key  string
	Err  error
}

// WatchImports imports every snapshot file written into dir until ctx is
// done. Results are passed to report, which may be nil.
//
// A file that does not decode may still be being copied, so it is tried
// again one quiet window later and only reported as failed once its size
// and modification time stop changing. Writers that stage the file under a
// hidden name and rename it into dir are never seen half written.
func (s *Session) WatchImports(ctx context.Context, dir string, report func(ImportResult)) error {
	return s.watchImports(ctx, watcher.DefaultConfig(dir), report)
}

func (s *Session) watchImports(ctx context.Context, cfg watcher.Config, report func(ImportResult)) error {
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	batches, err := w.Start()
	if err != nil {
		return err
	}

	imp := newDropImporter(s, report)
	retry := time.NewTimer(cfg.DebounceDur)
	retry.Stop()
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-batches:
			imp.importAll(batch)
		case <-retry.C:
			imp.importAll(imp.waitingPaths())
		}
		if len(imp.waiting) > 0 {
			retry.Reset(cfg.DebounceDur)
		}
		if imp.imported > 0 {
			imp.imported = 0
			if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
				log.ErrorErr(log.CatWatcher, "saving imported layouts failed", err)
			}
		}
	}
}

// fileStamp identifies one version of a file.
type fileStamp struct {
	size    int64
	modTime time.Time
}

func stampOf(path string) (fileStamp, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, false
	}
	return fileStamp{size: info.Size(), modTime: info.ModTime()}, true
}

// dropImporter tracks dropped files across batches.
type dropImporter struct {
	s        *Session
	report   func(ImportResult)
	done     map[string]fileStamp // version last imported
	waiting  map[string]fileStamp // version that failed to decode
	imported int
}

func newDropImporter(s *Session, report func(ImportResult)) *dropImporter {
	return &dropImporter{
		s:       s,
		report:  report,
		done:    make(map[string]fileStamp),
		waiting: make(map[string]fileStamp),
	}
}

func (d *dropImporter) waitingPaths() []string {
	return slices.Sorted(maps.Keys(d.waiting))
}

func (d *dropImporter) importAll(paths []string) {
	for _, path := range paths {
		d.importOne(path)
	}
}

func (d *dropImporter) importOne(path string) {
	stamp, ok := stampOf(path)
	if !ok {
		delete(d.waiting, path)
		log.Debug(log.CatWatcher, "dropped file vanished", "path", path)
		return
	}
	if prev, seen := d.done[path]; seen && prev == stamp {
		return
	}

	key, err := d.s.ImportFile(path)
	if errors.Is(err, ErrImportFailed) {
		if prev, retried := d.waiting[path]; !retried || prev != stamp {
			d.waiting[path] = stamp
			log.Debug(log.CatWatcher, "snapshot does not decode yet, retrying", "path", path)
			return
		}
	}
	delete(d.waiting, path)

	if err != nil {
		log.WarnErr(log.CatWatcher, "skipping dropped file", err, "path", path)
	} else {
		d.done[path] = stamp
		d.imported++
		log.Info(log.CatWatcher, "imported dropped snapshot", "path", path, "key", key)
	}
	if d.report != nil {
		d.report(ImportResult{Path: path, Key: key, Err: err})
	}
}
