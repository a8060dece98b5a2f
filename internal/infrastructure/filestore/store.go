// Package filestore keeps registry state in a single JSON document on disk.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/layouts/snapshot"
	"github.com/zjrosen/dockyard/internal/log"
)

// Store implements domain.Store on a JSON file in the tagged state format.
type Store struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

var _ domain.Store = (*Store)(nil)

// New returns a store reading and writing path. The file is created on
// the first Save.
func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Name identifies the backend in traces and logs.
func (s *Store) Name() string {
	return "file"
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing or blank file reads as nil.
//
// A file that cannot be parsed is renamed to <path>.corrupt-<unix>.bak and
// also reads as nil, so the next Save cannot overwrite the only copy.
// Individual records that fail to decode are dropped and logged.
func (s *Store) Load(ctx context.Context) (*domain.RawState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading layouts file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	raw, recordErrs, err := snapshot.DecodeState(data)
	if err != nil {
		backup, backupErr := s.quarantine()
		if backupErr != nil {
			return nil, fmt.Errorf("layouts file is corrupt and could not be backed up: %w", backupErr)
		}
		log.WarnErr(log.CatStore, "layouts file is corrupt, moved aside", err, "backup", backup)
		return nil, nil
	}
	for _, recErr := range recordErrs {
		log.WarnErr(log.CatStore, "dropping unreadable layout", recErr, "path", s.path)
	}
	return raw, nil
}

// quarantine moves the state file out of the way and returns its new path.
func (s *Store) quarantine() (string, error) {
	backup := CorruptBackupPath(s.path, s.now())
	if err := os.Rename(s.path, backup); err != nil {
		return "", err
	}
	return backup, nil
}

// CorruptBackupPath is where a corrupt state file found at t is moved.
func CorruptBackupPath(path string, t time.Time) string {
	return fmt.Sprintf("%s.corrupt-%d.bak", path, t.Unix())
}

// Save writes st atomically: readers see either the old file or the new
// one, never a partial write.
func (s *Store) Save(ctx context.Context, st domain.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := snapshot.EncodeState(st)
	if err != nil {
		return fmt.Errorf("encoding layouts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, data)
}

// Close is a no-op; the store holds no open handles between calls.
func (s *Store) Close() error {
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating layouts directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Sync(); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
