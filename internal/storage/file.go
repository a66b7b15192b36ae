package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ── File Sink ──────────────────────────────────────────────
// Stores each key as a JSON file. Writes go to a temp file in the same
// directory which is synced and renamed over the target, so readers see
// either the old or the new document. An advisory lock on a sibling .lock
// file serialises writers across processes.

// FileSink persists documents as files. DefaultKey maps to Path; other
// keys map to "<stem>.<key><ext>" next to it.
type FileSink struct {
	Path string

	mu sync.Mutex
}

// NewFileSink returns a sink rooted at path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// PathFor returns the file that stores key.
func (s *FileSink) PathFor(key string) (string, error) {
	if key == "" || key == DefaultKey {
		return s.Path, nil
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	ext := filepath.Ext(s.Path)
	return strings.TrimSuffix(s.Path, ext) + "." + key + ext, nil
}

func (s *FileSink) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := s.PathFor(key)
	if err != nil {
		return nil, false, err
	}
	unlock, err := lockFile(path+".lock", false)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}

func (s *FileSink) Put(_ context.Context, key string, data []byte) error {
	path, err := s.PathFor(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	unlock, err := lockFile(path+".lock", true)
	if err != nil {
		return err
	}
	defer unlock()

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := writeSynced(tmp, data); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return syncDir(dir)
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	return f.Close()
}

// syncDir makes the rename durable. Not every platform can fsync a
// directory, so failures to open it are ignored.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}
