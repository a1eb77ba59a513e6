package replylog

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps each slot in a plain text file holding one encoded record.
// The global slot lives at path; other keys get a sibling file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store rooted at path. The parent directory is
// created if needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("replylog: file path required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("replylog: create dir: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Write(ctx context.Context, key string, entry Entry) error {
	return s.replace(key, Encode(entry))
}

func (s *FileStore) Read(ctx context.Context, key string) (Entry, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.fileFor(key))
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrEmpty
		}
		return Entry{}, fmt.Errorf("replylog: read: %w", err)
	}
	return Decode(string(data))
}

func (s *FileStore) Clear(ctx context.Context, key string) error {
	return s.replace(key, "")
}

// replace swaps the slot contents through a temp file so readers never see
// a half-written record.
func (s *FileStore) replace(key, record string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.fileFor(key)
	tmp, err := os.CreateTemp(filepath.Dir(target), ".replylog-*")
	if err != nil {
		return fmt.Errorf("replylog: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(record); err != nil {
		tmp.Close()
		return fmt.Errorf("replylog: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("replylog: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replylog: rename: %w", err)
	}
	return nil
}

func (s *FileStore) fileFor(key string) string {
	if key == "" || key == GlobalKey {
		return s.path
	}
	sum := sha1.Sum([]byte(key))
	return s.path + "." + hex.EncodeToString(sum[:8])
}
