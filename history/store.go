package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aluiziolira/go-price-watch/models"
)

// ErrCorrupt is returned when a stored history cannot be decoded.
var ErrCorrupt = errors.New("history: corrupt store")

// Store loads and saves the whole history at once.
type Store interface {
	Load(ctx context.Context) (models.History, error)
	Save(ctx context.Context, h models.History) error
}

// FileStore keeps the history as an indented JSON array on disk.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads the history. A missing file is an empty history.
func (s *FileStore) Load(ctx context.Context) (models.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %q: %w", s.path, err)
	}

	var h models.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	var prev time.Time
	for i, e := range h {
		day, err := time.Parse(models.DateLayout, e.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: entry %d has date %q", ErrCorrupt, s.path, i, e.Date)
		}
		if i > 0 && !day.After(prev) {
			return nil, fmt.Errorf("%w: %s: entry %d (%s) is not after %s", ErrCorrupt, s.path, i, e.Date, h[i-1].Date)
		}
		prev = day
	}
	return h, nil
}

// Save replaces the file atomically: the history is written to a temporary
// file in the same directory and renamed over the old one.
func (s *FileStore) Save(ctx context.Context, h models.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h == nil {
		h = models.History{}
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	data = append(data, '\n')

	if err := ensureDir(s.path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	history models.History
	saves   int
	LoadErr error
	SaveErr error
}

// NewMemoryStore seeds a store with h.
func NewMemoryStore(h models.History) *MemoryStore {
	return &MemoryStore{history: h.Clone()}
}

func (m *MemoryStore) Load(ctx context.Context) (models.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.history.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, h models.History) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.history = h.Clone()
	m.saves++
	return nil
}

// History returns a copy of the stored history.
func (m *MemoryStore) History() models.History {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Clone()
}

// Saves reports how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
