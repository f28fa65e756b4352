package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/liamcoop/trialmatch/trial"
)

// FileStore keeps trials in memory and rewrites a YAML file on every
// change. Every trial in the file is active.
type FileStore struct {
	*InMemoryStore
	path string
	mu   sync.Mutex
}

// OpenFileStore loads path; a missing file starts an empty store
func OpenFileStore(ctx context.Context, path string) (*FileStore, error) {
	fs := &FileStore{InMemoryStore: NewInMemoryStore(), path: path}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trials file: %w", err)
	}
	defer f.Close()

	configs, err := trial.DecodeConfigs(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, cfg := range configs {
		if err := fs.InMemoryStore.Add(ctx, &StoredTrial{Config: cfg, Active: true}); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return fs, nil
}

func (s *FileStore) Add(ctx context.Context, t *StoredTrial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.InMemoryStore.Add(ctx, t); err != nil {
		return err
	}
	return s.save(ctx)
}

func (s *FileStore) Update(ctx context.Context, t *StoredTrial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.InMemoryStore.Update(ctx, t); err != nil {
		return err
	}
	return s.save(ctx)
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.InMemoryStore.Delete(ctx, id); err != nil {
		return err
	}
	return s.save(ctx)
}

// save writes the active trials to a temporary file and renames it over path
func (s *FileStore) save(ctx context.Context) error {
	trials, err := s.InMemoryStore.ListActive(ctx)
	if err != nil {
		return err
	}
	configs := make([]trial.Config, len(trials))
	for i, t := range trials {
		configs[i] = t.Config
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".trials-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temporary trials file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := trial.EncodeConfigs(tmp, configs); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write trials file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace trials file: %w", err)
	}
	return nil
}
