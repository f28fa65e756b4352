// Package store persists curated trial configurations
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liamcoop/trialmatch/trial"
)

var (
	ErrNotFound = errors.New("trial not found")
	ErrExists   = errors.New("trial already exists")
)

// StoredTrial is a trial configuration with its bookkeeping fields
type StoredTrial struct {
	Config    trial.Config `json:"config"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// ID returns the trial id
func (s StoredTrial) ID() string { return s.Config.TrialID }

// TrialStore manages trial configuration persistence and retrieval
type TrialStore interface {
	// Add a new trial; ErrExists if the id is taken
	Add(ctx context.Context, t *StoredTrial) error

	// Get a trial by id; ErrNotFound if missing
	Get(ctx context.Context, id string) (*StoredTrial, error)

	// ListActive returns active trials ordered by id
	ListActive(ctx context.Context) ([]*StoredTrial, error)

	// Update replaces an existing trial, keeping CreatedAt
	Update(ctx context.Context, t *StoredTrial) error

	// Delete a trial
	Delete(ctx context.Context, id string) error
}

// InMemoryStore implements TrialStore using a map guarded by an RWMutex
type InMemoryStore struct {
	trials map[string]*StoredTrial
	mu     sync.RWMutex
}

// NewInMemoryStore creates an empty store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{trials: make(map[string]*StoredTrial)}
}

func (s *InMemoryStore) Add(_ context.Context, t *StoredTrial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trials[t.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrExists, t.ID())
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	stored := *t
	s.trials[t.ID()] = &stored
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*StoredTrial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.trials[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := *t
	return &out, nil
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]*StoredTrial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]*StoredTrial, 0, len(s.trials))
	for _, t := range s.trials {
		if t.Active {
			out := *t
			active = append(active, &out)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID() < active[j].ID() })
	return active, nil
}

func (s *InMemoryStore) Update(_ context.Context, t *StoredTrial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.trials[t.ID()]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, t.ID())
	}

	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now()
	stored := *t
	s.trials[t.ID()] = &stored
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trials[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.trials, id)
	return nil
}
