package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/trialmatch/trial"
)

func newTrial(id string, active bool) *StoredTrial {
	return &StoredTrial{
		Config: trial.Config{
			TrialID:  id,
			Title:    "Trial " + id,
			Open:     true,
			Criteria: []trial.CriterionConfig{{Rule: "IS_AT_LEAST_X_YEARS_OLD[18]"}},
		},
		Active: active,
	}
}

func TestInMemoryStoreImplementsTrialStore(t *testing.T) {
	var _ TrialStore = (*InMemoryStore)(nil)
	var _ TrialStore = (*FileStore)(nil)
	var _ TrialStore = (*PostgresStore)(nil)
	var _ TrialStore = (*CachedStore)(nil)
}

func TestInMemoryStoreAddGet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if err := s.Add(ctx, newTrial("T-1", true)); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	got, err := s.Get(ctx, "T-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Config.Title != "Trial T-1" {
		t.Errorf("Title = %q, want %q", got.Config.Title, "Trial T-1")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on Add")
	}
}

func TestInMemoryStoreAddDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if err := s.Add(ctx, newTrial("T-1", true)); err != nil {
		t.Fatalf("first Add() failed: %v", err)
	}
	dup := newTrial("T-1", true)
	dup.Config.Title = "Other"
	if err := s.Add(ctx, dup); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate Add() error = %v, want ErrExists", err)
	}

	got, _ := s.Get(ctx, "T-1")
	if got.Config.Title != "Trial T-1" {
		t.Errorf("trial should not have been overwritten, Title = %q", got.Config.Title)
	}
}

func TestInMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, newTrial("missing", true)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_ = s.Add(ctx, newTrial("T-1", true))

	got, _ := s.Get(ctx, "T-1")
	got.Active = false

	again, _ := s.Get(ctx, "T-1")
	if !again.Active {
		t.Error("mutating a returned trial should not change the store")
	}
}

func TestInMemoryStoreListActive(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	for _, tr := range []*StoredTrial{newTrial("T-3", true), newTrial("T-1", true), newTrial("T-2", false)} {
		if err := s.Add(ctx, tr); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("ListActive() returned %d trials, want 2", len(active))
	}
	if active[0].ID() != "T-1" || active[1].ID() != "T-3" {
		t.Errorf("ListActive() order = %s, %s, want T-1, T-3", active[0].ID(), active[1].ID())
	}
}

func TestInMemoryStoreUpdateKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	tr := newTrial("T-1", true)
	_ = s.Add(ctx, tr)
	created := tr.CreatedAt

	time.Sleep(5 * time.Millisecond)
	updated := newTrial("T-1", false)
	if err := s.Update(ctx, updated); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, _ := s.Get(ctx, "T-1")
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update: %v -> %v", created, got.CreatedAt)
	}
	if !got.UpdatedAt.After(created) {
		t.Error("UpdatedAt should advance on update")
	}
	if got.Active {
		t.Error("update should deactivate the trial")
	}
}

func TestInMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_ = s.Add(ctx, newTrial("shared", true))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.ListActive(ctx)
		}()
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, newTrial("shared", true))
		}()
	}
	wg.Wait()

	if _, err := s.Get(ctx, "shared"); err != nil {
		t.Fatalf("Get() after concurrent access failed: %v", err)
	}
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trials.yaml")

	fs, err := OpenFileStore(ctx, path)
	if err != nil {
		t.Fatalf("OpenFileStore() on missing file failed: %v", err)
	}
	if err := fs.Add(ctx, newTrial("T-1", true)); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := fs.Add(ctx, newTrial("T-2", true)); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := fs.Delete(ctx, "T-2"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("trials file not written: %v", err)
	}
	if !strings.Contains(string(raw), "IS_AT_LEAST_X_YEARS_OLD[18]") {
		t.Errorf("trials file missing criterion:\n%s", raw)
	}

	reopened, err := OpenFileStore(ctx, path)
	if err != nil {
		t.Fatalf("reopening file store failed: %v", err)
	}
	active, _ := reopened.ListActive(ctx)
	if len(active) != 1 || active[0].ID() != "T-1" {
		t.Fatalf("reopened store holds %d trials, want only T-1", len(active))
	}
}

func TestFileStoreRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trials.yaml")
	if err := os.WriteFile(path, []byte("trials: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileStore(context.Background(), path); err == nil {
		t.Fatal("OpenFileStore() should fail on malformed YAML")
	}
}

func TestInMemoryTrialsCacheTTL(t *testing.T) {
	c := NewInMemoryTrialsCache(CacheConfig{TTL: time.Minute})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if c.Get() != nil || c.IsValid() {
		t.Fatal("new cache should miss")
	}

	c.Set([]*StoredTrial{newTrial("T-1", true)})
	if got := c.Get(); len(got) != 1 {
		t.Fatalf("Get() after Set returned %d trials, want 1", len(got))
	}

	now = now.Add(2 * time.Minute)
	if c.Get() != nil {
		t.Error("cache should expire after TTL")
	}
}

func TestInMemoryTrialsCacheInvalidate(t *testing.T) {
	c := NewInMemoryTrialsCache(DefaultCacheConfig())
	c.Set([]*StoredTrial{})
	if !c.IsValid() {
		t.Fatal("cache should be valid after Set")
	}
	c.Invalidate()
	if c.IsValid() {
		t.Error("cache should be invalid after Invalidate")
	}
}

// countingStore counts ListActive calls that reach the backing store
type countingStore struct {
	*InMemoryStore
	lists int
}

func (c *countingStore) ListActive(ctx context.Context) ([]*StoredTrial, error) {
	c.lists++
	return c.InMemoryStore.ListActive(ctx)
}

func TestCachedStoreInvalidatesOnMutation(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{InMemoryStore: NewInMemoryStore()}
	s := NewCachedStore(backing, NewInMemoryTrialsCache(DefaultCacheConfig()))

	_ = s.Add(ctx, newTrial("T-1", true))
	_, _ = s.ListActive(ctx)
	_, _ = s.ListActive(ctx)
	if backing.lists != 1 {
		t.Fatalf("backing ListActive called %d times, want 1", backing.lists)
	}

	_ = s.Add(ctx, newTrial("T-2", true))
	active, _ := s.ListActive(ctx)
	if backing.lists != 2 {
		t.Errorf("backing ListActive called %d times after Add, want 2", backing.lists)
	}
	if len(active) != 2 {
		t.Errorf("ListActive() returned %d trials, want 2", len(active))
	}

	if err := s.Delete(ctx, "missing"); err == nil {
		t.Fatal("Delete() of unknown trial should fail")
	}
	_, _ = s.ListActive(ctx)
	if backing.lists != 2 {
		t.Error("failed mutation should not invalidate the cache")
	}
}
