// Package catalog keeps the parsed form of every stored trial and decides
// which trials are fit for matching.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/internal/metrics"
	"github.com/liamcoop/trialmatch/store"
	"github.com/liamcoop/trialmatch/trial"
)

// Entry is a stored trial with its build outcome. Exactly one of Trial and
// Err is set.
type Entry struct {
	Stored store.StoredTrial
	Trial  *trial.Trial
	Err    error
}

// Blocked reports whether the trial is kept out of matching
func (e *Entry) Blocked() bool { return e.Err != nil }

// Catalog builds trials from a TrialStore and swaps the whole set
// atomically on Reload.
type Catalog struct {
	store   store.TrialStore
	parser  trial.Parser
	entries map[string]*Entry
	mu      sync.RWMutex
}

func New(s store.TrialStore, parser trial.Parser) *Catalog {
	return &Catalog{
		store:   s,
		parser:  parser,
		entries: make(map[string]*Entry),
	}
}

// Reload rebuilds every active trial from the store. Trials that fail to
// build are recorded as blocked; only a store failure is returned.
func (c *Catalog) Reload(ctx context.Context) error {
	stored, err := c.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load trials: %w", err)
	}

	entries := make(map[string]*Entry, len(stored))
	for _, st := range stored {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries[st.ID()] = c.build(*st)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	usable, blocked := c.counts()
	metrics.SetCatalog(usable, blocked)
	logger.Info("trial catalog loaded", "usable", usable, "blocked", blocked)
	return nil
}

// Add stores a new trial and builds it. A trial with criteria that do not
// parse is still stored and reported as blocked; invalid configurations are
// rejected before they reach the store.
func (c *Catalog) Add(ctx context.Context, cfg trial.Config) (*Entry, error) {
	if err := trial.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	st := &store.StoredTrial{Config: cfg, Active: true}
	if err := c.store.Add(ctx, st); err != nil {
		return nil, err
	}
	return c.put(*st), nil
}

// Update replaces a stored trial and rebuilds it
func (c *Catalog) Update(ctx context.Context, cfg trial.Config, active bool) (*Entry, error) {
	if err := trial.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	st := &store.StoredTrial{Config: cfg, Active: active}
	if err := c.store.Update(ctx, st); err != nil {
		return nil, err
	}
	if !active {
		c.mu.Lock()
		delete(c.entries, cfg.TrialID)
		c.mu.Unlock()
		return &Entry{Stored: *st}, nil
	}
	return c.put(*st), nil
}

// Remove deletes a trial from the store and the catalog
func (c *Catalog) Remove(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
	return nil
}

// Get returns the catalog entry for an active trial
func (c *Catalog) Get(id string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// Entries returns every active trial, blocked ones included, ordered by id
func (c *Catalog) Entries() []*Entry {
	c.mu.RLock()
	out := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Stored.ID() < out[j].Stored.ID() })
	return out
}

// Trials returns the trials fit for matching, ordered by id
func (c *Catalog) Trials() []trial.Trial {
	entries := c.Entries()
	out := make([]trial.Trial, 0, len(entries))
	for _, e := range entries {
		if !e.Blocked() {
			out = append(out, *e.Trial)
		}
	}
	return out
}

// Blocked maps each blocked trial id to its build error
func (c *Catalog) Blocked() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error)
	for id, e := range c.entries {
		if e.Blocked() {
			out[id] = e.Err
		}
	}
	return out
}

// Select returns the usable trials with the given ids in request order.
// Unknown or blocked ids are reported together.
func (c *Catalog) Select(ids []string) ([]trial.Trial, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]trial.Trial, 0, len(ids))
	var errs []error
	for _, id := range ids {
		e, ok := c.entries[id]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%w: %s", store.ErrNotFound, id))
		case e.Blocked():
			errs = append(errs, fmt.Errorf("trial %s is blocked", id))
		default:
			out = append(out, *e.Trial)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Catalog) put(st store.StoredTrial) *Entry {
	e := c.build(st)
	c.mu.Lock()
	c.entries[st.ID()] = e
	c.mu.Unlock()

	usable, blocked := c.counts()
	metrics.SetCatalog(usable, blocked)
	return e
}

func (c *Catalog) build(st store.StoredTrial) *Entry {
	t, err := trial.Build(st.Config, c.parser)
	if err != nil {
		logger.WarnBlockedTrial("trial blocked from matching", "trial", st.ID(), "error", err)
		return &Entry{Stored: st, Err: err}
	}
	if got, want := len(t.Cohorts), st.Config.CohortCount(); got != want {
		err := fmt.Errorf("trial %s built %d cohorts, expected %d", st.ID(), got, want)
		logger.WarnBlockedTrial("trial blocked from matching", "trial", st.ID(), "error", err)
		return &Entry{Stored: st, Err: err}
	}
	logger.Trace("trial built", "trial", st.ID(), "cohorts", len(t.Cohorts))
	return &Entry{Stored: st, Trial: &t}
}

func (c *Catalog) counts() (usable, blocked int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Blocked() {
			blocked++
		} else {
			usable++
		}
	}
	return usable, blocked
}
