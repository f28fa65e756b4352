// Package app wires storage, rules and matching from a Config
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/liamcoop/trialmatch/algebra"
	"github.com/liamcoop/trialmatch/catalog"
	"github.com/liamcoop/trialmatch/celrules"
	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluators"
	"github.com/liamcoop/trialmatch/internal/config"
	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/match"
	"github.com/liamcoop/trialmatch/registry"
	"github.com/liamcoop/trialmatch/store"
)

// App holds the long-lived components shared by the server and the CLI
type App struct {
	DB       *sqlx.DB
	Store    store.TrialStore
	Parser   *criteria.Parser
	Registry *registry.Registry
	Algebra  *algebra.Algebra
	Matcher  *match.Matcher
	Catalog  *catalog.Catalog
}

// New builds every component and loads the catalog
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	rules, err := NewRules(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Parser:   rules.Parser,
		Registry: rules.Registry,
		Algebra:  rules.Algebra,
		Matcher:  rules.Matcher,
	}

	var backing store.TrialStore
	if cfg.Storage.DatabaseURL != "" {
		db, err := store.OpenPostgres(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.DB = db
		backing = store.NewPostgresStore(db)
		logger.Info("using PostgreSQL trial store")
	} else {
		fs, err := store.OpenFileStore(ctx, cfg.Storage.TrialsFile)
		if err != nil {
			return nil, err
		}
		backing = fs
		logger.Info("using file trial store", "path", cfg.Storage.TrialsFile)
	}
	a.Store = store.NewCachedStore(backing, store.NewInMemoryTrialsCache(store.CacheConfig{TTL: cfg.Storage.CacheTTL}))

	a.Catalog = catalog.New(a.Store, a.Parser)
	if err := a.Catalog.Reload(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Rules is the storage-free part of an App
type Rules struct {
	Parser   *criteria.Parser
	Registry *registry.Registry
	Algebra  *algebra.Algebra
	Matcher  *match.Matcher
}

// NewRules loads references and CEL bindings and builds the evaluation chain
func NewRules(cfg *config.Config) (*Rules, error) {
	refs := criteria.NewStaticReferences()
	if path := cfg.Rules.ReferencesFile; path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open references file: %w", err)
		}
		defer f.Close()
		if refs, err = criteria.LoadReferences(f); err != nil {
			return nil, err
		}
		logger.Info("references loaded", "path", path, "count", refs.Len())
	}

	engine, err := loadEngine(cfg.Rules.BindingsFile)
	if err != nil {
		return nil, err
	}
	reg, err := evaluators.NewRegistry(engine)
	if err != nil {
		return nil, err
	}

	policy, err := algebra.ParseOrRecoverability(cfg.Match.OrRecoverability)
	if err != nil {
		return nil, err
	}
	alg := algebra.New(reg, algebra.WithOrRecoverability(policy))

	return &Rules{
		Parser:   criteria.NewParser(criteria.NewSpecResolver(refs)),
		Registry: reg,
		Algebra:  alg,
		Matcher:  match.NewMatcher(alg, match.WithConcurrency(cfg.Match.Concurrency)),
	}, nil
}

func loadEngine(path string) (*celrules.Engine, error) {
	if path == "" {
		return celrules.NewDefaultEngine()
	}
	engine, err := celrules.NewEngine()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bindings file: %w", err)
	}
	defer f.Close()
	if err := engine.Load(f); err != nil {
		return nil, fmt.Errorf("failed to load bindings from %s: %w", path, err)
	}
	logger.Info("rule bindings loaded", "path", path, "rules", len(engine.Rules()))
	return engine, nil
}

// Ping checks the database when one is configured
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.PingContext(ctx)
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
