package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/casesearch/internal/async"
	"github.com/Aman-CERP/casesearch/internal/config"
	"github.com/Aman-CERP/casesearch/internal/converter"
	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/index"
	"github.com/Aman-CERP/casesearch/internal/logging"
	"github.com/Aman-CERP/casesearch/internal/projection"
	"github.com/Aman-CERP/casesearch/internal/registry"
	"github.com/Aman-CERP/casesearch/internal/registry/fixture"
	"github.com/Aman-CERP/casesearch/internal/registry/rest"
	"github.com/Aman-CERP/casesearch/internal/search"
	"github.com/Aman-CERP/casesearch/internal/store"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	registry registry.Registry
	fixtures *fixture.Store
	catalog  *registry.CachedCatalog
	index    *store.BleveIndex
	ledger   *store.SQLiteLedger
	pipeline *index.Pipeline
	checker  *index.ConsistencyChecker
	search   *search.Service
	closers  []func()
}

// loadConfig loads the configuration for the --dir flag and starts logging.
func loadConfig(serveMode bool) (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Logging.File
	}
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxFiles
	if err := setupLogging(logCfg, serveMode); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp wires registry, index, ledger, pipeline and search from cfg.
func openApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if err := a.openRegistry(); err != nil {
		return nil, err
	}

	var catalog registry.Catalog = a.registry
	if cfg.Registry.CacheSize > 0 {
		a.catalog = registry.NewCachedCatalog(a.registry, cfg.Registry.CacheSize)
		catalog = a.catalog
	}
	converters := converter.NewRegistry(a.registry, catalog)

	idx, err := store.NewBleveIndex(cfg.Index.Path)
	if err != nil {
		return nil, err
	}
	a.index = idx
	a.closers = append(a.closers, func() { _ = idx.Close() })

	ledger, err := store.NewSQLiteLedger(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	a.ledger = ledger
	a.closers = append(a.closers, func() { _ = ledger.Close() })

	a.pipeline, err = index.NewPipeline(index.PipelineDependencies{
		Converters: converters,
		Index:      idx,
		Ledger:     ledger,
		Tasks:      a.registry,
		Lister:     a.registry,
		Logger:     slog.Default(),
	}, index.PipelineConfig{
		Concurrency:  cfg.Drain.Concurrency,
		ListPageSize: cfg.Index.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	a.checker = index.NewConsistencyChecker(idx, ledger, a.registry)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	engine, err := search.NewEngine(idx, search.EngineConfig{
		DefaultRows: cfg.Search.DefaultRows,
		MaxRows:     cfg.Search.MaxRows,
		Location:    loc,
		FacetSize:   cfg.Search.FacetSize,
	}, search.WithKinds(converters.Kinds), search.WithLogger(slog.Default()))
	if err != nil {
		return nil, err
	}
	a.search = search.NewService(engine, search.NewStaticAuthorizer(cfg.Search.CaseTypes))

	ok = true
	return a, nil
}

func (a *app) openRegistry() error {
	rc := a.cfg.Registry
	switch strings.ToLower(rc.Backend) {
	case config.BackendREST:
		retry := cserrors.DefaultRetryConfig()
		retry.MaxRetries = rc.MaxRetries
		client, err := rest.NewClient(rest.Config{
			BaseURL: rc.BaseURL,
			Timeout: rc.Timeout,
			Retry:   retry,
			Token:   rc.Token,
		})
		if err != nil {
			return err
		}
		a.registry = client
		a.closers = append(a.closers, client.Close)
	default:
		dir := a.fixtureDir()
		fixtures, err := fixture.Load(dir)
		if err != nil {
			return cserrors.ConfigError(fmt.Sprintf("failed to load fixtures from %s", dir), err)
		}
		a.fixtures = fixtures
		a.registry = fixtures
	}
	return nil
}

// fixtureDir resolves registry.fixture_dir against --dir.
func (a *app) fixtureDir() string {
	dir := a.cfg.Registry.FixtureDir
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(configDir, dir)
}

// newDrainer creates a drainer guarded by the configured lock file.
func (a *app) newDrainer() *async.Drainer {
	var lock *async.DrainLock
	if a.cfg.Drain.LockFile != "" {
		lock = async.NewDrainLock(a.cfg.Drain.LockFile)
	}
	return async.NewDrainer(a.pipeline.Drain, async.DrainerConfig{
		Interval:  a.cfg.Drain.Interval,
		BatchSize: a.cfg.Drain.BatchSize,
		Lock:      lock,
	})
}

// Close releases everything opened by openApp, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// withApp loads the configuration, opens the app and runs fn.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// parseKinds parses kind arguments. No arguments selects every kind.
func parseKinds(args []string) ([]projection.Kind, error) {
	if len(args) == 0 {
		return projection.Kinds(), nil
	}
	kinds := make([]projection.Kind, 0, len(args))
	for _, arg := range args {
		kind, err := projection.ParseKind(arg)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
