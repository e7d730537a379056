// Package cli implements the reconcile command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/eshaffer321/expense-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/expense-reconciler/internal/domain/categorizer"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/logging"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/storage"
)

// globalFlags are shared by every command
type globalFlags struct {
	configPath string
	dbPath     string
	verbose    bool
	logFormat  string
}

// app holds the components a command needs. Commands open it in RunE and
// close it when done.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *storage.Storage
	service *reconcile.Service
}

// loadConfig reads the config file named by --config, or config.yaml and
// the environment, then applies flag overrides.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrEnv()
	}

	if g.dbPath != "" {
		cfg.Storage.DatabasePath = g.dbPath
	}
	if g.verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	if g.logFormat != "" {
		cfg.Observability.Logging.Format = g.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp wires storage, the engine and the service. Logs go to logOut.
func (g *globalFlags) openApp(logOut io.Writer, component string) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	base := logging.New(logOut, cfg.Observability.Logging)
	logger := base.With(logging.ComponentKey, component)

	store, err := storage.NewStorage(cfg.Storage.DatabasePath, base.With(logging.ComponentKey, "storage"))
	if err != nil {
		return nil, err
	}

	r := cfg.Reconciliation
	engine, err := reconcile.NewEngine(store, reconcile.Config{
		MinScore:            r.MinScoreThreshold,
		AutoThreshold:       r.AutoReconcileThreshold,
		FuzzyTokenMinLength: r.FuzzyTokenMinLength,
		Workers:             r.Workers,
	}, base.With(logging.ComponentKey, "engine"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var opts []reconcile.Option
	if cfg.Categorizer.Enabled && len(cfg.Categorizer.Rules) > 0 {
		c := categorizer.NewCategorizer(cfg.Categorizer.Rules, categorizer.NewMemoryCache())
		opts = append(opts, reconcile.WithCategorizer(c.Strategy(), cfg.Categorizer.MinConfidence))
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		service: reconcile.NewService(store, engine, logger, opts...),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", "error", err)
	}
}
