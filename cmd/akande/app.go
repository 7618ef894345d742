package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/akande-ai/akande/pkg/assistant"
	"github.com/akande-ai/akande/pkg/budget"
	"github.com/akande-ai/akande/pkg/cache"
	"github.com/akande-ai/akande/pkg/cache/postgres"
	"github.com/akande-ai/akande/pkg/cache/sqlite"
	"github.com/akande-ai/akande/pkg/config"
	"github.com/akande-ai/akande/pkg/gateway"
	"github.com/akande-ai/akande/pkg/history"
	"github.com/akande-ai/akande/pkg/logging"
)

// app holds the long-lived resources of one command run. close releases
// them in reverse order of acquisition.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    cache.Admin
	history  *history.SQLite
	enforcer *budget.Enforcer
	closers  []io.Closer
}

// openApp loads configuration and sets up logging. Storage is opened on
// demand by the with* methods.
func openApp(configPath string) (*app, error) {
	cfg, err := config.LoadDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, logFile, err := logging.Setup(cfg.Log, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	log.SetDefault(logger)
	return &app{cfg: cfg, logger: logger, closers: []io.Closer{logFile}}, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close", "err", err)
		}
	}
	a.closers = nil
}

// withStore opens the configured cache backend. A disabled cache leaves
// a.store nil unless force is set, which admin commands use.
func (a *app) withStore(force bool) error {
	if !a.cfg.Cache.Enabled && !force {
		return nil
	}
	opts := cache.Options{
		MaxEntries: a.cfg.Cache.MaxEntries,
		TTL:        a.cfg.Cache.TTL,
		Logger:     a.logger,
	}

	var (
		store cache.Admin
		err   error
	)
	switch a.cfg.Cache.Backend {
	case "", "sqlite":
		store, err = sqlite.New(a.cfg.DBPath, opts)
	case "postgres":
		store, err = postgres.New(a.cfg.Cache.DSN, opts)
	case "memory":
		store = cache.NewMemory(opts)
	default:
		err = fmt.Errorf("unknown cache backend %q", a.cfg.Cache.Backend)
	}
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store)
	return nil
}

func (a *app) withHistory() error {
	h, err := history.New(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init history: %w", err)
	}
	a.history = h
	a.closers = append(a.closers, h)
	if a.cfg.Budget.Enabled {
		a.enforcer = budget.New(a.cfg.Budget.Policies, h)
	}
	return nil
}

// assistant opens the cache and history and builds the gateway.
func (a *app) assistant() (*assistant.Assistant, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := a.withStore(false); err != nil {
		return nil, err
	}
	if err := a.withHistory(); err != nil {
		return nil, err
	}
	gw, err := gateway.FromConfig(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	opts := []assistant.Option{
		assistant.WithLogger(a.logger),
		assistant.WithHistory(a.history),
	}
	if a.enforcer != nil {
		opts = append(opts, assistant.WithBudget(a.enforcer))
	}
	return assistant.New(a.cfg, a.store, gw, opts...), nil
}
