package cli

import (
	"fmt"
	"sync"

	"contextkeeper/internal/config"
	ckcontext "contextkeeper/internal/context"
	"contextkeeper/internal/storage"
)

// CLIContext carries the loaded configuration and lazily opened storage.
type CLIContext struct {
	Config     *config.Config
	ConfigPath string
	Verbose    bool
	Quiet      bool

	storeOnce sync.Once
	store     storage.HistoryStore
	storeErr  error
	db        *storage.DB
}

// NewCLIContext creates a CLIContext.
func NewCLIContext(cfg *config.Config, configPath string, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:     cfg,
		ConfigPath: configPath,
		Verbose:    verbose,
		Quiet:      quiet,
	}
}

// HistoryStore opens the configured history backend on first use.
func (c *CLIContext) HistoryStore() (storage.HistoryStore, error) {
	c.storeOnce.Do(func() {
		switch c.Config.Storage.Driver {
		case config.DriverSQLite:
			path, err := c.Config.Storage.DatabasePath()
			if err != nil {
				c.storeErr = err
				return
			}
			db, err := storage.Open(path)
			if err != nil {
				c.storeErr = fmt.Errorf("open history database: %w", err)
				return
			}
			c.db = db
			c.store = storage.NewSQLiteStore(db)
		default:
			c.store = storage.NewFileStore(c.Config.Storage.Compress)
		}
	})
	return c.store, c.storeErr
}

// NewManager returns a Manager for taskKey backed by the configured store.
func (c *CLIContext) NewManager(taskKey string) (*ckcontext.Manager, error) {
	store, err := c.HistoryStore()
	if err != nil {
		return nil, err
	}
	return ckcontext.NewManager(store, taskKey, c.Config.EngineConfig()), nil
}

// Close releases the database if one was opened.
func (c *CLIContext) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
