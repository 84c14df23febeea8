// Package app wires together configuration, the download client, and the
// local catalog into a single Deps struct that commands receive at runtime.
package app

import (
	"fmt"

	"github.com/calidris/movetrack/internal/config"
	"github.com/calidris/movetrack/internal/fetch"
	"github.com/calidris/movetrack/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// The Store is opened lazily via RequireStore; most commands never touch it.
type Deps struct {
	Config *config.Config
	Client *fetch.Client
	Store  *store.Store
}

// New builds a Deps from resolved config.
func New(cfg *config.Config) *Deps {
	client := fetch.NewClient(
		cfg.Timeout,
		cfg.Rate,
		cfg.Debug,
	)
	return &Deps{
		Config: cfg,
		Client: client,
	}
}

// RequireStore opens the catalog database if it is not open yet.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	d.Store = s
	return nil
}

// Close releases any open resources.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}
