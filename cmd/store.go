package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ummahlocal/scout-cli/internal/db"
	"github.com/ummahlocal/scout-cli/internal/staging"
)

// openStore builds the staging store named by store.driver. The SQLite
// backend needs no server and is the default for local use.
func openStore(ctx context.Context) (staging.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return staging.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return staging.NewPostgres(pool), nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
