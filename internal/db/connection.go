package db

import (
	"context"
	"fmt"

	"github.com/cadforge/meshgen/internal/config"
	"github.com/cadforge/meshgen/internal/db/drivers"

	"github.com/uptrace/bun/extra/bundebug"
)

func NewConnection(ctx context.Context, cfg *config.Config) (drivers.Driver, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("no database configured")
	}

	var (
		driver drivers.Driver
		err    error
	)

	switch cfg.DB.Driver {
	case "sqlite":
		driver, err = drivers.NewSQLiteDriver(ctx, cfg.DB.DSN)
	case "pg":
		driver, err = drivers.NewPGDriver(ctx, cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("invalid database driver: %s", cfg.DB.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Environment != "prod" {
		driver.GetDB().AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(false)))
	}

	return driver, nil
}
