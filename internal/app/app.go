package app

import (
	"context"
	"fmt"

	"github.com/cadforge/meshgen/internal/catalog"
	"github.com/cadforge/meshgen/internal/config"
	"github.com/cadforge/meshgen/internal/db"
	"github.com/cadforge/meshgen/internal/db/models"
	"github.com/cadforge/meshgen/internal/db/repository"
	"github.com/cadforge/meshgen/internal/document/fcstd"
	"github.com/cadforge/meshgen/internal/generation"
	"github.com/cadforge/meshgen/internal/mq"
	"github.com/cadforge/meshgen/internal/render"
	"github.com/cadforge/meshgen/pkg/logger"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type App struct {
	ctx        context.Context
	cancelFunc context.CancelFunc
	config     *config.Config

	db       *bun.DB
	mq       mq.MQ
	catalog  *catalog.Catalog
	renderer *render.Renderer
	pipeline *generation.Pipeline

	Logger *zap.Logger

	GenerationRepository repository.IGenerationRepository
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithCatalog() OptionFunc {
	return func(app *App) error {
		cat, err := catalog.Scan(app.config.ModelsDir, app.Logger)
		if err != nil {
			return err
		}

		app.catalog = cat
		return nil
	}
}

func WithMQ() OptionFunc {
	return func(app *App) error {
		queue, err := mq.NewMQ(app.config)
		if err != nil {
			return err
		}

		app.mq = queue
		return nil
	}
}

func WithDB() OptionFunc {
	return func(app *App) error {
		if app.config.DB == nil {
			return nil
		}

		driver, err := db.NewConnection(app.ctx, app.config)
		if err != nil {
			return err
		}
		app.db = driver.GetDB()

		if _, err := app.db.NewCreateTable().
			Model((*models.Generation)(nil)).
			IfNotExists().
			Exec(app.ctx); err != nil {
			return fmt.Errorf("failed to create generations table: %w", err)
		}

		app.GenerationRepository = repository.NewGenerationRepository(app.db)
		return nil
	}
}

func WithPipeline() OptionFunc {
	return func(app *App) error {
		if app.catalog == nil {
			return fmt.Errorf("pipeline requires a catalog")
		}

		opener := fcstd.NewOpener(app.config.FreeCAD, app.Logger)
		app.renderer = render.NewRenderer(app.config.OpenSCAD, app.Logger)
		app.pipeline = generation.NewPipeline(
			app.config, app.catalog, opener, app.renderer, app.mq, app.Logger)
		return nil
	}
}

func NewApp(cfg *config.Config, options ...OptionFunc) (*App, error) {
	log, err := logger.InitLogger(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     cfg,
		Logger:     log,
		cancelFunc: cancel,
	}

	for _, opt := range options {
		if err := opt(app); err != nil {
			cancel()
			return nil, err
		}
	}

	return app, nil
}

func (app *App) Close() {
	app.cancelFunc()

	if app.mq != nil {
		app.mq.Close()
	}

	if app.db != nil {
		app.db.Close()
	}

	app.Logger.Sync()
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) MQ() mq.MQ {
	return app.mq
}

func (app *App) DB() *bun.DB {
	return app.db
}

func (app *App) Catalog() *catalog.Catalog {
	return app.catalog
}

func (app *App) Renderer() *render.Renderer {
	return app.renderer
}

func (app *App) Pipeline() *generation.Pipeline {
	return app.pipeline
}
