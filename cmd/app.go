package cmd

import (
	"context"
	"fmt"
	"net/http"

	"turnover-sync/core/config"
	"turnover-sync/core/database"
	"turnover-sync/core/logger"
	"turnover-sync/core/storage"
	"turnover-sync/feature/ingest"
	"turnover-sync/feature/reservations"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// application bundles the wired components shared by the commands.
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	store   *reservations.Store
	storage storage.Client
	service *reservations.Service
}

// newApplication loads the configuration and wires the run service.
// The database is required; object storage is optional and only disables
// csv feeds and report archiving when unreachable.
func newApplication(ctx context.Context, dryRun bool) (*application, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection required: %w", err)
	}
	store := reservations.NewStore(db)
	if err := store.Prepare(ctx); err != nil {
		return nil, err
	}
	logg.Info("Connected to reservations database", zap.String("driver", cfg.Database.Driver))

	app := &application{cfg: cfg, logger: logg, db: db, store: store}

	var objects *ingest.ObjectReader
	opts := []reservations.Option{reservations.WithDryRun(dryRun)}
	if client, err := connectStorage(ctx, cfg.Storage); err != nil {
		logg.Warn("Object storage unavailable, csv feeds and archives disabled", zap.Error(err))
	} else {
		app.storage = client
		objects = ingest.NewObjectReader(client, cfg.Storage.Bucket, cfg.Storage.CSVPrefix, cfg.Ingest)
		opts = append(opts, reservations.WithArchive(client, cfg.Storage.Bucket, cfg.Storage.ArchivePrefix))
	}

	fetcher := ingest.NewHTTPFetcher(&http.Client{}, cfg.Ingest, logg)
	ing := ingest.NewIngester(cfg.Ingest, fetcher, objects, cfg.Reconcile.Location(), logg)
	catalogPath := cfg.Ingest.CatalogPath
	loadCatalog := func() (*ingest.Catalog, error) {
		return ingest.LoadCatalog(catalogPath)
	}

	app.service = reservations.NewService(cfg.Reconcile, store, ing, loadCatalog, logg, opts...)
	return app, nil
}

func connectStorage(ctx context.Context, cfg storage.Config) (storage.Client, error) {
	client, err := storage.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := storage.EnsureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return nil, err
	}
	return client, nil
}
