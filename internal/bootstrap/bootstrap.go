package bootstrap

import (
	"context"
	"fmt"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/config"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/ports"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/usecase"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/infrastructure/export/excel"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/infrastructure/extractor/nfcom"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/infrastructure/queue/nats"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/infrastructure/reports"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/infrastructure/repository/duckdb"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/infrastructure/repository/postgres"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/infrastructure/resilience"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Catalog  ports.DatasetCatalog
	LoadUC   ports.DatasetIngestor
	QueryUC  ports.DatasetQueryService
	PurgeUC  ports.DatasetManager
	ReportUC ports.ReportRunner
	Exporter ports.ResultExporter

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pgCatalog := postgres.NewDatasetCatalog(db)
	if err := pgCatalog.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	stores, err := duckdb.NewProvider(cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("init store provider: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.ResilienceRetryAttempts,
		BreakerEnabled:   true,
	})
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	catalog := postgres.NewResilientCatalog(pgCatalog, executor)

	reportCatalog, err := reports.Load(cfg.ReportsPath)
	if err != nil {
		return nil, fmt.Errorf("load report catalog: %w", err)
	}

	extractor := nfcom.New()
	loadUC := usecase.NewLoadDatasetUseCase(catalog, stores, extractor, storage, queue, cfg.LoadBatchSize)
	queryUC := usecase.NewQueryDatasetUseCase(catalog, stores)
	purgeUC := usecase.NewPurgeDatasetUseCase(catalog, stores, storage)
	reportUC := usecase.NewRunReportUseCase(reportCatalog, queryUC)

	return &App{
		Config: cfg,

		Queue:    queue,
		Catalog:  catalog,
		LoadUC:   loadUC,
		QueryUC:  queryUC,
		PurgeUC:  purgeUC,
		ReportUC: reportUC,
		Exporter: excel.New(),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
