package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/bootstrap"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/config"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/observability/logging"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()

	loadTimeout := time.Duration(cfg.WorkerLoadTimeoutSecs) * time.Second

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDatasetStaged(ctx, func(handlerCtx context.Context, fingerprint string) error {
		workerMetrics.StartLoad()
		start := time.Now()

		loadCtx, cancel := context.WithTimeout(handlerCtx, loadTimeout)
		defer cancel()

		result, err := app.LoadUC.LoadStaged(loadCtx, fingerprint)
		var records int64
		if result != nil {
			records = result.RecordCount
		}
		workerMetrics.FinishLoad("worker", time.Since(start), records, err)
		if err != nil {
			return err
		}

		slog.Info("dataset_loaded",
			"fingerprint", result.Fingerprint,
			"records", result.RecordCount,
			"invoices_skipped", result.InvoicesSkipped,
			"items_skipped", result.ItemsSkipped,
			"already_loaded", result.AlreadyLoaded,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
