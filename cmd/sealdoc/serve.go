package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sealdoc/sealdoc/internal/acquire"
	"github.com/sealdoc/sealdoc/internal/api"
	"github.com/sealdoc/sealdoc/internal/config"
	"github.com/sealdoc/sealdoc/internal/db"
	"github.com/sealdoc/sealdoc/internal/extract"
	"github.com/sealdoc/sealdoc/internal/metrics"
	"github.com/sealdoc/sealdoc/internal/queue"
	"github.com/sealdoc/sealdoc/internal/ratelimit"
	"github.com/sealdoc/sealdoc/internal/repository"
	"github.com/sealdoc/sealdoc/internal/service"
	"github.com/sealdoc/sealdoc/internal/storage"
	"github.com/sealdoc/sealdoc/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and webhook delivery workers",
	RunE:  runServe,
}

var configFile string

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/sealdoc/sealdoc.yaml", "Path to configuration file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	metrics.SetGlobal(metrics.New())

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	templates := repository.NewTemplateRepository(database.DB)
	folders := repository.NewFolderRepository(database.DB)
	attachments := repository.NewAttachmentRepository(database.DB)
	webhooks := repository.NewWebhookRepository(database.DB)
	apiKeys := repository.NewAPIKeyRepository(database.DB)

	store, err := storage.New(cfg.Storage.Dir, attachments)
	if err != nil {
		return err
	}

	jobs, err := queue.NewBoltStorage(cfg.Queue.Path)
	if err != nil {
		return err
	}
	defer jobs.Close()

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.New(cfg.RateLimit)
		if err != nil {
			return err
		}
		defer limiter.Close()
	}

	acquirer := acquire.New(cfg.Acquire.Timeout, cfg.Acquire.MaxBytes)
	dispatcher := webhook.NewDispatcher(webhooks, jobs, logger)

	templateService := service.NewTemplateService(service.Config{
		Templates:    templates,
		Folders:      folders,
		Attachments:  attachments,
		Store:        store,
		Acquirer:     acquirer,
		Extractor:    extract.NewPDFExtractor(),
		Dispatcher:   dispatcher,
		FireOnCreate: cfg.Webhooks.FireOnCreate,
	}, logger)

	deliverer := webhook.NewDeliverer(templates, webhooks, cfg.Webhooks.Timeout, logger)
	processor := queue.NewProcessor(jobs, deliverer, queue.ProcessorConfig{
		Workers:       cfg.Webhooks.Workers,
		MaxRetries:    cfg.Webhooks.MaxRetries,
		RetryInterval: cfg.Webhooks.RetryInterval,
	}, webhook.IsTemporaryError, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor.Start(ctx)

	metrics.Global().StartQueueCollector(ctx, 15*time.Second, func(ctx context.Context) (int64, int64, int64, error) {
		stats, err := jobs.Stats(ctx)
		if err != nil {
			return 0, 0, 0, err
		}
		return stats.Pending, stats.Deferred, stats.Dead, nil
	})

	go runPeriodicSweeps(ctx, templateService, limiter, logger)

	server := api.NewServer(templateService, acquirer, apiKeys, limiter, cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", cfg.Server.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	cancel()
	processor.Stop()

	return nil
}

// runPeriodicSweeps removes orphaned attachments left behind by failed
// ingestions or permanent deletes, and expired rate limit windows.
func runPeriodicSweeps(ctx context.Context, templates *service.TemplateService, limiter *ratelimit.Limiter, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := templates.CleanupOrphans(ctx)
			if err != nil {
				logger.Error("orphan sweep failed", "error", err)
			} else if removed > 0 {
				logger.Info("orphan sweep completed", "removed", removed)
			}

			if limiter != nil {
				if _, err := limiter.Cleanup(24 * time.Hour); err != nil {
					logger.Error("rate limit sweep failed", "error", err)
				}
			}
		}
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
