package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sealdoc/sealdoc/internal/config"
	"github.com/sealdoc/sealdoc/internal/db"
	"github.com/sealdoc/sealdoc/internal/queue"
	"github.com/sealdoc/sealdoc/internal/repository"
	"github.com/sealdoc/sealdoc/internal/service"
	"github.com/sealdoc/sealdoc/internal/storage"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up orphaned attachments and finished queue jobs",
	RunE:  runCleanup,
}

var cleanupJobsDays int

func init() {
	cleanupCmd.Flags().IntVar(&cleanupJobsDays, "jobs-days", 30, "Delete finished queue jobs older than N days (0 = skip)")
	cleanupCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/sealdoc/sealdoc.yaml", "Path to configuration file")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	attachments := repository.NewAttachmentRepository(database.DB)
	store, err := storage.New(cfg.Storage.Dir, attachments)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	templates := service.NewTemplateService(service.Config{
		Templates:   repository.NewTemplateRepository(database.DB),
		Folders:     repository.NewFolderRepository(database.DB),
		Attachments: attachments,
		Store:       store,
	}, logger)

	removed, err := templates.CleanupOrphans(context.Background())
	if err != nil {
		return fmt.Errorf("failed to clean up orphaned attachments: %w", err)
	}
	fmt.Printf("Orphaned attachments removed: %d\n", removed)

	if cleanupJobsDays > 0 {
		jobs, err := queue.NewBoltStorage(cfg.Queue.Path)
		if err != nil {
			return err
		}
		defer jobs.Close()

		maxAge := time.Duration(cleanupJobsDays) * 24 * time.Hour
		deleted, err := jobs.CleanupDone(context.Background(), maxAge)
		if err != nil {
			return fmt.Errorf("failed to clean up queue jobs: %w", err)
		}
		fmt.Printf("Finished queue jobs removed: %d\n", deleted)
	}

	return nil
}
