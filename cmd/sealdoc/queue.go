package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sealdoc/sealdoc/internal/config"
	"github.com/sealdoc/sealdoc/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Delivery queue inspection commands",
	Long:  "Inspect and repair the webhook delivery queue. The server must be stopped first, the queue file is single-writer.",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts by status",
	RunE:  runQueueStats,
}

var queueDLQListCmd = &cobra.Command{
	Use:   "dlq",
	Short: "List dead-lettered jobs",
	RunE:  runQueueDLQList,
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry [job-id]",
	Short: "Move a dead-lettered job back to the pending queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueRetry,
}

var (
	queueDLQLimit  int
	queueDLQOffset int
)

func init() {
	queueDLQListCmd.Flags().IntVar(&queueDLQLimit, "limit", 50, "Maximum jobs to list")
	queueDLQListCmd.Flags().IntVar(&queueDLQOffset, "offset", 0, "Jobs to skip")

	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueDLQListCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/sealdoc/sealdoc.yaml", "Path to configuration file")
}

func openQueue() (*queue.BoltStorage, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return queue.NewBoltStorage(cfg.Queue.Path)
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	jobs, err := openQueue()
	if err != nil {
		return err
	}
	defer jobs.Close()

	stats, err := jobs.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Pending:  %d\n", stats.Pending)
	fmt.Printf("Running:  %d\n", stats.Running)
	fmt.Printf("Deferred: %d\n", stats.Deferred)
	fmt.Printf("Done:     %d\n", stats.Done)
	fmt.Printf("Failed:   %d\n", stats.Failed)
	fmt.Printf("Dead:     %d\n", stats.Dead)
	fmt.Printf("Total:    %d\n", stats.Total)
	return nil
}

func runQueueDLQList(cmd *cobra.Command, args []string) error {
	jobs, err := openQueue()
	if err != nil {
		return err
	}
	defer jobs.Close()

	dead, err := jobs.ListDLQ(context.Background(), queueDLQLimit, queueDLQOffset)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-18s  %-8s  %s\n", "ID", "Type", "Retries", "Last error")
	fmt.Println(strings.Repeat("-", 100))

	for _, j := range dead {
		fmt.Printf("%-36s  %-18s  %-8d  %s\n", j.ID, j.Type, j.RetryCount, j.LastError)
	}
	return nil
}

func runQueueRetry(cmd *cobra.Command, args []string) error {
	jobs, err := openQueue()
	if err != nil {
		return err
	}
	defer jobs.Close()

	if err := jobs.RetryFromDLQ(context.Background(), args[0]); err != nil {
		return err
	}

	fmt.Printf("Job %s requeued\n", args[0])
	return nil
}
