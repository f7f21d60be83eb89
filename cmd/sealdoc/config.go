package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sealdoc/sealdoc/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configValidateCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/sealdoc/sealdoc.yaml", "Path to configuration file")
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  TLS enabled: %v\n", cfg.Server.TLS.Enabled)
	fmt.Printf("  Database path: %s\n", cfg.Database.Path)
	fmt.Printf("  Storage dir: %s\n", cfg.Storage.Dir)
	fmt.Printf("  Queue path: %s\n", cfg.Queue.Path)
	fmt.Printf("  Webhook workers: %d (max retries %d)\n", cfg.Webhooks.Workers, cfg.Webhooks.MaxRetries)
	fmt.Printf("  Rate limiting: %v\n", cfg.RateLimit.Enabled)
	fmt.Printf("  Metrics: %v\n", cfg.Metrics.Enabled)

	return nil
}
