package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sealdoc",
	Short: "Sealdoc - document template ingestion and signing-schema service",
	Long:  `Sealdoc ingests PDF and office documents, extracts fillable form fields, and serves the resulting signing templates over an HTTP API with webhook notifications.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sealdoc %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(apikeyCmd)
	rootCmd.AddCommand(webhookCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
