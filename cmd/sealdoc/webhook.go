package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sealdoc/sealdoc/internal/config"
	"github.com/sealdoc/sealdoc/internal/db"
	"github.com/sealdoc/sealdoc/internal/models"
	"github.com/sealdoc/sealdoc/internal/repository"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Webhook endpoint management commands",
}

var webhookAddCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Register a webhook endpoint for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebhookAdd,
}

var webhookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an account's webhook endpoints",
	RunE:  runWebhookList,
}

var webhookDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Remove a webhook endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebhookDelete,
}

var (
	webhookAccountID string
	webhookSecret    string
	webhookEvents    []string
)

func init() {
	webhookAddCmd.Flags().StringVar(&webhookSecret, "secret", "", "HMAC secret used to sign deliveries")
	webhookAddCmd.Flags().StringSliceVar(&webhookEvents, "events", nil, "Event types to deliver (default: all)")

	webhookCmd.AddCommand(webhookAddCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookDeleteCmd)
	webhookCmd.PersistentFlags().StringVar(&webhookAccountID, "account", "", "Account id")
	webhookCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/sealdoc/sealdoc.yaml", "Path to configuration file")
}

func runWebhookAdd(cmd *cobra.Command, args []string) error {
	if webhookAccountID == "" {
		return fmt.Errorf("--account is required")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	webhooks := repository.NewWebhookRepository(database.DB)
	endpoint := &models.WebhookURL{
		AccountID: webhookAccountID,
		URL:       args[0],
		Secret:    webhookSecret,
		Events:    webhookEvents,
	}
	if err := webhooks.Create(endpoint); err != nil {
		return fmt.Errorf("failed to register webhook: %w", err)
	}

	fmt.Printf("Webhook registered: %s\n", endpoint.ID)
	return nil
}

func runWebhookList(cmd *cobra.Command, args []string) error {
	if webhookAccountID == "" {
		return fmt.Errorf("--account is required")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	webhooks := repository.NewWebhookRepository(database.DB)
	endpoints, err := webhooks.List(webhookAccountID)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-40s  %s\n", "ID", "URL", "Events")
	fmt.Println(strings.Repeat("-", 100))

	for _, e := range endpoints {
		events := "all"
		if len(e.Events) > 0 {
			events = strings.Join(e.Events, ",")
		}
		fmt.Printf("%-36s  %-40s  %s\n", e.ID, e.URL, events)
	}
	return nil
}

func runWebhookDelete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	webhooks := repository.NewWebhookRepository(database.DB)
	if err := webhooks.Delete(args[0]); err != nil {
		return err
	}

	fmt.Printf("Webhook %s deleted\n", args[0])
	return nil
}
