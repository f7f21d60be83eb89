package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sealdoc/sealdoc/internal/config"
	"github.com/sealdoc/sealdoc/internal/db"
	"github.com/sealdoc/sealdoc/internal/repository"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "API key management commands",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API key",
	RunE:  runApikeyCreate,
}

var apikeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys (prefixes only)",
	RunE:  runApikeyList,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke [id]",
	Short: "Deactivate an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runApikeyRevoke,
}

var (
	apikeyAccountID string
	apikeyUserID    string
	apikeyName      string
)

func init() {
	apikeyCreateCmd.Flags().StringVar(&apikeyAccountID, "account", "", "Account id the key belongs to")
	apikeyCreateCmd.Flags().StringVar(&apikeyUserID, "user", "", "User id the key acts as")
	apikeyCreateCmd.Flags().StringVar(&apikeyName, "name", "", "Descriptive name for the key")
	apikeyCreateCmd.MarkFlagRequired("account")
	apikeyCreateCmd.MarkFlagRequired("user")

	apikeyCmd.AddCommand(apikeyCreateCmd)
	apikeyCmd.AddCommand(apikeyListCmd)
	apikeyCmd.AddCommand(apikeyRevokeCmd)
	apikeyCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/sealdoc/sealdoc.yaml", "Path to configuration file")
}

func runApikeyCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	apiKeys := repository.NewAPIKeyRepository(database.DB)
	result, err := apiKeys.Create(apikeyAccountID, apikeyUserID, apikeyName)
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	fmt.Printf("API key created: %s\n", result.ID)
	fmt.Println("Store this key now, it will not be shown again:")
	fmt.Printf("  %s\n", result.Key)
	return nil
}

func runApikeyList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	rows, err := database.Query(`
		SELECT id, account_id, COALESCE(name, ''), COALESCE(key_prefix, ''), active, created_at
		FROM api_keys ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer rows.Close()

	fmt.Printf("%-36s  %-20s  %-12s  %-7s  %s\n", "ID", "Name", "Prefix", "Active", "Created")
	fmt.Println(strings.Repeat("-", 100))

	for rows.Next() {
		var id, accountID, name, prefix, createdAt string
		var active bool
		if err := rows.Scan(&id, &accountID, &name, &prefix, &active, &createdAt); err != nil {
			return err
		}
		fmt.Printf("%-36s  %-20s  %-12s  %-7v  %s\n", id, name, prefix, active, createdAt)
	}
	return rows.Err()
}

func runApikeyRevoke(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	result, err := database.Exec("UPDATE api_keys SET active = 0 WHERE id = ?", args[0])
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("API key %s not found", args[0])
	}

	fmt.Printf("API key %s revoked\n", args[0])
	return nil
}
