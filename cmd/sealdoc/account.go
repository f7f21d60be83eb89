package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sealdoc/sealdoc/internal/config"
	"github.com/sealdoc/sealdoc/internal/db"
	"github.com/sealdoc/sealdoc/internal/repository"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account management commands",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new account with an initial user",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountCreate,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	RunE:  runAccountList,
}

var (
	accountUserEmail string
	accountUserName  string
)

func init() {
	accountCreateCmd.Flags().StringVar(&accountUserEmail, "email", "", "Email of the initial user")
	accountCreateCmd.Flags().StringVar(&accountUserName, "user-name", "", "Name of the initial user")
	accountCreateCmd.MarkFlagRequired("email")

	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/sealdoc/sealdoc.yaml", "Path to configuration file")
}

func runAccountCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	accounts := repository.NewAccountRepository(database.DB)

	account, err := accounts.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	user, err := accounts.CreateUser(account.ID, accountUserEmail, accountUserName)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Account created: %s\n", account.ID)
	fmt.Printf("User created: %s (%s)\n", user.ID, user.Email)
	return nil
}

func runAccountList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	rows, err := database.Query("SELECT id, name, created_at FROM accounts ORDER BY created_at")
	if err != nil {
		return err
	}
	defer rows.Close()

	fmt.Printf("%-36s  %-30s  %s\n", "ID", "Name", "Created")
	fmt.Println(strings.Repeat("-", 90))

	for rows.Next() {
		var id, name, createdAt string
		if err := rows.Scan(&id, &name, &createdAt); err != nil {
			return err
		}
		fmt.Printf("%-36s  %-30s  %s\n", id, name, createdAt)
	}
	return rows.Err()
}
