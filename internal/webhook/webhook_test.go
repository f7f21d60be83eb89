package webhook

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sealdoc/sealdoc/internal/db"
	"github.com/sealdoc/sealdoc/internal/models"
	"github.com/sealdoc/sealdoc/internal/repository"
)

// setupTestDB creates an in-memory SQLite database with all migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	for _, m := range db.Migrations {
		if _, err := conn.Exec(m); err != nil {
			t.Fatalf("migration failed: %v", err)
		}
	}

	return conn
}

// seedTemplate creates an account with a user and one template.
func seedTemplate(t *testing.T, conn *sql.DB) (*models.Account, *models.Template) {
	t.Helper()

	accounts := repository.NewAccountRepository(conn)
	account, err := accounts.Create("Test Account")
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	user, err := accounts.CreateUser(account.ID, "author+"+account.ID+"@example.com", "Author")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	templates := repository.NewTemplateRepository(conn)
	template := &models.Template{
		AccountID: account.ID,
		AuthorID:  user.ID,
		Name:      "Test Template",
	}
	if err := templates.Create(template); err != nil {
		t.Fatalf("failed to create template: %v", err)
	}
	return account, template
}

func seedEndpoint(t *testing.T, conn *sql.DB, accountID, url, secret string, events []string) *models.WebhookURL {
	t.Helper()

	webhooks := repository.NewWebhookRepository(conn)
	endpoint := &models.WebhookURL{
		AccountID: accountID,
		URL:       url,
		Secret:    secret,
		Events:    events,
	}
	if err := webhooks.Create(endpoint); err != nil {
		t.Fatalf("failed to create webhook endpoint: %v", err)
	}
	return endpoint
}
