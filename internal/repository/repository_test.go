package repository

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sealdoc/sealdoc/internal/db"
	"github.com/sealdoc/sealdoc/internal/models"
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

// seedAccount creates an account with one user and returns both.
func seedAccount(t *testing.T, conn *sql.DB) (*models.Account, *models.User) {
	t.Helper()

	accounts := NewAccountRepository(conn)
	account, err := accounts.Create("Test Account")
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	user, err := accounts.CreateUser(account.ID, "author@example.com", "Author")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return account, user
}
