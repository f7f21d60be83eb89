package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sealdoc/sealdoc/internal/models"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(name string) (*models.Account, error) {
	a := &models.Account{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	_, err := r.db.Exec(`INSERT INTO accounts (id, name, created_at) VALUES (?, ?, ?)`,
		a.ID, a.Name, a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", wrapConstraint(err))
	}
	return a, nil
}

func (r *AccountRepository) CreateUser(accountID, email, name string) (*models.User, error) {
	u := &models.User{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Email:     email,
		Name:      name,
		CreatedAt: time.Now(),
	}
	_, err := r.db.Exec(`INSERT INTO users (id, account_id, email, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.AccountID, u.Email, u.Name, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", wrapConstraint(err))
	}
	return u, nil
}

func (r *AccountRepository) GetByID(id string) (*models.Account, error) {
	a := &models.Account{}
	err := r.db.QueryRow(`SELECT id, name, created_at FROM accounts WHERE id = ?`, id).Scan(&a.ID, &a.Name, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
