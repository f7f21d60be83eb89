package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sealdoc/sealdoc/internal/models"
)

type FolderRepository struct {
	db *sql.DB
}

func NewFolderRepository(db *sql.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// FindOrCreate returns the folder with the given name in the account,
// creating it when absent. An empty name resolves to no folder.
func (r *FolderRepository) FindOrCreate(accountID, authorID, name string) (*models.Folder, error) {
	if name == "" {
		return nil, nil
	}

	f := &models.Folder{}
	err := r.db.QueryRow(`
		SELECT id, account_id, COALESCE(author_id, ''), name, created_at
		FROM template_folders WHERE account_id = ? AND name = ?`, accountID, name,
	).Scan(&f.ID, &f.AccountID, &f.AuthorID, &f.Name, &f.CreatedAt)
	if err == nil {
		return f, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	f = &models.Folder{
		ID:        uuid.New().String(),
		AccountID: accountID,
		AuthorID:  authorID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	_, err = r.db.Exec(`
		INSERT INTO template_folders (id, account_id, author_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.AccountID, nullString(f.AuthorID), f.Name, f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", wrapConstraint(err))
	}
	return f, nil
}

// GetByID returns a folder by id, or nil when not found.
func (r *FolderRepository) GetByID(id string) (*models.Folder, error) {
	f := &models.Folder{}
	err := r.db.QueryRow(`
		SELECT id, account_id, COALESCE(author_id, ''), name, created_at
		FROM template_folders WHERE id = ?`, id,
	).Scan(&f.ID, &f.AccountID, &f.AuthorID, &f.Name, &f.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
