package repository

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sealdoc/sealdoc/internal/models"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create creates a new API key and returns the full key (only shown once).
func (r *APIKeyRepository) Create(accountID, userID, name string) (*models.APIKeyCreateResult, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	key := "sd_" + hex.EncodeToString(keyBytes)

	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])
	keyPrefix := key[:11] // "sd_" + first 8 chars

	apiKey := &models.APIKey{
		ID:        uuid.New().String(),
		AccountID: accountID,
		UserID:    userID,
		Name:      name,
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		Active:    true,
		CreatedAt: time.Now(),
	}

	_, err := r.db.Exec(`
		INSERT INTO api_keys (id, account_id, user_id, name, key_hash, key_prefix, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		apiKey.ID, apiKey.AccountID, apiKey.UserID, apiKey.Name,
		apiKey.KeyHash, apiKey.KeyPrefix, 1, apiKey.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create API key: %w", wrapConstraint(err))
	}

	return &models.APIKeyCreateResult{APIKey: *apiKey, Key: key}, nil
}

// GetByKey resolves a raw key to its record, or nil when unknown/inactive.
func (r *APIKeyRepository) GetByKey(key string) (*models.APIKey, error) {
	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	k := &models.APIKey{}
	var lastUsedAt sql.NullTime
	err := r.db.QueryRow(`
		SELECT id, account_id, user_id, COALESCE(name, ''), key_hash, COALESCE(key_prefix, ''), active, created_at, last_used_at
		FROM api_keys WHERE key_hash = ? AND active = 1`, keyHash,
	).Scan(&k.ID, &k.AccountID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Active, &k.CreatedAt, &lastUsedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		k.LastUsedAt = &t
	}
	return k, nil
}

// TouchLastUsed records key usage. Best effort, callers ignore the error.
func (r *APIKeyRepository) TouchLastUsed(id string) error {
	_, err := r.db.Exec("UPDATE api_keys SET last_used_at = ? WHERE id = ?", time.Now(), id)
	return err
}
