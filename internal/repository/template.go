package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/sealdoc/sealdoc/internal/models"
)

// ConstraintError marks a backing-store constraint violation (bad foreign
// key, duplicate unique value). Callers surface it as a validation failure.
type ConstraintError struct {
	Err error
}

func (e *ConstraintError) Error() string { return "constraint violation: " + e.Err.Error() }
func (e *ConstraintError) Unwrap() error { return e.Err }

func wrapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return &ConstraintError{Err: err}
	}
	return err
}

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create persists a new template. An id is generated unless the caller
// staged attachments under a pre-assigned one.
func (r *TemplateRepository) Create(t *models.Template) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt

	schemaJSON, fieldsJSON, submittersJSON, err := marshalEmbedded(t)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO templates (id, account_id, author_id, folder_id, name, external_id, schema, fields, submitters, archived_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, nullString(t.AuthorID), nullString(t.FolderID), t.Name, nullString(t.ExternalID),
		schemaJSON, fieldsJSON, submittersJSON, t.ArchivedAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", wrapConstraint(err))
	}
	return nil
}

// Save writes the template's mutable attributes back to the store.
func (r *TemplateRepository) Save(t *models.Template) error {
	t.UpdatedAt = time.Now()

	schemaJSON, fieldsJSON, submittersJSON, err := marshalEmbedded(t)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE templates SET folder_id = ?, name = ?, external_id = ?, schema = ?, fields = ?, submitters = ?, archived_at = ?, updated_at = ?
		WHERE id = ?`,
		nullString(t.FolderID), t.Name, nullString(t.ExternalID),
		schemaJSON, fieldsJSON, submittersJSON, t.ArchivedAt, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", wrapConstraint(err))
	}
	return nil
}

// GetByID returns a template by id, or nil when not found.
func (r *TemplateRepository) GetByID(id string) (*models.Template, error) {
	row := r.db.QueryRow(`
		SELECT t.id, t.account_id, COALESCE(t.author_id, ''), t.folder_id, f.name, t.name, t.external_id,
			t.schema, t.fields, t.submitters, t.archived_at, t.created_at, t.updated_at
		FROM templates t
		LEFT JOIN template_folders f ON t.folder_id = f.id
		WHERE t.id = ?`, id)

	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns templates for an account matching the filter, ordered by id,
// windowed by the id-keyed cursor. Filters compose as AND; the archived
// flag selects archived templates and excludes active ones (and vice versa).
func (r *TemplateRepository) List(accountID string, filter models.TemplateListFilter, page models.TemplatePagination) ([]models.Template, error) {
	query := `
		SELECT t.id, t.account_id, COALESCE(t.author_id, ''), t.folder_id, f.name, t.name, t.external_id,
			t.schema, t.fields, t.submitters, t.archived_at, t.created_at, t.updated_at
		FROM templates t
		LEFT JOIN template_folders f ON t.folder_id = f.id
		WHERE t.account_id = ?`
	args := []any{accountID}

	if filter.Archived {
		query += " AND t.archived_at IS NOT NULL"
	} else {
		query += " AND t.archived_at IS NULL"
	}
	if filter.Query != "" {
		query += " AND t.name LIKE ?"
		args = append(args, "%"+filter.Query+"%")
	}
	if filter.ExternalID != "" {
		query += " AND t.external_id = ?"
		args = append(args, filter.ExternalID)
	}
	if filter.ApplicationKey != "" {
		query += " AND t.external_id = ?"
		args = append(args, filter.ApplicationKey)
	}
	if filter.Folder != "" {
		query += " AND f.name = ?"
		args = append(args, filter.Folder)
	}
	if page.After != "" {
		query += " AND t.id > ?"
		args = append(args, page.After)
	}
	if page.Before != "" {
		query += " AND t.id < ?"
		args = append(args, page.Before)
	}

	query += " ORDER BY t.id"
	if page.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, page.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []models.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// Delete permanently removes a template.
func (r *TemplateRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM templates WHERE id = ?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	t := &models.Template{}
	var folderID, folderName, externalID sql.NullString
	var archivedAt sql.NullTime
	var schemaJSON, fieldsJSON, submittersJSON sql.NullString

	err := row.Scan(&t.ID, &t.AccountID, &t.AuthorID, &folderID, &folderName, &t.Name, &externalID,
		&schemaJSON, &fieldsJSON, &submittersJSON, &archivedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.FolderID = folderID.String
	t.FolderName = folderName.String
	t.ExternalID = externalID.String
	if archivedAt.Valid {
		at := archivedAt.Time
		t.ArchivedAt = &at
	}

	if err := unmarshalInto(schemaJSON, &t.Schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if err := unmarshalInto(fieldsJSON, &t.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	if err := unmarshalInto(submittersJSON, &t.Submitters); err != nil {
		return nil, fmt.Errorf("failed to decode submitters: %w", err)
	}
	return t, nil
}

func marshalEmbedded(t *models.Template) (schema, fields, submitters string, err error) {
	if t.Schema == nil {
		t.Schema = []models.SchemaItem{}
	}
	if t.Fields == nil {
		t.Fields = []models.Field{}
	}
	if t.Submitters == nil {
		t.Submitters = []models.Submitter{}
	}

	b, err := json.Marshal(t.Schema)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode schema: %w", err)
	}
	schema = string(b)

	b, err = json.Marshal(t.Fields)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode fields: %w", err)
	}
	fields = string(b)

	b, err = json.Marshal(t.Submitters)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode submitters: %w", err)
	}
	submitters = string(b)
	return schema, fields, submitters, nil
}

func unmarshalInto(col sql.NullString, dst any) error {
	if !col.Valid || strings.TrimSpace(col.String) == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
