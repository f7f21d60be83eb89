package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/sealdoc/sealdoc/internal/models"
)

type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create records attachment metadata. The caller has already written the
// blob bytes to the blob store under a.UUID.
func (r *AttachmentRepository) Create(a *models.Attachment) error {
	_, err := r.db.Exec(`
		INSERT INTO attachments (uuid, record_type, record_id, name, filename, content_type, byte_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UUID, a.RecordType, a.RecordID, a.Name, a.Filename, a.ContentType, a.ByteSize, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", wrapConstraint(err))
	}
	return nil
}

// GetByUUID returns an attachment by uuid, or nil when not found.
func (r *AttachmentRepository) GetByUUID(uuid string) (*models.Attachment, error) {
	a := &models.Attachment{}
	err := r.db.QueryRow(`
		SELECT uuid, record_type, record_id, name, filename, content_type, byte_size, created_at
		FROM attachments WHERE uuid = ?`, uuid,
	).Scan(&a.UUID, &a.RecordType, &a.RecordID, &a.Name, &a.Filename, &a.ContentType, &a.ByteSize, &a.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListForTemplate returns the template's document attachments in creation
// order, which is the attachment processing order the schema mirrors.
func (r *AttachmentRepository) ListForTemplate(templateID string) ([]models.Attachment, error) {
	rows, err := r.db.Query(`
		SELECT uuid, record_type, record_id, name, filename, content_type, byte_size, created_at
		FROM attachments
		WHERE record_type = ? AND record_id = ? AND name = ?
		ORDER BY created_at, uuid`,
		models.RecordTypeTemplate, templateID, models.AttachmentNameDocuments,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttachments(rows)
}

// ListPreviewImages returns a mapping of document attachment uuid to its
// rendered first-page preview (filenames 0.png or 0.jpg), for the
// attachments that have one.
func (r *AttachmentRepository) ListPreviewImages(attachmentUUIDs []string) (map[string]models.Attachment, error) {
	previews := map[string]models.Attachment{}
	if len(attachmentUUIDs) == 0 {
		return previews, nil
	}

	placeholders := strings.Repeat("?,", len(attachmentUUIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(attachmentUUIDs))
	for _, id := range attachmentUUIDs {
		args = append(args, id)
	}

	rows, err := r.db.Query(`
		SELECT uuid, record_type, record_id, name, filename, content_type, byte_size, created_at
		FROM attachments
		WHERE record_type = '`+models.RecordTypeAttachment+`'
		  AND name = '`+models.AttachmentNamePreviewImages+`'
		  AND filename IN ('0.png', '0.jpg')
		  AND record_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list, err := scanAttachments(rows)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		previews[a.RecordID] = a
	}
	return previews, nil
}

// ListChildAttachments returns rows owned by the template's document
// attachments, such as rendered preview images. Callers removing a
// template use it to find the derived blobs.
func (r *AttachmentRepository) ListChildAttachments(templateID string) ([]models.Attachment, error) {
	rows, err := r.db.Query(`
		SELECT uuid, record_type, record_id, name, filename, content_type, byte_size, created_at
		FROM attachments
		WHERE record_type = ? AND record_id IN (
			SELECT uuid FROM attachments WHERE record_type = ? AND record_id = ?)`,
		models.RecordTypeAttachment, models.RecordTypeTemplate, templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttachments(rows)
}

// DeleteForTemplate removes all attachment rows owned by a template,
// including preview images owned by its document attachments. The caller
// removes the blob bytes first, while the rows still name them.
func (r *AttachmentRepository) DeleteForTemplate(templateID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Preview rows first, while the document rows still exist to join on.
	_, err = tx.Exec(`
		DELETE FROM attachments
		WHERE record_type = ? AND record_id IN (
			SELECT uuid FROM attachments WHERE record_type = ? AND record_id = ?)`,
		models.RecordTypeAttachment, models.RecordTypeTemplate, templateID,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DELETE FROM attachments WHERE record_type = ? AND record_id = ?`,
		models.RecordTypeTemplate, templateID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ListOrphaned returns document attachments whose owning template row no
// longer exists, plus child attachments whose parent attachment row is
// gone. Both can appear when a permanent delete is interrupted between
// blob and row removal.
func (r *AttachmentRepository) ListOrphaned() ([]models.Attachment, error) {
	rows, err := r.db.Query(`
		SELECT a.uuid, a.record_type, a.record_id, a.name, a.filename, a.content_type, a.byte_size, a.created_at
		FROM attachments a
		LEFT JOIN templates t ON a.record_id = t.id
		WHERE a.record_type = ? AND t.id IS NULL
		UNION ALL
		SELECT a.uuid, a.record_type, a.record_id, a.name, a.filename, a.content_type, a.byte_size, a.created_at
		FROM attachments a
		LEFT JOIN attachments p ON a.record_id = p.uuid
		WHERE a.record_type = ? AND p.uuid IS NULL`,
		models.RecordTypeTemplate, models.RecordTypeAttachment,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttachments(rows)
}

// Delete removes a single attachment row.
func (r *AttachmentRepository) Delete(uuid string) error {
	_, err := r.db.Exec("DELETE FROM attachments WHERE uuid = ?", uuid)
	return err
}

func scanAttachments(rows *sql.Rows) ([]models.Attachment, error) {
	attachments := []models.Attachment{}
	for rows.Next() {
		var a models.Attachment
		err := rows.Scan(&a.UUID, &a.RecordType, &a.RecordID, &a.Name, &a.Filename, &a.ContentType, &a.ByteSize, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}
