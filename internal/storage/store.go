// Package storage persists attachment blobs on disk and their metadata in
// the attachments table. Blobs are immutable: written once at ingestion,
// removed only by the orphan sweep or a hard template delete.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sealdoc/sealdoc/internal/models"
	"github.com/sealdoc/sealdoc/internal/repository"
)

type Store struct {
	dir         string
	attachments *repository.AttachmentRepository
}

func New(dir string, attachments *repository.AttachmentRepository) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{dir: dir, attachments: attachments}, nil
}

// StoreDocument writes the bytes as a new document attachment of the
// template and records its metadata. Duplicate stores of identical bytes
// create distinct attachments.
func (s *Store) StoreDocument(ctx context.Context, templateID, filename, contentType string, data []byte) (*models.Attachment, error) {
	return s.store(ctx, models.RecordTypeTemplate, templateID, models.AttachmentNameDocuments, filename, contentType, data)
}

// StorePreviewImage writes a rendered page image owned by a document
// attachment.
func (s *Store) StorePreviewImage(ctx context.Context, attachmentUUID, filename, contentType string, data []byte) (*models.Attachment, error) {
	return s.store(ctx, models.RecordTypeAttachment, attachmentUUID, models.AttachmentNamePreviewImages, filename, contentType, data)
}

func (s *Store) store(ctx context.Context, recordType, recordID, name, filename, contentType string, data []byte) (*models.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a := &models.Attachment{
		UUID:        uuid.New().String(),
		RecordType:  recordType,
		RecordID:    recordID,
		Name:        name,
		Filename:    filename,
		ContentType: contentType,
		ByteSize:    int64(len(data)),
		CreatedAt:   time.Now(),
	}

	path := s.blobPath(a.UUID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}

	if err := s.attachments.Create(a); err != nil {
		os.Remove(path)
		return nil, err
	}
	return a, nil
}

// Read returns the blob bytes for an attachment uuid.
func (s *Store) Read(uuid string) ([]byte, error) {
	data, err := os.ReadFile(s.blobPath(uuid))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", uuid, err)
	}
	return data, nil
}

// Remove deletes the blob bytes. Missing blobs are not an error.
func (s *Store) Remove(uuid string) error {
	err := os.Remove(s.blobPath(uuid))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blob %s: %w", uuid, err)
	}
	return nil
}

// blobPath shards blobs by uuid prefix to keep directories small.
func (s *Store) blobPath(uuid string) string {
	prefix := "00"
	if len(uuid) >= 2 {
		prefix = uuid[:2]
	}
	return filepath.Join(s.dir, prefix, uuid)
}
