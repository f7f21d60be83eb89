package models

import "time"

// Attachment record kinds. Document attachments belong to a template;
// preview images belong to a document attachment as a derived artifact.
const (
	RecordTypeTemplate   = "template"
	RecordTypeAttachment = "attachment"

	AttachmentNameDocuments     = "documents"
	AttachmentNamePreviewImages = "preview_images"
)

// Attachment is an immutable stored blob. Bytes live in the blob store
// keyed by UUID; this row carries the metadata.
type Attachment struct {
	UUID        string    `json:"uuid"`
	RecordType  string    `json:"record_type"`
	RecordID    string    `json:"record_id"`
	Name        string    `json:"name"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	ByteSize    int64     `json:"byte_size"`
	CreatedAt   time.Time `json:"created_at"`
}
