package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sealdoc/sealdoc/internal/acquire"
	"github.com/sealdoc/sealdoc/internal/metrics"
	"github.com/sealdoc/sealdoc/internal/models"
	"github.com/sealdoc/sealdoc/internal/repository"
	"github.com/sealdoc/sealdoc/internal/schema"
	"github.com/sealdoc/sealdoc/internal/storage"
)

// DefaultSubmitterName is the role assigned to machine-extracted fields
// when the template has no submitters yet.
const DefaultSubmitterName = "First Party"

// RequestContext identifies the caller of a lifecycle operation.
type RequestContext struct {
	AccountID string
	AuthorID  string
}

// Acquirer fetches remote files for URL-sourced creates.
type Acquirer interface {
	FromURL(ctx context.Context, rawURL, filename string) ([]acquire.IncomingFile, error)
}

// Extractor inspects a stored document for form-fillable regions.
type Extractor interface {
	Extract(ctx context.Context, attachment *models.Attachment, data []byte, submitterUUID string) ([]models.Field, error)
}

// Dispatcher fans lifecycle events out to webhook endpoints.
type Dispatcher interface {
	Dispatch(ctx context.Context, accountID, event, templateID string) error
}

// CreateInput describes the source material for a new template.
// Either Files or URL must be set.
type CreateInput struct {
	Files      []acquire.IncomingFile
	URL        string
	Filename   string // explicit name for URL-sourced files
	Name       string // explicit template name, defaults to first file's basename
	FolderName string
	ExternalID string
}

// UpdateInput is the whitelisted patch for a template. Nil pointers and
// nil slices leave the corresponding attribute unchanged.
type UpdateInput struct {
	Name       *string
	ExternalID *string
	FolderName *string
	Roles      []string
	Archived   *bool
	Fields     []models.Field
	Submitters []models.Submitter
}

// Document pairs a stored source file with its rendered first-page
// preview, when one exists.
type Document struct {
	models.Attachment
	PreviewImage *models.Attachment `json:"preview_image,omitempty"`
}

// TemplateService owns template lifecycle transitions: creation with
// ingestion, partial updates, archival and deletion.
type TemplateService struct {
	templates   *repository.TemplateRepository
	folders     *repository.FolderRepository
	attachments *repository.AttachmentRepository
	store       *storage.Store
	acquirer    Acquirer
	extractor   Extractor
	dispatcher  Dispatcher

	fireOnCreate bool
	logger       *slog.Logger
}

// Config wires the service's collaborators.
type Config struct {
	Templates   *repository.TemplateRepository
	Folders     *repository.FolderRepository
	Attachments *repository.AttachmentRepository
	Store       *storage.Store
	Acquirer    Acquirer
	Extractor   Extractor
	Dispatcher  Dispatcher

	// FireOnCreate enables the template.created webhook event.
	FireOnCreate bool
}

// NewTemplateService creates a new template lifecycle service
func NewTemplateService(cfg Config, logger *slog.Logger) *TemplateService {
	return &TemplateService{
		templates:    cfg.Templates,
		folders:      cfg.Folders,
		attachments:  cfg.Attachments,
		store:        cfg.Store,
		acquirer:     cfg.Acquirer,
		extractor:    cfg.Extractor,
		dispatcher:   cfg.Dispatcher,
		fireOnCreate: cfg.FireOnCreate,
		logger:       logger,
	}
}

// List returns the account's templates matching the filter, ordered by id.
func (s *TemplateService) List(ctx context.Context, rc RequestContext, filter models.TemplateListFilter, page models.TemplatePagination) ([]models.Template, error) {
	return s.templates.List(rc.AccountID, filter, page)
}

// Get returns one template by id, scoped to the caller's account.
func (s *TemplateService) Get(ctx context.Context, rc RequestContext, id string) (*models.Template, error) {
	template, err := s.templates.GetByID(id)
	if err != nil {
		return nil, err
	}
	if template == nil || template.AccountID != rc.AccountID {
		return nil, ErrTemplateNotFound
	}
	return template, nil
}

// Documents returns the template's stored source files in storage order,
// each paired with its first-page preview image when one has been
// rendered.
func (s *TemplateService) Documents(ctx context.Context, templateID string) ([]Document, error) {
	attachments, err := s.attachments.ListForTemplate(templateID)
	if err != nil {
		return nil, err
	}

	uuids := make([]string, len(attachments))
	for i, a := range attachments {
		uuids[i] = a.UUID
	}
	previews, err := s.attachments.ListPreviewImages(uuids)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, len(attachments))
	for i, a := range attachments {
		docs[i] = Document{Attachment: a}
		if preview, ok := previews[a.UUID]; ok {
			p := preview
			docs[i].PreviewImage = &p
		}
	}
	return docs, nil
}

// Create runs the full ingestion pipeline: acquire the source files,
// store them as attachments, extract candidate fields, synthesize the
// schema and persist the template. The template row is written only
// after ingestion succeeds, so a failed create never leaves an active
// template behind; attachments staged before the failure are swept by
// the orphan cleanup.
func (s *TemplateService) Create(ctx context.Context, rc RequestContext, input CreateInput) (*models.Template, error) {
	files := input.Files
	source := "upload"
	if len(files) == 0 {
		if input.URL == "" {
			return nil, fmt.Errorf("%w: either files or url is required", ErrValidation)
		}
		source = "url"
		fetched, err := s.acquirer.FromURL(ctx, input.URL, input.Filename)
		if err != nil {
			return nil, err
		}
		files = fetched
	}

	folderID := ""
	if input.FolderName != "" {
		folder, err := s.folders.FindOrCreate(rc.AccountID, rc.AuthorID, input.FolderName)
		if err != nil {
			return nil, mapStoreError(err)
		}
		folderID = folder.ID
	}

	// Attachments are staged under a pre-assigned template id; the
	// template row itself is the commit point.
	templateID := uuid.New().String()
	submitterUUID := uuid.New().String()

	stored := make([]models.Attachment, 0, len(files))
	extracted := []models.Field{}
	for _, f := range files {
		attachment, err := s.store.StoreDocument(ctx, templateID, f.Filename, f.ContentType, f.Data)
		if err != nil {
			return nil, err
		}
		stored = append(stored, *attachment)
		metrics.IncDocumentsIngested(source)

		fields, err := s.extractor.Extract(ctx, attachment, f.Data, submitterUUID)
		if err != nil {
			return nil, err
		}
		extracted = append(extracted, fields...)
	}
	metrics.AddFieldsExtracted(len(extracted))

	name := input.Name
	if name == "" && len(files) > 0 {
		name = schema.Basename(files[0].Filename)
	}

	template := &models.Template{
		ID:         templateID,
		AccountID:  rc.AccountID,
		AuthorID:   rc.AuthorID,
		FolderID:   folderID,
		Name:       name,
		ExternalID: input.ExternalID,
		Schema:     schema.Synthesize(nil, stored, extracted),
		Fields:     extracted,
		Submitters: []models.Submitter{},
	}
	if len(extracted) > 0 {
		template.Submitters = []models.Submitter{{UUID: submitterUUID, Name: DefaultSubmitterName}}
	}

	if err := s.templates.Create(template); err != nil {
		return nil, mapStoreError(err)
	}
	template.FolderName = input.FolderName

	metrics.IncTemplatesCreated()
	s.logger.Info("template created",
		"template_id", template.ID,
		"account_id", rc.AccountID,
		"documents", len(stored),
		"extracted_fields", len(extracted),
	)

	if s.fireOnCreate {
		s.fireEvent(ctx, rc.AccountID, models.EventTemplateCreated, template.ID)
	}

	return template, nil
}

// Update applies a partial patch to the template and fires the
// template.updated event when anything changed.
func (s *TemplateService) Update(ctx context.Context, rc RequestContext, id string, input UpdateInput) (*models.Template, error) {
	template, err := s.Get(ctx, rc, id)
	if err != nil {
		return nil, err
	}

	changed := false

	if input.FolderName != nil {
		folder, err := s.folders.FindOrCreate(rc.AccountID, rc.AuthorID, *input.FolderName)
		if err != nil {
			return nil, mapStoreError(err)
		}
		if folder != nil && template.FolderID != folder.ID {
			template.FolderID = folder.ID
			template.FolderName = folder.Name
			changed = true
		}
	}

	if input.Name != nil && *input.Name != template.Name {
		template.Name = *input.Name
		changed = true
	}
	if input.ExternalID != nil && *input.ExternalID != template.ExternalID {
		template.ExternalID = *input.ExternalID
		changed = true
	}

	// Roles merge positionally: an existing submitter at the index keeps
	// its uuid and gets the new name, indexes past the end append.
	if len(input.Roles) > 0 {
		for i, role := range input.Roles {
			if i < len(template.Submitters) {
				if template.Submitters[i].Name != role {
					template.Submitters[i].Name = role
					changed = true
				}
			} else {
				template.Submitters = append(template.Submitters, models.Submitter{
					UUID: uuid.New().String(),
					Name: role,
				})
				changed = true
			}
		}
	}

	if input.Submitters != nil {
		template.Submitters = input.Submitters
		changed = true
	}
	if input.Fields != nil {
		if err := validateFieldAreas(input.Fields, template.Schema); err != nil {
			return nil, err
		}
		template.Fields = input.Fields
		changed = true
	}

	if input.Archived != nil {
		if *input.Archived && template.ArchivedAt == nil {
			now := time.Now()
			template.ArchivedAt = &now
			changed = true
			metrics.IncTemplatesArchived()
		} else if !*input.Archived && template.ArchivedAt != nil {
			template.ArchivedAt = nil
			changed = true
		}
	}

	if !changed {
		return template, nil
	}

	if err := s.templates.Save(template); err != nil {
		return nil, mapStoreError(err)
	}

	metrics.IncTemplatesUpdated()
	s.logger.Info("template updated", "template_id", template.ID, "account_id", rc.AccountID)
	s.fireEvent(ctx, rc.AccountID, models.EventTemplateUpdated, template.ID)

	return template, nil
}

// Delete removes a template. A permanent delete drops the row and its
// attachments; otherwise the template is archived and stays retrievable
// by id.
func (s *TemplateService) Delete(ctx context.Context, rc RequestContext, id string, permanent bool) (*models.Template, error) {
	template, err := s.Get(ctx, rc, id)
	if err != nil {
		return nil, err
	}

	if !permanent {
		if template.ArchivedAt == nil {
			now := time.Now()
			template.ArchivedAt = &now
			if err := s.templates.Save(template); err != nil {
				return nil, mapStoreError(err)
			}
		}
		metrics.IncTemplatesDeleted("soft")
		s.logger.Info("template archived", "template_id", id, "account_id", rc.AccountID)
		return template, nil
	}

	if err := s.templates.Delete(id); err != nil {
		return nil, err
	}

	// Attachment cleanup is best effort; anything left behind is picked
	// up by the orphan sweep. Blobs go before rows so a preview whose row
	// is already gone is never stranded unreferenced on disk.
	attachments, err := s.attachments.ListForTemplate(id)
	if err != nil {
		s.logger.Warn("failed to list attachments for deleted template", "template_id", id, "error", err)
	}
	children, err := s.attachments.ListChildAttachments(id)
	if err != nil {
		s.logger.Warn("failed to list child attachments for deleted template", "template_id", id, "error", err)
	}
	for _, a := range append(attachments, children...) {
		if err := s.store.Remove(a.UUID); err != nil {
			s.logger.Warn("failed to remove attachment blob", "attachment_uuid", a.UUID, "error", err)
		}
	}
	if err := s.attachments.DeleteForTemplate(id); err != nil {
		s.logger.Warn("failed to delete attachment records", "template_id", id, "error", err)
	}

	metrics.IncTemplatesDeleted("permanent")
	s.logger.Info("template deleted", "template_id", id, "account_id", rc.AccountID)
	return template, nil
}

// CleanupOrphans removes attachment rows and blobs whose owning template
// no longer exists. Returns the number of attachments removed.
func (s *TemplateService) CleanupOrphans(ctx context.Context) (int, error) {
	orphaned, err := s.attachments.ListOrphaned()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, a := range orphaned {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.store.Remove(a.UUID); err != nil {
			s.logger.Warn("failed to remove orphaned blob", "attachment_uuid", a.UUID, "error", err)
			continue
		}
		if err := s.attachments.Delete(a.UUID); err != nil {
			s.logger.Warn("failed to delete orphaned attachment record", "attachment_uuid", a.UUID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("orphaned attachments removed", "count", removed)
	}
	return removed, nil
}

// fireEvent dispatches a lifecycle event. Dispatch failures never fail
// the triggering operation.
func (s *TemplateService) fireEvent(ctx context.Context, accountID, event, templateID string) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, accountID, event, templateID); err != nil {
		s.logger.Error("failed to dispatch webhook event",
			"event", event,
			"template_id", templateID,
			"error", err,
		)
	}
}

// validateFieldAreas checks that every field area references a document
// present in the template's schema.
func validateFieldAreas(fields []models.Field, schemaItems []models.SchemaItem) error {
	known := make(map[string]bool, len(schemaItems))
	for _, item := range schemaItems {
		known[item.AttachmentUUID] = true
	}
	for _, f := range fields {
		for _, area := range f.Areas {
			if !known[area.AttachmentUUID] {
				return fmt.Errorf("%w: field %q area references unknown attachment %q", ErrValidation, f.Name, area.AttachmentUUID)
			}
		}
	}
	return nil
}
