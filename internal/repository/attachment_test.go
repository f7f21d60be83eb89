package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sealdoc/sealdoc/internal/models"
)

func newDocAttachment(templateID, filename string, at time.Time) *models.Attachment {
	return &models.Attachment{
		UUID:        uuid.New().String(),
		RecordType:  models.RecordTypeTemplate,
		RecordID:    templateID,
		Name:        models.AttachmentNameDocuments,
		Filename:    filename,
		ContentType: "application/pdf",
		ByteSize:    100,
		CreatedAt:   at,
	}
}

func TestAttachmentRepository_ListForTemplateOrder(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	templates := NewTemplateRepository(conn)
	repo := NewAttachmentRepository(conn)

	tmpl := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "bundle"}
	if err := templates.Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	base := time.Now()
	first := newDocAttachment(tmpl.ID, "first.pdf", base)
	second := newDocAttachment(tmpl.ID, "second.pdf", base.Add(time.Second))
	for _, a := range []*models.Attachment{second, first} { // insert out of order
		if err := repo.Create(a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.ListForTemplate(tmpl.ID)
	if err != nil {
		t.Fatalf("ListForTemplate() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListForTemplate() count = %d, want 2", len(got))
	}
	if got[0].Filename != "first.pdf" || got[1].Filename != "second.pdf" {
		t.Errorf("ListForTemplate() order = %s, %s; want first.pdf, second.pdf", got[0].Filename, got[1].Filename)
	}
}

func TestAttachmentRepository_ListPreviewImages(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	templates := NewTemplateRepository(conn)
	repo := NewAttachmentRepository(conn)

	tmpl := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "doc"}
	if err := templates.Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	doc := newDocAttachment(tmpl.ID, "doc.pdf", time.Now())
	if err := repo.Create(doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	preview := &models.Attachment{
		UUID:        uuid.New().String(),
		RecordType:  models.RecordTypeAttachment,
		RecordID:    doc.UUID,
		Name:        models.AttachmentNamePreviewImages,
		Filename:    "0.png",
		ContentType: "image/png",
		CreatedAt:   time.Now(),
	}
	if err := repo.Create(preview); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// A non-first-page render must not show up.
	other := &models.Attachment{
		UUID:       uuid.New().String(),
		RecordType: models.RecordTypeAttachment,
		RecordID:   doc.UUID,
		Name:       models.AttachmentNamePreviewImages,
		Filename:   "1.png",
		CreatedAt:  time.Now(),
	}
	if err := repo.Create(other); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	previews, err := repo.ListPreviewImages([]string{doc.UUID})
	if err != nil {
		t.Fatalf("ListPreviewImages() error = %v", err)
	}
	got, ok := previews[doc.UUID]
	if !ok {
		t.Fatal("ListPreviewImages() missing entry for document")
	}
	if got.Filename != "0.png" {
		t.Errorf("ListPreviewImages() filename = %v, want 0.png", got.Filename)
	}

	previews, err = repo.ListPreviewImages(nil)
	if err != nil {
		t.Fatalf("ListPreviewImages(nil) error = %v", err)
	}
	if len(previews) != 0 {
		t.Errorf("ListPreviewImages(nil) = %v, want empty", previews)
	}
}

func TestAttachmentRepository_ListChildAttachments(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	templates := NewTemplateRepository(conn)
	repo := NewAttachmentRepository(conn)

	tmpl := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "doc"}
	if err := templates.Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	other := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "other"}
	if err := templates.Create(other); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	doc := newDocAttachment(tmpl.ID, "doc.pdf", time.Now())
	foreign := newDocAttachment(other.ID, "other.pdf", time.Now())
	for _, a := range []*models.Attachment{doc, foreign} {
		if err := repo.Create(a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	preview := &models.Attachment{
		UUID:       uuid.New().String(),
		RecordType: models.RecordTypeAttachment,
		RecordID:   doc.UUID,
		Name:       models.AttachmentNamePreviewImages,
		Filename:   "0.png",
		CreatedAt:  time.Now(),
	}
	foreignPreview := &models.Attachment{
		UUID:       uuid.New().String(),
		RecordType: models.RecordTypeAttachment,
		RecordID:   foreign.UUID,
		Name:       models.AttachmentNamePreviewImages,
		Filename:   "0.png",
		CreatedAt:  time.Now(),
	}
	for _, a := range []*models.Attachment{preview, foreignPreview} {
		if err := repo.Create(a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.ListChildAttachments(tmpl.ID)
	if err != nil {
		t.Fatalf("ListChildAttachments() error = %v", err)
	}
	if len(got) != 1 || got[0].UUID != preview.UUID {
		t.Errorf("ListChildAttachments() = %+v, want only %s", got, preview.UUID)
	}
}

func TestAttachmentRepository_DeleteForTemplate(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	templates := NewTemplateRepository(conn)
	repo := NewAttachmentRepository(conn)

	tmpl := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "doc"}
	if err := templates.Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	doc := newDocAttachment(tmpl.ID, "doc.pdf", time.Now())
	if err := repo.Create(doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	preview := &models.Attachment{
		UUID:       uuid.New().String(),
		RecordType: models.RecordTypeAttachment,
		RecordID:   doc.UUID,
		Name:       models.AttachmentNamePreviewImages,
		Filename:   "0.jpg",
		CreatedAt:  time.Now(),
	}
	if err := repo.Create(preview); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.DeleteForTemplate(tmpl.ID); err != nil {
		t.Fatalf("DeleteForTemplate() error = %v", err)
	}

	for _, id := range []string{doc.UUID, preview.UUID} {
		got, err := repo.GetByUUID(id)
		if err != nil {
			t.Fatalf("GetByUUID() error = %v", err)
		}
		if got != nil {
			t.Errorf("attachment %s still present after DeleteForTemplate()", id)
		}
	}
}

func TestAttachmentRepository_ListOrphaned(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	templates := NewTemplateRepository(conn)
	repo := NewAttachmentRepository(conn)

	tmpl := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "doc"}
	if err := templates.Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	kept := newDocAttachment(tmpl.ID, "kept.pdf", time.Now())
	orphan := newDocAttachment("gone-template", "orphan.pdf", time.Now())
	for _, a := range []*models.Attachment{kept, orphan} {
		if err := repo.Create(a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.ListOrphaned()
	if err != nil {
		t.Fatalf("ListOrphaned() error = %v", err)
	}
	if len(got) != 1 || got[0].UUID != orphan.UUID {
		t.Errorf("ListOrphaned() = %+v, want only %s", got, orphan.UUID)
	}
}

func TestAttachmentRepository_ListOrphanedPreviews(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	templates := NewTemplateRepository(conn)
	repo := NewAttachmentRepository(conn)

	tmpl := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "doc"}
	if err := templates.Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	doc := newDocAttachment(tmpl.ID, "doc.pdf", time.Now())
	if err := repo.Create(doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	kept := &models.Attachment{
		UUID:       uuid.New().String(),
		RecordType: models.RecordTypeAttachment,
		RecordID:   doc.UUID,
		Name:       models.AttachmentNamePreviewImages,
		Filename:   "0.png",
		CreatedAt:  time.Now(),
	}
	// Preview whose parent document row was already removed.
	stranded := &models.Attachment{
		UUID:       uuid.New().String(),
		RecordType: models.RecordTypeAttachment,
		RecordID:   "gone-attachment",
		Name:       models.AttachmentNamePreviewImages,
		Filename:   "0.png",
		CreatedAt:  time.Now(),
	}
	for _, a := range []*models.Attachment{kept, stranded} {
		if err := repo.Create(a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.ListOrphaned()
	if err != nil {
		t.Fatalf("ListOrphaned() error = %v", err)
	}
	if len(got) != 1 || got[0].UUID != stranded.UUID {
		t.Errorf("ListOrphaned() = %+v, want only %s", got, stranded.UUID)
	}
}
