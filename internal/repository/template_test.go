package repository

import (
	"testing"
	"time"

	"github.com/sealdoc/sealdoc/internal/models"
)

func TestTemplateRepository_CreateAndGet(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	repo := NewTemplateRepository(conn)

	tmpl := &models.Template{
		AccountID: account.ID,
		AuthorID:  user.ID,
		Name:      "contract",
		Schema: []models.SchemaItem{
			{AttachmentUUID: "att-1", Name: "contract"},
		},
		Submitters: []models.Submitter{
			{UUID: "sub-1", Name: "First Party"},
		},
	}

	if err := repo.Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tmpl.ID == "" {
		t.Error("Create() did not set ID")
	}

	got, err := repo.GetByID(tmpl.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() returned nil")
	}
	if got.Name != "contract" {
		t.Errorf("GetByID() Name = %v, want contract", got.Name)
	}
	if len(got.Schema) != 1 || got.Schema[0].AttachmentUUID != "att-1" {
		t.Errorf("GetByID() Schema = %+v, want one entry for att-1", got.Schema)
	}
	if len(got.Submitters) != 1 || got.Submitters[0].UUID != "sub-1" {
		t.Errorf("GetByID() Submitters = %+v, want one entry sub-1", got.Submitters)
	}
	if got.ArchivedAt != nil {
		t.Errorf("GetByID() ArchivedAt = %v, want nil", got.ArchivedAt)
	}

	got, err = repo.GetByID("non-existent")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Error("GetByID() should return nil for non-existent ID")
	}
}

func TestTemplateRepository_SaveRoundTripsFields(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	repo := NewTemplateRepository(conn)

	tmpl := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "nda"}
	if err := repo.Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tmpl.Fields = []models.Field{
		{
			UUID:     "field-1",
			Name:     "Signature",
			Type:     models.FieldTypeSignature,
			Required: true,
			Areas: []models.FieldArea{
				{X: 0.1, Y: 0.8, W: 0.3, H: 0.05, AttachmentUUID: "att-1", Page: 0},
			},
		},
	}
	if err := repo.Save(tmpl); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.GetByID(tmpl.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.Fields) != 1 {
		t.Fatalf("Fields count = %d, want 1", len(got.Fields))
	}
	f := got.Fields[0]
	if f.Type != models.FieldTypeSignature || !f.Required {
		t.Errorf("Field = %+v, want required signature", f)
	}
	if len(f.Areas) != 1 || f.Areas[0].AttachmentUUID != "att-1" {
		t.Errorf("Areas = %+v, want one area for att-1", f.Areas)
	}
}

func TestTemplateRepository_ListFilters(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	repo := NewTemplateRepository(conn)
	folders := NewFolderRepository(conn)

	folder, err := folders.FindOrCreate(account.ID, user.ID, "Contracts")
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}

	now := time.Now()
	active := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "offer letter", FolderID: folder.ID}
	archived := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "old nda", ArchivedAt: &now}
	keyed := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "keyed", ExternalID: "ext-42"}
	for _, tmpl := range []*models.Template{active, archived, keyed} {
		if err := repo.Create(tmpl); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	// Default filter returns active templates only.
	got, err := repo.List(account.ID, models.TemplateListFilter{}, models.TemplatePagination{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List(active) count = %d, want 2", len(got))
	}
	for _, tmpl := range got {
		if tmpl.ArchivedAt != nil {
			t.Errorf("List(active) returned archived template %s", tmpl.Name)
		}
	}

	// Archived filter excludes active templates.
	got, err = repo.List(account.ID, models.TemplateListFilter{Archived: true}, models.TemplatePagination{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "old nda" {
		t.Errorf("List(archived) = %+v, want only old nda", got)
	}

	// Free-text search.
	got, err = repo.List(account.ID, models.TemplateListFilter{Query: "offer"}, models.TemplatePagination{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "offer letter" {
		t.Errorf("List(q=offer) = %+v, want only offer letter", got)
	}

	// External id exact match.
	got, err = repo.List(account.ID, models.TemplateListFilter{ExternalID: "ext-42"}, models.TemplatePagination{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "keyed" {
		t.Errorf("List(external_id) = %+v, want only keyed", got)
	}

	// Folder exact match.
	got, err = repo.List(account.ID, models.TemplateListFilter{Folder: "Contracts"}, models.TemplatePagination{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "offer letter" {
		t.Errorf("List(folder) = %+v, want only offer letter", got)
	}
	if got[0].FolderName != "Contracts" {
		t.Errorf("List(folder) FolderName = %v, want Contracts", got[0].FolderName)
	}
}

func TestTemplateRepository_ListCursor(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	repo := NewTemplateRepository(conn)

	for i := 0; i < 5; i++ {
		tmpl := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "doc"}
		if err := repo.Create(tmpl); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	first, err := repo.List(account.ID, models.TemplateListFilter{}, models.TemplatePagination{Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first page count = %d, want 2", len(first))
	}

	second, err := repo.List(account.ID, models.TemplateListFilter{}, models.TemplatePagination{
		Limit: 2,
		After: first[len(first)-1].ID,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("second page count = %d, want 2", len(second))
	}
	for _, tmpl := range second {
		if tmpl.ID <= first[len(first)-1].ID {
			t.Errorf("second page id %s not after cursor %s", tmpl.ID, first[len(first)-1].ID)
		}
	}

	prev, err := repo.List(account.ID, models.TemplateListFilter{}, models.TemplatePagination{
		Limit:  2,
		Before: second[0].ID,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, tmpl := range prev {
		if tmpl.ID >= second[0].ID {
			t.Errorf("prev page id %s not before cursor %s", tmpl.ID, second[0].ID)
		}
	}
}

func TestTemplateRepository_Delete(t *testing.T) {
	conn := setupTestDB(t)
	account, user := seedAccount(t, conn)
	repo := NewTemplateRepository(conn)

	tmpl := &models.Template{AccountID: account.ID, AuthorID: user.ID, Name: "doomed"}
	if err := repo.Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(tmpl.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, err := repo.GetByID(tmpl.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Error("GetByID() should return nil after Delete()")
	}
}

func TestTemplateRepository_CreateConstraintViolation(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewTemplateRepository(conn)

	tmpl := &models.Template{AccountID: "missing-account", AuthorID: "", Name: "bad"}
	err := repo.Create(tmpl)
	if err == nil {
		t.Fatal("Create() expected foreign key error")
	}
}
