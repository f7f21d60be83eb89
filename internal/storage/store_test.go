package storage

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sealdoc/sealdoc/internal/db"
	"github.com/sealdoc/sealdoc/internal/models"
	"github.com/sealdoc/sealdoc/internal/repository"
)

func setupStore(t *testing.T) (*Store, *repository.AttachmentRepository) {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	for _, m := range db.Migrations {
		if _, err := conn.Exec(m); err != nil {
			t.Fatalf("migration failed: %v", err)
		}
	}

	attachments := repository.NewAttachmentRepository(conn)
	store, err := New(t.TempDir(), attachments)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store, attachments
}

func TestStoreDocumentRoundTrip(t *testing.T) {
	store, attachments := setupStore(t)

	data := []byte("%PDF-1.4 test bytes")
	a, err := store.StoreDocument(context.Background(), "tmpl-1", "contract.pdf", "application/pdf", data)
	if err != nil {
		t.Fatalf("StoreDocument() error = %v", err)
	}
	if a.UUID == "" {
		t.Error("StoreDocument() did not assign a uuid")
	}
	if a.ByteSize != int64(len(data)) {
		t.Errorf("ByteSize = %d, want %d", a.ByteSize, len(data))
	}

	got, err := store.Read(a.UUID)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Read() bytes differ from stored bytes")
	}

	rec, err := attachments.GetByUUID(a.UUID)
	if err != nil {
		t.Fatalf("GetByUUID() error = %v", err)
	}
	if rec == nil || rec.Filename != "contract.pdf" {
		t.Errorf("metadata = %+v, want filename contract.pdf", rec)
	}
	if rec.Name != models.AttachmentNameDocuments || rec.RecordType != models.RecordTypeTemplate {
		t.Errorf("metadata kind = %s/%s, want template documents", rec.RecordType, rec.Name)
	}
}

func TestStoreDocumentDistinctForIdenticalBytes(t *testing.T) {
	store, _ := setupStore(t)

	data := []byte("same bytes")
	a, err := store.StoreDocument(context.Background(), "tmpl-1", "a.pdf", "application/pdf", data)
	if err != nil {
		t.Fatalf("StoreDocument() error = %v", err)
	}
	b, err := store.StoreDocument(context.Background(), "tmpl-1", "a.pdf", "application/pdf", data)
	if err != nil {
		t.Fatalf("StoreDocument() error = %v", err)
	}
	if a.UUID == b.UUID {
		t.Error("identical bytes produced the same attachment")
	}
}

func TestStoreRespectsCancelledContext(t *testing.T) {
	store, _ := setupStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.StoreDocument(ctx, "tmpl-1", "a.pdf", "application/pdf", []byte("x")); err == nil {
		t.Error("StoreDocument() with cancelled context expected error")
	}
}

func TestRemove(t *testing.T) {
	store, _ := setupStore(t)

	a, err := store.StoreDocument(context.Background(), "tmpl-1", "a.pdf", "application/pdf", []byte("x"))
	if err != nil {
		t.Fatalf("StoreDocument() error = %v", err)
	}

	if err := store.Remove(a.UUID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := store.Read(a.UUID); err == nil {
		t.Error("Read() after Remove() expected error")
	}

	// Removing again is not an error.
	if err := store.Remove(a.UUID); err != nil {
		t.Errorf("Remove() of missing blob error = %v", err)
	}
}
