package schema

import (
	"testing"

	"github.com/sealdoc/sealdoc/internal/models"
)

func TestSynthesizeAppendsInOrder(t *testing.T) {
	attachments := []models.Attachment{
		{UUID: "att-1", Filename: "contract.pdf"},
		{UUID: "att-2", Filename: "appendix.pdf"},
	}

	got := Synthesize(nil, attachments, nil)

	if len(got) != 2 {
		t.Fatalf("Synthesize() count = %d, want 2", len(got))
	}
	if got[0].AttachmentUUID != "att-1" || got[1].AttachmentUUID != "att-2" {
		t.Errorf("Synthesize() order = %s, %s; want att-1, att-2", got[0].AttachmentUUID, got[1].AttachmentUUID)
	}
	if got[0].Name != "contract" || got[1].Name != "appendix" {
		t.Errorf("Synthesize() names = %s, %s; want basenames without extension", got[0].Name, got[1].Name)
	}
	for _, item := range got {
		if item.PendingFields {
			t.Errorf("entry %s has pending_fields without extracted fields", item.AttachmentUUID)
		}
	}
}

func TestSynthesizeMarksPendingFields(t *testing.T) {
	attachments := []models.Attachment{
		{UUID: "att-1", Filename: "form.pdf"},
		{UUID: "att-2", Filename: "plain.pdf"},
	}
	extracted := []models.Field{
		{
			UUID: "f-1",
			Type: models.FieldTypeText,
			Areas: []models.FieldArea{
				{AttachmentUUID: "att-1", Page: 0},
			},
		},
	}

	got := Synthesize(nil, attachments, extracted)

	if !got[0].PendingFields {
		t.Error("entry for att-1 should be pending_fields")
	}
	if got[1].PendingFields {
		t.Error("entry for att-2 should not be pending_fields")
	}
}

func TestSynthesizeIsAdditive(t *testing.T) {
	existing := []models.SchemaItem{
		{AttachmentUUID: "old-1", Name: "original"},
	}
	attachments := []models.Attachment{
		{UUID: "att-1", Filename: "added.pdf"},
	}

	got := Synthesize(existing, attachments, nil)

	if len(got) != 2 {
		t.Fatalf("Synthesize() count = %d, want 2", len(got))
	}
	if got[0].AttachmentUUID != "old-1" || got[0].Name != "original" {
		t.Errorf("Synthesize() mutated pre-existing entry: %+v", got[0])
	}
	if got[1].AttachmentUUID != "att-1" {
		t.Errorf("Synthesize() new entry = %+v, want att-1 appended", got[1])
	}
}

func TestBasename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"contract.pdf", "contract"},
		{"docs/nested/adoption agreement.pdf", "adoption agreement"},
		{"noext", "noext"},
		{"archive.tar.gz", "archive.tar"},
	}
	for _, tt := range tests {
		if got := Basename(tt.in); got != tt.want {
			t.Errorf("Basename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
