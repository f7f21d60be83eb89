// Package schema assembles a template's document schema from stored
// attachments and extraction results.
package schema

import (
	"path"
	"strings"

	"github.com/sealdoc/sealdoc/internal/models"
)

// Synthesize appends one entry per newly stored attachment to the existing
// schema, in attachment processing order. Entries whose document produced
// extracted fields are flagged pending_fields to signal machine-derived,
// not yet confirmed content. Pre-existing entries are never reordered or
// removed.
func Synthesize(existing []models.SchemaItem, attachments []models.Attachment, extracted []models.Field) []models.SchemaItem {
	pending := map[string]bool{}
	for _, f := range extracted {
		for _, a := range f.Areas {
			pending[a.AttachmentUUID] = true
		}
	}

	out := make([]models.SchemaItem, 0, len(existing)+len(attachments))
	out = append(out, existing...)
	for _, a := range attachments {
		out = append(out, models.SchemaItem{
			AttachmentUUID: a.UUID,
			Name:           Basename(a.Filename),
			PendingFields:  pending[a.UUID],
		})
	}
	return out
}

// Basename strips the directory and extension from a filename.
func Basename(filename string) string {
	base := path.Base(filename)
	return strings.TrimSuffix(base, path.Ext(base))
}
