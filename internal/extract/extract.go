// Package extract inspects stored documents for natural form-fillable
// regions and synthesizes default field definitions from them.
//
// PDF documents are walked via their AcroForm widget annotations: each
// widget yields one field with an area placed at the widget rectangle,
// normalized to fractions of the page size.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/sealdoc/sealdoc/internal/models"
)

// ErrPdfEncrypted marks a password-protected source document. The whole
// template creation aborts on it so the caller can give an actionable
// message.
var ErrPdfEncrypted = errors.New("pdf is encrypted and requires a password")

// Widget annotation field flags, PDF 32000-1 table 226/229.
const (
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
)

type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract returns candidate fields for one stored document. Non-PDF
// documents, PDFs without form widgets and parseable PDFs that fail
// strict validation yield an empty list; that is not an error.
func (e *PDFExtractor) Extract(ctx context.Context, attachment *models.Attachment, data []byte, submitterUUID string) ([]models.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.EqualFold(attachment.ContentType, "application/pdf") {
		return nil, nil
	}

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		if looksEncrypted(data) {
			return nil, ErrPdfEncrypted
		}
		return nil, fmt.Errorf("failed to parse pdf %q: %w", attachment.Filename, err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		if looksEncrypted(data) {
			return nil, ErrPdfEncrypted
		}
		// Parseable but nonconforming documents (a form dict missing a
		// required entry, say) still make valid templates; they just get
		// no inferred fields.
		return nil, nil
	}

	dims, err := pdfCtx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	var fields []models.Field
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageDict, _, _, err := pdfCtx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			continue
		}

		annots, err := pdfCtx.DereferenceArray(pageDict["Annots"])
		if err != nil || annots == nil {
			continue
		}

		var dim types.Dim
		if pageNr-1 < len(dims) {
			dim = dims[pageNr-1]
		}

		for _, obj := range annots {
			annot, err := pdfCtx.DereferenceDict(obj)
			if err != nil || annot == nil {
				continue
			}
			f, ok := e.widgetField(pdfCtx, annot, attachment.UUID, submitterUUID, pageNr, dim)
			if ok {
				fields = append(fields, f)
			}
		}
	}

	return fields, nil
}

// widgetField converts one widget annotation into a field definition.
func (e *PDFExtractor) widgetField(pdfCtx *model.Context, annot types.Dict, attachmentUUID, submitterUUID string, pageNr int, dim types.Dim) (models.Field, bool) {
	if subtype := annot.NameEntry("Subtype"); subtype == nil || *subtype != "Widget" {
		return models.Field{}, false
	}

	// FT and T may live on the widget itself or on its parent field dict.
	fieldDict := annot
	if annot.NameEntry("FT") == nil {
		if parent, err := pdfCtx.DereferenceDict(annot["Parent"]); err == nil && parent != nil {
			fieldDict = parent
		}
	}

	ftName := fieldDict.NameEntry("FT")
	if ftName == nil {
		return models.Field{}, false
	}

	flags := 0
	if ff := fieldDict.IntEntry("Ff"); ff != nil {
		flags = *ff
	}

	fieldType, ok := mapFieldType(*ftName, flags)
	if !ok {
		return models.Field{}, false
	}

	name := ""
	if t := fieldDict.StringEntry("T"); t != nil {
		name = *t
	}

	area, ok := widgetArea(pdfCtx, annot, attachmentUUID, pageNr, dim)
	if !ok {
		return models.Field{}, false
	}

	f := models.Field{
		UUID:          uuid.New().String(),
		SubmitterUUID: submitterUUID,
		Name:          name,
		Type:          fieldType,
		Areas:         []models.FieldArea{area},
	}

	if fieldType == models.FieldTypeSelect {
		f.Options = choiceOptions(pdfCtx, fieldDict)
	}
	return f, true
}

// mapFieldType maps a PDF form field type to a template field type.
// Pushbuttons carry no value and are skipped.
func mapFieldType(ft string, flags int) (string, bool) {
	switch ft {
	case "Tx":
		return models.FieldTypeText, true
	case "Ch":
		return models.FieldTypeSelect, true
	case "Sig":
		return models.FieldTypeSignature, true
	case "Btn":
		if flags&flagPushbutton != 0 {
			return "", false
		}
		if flags&flagRadio != 0 {
			return models.FieldTypeRadio, true
		}
		return models.FieldTypeCheckbox, true
	}
	return "", false
}

// widgetArea converts the widget Rect into a page-relative area. PDF
// coordinates have their origin at the bottom-left; areas measure from
// the top-left.
func widgetArea(pdfCtx *model.Context, annot types.Dict, attachmentUUID string, pageNr int, dim types.Dim) (models.FieldArea, bool) {
	rect, err := pdfCtx.DereferenceArray(annot["Rect"])
	if err != nil || len(rect) != 4 {
		return models.FieldArea{}, false
	}
	if dim.Width <= 0 || dim.Height <= 0 {
		return models.FieldArea{}, false
	}

	llx, lly := numValue(rect[0]), numValue(rect[1])
	urx, ury := numValue(rect[2]), numValue(rect[3])
	return normalizeArea(llx, lly, urx, ury, dim, attachmentUUID, pageNr), true
}

// normalizeArea maps a bottom-left-origin rectangle onto a top-left-origin
// page-relative area.
func normalizeArea(llx, lly, urx, ury float64, dim types.Dim, attachmentUUID string, pageNr int) models.FieldArea {
	if urx < llx {
		llx, urx = urx, llx
	}
	if ury < lly {
		lly, ury = ury, lly
	}

	return models.FieldArea{
		X:              llx / dim.Width,
		Y:              (dim.Height - ury) / dim.Height,
		W:              (urx - llx) / dim.Width,
		H:              (ury - lly) / dim.Height,
		AttachmentUUID: attachmentUUID,
		Page:           pageNr - 1,
	}
}

// choiceOptions reads the Opt array of a choice field.
func choiceOptions(pdfCtx *model.Context, fieldDict types.Dict) []models.FieldOption {
	opts, err := pdfCtx.DereferenceArray(fieldDict["Opt"])
	if err != nil || opts == nil {
		return nil
	}

	options := make([]models.FieldOption, 0, len(opts))
	for _, o := range opts {
		switch v := o.(type) {
		case types.StringLiteral:
			options = append(options, models.FieldOption{Value: v.Value(), UUID: uuid.New().String()})
		case types.HexLiteral:
			options = append(options, models.FieldOption{Value: v.Value(), UUID: uuid.New().String()})
		}
	}
	return options
}

func numValue(o types.Object) float64 {
	switch v := o.(type) {
	case types.Float:
		return v.Value()
	case types.Integer:
		return float64(v.Value())
	}
	return 0
}

// looksEncrypted reports whether the raw bytes carry an encryption
// dictionary. Used to distinguish password-protected documents from
// plain parse failures.
func looksEncrypted(data []byte) bool {
	return bytes.Contains(data, []byte("/Encrypt"))
}
