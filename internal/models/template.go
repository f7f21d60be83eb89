package models

import "time"

// Template is a reusable document definition: one or more source documents
// plus a derived field schema and the participant roles that fill it.
type Template struct {
	ID         string       `json:"id"`
	AccountID  string       `json:"account_id"`
	AuthorID   string       `json:"author_id"`
	FolderID   string       `json:"folder_id,omitempty"`
	FolderName string       `json:"folder_name,omitempty"` // joined field
	Name       string       `json:"name"`
	ExternalID string       `json:"external_id,omitempty"`
	Schema     []SchemaItem `json:"schema"`
	Fields     []Field      `json:"fields"`
	Submitters []Submitter  `json:"submitters"`
	ArchivedAt *time.Time   `json:"archived_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// SchemaItem maps one source document to its entry in the template schema.
// Order mirrors attachment storage order.
type SchemaItem struct {
	AttachmentUUID string `json:"attachment_uuid"`
	Name           string `json:"name"`
	PendingFields  bool   `json:"pending_fields,omitempty"`
}

// Submitter is a named participant slot in the template's filling workflow.
// List order defines the role index used for positional role updates.
type Submitter struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	IsRequester  bool   `json:"is_requester,omitempty"`
	InviteByUUID string `json:"invite_by_uuid,omitempty"`
	LinkedToUUID string `json:"linked_to_uuid,omitempty"`
	Email        string `json:"email,omitempty"`
}

// Field types supported for fillable elements.
const (
	FieldTypeText      = "text"
	FieldTypeSignature = "signature"
	FieldTypeInitials  = "initials"
	FieldTypeDate      = "date"
	FieldTypeNumber    = "number"
	FieldTypeCheckbox  = "checkbox"
	FieldTypeRadio     = "radio"
	FieldTypeSelect    = "select"
	FieldTypeImage     = "image"
)

// Field is a single fillable element placed on document pages via areas.
type Field struct {
	UUID          string           `json:"uuid"`
	SubmitterUUID string           `json:"submitter_uuid,omitempty"`
	Name          string           `json:"name"`
	Type          string           `json:"type"`
	Required      bool             `json:"required"`
	ReadOnly      bool             `json:"readonly,omitempty"`
	DefaultValue  string           `json:"default_value,omitempty"`
	Title         string           `json:"title,omitempty"`
	Description   string           `json:"description,omitempty"`
	Preferences   map[string]any   `json:"preferences,omitempty"`
	Conditions    []FieldCondition `json:"conditions,omitempty"`
	Options       []FieldOption    `json:"options,omitempty"`
	Validation    *FieldValidation `json:"validation,omitempty"`
	Areas         []FieldArea      `json:"areas,omitempty"`
}

// FieldCondition makes a field's visibility depend on another field's value.
type FieldCondition struct {
	FieldUUID string `json:"field_uuid"`
	Value     string `json:"value,omitempty"`
	Action    string `json:"action,omitempty"`
}

// FieldOption is one choice of a select/radio field.
type FieldOption struct {
	Value string `json:"value"`
	UUID  string `json:"uuid"`
}

// FieldValidation holds a regexp pattern and the message shown on mismatch.
type FieldValidation struct {
	Message string `json:"message,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// FieldArea places a field on a specific document page. Coordinates and
// sizes are fractions of the page dimensions.
type FieldArea struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	W              float64 `json:"w"`
	H              float64 `json:"h"`
	CellW          float64 `json:"cell_w,omitempty"`
	AttachmentUUID string  `json:"attachment_uuid"`
	OptionUUID     string  `json:"option_uuid,omitempty"`
	Page           int     `json:"page"`
}

// TemplateListFilter narrows template listing. Filters compose as AND.
type TemplateListFilter struct {
	Query          string
	Archived       bool
	ExternalID     string
	ApplicationKey string
	Folder         string
}

// TemplatePagination is an id-keyed cursor window over the template list.
type TemplatePagination struct {
	Limit  int
	After  string // return templates with id > After
	Before string // return templates with id < Before
}
