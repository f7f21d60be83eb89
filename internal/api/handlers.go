package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sealdoc/sealdoc/internal/acquire"
	"github.com/sealdoc/sealdoc/internal/extract"
	"github.com/sealdoc/sealdoc/internal/models"
	"github.com/sealdoc/sealdoc/internal/service"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100

	maxMultipartMemory = 32 << 20
)

// TemplateResponse is a template plus its stored documents.
type TemplateResponse struct {
	models.Template
	Documents []service.Document `json:"documents"`
}

// Pagination carries id-keyed cursors for the next and previous page.
type Pagination struct {
	Count int    `json:"count"`
	Next  string `json:"next,omitempty"`
	Prev  string `json:"prev,omitempty"`
}

// ListResponse is the response for GET /templates
type ListResponse struct {
	Data       []TemplateResponse `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// CreateTemplateRequest is the JSON request body for POST /templates.
// Multipart uploads carry the same fields as form values instead.
type CreateTemplateRequest struct {
	URL        string `json:"url"`
	Filename   string `json:"filename"`
	Name       string `json:"name"`
	FolderName string `json:"folder_name"`
	ExternalID string `json:"external_id"`
}

// UpdateTemplateRequest is the request body for PUT/PATCH /templates/{id}.
// Absent fields leave the attribute unchanged.
type UpdateTemplateRequest struct {
	Name       *string            `json:"name"`
	ExternalID *string            `json:"external_id"`
	FolderName *string            `json:"folder_name"`
	Roles      []string           `json:"roles"`
	Archived   *bool              `json:"archived"`
	Fields     []models.Field     `json:"fields"`
	Submitters []models.Submitter `json:"submitters"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// handleListTemplates handles GET /api/v1/templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	q := r.URL.Query()

	filter := models.TemplateListFilter{
		Query:          q.Get("q"),
		ExternalID:     q.Get("external_id"),
		ApplicationKey: q.Get("application_key"),
		Folder:         q.Get("folder"),
	}
	if archived := q.Get("archived"); archived != "" {
		v, err := strconv.ParseBool(archived)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "archived must be a boolean")
			return
		}
		filter.Archived = v
	}

	page := models.TemplatePagination{
		Limit:  defaultListLimit,
		After:  q.Get("after"),
		Before: q.Get("before"),
	}
	if limit := q.Get("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v < 1 {
			s.sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if v > maxListLimit {
			v = maxListLimit
		}
		page.Limit = v
	}

	templates, err := s.templates.List(r.Context(), rc, filter, page)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	data := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		resp, err := s.templateResponse(r, &t)
		if err != nil {
			s.handleServiceError(w, err)
			return
		}
		data[i] = *resp
	}

	pagination := Pagination{Count: len(data)}
	if len(data) > 0 {
		pagination.Prev = data[0].ID
		if len(data) == page.Limit {
			pagination.Next = data[len(data)-1].ID
		}
	}

	s.sendJSON(w, http.StatusOK, ListResponse{Data: data, Pagination: pagination})
}

// handleGetTemplate handles GET /api/v1/templates/{id}
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())

	template, err := s.templates.Get(r.Context(), rc, chi.URLParam(r, "id"))
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	resp, err := s.templateResponse(r, template)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleCreateTemplate handles POST /api/v1/templates.
// Multipart requests carry uploaded files; JSON requests carry a
// remote URL to fetch.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())

	var input service.CreateInput

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		headers := r.MultipartForm.File["files[]"]
		if len(headers) == 0 {
			headers = r.MultipartForm.File["files"]
		}
		if len(headers) == 0 {
			s.sendError(w, http.StatusUnprocessableEntity, "at least one file is required")
			return
		}

		files, err := s.acquirer.FromMultipart(headers)
		if err != nil {
			s.logger.Error("failed to read uploaded files", "error", err)
			s.sendError(w, http.StatusBadRequest, "failed to read uploaded files")
			return
		}

		input = service.CreateInput{
			Files:      files,
			Name:       r.FormValue("name"),
			FolderName: r.FormValue("folder_name"),
			ExternalID: r.FormValue("external_id"),
		}
	} else {
		var req CreateTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.URL == "" {
			s.sendError(w, http.StatusUnprocessableEntity, "url is required")
			return
		}
		input = service.CreateInput{
			URL:        req.URL,
			Filename:   req.Filename,
			Name:       req.Name,
			FolderName: req.FolderName,
			ExternalID: req.ExternalID,
		}
	}

	template, err := s.templates.Create(r.Context(), rc, input)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	resp, err := s.templateResponse(r, template)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, resp)
}

// handleUpdateTemplate handles PUT/PATCH /api/v1/templates/{id}
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())

	var req UpdateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	template, err := s.templates.Update(r.Context(), rc, chi.URLParam(r, "id"), service.UpdateInput{
		Name:       req.Name,
		ExternalID: req.ExternalID,
		FolderName: req.FolderName,
		Roles:      req.Roles,
		Archived:   req.Archived,
		Fields:     req.Fields,
		Submitters: req.Submitters,
	})
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	resp, err := s.templateResponse(r, template)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleDeleteTemplate handles DELETE /api/v1/templates/{id}.
// Soft-deletes (archives) unless permanently=true.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())

	permanent := false
	if v := r.URL.Query().Get("permanently"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "permanently must be a boolean")
			return
		}
		permanent = parsed
	}

	template, err := s.templates.Delete(r.Context(), rc, chi.URLParam(r, "id"), permanent)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]any{
		"id":       template.ID,
		"archived": !permanent,
		"deleted":  permanent,
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: "0.1.0",
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// templateResponse pairs a template with its stored documents.
func (s *Server) templateResponse(r *http.Request, t *models.Template) (*TemplateResponse, error) {
	docs, err := s.templates.Documents(r.Context(), t.ID)
	if err != nil {
		return nil, err
	}
	return &TemplateResponse{Template: *t, Documents: docs}, nil
}

// handleServiceError maps service errors to HTTP status and a stable
// error code. Unexpected failures are logged and surfaced generically.
func (s *Server) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTemplateNotFound):
		s.sendErrorCode(w, http.StatusNotFound, "template not found", "not_found")
	case errors.Is(err, extract.ErrPdfEncrypted):
		s.sendErrorCode(w, http.StatusUnprocessableEntity, "PDF is encrypted and requires a password", "pdf_encrypted")
	case errors.Is(err, acquire.ErrFetchFailed):
		s.sendErrorCode(w, http.StatusUnprocessableEntity, "failed to fetch file from URL", "fetch_failed")
	case errors.Is(err, service.ErrValidation):
		s.sendErrorCode(w, http.StatusUnprocessableEntity, err.Error(), "validation_error")
	case errors.Is(err, service.ErrPersistenceConflict):
		s.sendErrorCode(w, http.StatusUnprocessableEntity, "invalid reference in submitted data", "conflict")
	default:
		s.logger.Error("unexpected failure", "error", err)
		s.sendErrorCode(w, http.StatusInternalServerError, "internal error", "internal_error")
	}
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) sendErrorCode(w http.ResponseWriter, status int, message, code string) {
	s.sendJSON(w, status, ErrorResponse{Error: message, Code: code})
}
