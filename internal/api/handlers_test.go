package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sealdoc/sealdoc/internal/acquire"
	"github.com/sealdoc/sealdoc/internal/config"
	"github.com/sealdoc/sealdoc/internal/db"
	"github.com/sealdoc/sealdoc/internal/models"
	"github.com/sealdoc/sealdoc/internal/ratelimit"
	"github.com/sealdoc/sealdoc/internal/repository"
	"github.com/sealdoc/sealdoc/internal/service"
	"github.com/sealdoc/sealdoc/internal/storage"
)

type noopExtractor struct{}

func (e *noopExtractor) Extract(_ context.Context, _ *models.Attachment, _ []byte, _ string) ([]models.Field, error) {
	return nil, nil
}

type recordingDispatcher struct {
	events []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _, event, _ string) error {
	d.events = append(d.events, event)
	return nil
}

type apiTestEnv struct {
	handler    http.Handler
	key        string
	conn       *sql.DB
	dispatcher *recordingDispatcher
}

func setupTestServer(t *testing.T) *apiTestEnv {
	return setupTestServerWithLimiter(t, nil)
}

func setupTestServerWithLimiter(t *testing.T, limiter *ratelimit.Limiter) *apiTestEnv {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	for _, m := range db.Migrations {
		if _, err := conn.Exec(m); err != nil {
			t.Fatalf("migration failed: %v", err)
		}
	}

	accounts := repository.NewAccountRepository(conn)
	account, err := accounts.Create("Test Account")
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	user, err := accounts.CreateUser(account.ID, "author@example.com", "Author")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	apiKeys := repository.NewAPIKeyRepository(conn)
	created, err := apiKeys.Create(account.ID, user.ID, "test")
	if err != nil {
		t.Fatalf("failed to create API key: %v", err)
	}

	attachments := repository.NewAttachmentRepository(conn)
	store, err := storage.New(t.TempDir(), attachments)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	acquirer := acquire.New(5*time.Second, 0)
	dispatcher := &recordingDispatcher{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	templates := service.NewTemplateService(service.Config{
		Templates:   repository.NewTemplateRepository(conn),
		Folders:     repository.NewFolderRepository(conn),
		Attachments: attachments,
		Store:       store,
		Acquirer:    acquirer,
		Extractor:   &noopExtractor{},
		Dispatcher:  dispatcher,
	}, logger)

	cfg := &config.Config{}
	server := NewServer(templates, acquirer, apiKeys, limiter, cfg, logger)

	return &apiTestEnv{
		handler:    server.Handler(),
		key:        created.Key,
		conn:       conn,
		dispatcher: dispatcher,
	}
}

func (env *apiTestEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+env.key)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func (env *apiTestEnv) createTemplate(t *testing.T, name string) TemplateResponse {
	t.Helper()

	body, contentType := multipartUpload(t, map[string]string{"name": name}, name+".pdf")
	rec := env.do(t, http.MethodPost, "/api/v1/templates", body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp TemplateResponse
	decodeBody(t, rec, &resp)
	return resp
}

func multipartUpload(t *testing.T, fields map[string]string, filenames ...string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	for _, name := range filenames {
		fw, err := w.CreateFormFile("files[]", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		fmt.Fprintf(fw, "%%PDF-1.7 test bytes for %s", name)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHealthNoAuth(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestAuthMissingKey(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthInvalidKey(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)
	req.Header.Set("X-Api-Key", "sd_deadbeef")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateTemplateMultipart(t *testing.T) {
	env := setupTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{"folder_name": "Contracts"}, "purchase agreement.pdf")
	rec := env.do(t, http.MethodPost, "/api/v1/templates", body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp TemplateResponse
	decodeBody(t, rec, &resp)
	if resp.Name != "purchase agreement" {
		t.Errorf("name = %q, want %q", resp.Name, "purchase agreement")
	}
	if resp.FolderName != "Contracts" {
		t.Errorf("folder_name = %q, want Contracts", resp.FolderName)
	}
	if len(resp.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(resp.Documents))
	}
	if len(resp.Schema) != 1 || resp.Schema[0].AttachmentUUID != resp.Documents[0].UUID {
		t.Errorf("schema does not reference the stored document")
	}
}

func TestCreateTemplateMultipartNoFiles(t *testing.T) {
	env := setupTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{"name": "empty"})
	rec := env.do(t, http.MethodPost, "/api/v1/templates", body, contentType)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestCreateTemplateFromURL(t *testing.T) {
	env := setupTestServer(t)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, "%PDF-1.7 fetched document")
	}))
	defer origin.Close()

	payload, _ := json.Marshal(CreateTemplateRequest{
		URL:      origin.URL + "/lease.pdf",
		Filename: "lease.pdf",
	})
	rec := env.do(t, http.MethodPost, "/api/v1/templates", bytes.NewReader(payload), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp TemplateResponse
	decodeBody(t, rec, &resp)
	if resp.Name != "lease" {
		t.Errorf("name = %q, want lease", resp.Name)
	}
}

func TestCreateTemplateMissingURL(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/templates", bytes.NewReader([]byte(`{"name":"no source"}`)), "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestCreateTemplateFetchFailure(t *testing.T) {
	env := setupTestServer(t)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer origin.Close()

	payload, _ := json.Marshal(CreateTemplateRequest{URL: origin.URL + "/missing.pdf"})
	rec := env.do(t, http.MethodPost, "/api/v1/templates", bytes.NewReader(payload), "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "fetch_failed" {
		t.Errorf("code = %q, want fetch_failed", resp.Code)
	}
}

func TestListTemplatesPagination(t *testing.T) {
	env := setupTestServer(t)

	for i := 0; i < 3; i++ {
		env.createTemplate(t, fmt.Sprintf("doc-%d", i))
	}

	rec := env.do(t, http.MethodGet, "/api/v1/templates?limit=2", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var first ListResponse
	decodeBody(t, rec, &first)
	if first.Pagination.Count != 2 {
		t.Fatalf("count = %d, want 2", first.Pagination.Count)
	}
	if first.Pagination.Next == "" {
		t.Fatal("expected a next cursor on a full page")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/templates?limit=2&after="+first.Pagination.Next, nil, "")
	var second ListResponse
	decodeBody(t, rec, &second)
	if second.Pagination.Count != 1 {
		t.Fatalf("second page count = %d, want 1", second.Pagination.Count)
	}
	for _, got := range second.Data {
		for _, prev := range first.Data {
			if got.ID == prev.ID {
				t.Errorf("template %s appeared on both pages", got.ID)
			}
		}
	}
}

func TestListTemplatesQueryFilter(t *testing.T) {
	env := setupTestServer(t)

	env.createTemplate(t, "rental agreement")
	env.createTemplate(t, "invoice")

	rec := env.do(t, http.MethodGet, "/api/v1/templates?q=rental", nil, "")
	var resp ListResponse
	decodeBody(t, rec, &resp)
	if len(resp.Data) != 1 || resp.Data[0].Name != "rental agreement" {
		t.Errorf("query filter returned %d templates", len(resp.Data))
	}
}

func TestGetTemplateNotFound(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/v1/templates/00000000-0000-0000-0000-000000000000", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateTemplateRename(t *testing.T) {
	env := setupTestServer(t)
	created := env.createTemplate(t, "draft")

	rec := env.do(t, http.MethodPatch, "/api/v1/templates/"+created.ID,
		bytes.NewReader([]byte(`{"name":"final"}`)), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp TemplateResponse
	decodeBody(t, rec, &resp)
	if resp.Name != "final" {
		t.Errorf("name = %q, want final", resp.Name)
	}
	if len(env.dispatcher.events) == 0 || env.dispatcher.events[len(env.dispatcher.events)-1] != "template.updated" {
		t.Errorf("events = %v, want trailing template.updated", env.dispatcher.events)
	}
}

func TestUpdateTemplateBadBody(t *testing.T) {
	env := setupTestServer(t)
	created := env.createTemplate(t, "draft")

	rec := env.do(t, http.MethodPatch, "/api/v1/templates/"+created.ID,
		bytes.NewReader([]byte(`{not json`)), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteTemplateSoft(t *testing.T) {
	env := setupTestServer(t)
	created := env.createTemplate(t, "to archive")

	rec := env.do(t, http.MethodDelete, "/api/v1/templates/"+created.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/templates?archived=true", nil, "")
	var resp ListResponse
	decodeBody(t, rec, &resp)
	if len(resp.Data) != 1 || resp.Data[0].ID != created.ID {
		t.Errorf("archived listing = %d templates, want the archived one", len(resp.Data))
	}
}

func TestRateLimitExceeded(t *testing.T) {
	limiter, err := ratelimit.New(ratelimit.Config{
		Path:                filepath.Join(t.TempDir(), "ratelimit.db"),
		PerAccountPerMinute: 2,
	})
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	defer limiter.Close()

	env := setupTestServerWithLimiter(t, limiter)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/v1/templates", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/v1/templates", nil, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}

func TestDeleteTemplatePermanent(t *testing.T) {
	env := setupTestServer(t)
	created := env.createTemplate(t, "to purge")

	rec := env.do(t, http.MethodDelete, "/api/v1/templates/"+created.ID+"?permanently=true", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/templates/"+created.ID, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after purge = %d, want 404", rec.Code)
	}
}
