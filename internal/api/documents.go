package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opencivic/memberhub/internal/domain"
	"github.com/opencivic/memberhub/internal/pkg/httputil"
	"github.com/opencivic/memberhub/internal/pkg/logger"
	"github.com/opencivic/memberhub/internal/storage"
)

// maxUploadBytes caps document uploads at 25 MiB.
const maxUploadBytes = 25 << 20

// DocumentStore is the document metadata contract, satisfied by
// postgres.DocumentRepo.
type DocumentStore interface {
	Create(ctx context.Context, d *domain.Document) error
	Get(ctx context.Context, orgID, id string) (*domain.Document, error)
	List(ctx context.Context, orgID string) ([]domain.Document, error)
	Delete(ctx context.Context, orgID, id string) (*domain.Document, error)
}

// DocumentHandlers serves document upload, listing, download links, and
// deletion. Bytes live in the object store; only metadata hits Postgres.
type DocumentHandlers struct {
	store   DocumentStore
	objects storage.ObjectStore
}

// RegisterDocumentRoutes mounts the document endpoints.
func RegisterDocumentRoutes(r chi.Router, store DocumentStore, objects storage.ObjectStore) {
	h := &DocumentHandlers{store: store, objects: objects}

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.Upload)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/download", h.Download)
		r.Delete("/{id}", h.Delete)
	})
}

// Upload handles POST /api/documents as multipart form data with a
// "file" part and an optional "title" field.
func (h *DocumentHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.BadRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file part is required")
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	docID := uuid.New().String()
	key := storage.DocumentKey(ident.OrganizationID, docID, header.Filename)

	if err := h.objects.Put(r.Context(), key, contentType, file); err != nil {
		writeServiceError(w, err)
		return
	}

	d := &domain.Document{
		ID:             docID,
		OrganizationID: ident.OrganizationID,
		Title:          title,
		FileName:       header.Filename,
		ContentType:    contentType,
		SizeBytes:      header.Size,
		StorageKey:     key,
		UploadedBy:     ident.MemberID,
	}
	if err := h.store.Create(r.Context(), d); err != nil {
		// The object is already up; drop it so a failed insert doesn't
		// leave an orphan.
		if derr := h.objects.Delete(r.Context(), key); derr != nil {
			logger.Warn("orphaned document object", "key", key, "error", derr.Error())
		}
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, d)
}

// List handles GET /api/documents.
func (h *DocumentHandlers) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	docs, err := h.store.List(r.Context(), ident.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	httputil.OK(w, map[string]interface{}{"documents": docs, "total": len(docs)})
}

// Get handles GET /api/documents/{id}.
func (h *DocumentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	d, err := h.store.Get(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, d)
}

// Download handles GET /api/documents/{id}/download, returning a
// short-lived presigned URL rather than proxying the bytes.
func (h *DocumentHandlers) Download(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	d, err := h.store.Get(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	url, err := h.objects.PresignGet(r.Context(), d.StorageKey, 15*time.Minute)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"url":        url,
		"file_name":  d.FileName,
		"expires_in": int((15 * time.Minute).Seconds()),
	})
}

// Delete handles DELETE /api/documents/{id}, removing the row and then
// the stored object.
func (h *DocumentHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !ident.CanManageOrg(ident.OrganizationID) {
		httputil.Forbidden(w, "admin role required")
		return
	}

	d, err := h.store.Delete(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.objects.Delete(r.Context(), d.StorageKey); err != nil {
		logger.Warn("document object delete failed", "key", d.StorageKey, "error", err.Error())
	}
	httputil.NoContent(w)
}
