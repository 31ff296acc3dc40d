package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/service"
	"github.com/certforge/certstore/pkg/storage/signer"
	"github.com/certforge/certstore/pkg/usage"
)

// StorageHandler handles storage API endpoints.
type StorageHandler struct {
	svc *service.Service
}

// NewStorageHandler creates a new storage handler.
func NewStorageHandler(svc *service.Service) *StorageHandler {
	return &StorageHandler{svc: svc}
}

// PathRequest is the body of endpoints addressing one path.
type PathRequest struct {
	FilePath string `json:"filePath" validate:"required"`
}

// CreateFolderRequest is the request body for POST /api/v1/storage/folders.
type CreateFolderRequest struct {
	Path string `json:"path"`
	Name string `json:"name" validate:"required"`
}

// RenameRequest is the request body for POST /api/v1/storage/rename.
type RenameRequest struct {
	Path    string `json:"path" validate:"required"`
	NewName string `json:"newName" validate:"required"`
}

// ProtectionRequest is the request body for POST /api/v1/storage/protection.
type ProtectionRequest struct {
	Path            string `json:"path" validate:"required"`
	IsProtected     bool   `json:"isProtected"`
	ProtectChildren *bool  `json:"protectChildren,omitempty"`
}

// PermissionsRequest is the request body for PUT /api/v1/storage/permissions.
type PermissionsRequest struct {
	Path        string                  `json:"path"`
	Permissions storage.PermissionFlags `json:"permissions"`
	Replace     bool                    `json:"replace,omitempty"`
}

// BulkRequest is the request body of the batch endpoints.
type BulkRequest struct {
	Items       []string `json:"items" validate:"required,min=1,dive,required"`
	Destination string   `json:"destination,omitempty"`
}

// RegisterUsageRequest is the request body for POST /api/v1/storage/usage/register.
type RegisterUsageRequest struct {
	FilePath       string `json:"filePath" validate:"required"`
	ReferenceID    string `json:"referenceId" validate:"required"`
	ReferenceTable string `json:"referenceTable" validate:"required"`
	UsageType      string `json:"usageType" validate:"required"`
}

// DeregisterUsageRequest is the request body for POST /api/v1/storage/usage/deregister.
type DeregisterUsageRequest struct {
	FilePath       string `json:"filePath" validate:"required"`
	ReferenceID    string `json:"referenceId" validate:"required"`
	ReferenceTable string `json:"referenceTable" validate:"required"`
}

// Children handles GET /api/v1/storage/children?path=.
func (h *StorageHandler) Children(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.DirectoryChildren(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		HandleStorageError(w, err)
		return
	}
	WriteJSONOK(w, items)
}

// FetchChildren handles POST /api/v1/storage/children/fetch?path=.
// Aggregates are recomputed instead of served from cache.
func (h *StorageHandler) FetchChildren(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.FetchDirectoryChildren(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		HandleStorageError(w, err)
		return
	}
	WriteJSONOK(w, items)
}

// FileInfo handles GET /api/v1/storage/files/info?path=.
func (h *StorageHandler) FileInfo(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.FileInfo(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		HandleStorageError(w, err)
		return
	}
	WriteJSONOK(w, item)
}

// FolderInfo handles GET /api/v1/storage/folders/info?path=.
func (h *StorageHandler) FolderInfo(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.FolderInfo(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		HandleStorageError(w, err)
		return
	}
	WriteJSONOK(w, item)
}

// ListFiles handles POST /api/v1/storage/files/list.
func (h *StorageHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	var req service.ListFilesInput
	if !decodeJSONBody(w, r, &req) {
		return
	}
	list, err := h.svc.ListFiles(r.Context(), req)
	if err != nil {
		HandleStorageError(w, err)
		return
	}
	WriteJSONOK(w, list)
}

// SearchFiles handles GET /api/v1/storage/files/search?q=&folder=&fileType=&limit=.
func (h *StorageHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	items, err := h.svc.SearchFiles(r.Context(), service.SearchInput{
		SearchTerm: q.Get("q"),
		Folder:     q.Get("folder"),
		FileType:   q.Get("fileType"),
		Limit:      limit,
	})
	if err != nil {
		HandleStorageError(w, err)
		return
	}
	WriteJSONOK(w, items)
}

// Stats handles GET /api/v1/storage/stats?path=.
func (h *StorageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.StorageStats(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		HandleStorageError(w, err)
		return
	}
	WriteJSONOK(w, st)
}

// CheckUsage handles POST /api/v1/storage/usage/check.
func (h *StorageHandler) CheckUsage(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res, err := h.svc.CheckFileUsage(r.Context(), req.FilePath)
	if err != nil {
		HandleStorageError(w, err)
		return
	}
	WriteJSONOK(w, res)
}

// FileUsage handles GET /api/v1/storage/usage?path=.
func (h *StorageHandler) FileUsage(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.FileUsage(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		HandleStorageError(w, err)
		return
	}
	WriteJSONOK(w, records)
}

// CreateFolder handles POST /api/v1/storage/folders.
func (h *StorageHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res := h.svc.CreateFolder(r.Context(), service.CreateFolderInput{Path: req.Path, Name: req.Name})
	writeMutation(w, res, true)
}

// DeleteFile handles DELETE /api/v1/storage/files?path=.
func (h *StorageHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		BadRequest(w, "path is required")
		return
	}
	writeMutation(w, h.svc.DeleteFile(r.Context(), p), false)
}

// Rename handles POST /api/v1/storage/rename.
func (h *StorageHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res := h.svc.RenameFile(r.Context(), service.RenameInput{Path: req.Path, NewName: req.NewName})
	writeMutation(w, res, false)
}

// DeleteItems handles POST /api/v1/storage/items/delete.
//
// Batch endpoints answer 200 whenever the request is well formed; per-item
// failures are reported in the body.
func (h *StorageHandler) DeleteItems(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	WriteJSONOK(w, h.svc.DeleteStorageItems(r.Context(), service.BulkInput{Items: req.Items}))
}

// MoveItems handles POST /api/v1/storage/items/move.
func (h *StorageHandler) MoveItems(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	WriteJSONOK(w, h.svc.MoveStorageItems(r.Context(), service.BulkInput{Items: req.Items, Destination: req.Destination}))
}

// CopyItems handles POST /api/v1/storage/items/copy.
func (h *StorageHandler) CopyItems(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	WriteJSONOK(w, h.svc.CopyStorageItems(r.Context(), service.BulkInput{Items: req.Items, Destination: req.Destination}))
}

// SetProtection handles POST /api/v1/storage/protection.
func (h *StorageHandler) SetProtection(w http.ResponseWriter, r *http.Request) {
	var req ProtectionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res := h.svc.SetStorageItemProtection(r.Context(), service.ProtectionInput{
		Path:            req.Path,
		IsProtected:     req.IsProtected,
		ProtectChildren: req.ProtectChildren,
	})
	writeMutation(w, res, false)
}

// UpdatePermissions handles PUT /api/v1/storage/permissions.
func (h *StorageHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var req PermissionsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res := h.svc.UpdateDirectoryPermissions(r.Context(), service.PermissionsInput{
		Path:        req.Path,
		Permissions: req.Permissions,
		Replace:     req.Replace,
	})
	writeMutation(w, res, false)
}

// RegisterUsage handles POST /api/v1/storage/usage/register.
func (h *StorageHandler) RegisterUsage(w http.ResponseWriter, r *http.Request) {
	var req RegisterUsageRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res := h.svc.RegisterFileUsage(r.Context(), usage.RegisterInput{
		FilePath:       req.FilePath,
		ReferenceID:    req.ReferenceID,
		ReferenceTable: req.ReferenceTable,
		UsageType:      req.UsageType,
	})
	writeUsageResult(w, res.Success, res.ErrorKind, res)
}

// DeregisterUsage handles POST /api/v1/storage/usage/deregister.
func (h *StorageHandler) DeregisterUsage(w http.ResponseWriter, r *http.Request) {
	var req DeregisterUsageRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	res := h.svc.DeregisterFileUsage(r.Context(), usage.DeregisterInput{
		FilePath:       req.FilePath,
		ReferenceID:    req.ReferenceID,
		ReferenceTable: req.ReferenceTable,
	})
	writeUsageResult(w, res.Success, res.ErrorKind, res)
}

// DeregisterReference handles DELETE /api/v1/storage/usage/references/{table}/{id}.
// It is called when the referencing entity itself is deleted.
func (h *StorageHandler) DeregisterReference(w http.ResponseWriter, r *http.Request) {
	res := h.svc.DeregisterReference(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"))
	writeUsageResult(w, res.Success, res.ErrorKind, res)
}

// SignedUploadURL handles POST /api/v1/storage/uploads/signed-url.
func (h *StorageHandler) SignedUploadURL(w http.ResponseWriter, r *http.Request) {
	var req signer.UploadRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	signed, err := h.svc.GenerateUploadSignedURL(r.Context(), req)
	if err != nil {
		HandleStorageError(w, err)
		return
	}
	WriteJSONCreated(w, signed)
}

// Upload handles PUT /api/v1/storage/uploads/{token}, the target of local
// signed upload URLs.
func (h *StorageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		Unauthorized(w, "upload token required")
		return
	}
	res := h.svc.UploadSigned(r.Context(), token, requestContentType(r), r.Body)
	writeMutation(w, res, false)
}

// requestContentType returns the media type of the request body without
// parameters, or "" when absent or malformed.
func requestContentType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

// ServePublic handles GET /public/*, streaming publicly served files.
func (h *StorageHandler) ServePublic(w http.ResponseWriter, r *http.Request) {
	rc, item, err := h.svc.OpenPublic(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		if storage.IsNotFound(err) || storage.IsInvalidInput(err) {
			NotFound(w, "file not found")
			return
		}
		HandleStorageError(w, err)
		return
	}
	defer func() { _ = rc.Close() }()

	if item.ContentType != "" {
		w.Header().Set("Content-Type", item.ContentType)
	}
	if item.MD5Hash != "" {
		w.Header().Set("ETag", strconv.Quote(item.MD5Hash))
		if match := r.Header.Get("If-None-Match"); match != "" && match == strconv.Quote(item.MD5Hash) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	if !item.LastModified.IsZero() {
		w.Header().Set("Last-Modified", item.LastModified.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Content-Length", strconv.FormatInt(item.Size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil && !errors.Is(err, r.Context().Err()) {
		logger.DebugCtx(r.Context(), "Public file transfer interrupted",
			logger.KeyPath, item.Path, logger.KeyError, err)
	}
}
