package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/internal/telemetry"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/paths"
	"github.com/certforge/certstore/pkg/storage/signer"
)

// CreateFolderInput names a folder to create inside Path.
type CreateFolderInput struct {
	Path string `json:"path"`
	Name string `json:"name" validate:"required"`
}

// CreateFolder creates the folder Name inside Path. Missing parents of Path
// are created as well.
func (s *Service) CreateFolder(ctx context.Context, in CreateFolderInput) *storage.MutationResult {
	const op = "createFolder"
	ctx = logger.OperationFromContext(ctx, op)

	parent, err := clean(in.Path)
	if err != nil {
		return fail(ctx, op, err)
	}
	if err := paths.ValidateName(in.Name); err != nil {
		return fail(ctx, op, err)
	}
	p := paths.Join(parent, in.Name)
	if p == paths.PublicRoot {
		return fail(ctx, op, storage.NewConflictError(p))
	}

	ctx, span := telemetry.StartStorageSpan(ctx, telemetry.SpanStorageMkdir, p)
	defer span.End()

	unlock, err := s.locks.Lock(ctx, p)
	if err != nil {
		return fail(ctx, op, storage.NewCanceledError(p, err))
	}
	defer unlock()

	if err := s.perms.AssertAllowed(ctx, storage.ActionCreateSubDir, parent); err != nil {
		return fail(ctx, op, err)
	}
	exists, err := s.router.Exists(ctx, p)
	if err != nil {
		return fail(ctx, op, err)
	}
	if exists {
		return fail(ctx, op, storage.NewConflictError(p))
	}

	if err := s.router.Mkdir(context.WithoutCancel(ctx), p); err != nil {
		return fail(ctx, op, err)
	}
	s.recordCreator(ctx, p)
	s.stats.invalidate(p)

	logger.InfoCtx(ctx, "Folder created", logger.KeyPath, p)
	item := s.describeAfter(ctx, &storage.StorageItem{
		Path:         p,
		Name:         in.Name,
		Kind:         storage.KindDirectory,
		IsFromBucket: paths.Classify(p) == paths.Bucket,
		CreatedBy:    actorOf(ctx),
	})
	return storage.Succeeded(item, "Folder created successfully")
}

// DeleteFile deletes the file or directory at p after the permission,
// protection and usage checks.
func (s *Service) DeleteFile(ctx context.Context, p string) *storage.MutationResult {
	const op = "deleteFile"
	ctx = logger.OperationFromContext(ctx, op)

	item, err := s.bulk.DeleteOne(ctx, p)
	warning, err := storage.SplitWarning(err)
	if err != nil {
		return fail(ctx, op, err)
	}
	kind := "File"
	if item.IsDir() {
		kind = "Folder"
	}
	return storage.Succeeded(item, withWarning(kind+" deleted successfully", warning))
}

// RenameInput renames the item at Path to NewName within its directory.
type RenameInput struct {
	Path    string `json:"path" validate:"required"`
	NewName string `json:"newName" validate:"required"`
}

// RenameFile renames a file or directory in place. Renaming is a move and
// follows the same checks.
func (s *Service) RenameFile(ctx context.Context, in RenameInput) *storage.MutationResult {
	const op = "renameFile"
	ctx = logger.OperationFromContext(ctx, op)

	p, err := clean(in.Path)
	if err != nil {
		return fail(ctx, op, err)
	}
	if err := paths.ValidateName(in.NewName); err != nil {
		return fail(ctx, op, err)
	}
	target := paths.Join(paths.Parent(p), in.NewName)

	item, err := s.bulk.MoveOne(ctx, p, target)
	warning, err := storage.SplitWarning(err)
	if err != nil {
		return fail(ctx, op, err)
	}
	return storage.Succeeded(s.describeAfter(ctx, item), withWarning("Renamed successfully", warning))
}

// ProtectionInput sets the protection flags of an item. ProtectChildren
// applies to directories only; nil leaves it unchanged.
type ProtectionInput struct {
	Path            string `json:"path" validate:"required"`
	IsProtected     bool   `json:"isProtected"`
	ProtectChildren *bool  `json:"protectChildren,omitempty"`
}

// SetStorageItemProtection marks an item protected or unprotected.
func (s *Service) SetStorageItemProtection(ctx context.Context, in ProtectionInput) *storage.MutationResult {
	const op = "setStorageItemProtection"
	ctx = logger.OperationFromContext(ctx, op)

	p, err := clean(in.Path)
	if err != nil {
		return fail(ctx, op, err)
	}
	unlock, err := s.locks.Lock(ctx, p)
	if err != nil {
		return fail(ctx, op, storage.NewCanceledError(p, err))
	}
	defer unlock()

	entry, err := s.router.Stat(ctx, p)
	if err != nil {
		return fail(ctx, op, err)
	}
	if !entry.IsDir && in.ProtectChildren != nil && *in.ProtectChildren {
		return fail(ctx, op, storage.NewInvalidInputError(p, "protectChildren applies to folders only"))
	}
	protectChildren := in.ProtectChildren
	if !entry.IsDir {
		protectChildren = nil
	}
	if _, err := s.items.SetProtection(ctx, p, in.IsProtected, protectChildren); err != nil {
		return fail(ctx, op, storage.NewBackendError(p, err))
	}

	logger.InfoCtx(ctx, "Protection updated", logger.KeyPath, p, "protected", in.IsProtected)
	msg := "Item protected"
	if !in.IsProtected {
		msg = "Item unprotected"
	}
	fallback := entry.Item()
	fallback.IsProtected = in.IsProtected
	return storage.Succeeded(s.describeAfter(ctx, &fallback), msg)
}

// PermissionsInput updates the explicit permission flags of a directory.
// Unset flags are left unchanged, or cleared back to inherited when Replace
// is true.
type PermissionsInput struct {
	Path        string                  `json:"path"`
	Permissions storage.PermissionFlags `json:"permissions"`
	Replace     bool                    `json:"replace,omitempty"`
}

// UpdateDirectoryPermissions sets the explicit permission flags of a
// directory. Effective permissions of descendants change with it.
func (s *Service) UpdateDirectoryPermissions(ctx context.Context, in PermissionsInput) *storage.MutationResult {
	const op = "updateDirectoryPermissions"
	ctx = logger.OperationFromContext(ctx, op)

	p, err := clean(in.Path)
	if err != nil {
		return fail(ctx, op, err)
	}
	unlock, err := s.locks.Lock(ctx, p)
	if err != nil {
		return fail(ctx, op, storage.NewCanceledError(p, err))
	}
	defer unlock()

	entry, err := s.router.Stat(ctx, p)
	if err != nil {
		return fail(ctx, op, err)
	}
	if !entry.IsDir {
		return fail(ctx, op, storage.NewInvalidInputError(p, "permissions apply to folders only"))
	}

	update := s.items.UpdatePermissions
	if in.Replace {
		update = s.items.ReplacePermissions
	}
	if _, err := update(ctx, p, in.Permissions); err != nil {
		return fail(ctx, op, storage.NewBackendError(p, err))
	}

	logger.InfoCtx(ctx, "Directory permissions updated", logger.KeyPath, p, "replace", in.Replace)
	fallback := entry.Item()
	return storage.Succeeded(s.describeAfter(ctx, &fallback), "Permissions updated successfully")
}

// UploadInput is a file body to store at Path. MaxSize further limits the
// body below the service's upload limit; 0 applies the service limit only.
type UploadInput struct {
	Path        string
	ContentType string
	Body        io.Reader
	MaxSize     int64
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

// UploadFile stores a file, replacing an existing unprotected file.
func (s *Service) UploadFile(ctx context.Context, in UploadInput) *storage.MutationResult {
	const op = "uploadFile"
	ctx = logger.OperationFromContext(ctx, op)

	p, err := clean(in.Path)
	if err != nil {
		return fail(ctx, op, err)
	}
	if p == "" || p == paths.PublicRoot {
		return fail(ctx, op, storage.NewInvalidInputError(in.Path, "path must name a file"))
	}
	if in.Body == nil {
		return fail(ctx, op, storage.NewInvalidInputError(p, "upload body is empty"))
	}

	ctx, span := telemetry.StartStorageSpan(ctx, telemetry.SpanStorageUpload, p)
	defer span.End()

	unlock, err := s.locks.Lock(ctx, p)
	if err != nil {
		return fail(ctx, op, storage.NewCanceledError(p, err))
	}
	defer unlock()

	if err := s.perms.AssertAllowed(ctx, storage.ActionUpload, paths.Parent(p)); err != nil {
		return fail(ctx, op, err)
	}
	existing, err := s.router.Stat(ctx, p)
	switch {
	case err == nil && existing.IsDir:
		return fail(ctx, op, storage.NewConflictError(p))
	case err == nil:
		if protected, err := s.perms.IsProtected(ctx, p); err != nil {
			return fail(ctx, op, storage.NewBackendError(p, err))
		} else if protected {
			return fail(ctx, op, storage.NewForbiddenError(p, "item is protected"))
		}
	case !storage.IsNotFound(err):
		return fail(ctx, op, err)
	}

	limit := uploadLimit(s.maxUpload, in.MaxSize)
	body := in.Body
	if limit > 0 {
		body = &limitedReader{r: in.Body, remaining: limit}
	}
	entry, err := s.router.Write(ctx, p, body, in.ContentType)
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			err = storage.NewInvalidInputError(p, fmt.Sprintf("file exceeds the upload limit of %d bytes", limit))
		}
		return fail(ctx, op, err)
	}
	if existing == nil {
		s.recordCreator(ctx, p)
	}
	s.stats.invalidate(p)

	span.SetAttributes(telemetry.Size(entry.Size))
	logger.InfoCtx(ctx, "File uploaded",
		logger.KeyPath, p, logger.KeySize, entry.Size, logger.KeyContentType, entry.ContentType)
	fallback := entry.Item()
	return storage.Succeeded(s.describeAfter(ctx, &fallback), "File uploaded successfully")
}

// UploadSigned stores a file uploaded to the local upload endpoint. The
// token fixes the path and may narrow the content type and size.
func (s *Service) UploadSigned(ctx context.Context, token, contentType string, body io.Reader) *storage.MutationResult {
	claims, err := s.signer.VerifyUpload(token)
	if err != nil {
		return fail(logger.OperationFromContext(ctx, "uploadFile"), "uploadFile", storage.NewForbiddenError("", err.Error()))
	}
	if claims.ContentType != "" {
		contentType = claims.ContentType
	}
	return s.UploadFile(ctx, UploadInput{
		Path:        claims.Path,
		ContentType: contentType,
		Body:        body,
		MaxSize:     claims.MaxSize,
	})
}

func uploadLimit(service, request int64) int64 {
	switch {
	case service <= 0:
		return request
	case request <= 0 || request > service:
		return service
	default:
		return request
	}
}

// limitedReader fails once more than remaining bytes are read, unlike
// io.LimitReader which truncates silently.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.remaining {
		l.remaining = -1
		return 0, errUploadTooLarge
	}
	l.remaining -= int64(n)
	return n, err
}

func (s *Service) recordCreator(ctx context.Context, p string) {
	actor := actorOf(ctx)
	if actor == "" {
		return
	}
	if err := s.items.SetCreatedBy(context.WithoutCancel(ctx), p, actor); err != nil {
		logger.WarnCtx(ctx, "Failed to record creator", logger.KeyPath, p, logger.KeyError, err)
	}
}

// BulkInput names the items of a batch. Destination is ignored by deletes.
type BulkInput struct {
	Items       []string `json:"items" validate:"required,min=1,dive,required"`
	Destination string   `json:"destination,omitempty"`
}

// DeleteStorageItems deletes every item independently.
func (s *Service) DeleteStorageItems(ctx context.Context, in BulkInput) *storage.BulkOperationResult {
	return s.bulk.Delete(ctx, in.Items)
}

// MoveStorageItems moves every item to the destination independently.
func (s *Service) MoveStorageItems(ctx context.Context, in BulkInput) *storage.BulkOperationResult {
	return s.bulk.Move(ctx, in.Items, in.Destination)
}

// CopyStorageItems copies every item to the destination independently.
// Existing targets are never overwritten.
func (s *Service) CopyStorageItems(ctx context.Context, in BulkInput) *storage.BulkOperationResult {
	return s.bulk.Copy(ctx, in.Items, in.Destination)
}

// GenerateUploadSignedURL issues a direct upload URL for a file path.
func (s *Service) GenerateUploadSignedURL(ctx context.Context, req signer.UploadRequest) (*signer.SignedURL, error) {
	return s.signer.IssueUploadURL(logger.OperationFromContext(ctx, "generateUploadSignedUrl"), req)
}
