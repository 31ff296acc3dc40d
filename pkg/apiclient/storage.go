package apiclient

import (
	"net/http"
	"strconv"

	"github.com/certforge/certstore/pkg/storage"
)

// ListFilesRequest selects a page of a directory listing.
type ListFilesRequest struct {
	Path          string `json:"path"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
	FileType      string `json:"fileType,omitempty"`
	SortBy        string `json:"sortBy,omitempty"`
	SortDirection string `json:"sortDirection,omitempty"`
	SearchTerm    string `json:"searchTerm,omitempty"`
}

// FileList is a page of items.
type FileList struct {
	Items      []storage.StorageItem `json:"items"`
	TotalCount int                   `json:"totalCount"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
	HasMore    bool                  `json:"hasMore"`
}

// SearchRequest selects files by name below a folder.
type SearchRequest struct {
	SearchTerm string
	Folder     string
	FileType   string
	Limit      int
}

// FileTypeStats is the share of one file type in a subtree.
type FileTypeStats struct {
	FileType storage.FileType `json:"fileType"`
	Count    int64            `json:"count"`
	Size     int64            `json:"size"`
}

// StorageStats summarizes a subtree.
type StorageStats struct {
	Path         string          `json:"path"`
	TotalFiles   int64           `json:"totalFiles"`
	TotalFolders int64           `json:"totalFolders"`
	TotalSize    int64           `json:"totalSize"`
	FileTypes    []FileTypeStats `json:"fileTypes"`
}

// CreateFolderRequest is the request body for creating a folder.
type CreateFolderRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// RenameRequest is the request body for renaming an item.
type RenameRequest struct {
	Path    string `json:"path"`
	NewName string `json:"newName"`
}

// ProtectionRequest is the request body for protecting an item.
type ProtectionRequest struct {
	Path            string `json:"path"`
	IsProtected     bool   `json:"isProtected"`
	ProtectChildren *bool  `json:"protectChildren,omitempty"`
}

// PermissionsRequest is the request body for updating directory permissions.
// Unset flags are left unchanged unless Replace is true.
type PermissionsRequest struct {
	Path        string                  `json:"path"`
	Permissions storage.PermissionFlags `json:"permissions"`
	Replace     bool                    `json:"replace,omitempty"`
}

type bulkRequest struct {
	Items       []string `json:"items"`
	Destination string   `json:"destination,omitempty"`
}

// Children returns the items directly inside dir. "" is the virtual root.
func (c *Client) Children(dir string) ([]storage.StorageItem, error) {
	return fetchList[storage.StorageItem](c, http.MethodGet, withQuery(storagePrefix+"/children", map[string]string{"path": dir}), nil)
}

// FetchChildren is Children with directory aggregates recomputed.
func (c *Client) FetchChildren(dir string) ([]storage.StorageItem, error) {
	return fetchList[storage.StorageItem](c, http.MethodPost, withQuery(storagePrefix+"/children/fetch", map[string]string{"path": dir}), nil)
}

// FileInfo returns the metadata of one file.
func (c *Client) FileInfo(p string) (*storage.StorageItem, error) {
	return fetch[storage.StorageItem](c, http.MethodGet, withQuery(storagePrefix+"/files/info", map[string]string{"path": p}), nil)
}

// FolderInfo returns a directory with its aggregates and effective
// permissions.
func (c *Client) FolderInfo(p string) (*storage.StorageItem, error) {
	return fetch[storage.StorageItem](c, http.MethodGet, withQuery(storagePrefix+"/folders/info", map[string]string{"path": p}), nil)
}

// ListFiles returns a filtered, sorted page of a directory.
func (c *Client) ListFiles(req ListFilesRequest) (*FileList, error) {
	return fetch[FileList](c, http.MethodPost, storagePrefix+"/files/list", req)
}

// SearchFiles finds files by name below a folder.
func (c *Client) SearchFiles(req SearchRequest) ([]storage.StorageItem, error) {
	params := map[string]string{
		"q":        req.SearchTerm,
		"folder":   req.Folder,
		"fileType": req.FileType,
	}
	if req.Limit > 0 {
		params["limit"] = strconv.Itoa(req.Limit)
	}
	return fetchList[storage.StorageItem](c, http.MethodGet, withQuery(storagePrefix+"/files/search", params), nil)
}

// Stats summarizes the subtree at p.
func (c *Client) Stats(p string) (*StorageStats, error) {
	return fetch[StorageStats](c, http.MethodGet, withQuery(storagePrefix+"/stats", map[string]string{"path": p}), nil)
}

// CreateFolder creates name inside dir.
func (c *Client) CreateFolder(dir, name string) (*storage.MutationResult, error) {
	return fetch[storage.MutationResult](c, http.MethodPost, storagePrefix+"/folders", CreateFolderRequest{Path: dir, Name: name})
}

// DeleteFile deletes one file or directory tree.
func (c *Client) DeleteFile(p string) (*storage.MutationResult, error) {
	return fetch[storage.MutationResult](c, http.MethodDelete, withQuery(storagePrefix+"/files", map[string]string{"path": p}), nil)
}

// Rename renames an item in place.
func (c *Client) Rename(p, newName string) (*storage.MutationResult, error) {
	return fetch[storage.MutationResult](c, http.MethodPost, storagePrefix+"/rename", RenameRequest{Path: p, NewName: newName})
}

// SetProtection sets the protection flag of an item.
func (c *Client) SetProtection(req ProtectionRequest) (*storage.MutationResult, error) {
	return fetch[storage.MutationResult](c, http.MethodPost, storagePrefix+"/protection", req)
}

// UpdatePermissions changes the permission flags of a directory.
func (c *Client) UpdatePermissions(req PermissionsRequest) (*storage.MutationResult, error) {
	return fetch[storage.MutationResult](c, http.MethodPut, storagePrefix+"/permissions", req)
}

// DeleteItems deletes a batch. Per-item failures are in the result, not the
// error.
func (c *Client) DeleteItems(items []string) (*storage.BulkOperationResult, error) {
	return fetch[storage.BulkOperationResult](c, http.MethodPost, storagePrefix+"/items/delete", bulkRequest{Items: items})
}

// MoveItems moves a batch into destination.
func (c *Client) MoveItems(items []string, destination string) (*storage.BulkOperationResult, error) {
	return fetch[storage.BulkOperationResult](c, http.MethodPost, storagePrefix+"/items/move", bulkRequest{Items: items, Destination: destination})
}

// CopyItems copies a batch into destination.
func (c *Client) CopyItems(items []string, destination string) (*storage.BulkOperationResult, error) {
	return fetch[storage.BulkOperationResult](c, http.MethodPost, storagePrefix+"/items/copy", bulkRequest{Items: items, Destination: destination})
}
