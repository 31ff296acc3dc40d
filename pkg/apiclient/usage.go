package apiclient

import (
	"net/http"
	"net/url"
	"time"

	"github.com/certforge/certstore/pkg/storage"
)

// UsageRecord is one reference from an entity to a file.
type UsageRecord struct {
	ID             string    `json:"id"`
	FilePath       string    `json:"filePath"`
	ReferenceID    string    `json:"referenceId"`
	ReferenceTable string    `json:"referenceTable"`
	UsageType      string    `json:"usageType"`
	Created        time.Time `json:"created"`
}

// UsageCheck answers whether a file may be deleted.
type UsageCheck struct {
	FilePath          string        `json:"filePath"`
	IsInUse           bool          `json:"isInUse"`
	Usages            []UsageRecord `json:"usages"`
	CanDelete         bool          `json:"canDelete"`
	DeleteBlockReason string        `json:"deleteBlockReason,omitempty"`
}

// UsageResult is returned by usage registry mutations.
type UsageResult struct {
	Usage     *UsageRecord      `json:"usage,omitempty"`
	Removed   int               `json:"removed"`
	Message   string            `json:"message"`
	Success   bool              `json:"success"`
	ErrorKind storage.ErrorKind `json:"errorKind,omitempty"`
}

// RegisterUsageRequest records that an entity uses a file.
type RegisterUsageRequest struct {
	FilePath       string `json:"filePath"`
	ReferenceID    string `json:"referenceId"`
	ReferenceTable string `json:"referenceTable"`
	UsageType      string `json:"usageType"`
}

// DeregisterUsageRequest removes the records of one entity on one file.
type DeregisterUsageRequest struct {
	FilePath       string `json:"filePath"`
	ReferenceID    string `json:"referenceId"`
	ReferenceTable string `json:"referenceTable"`
}

type pathRequest struct {
	FilePath string `json:"filePath"`
}

// CheckUsage reports whether the file at p is referenced.
func (c *Client) CheckUsage(p string) (*UsageCheck, error) {
	return fetch[UsageCheck](c, http.MethodPost, storagePrefix+"/usage/check", pathRequest{FilePath: p})
}

// FileUsage lists the usage records of one file.
func (c *Client) FileUsage(p string) ([]UsageRecord, error) {
	return fetchList[UsageRecord](c, http.MethodGet, withQuery(storagePrefix+"/usage", map[string]string{"path": p}), nil)
}

// RegisterUsage records a reference. Registering an existing tuple returns
// the existing record.
func (c *Client) RegisterUsage(req RegisterUsageRequest) (*UsageResult, error) {
	return fetch[UsageResult](c, http.MethodPost, storagePrefix+"/usage/register", req)
}

// DeregisterUsage removes a reference.
func (c *Client) DeregisterUsage(req DeregisterUsageRequest) (*UsageResult, error) {
	return fetch[UsageResult](c, http.MethodPost, storagePrefix+"/usage/deregister", req)
}

// DeregisterReference removes every record held by an entity, typically
// after the entity itself was deleted.
func (c *Client) DeregisterReference(table, id string) (*UsageResult, error) {
	p := storagePrefix + "/usage/references/" + url.PathEscape(table) + "/" + url.PathEscape(id)
	return fetch[UsageResult](c, http.MethodDelete, p, nil)
}
