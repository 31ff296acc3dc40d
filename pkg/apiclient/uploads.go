package apiclient

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/certforge/certstore/pkg/storage"
)

// UploadURLRequest asks for an upload URL for the file at Path.
type UploadURLRequest struct {
	Path          string `json:"path"`
	ContentType   string `json:"contentType,omitempty"`
	FileSize      int64  `json:"fileSize,omitempty"`
	ExpirySeconds int    `json:"expirySeconds,omitempty"`
}

// UploadURL is an issued upload URL.
type UploadURL struct {
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expiresAt"`
	Method    string    `json:"method"`
	Local     bool      `json:"local"`
}

// SignedUploadURL issues an upload URL. Bucket paths get a presigned object
// storage URL; local paths get a token URL on the certstore server.
func (c *Client) SignedUploadURL(req UploadURLRequest) (*UploadURL, error) {
	return fetch[UploadURL](c, http.MethodPost, storagePrefix+"/uploads/signed-url", req)
}

// Upload stores body at path through a freshly issued upload URL. The
// stored item is returned for local uploads; presigned bucket uploads
// return nil and no error on success.
func (c *Client) Upload(path, contentType string, size int64, body io.Reader) (*storage.StorageItem, error) {
	signed, err := c.SignedUploadURL(UploadURLRequest{Path: path, ContentType: contentType, FileSize: size})
	if err != nil {
		return nil, err
	}
	return c.PutSigned(signed, contentType, size, body)
}

// PutSigned sends body to an issued upload URL. The URL is the credential;
// no bearer token is sent.
func (c *Client) PutSigned(signed *UploadURL, contentType string, size int64, body io.Reader) (*storage.StorageItem, error) {
	method := signed.Method
	if method == "" {
		method = http.MethodPut
	}
	req, err := http.NewRequest(method, signed.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if size > 0 {
		req.ContentLength = size
	}

	if !signed.Local {
		if err := c.send(req, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var res storage.MutationResult
	if err := c.send(req, &res); err != nil {
		return nil, err
	}
	return res.Item, nil
}
