// Package signer issues time-limited upload URLs.
//
// Paths owned by the bucket get a presigned PUT URL from the bucket itself.
// Public paths, and bucket backends that cannot sign, get a URL pointing at
// the service's own upload endpoint carrying an HS256 token that names the
// path, content type and size limit the upload is bound to.
package signer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/internal/telemetry"
	"github.com/certforge/certstore/pkg/metrics"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/paths"
	"github.com/certforge/certstore/pkg/storage/permission"
)

const (
	DefaultExpiry = 15 * time.Minute
	MaxExpiry     = time.Hour

	// UploadPath is the route of the local upload endpoint; the token is
	// appended as the last segment.
	UploadPath = "/api/v1/storage/uploads/"

	issuer = "certstore"
)

var (
	ErrInvalidToken        = errors.New("invalid upload token")
	ErrExpiredToken        = errors.New("upload token has expired")
	ErrInvalidSecretLength = errors.New("upload secret must be at least 32 characters")
)

// Config configures an Issuer.
type Config struct {
	// DefaultExpiry applies when a request carries no expiry. Default: 15m.
	DefaultExpiry time.Duration

	// MaxExpiry caps requested expiries. Default: 1h.
	MaxExpiry time.Duration

	// MaxUploadSize rejects requests announcing a larger file. 0 disables
	// the check.
	MaxUploadSize int64

	// PublicBaseURL is the externally reachable base URL of the service,
	// e.g. "https://files.example.com".
	PublicBaseURL string

	// Secret is the HMAC key of local upload tokens. When empty a random
	// key is generated and tokens do not survive a restart.
	Secret string
}

func (c *Config) applyDefaults() error {
	if c.DefaultExpiry <= 0 {
		c.DefaultExpiry = DefaultExpiry
	}
	if c.MaxExpiry <= 0 {
		c.MaxExpiry = MaxExpiry
	}
	if c.DefaultExpiry > c.MaxExpiry {
		c.DefaultExpiry = c.MaxExpiry
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	if c.Secret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("failed to generate upload secret: %w", err)
		}
		c.Secret = hex.EncodeToString(b)
		logger.Warn("No upload secret configured, generated an ephemeral one; local upload URLs will not survive a restart")
	}
	if len(c.Secret) < 32 {
		return ErrInvalidSecretLength
	}
	return nil
}

// UploadRequest asks for an upload URL for the file at Path.
type UploadRequest struct {
	Path          string `json:"path" validate:"required"`
	ContentType   string `json:"contentType"`
	FileSize      int64  `json:"fileSize" validate:"gte=0"`
	ExpirySeconds int    `json:"expirySeconds" validate:"gte=0"`
}

// SignedURL is an issued upload URL. Clients PUT the file body to URL
// before ExpiresAt.
type SignedURL struct {
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expiresAt"`
	Method    string    `json:"method"`
	Local     bool      `json:"local"`
}

// UploadClaims are carried by local upload tokens.
type UploadClaims struct {
	jwt.RegisteredClaims

	Path        string `json:"path"`
	ContentType string `json:"ct,omitempty"`
	MaxSize     int64  `json:"max,omitempty"`
}

// Issuer issues and verifies upload URLs.
type Issuer struct {
	router  *backend.Router
	perms   *permission.Engine
	config  Config
	metrics metrics.StorageMetrics
	now     func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithMetrics counts issued URLs per location.
func WithMetrics(m metrics.StorageMetrics) Option {
	return func(i *Issuer) { i.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// New creates an issuer.
func New(router *backend.Router, perms *permission.Engine, config Config, opts ...Option) (*Issuer, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	i := &Issuer{router: router, perms: perms, config: config, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Expiry returns the effective expiry for a requested number of seconds.
func (i *Issuer) Expiry(seconds int) time.Duration {
	if seconds <= 0 {
		return i.config.DefaultExpiry
	}
	// Compare in seconds; the product may overflow a Duration.
	if int64(seconds) > int64(i.config.MaxExpiry/time.Second) {
		return i.config.MaxExpiry
	}
	return time.Duration(seconds) * time.Second
}

// IssueUploadURL checks that an upload to req.Path is allowed and returns a
// URL the client can upload to directly.
func (i *Issuer) IssueUploadURL(ctx context.Context, req UploadRequest) (*SignedURL, error) {
	ctx, span := telemetry.StartStorageSpan(ctx, telemetry.SpanStoragePresign, req.Path)
	defer span.End()

	p, err := paths.Clean(req.Path)
	if err != nil {
		return nil, err
	}
	if p == "" || p == paths.PublicRoot {
		return nil, storage.NewInvalidInputError(req.Path, "path must name a file")
	}
	if req.FileSize < 0 {
		return nil, storage.NewInvalidInputError(p, "file size must not be negative")
	}
	if i.config.MaxUploadSize > 0 && req.FileSize > i.config.MaxUploadSize {
		return nil, storage.NewInvalidInputError(p,
			fmt.Sprintf("file size %d exceeds the upload limit of %d bytes", req.FileSize, i.config.MaxUploadSize))
	}

	if err := i.perms.AssertAllowed(ctx, storage.ActionUpload, paths.Parent(p)); err != nil {
		return nil, err
	}
	if entry, err := i.router.Stat(ctx, p); err == nil && entry.IsDir {
		return nil, storage.NewConflictError(p)
	} else if err != nil && !storage.IsNotFound(err) {
		return nil, err
	}

	expiry := i.Expiry(req.ExpirySeconds)
	res := &SignedURL{
		Path:      p,
		ExpiresAt: i.now().Add(expiry).UTC(),
		Method:    "PUT",
	}

	loc := paths.Classify(p)
	if loc == paths.Bucket {
		u, ok, err := i.router.PresignUpload(ctx, p, req.ContentType, expiry)
		if err != nil {
			return nil, err
		}
		if ok {
			res.URL = u
		}
	}
	if res.URL == "" {
		token, err := i.SignUpload(p, req.ContentType, req.FileSize, res.ExpiresAt)
		if err != nil {
			return nil, storage.NewBackendError(p, err)
		}
		res.URL = i.config.PublicBaseURL + UploadPath + url.PathEscape(token)
		res.Local = true
	}

	span.SetAttributes(telemetry.Location(loc.String()))
	metrics.ObserveSignedURL(i.metrics, loc.String())
	logger.DebugCtx(ctx, "Issued upload URL",
		logger.KeyPath, p, logger.KeyBackend, loc.String(), logger.KeyExpiry, expiry.String())
	return res, nil
}

// SignUpload creates a local upload token for path. maxSize 0 leaves the
// size bounded only by the server's upload limit.
func (i *Issuer) SignUpload(path, contentType string, maxSize int64, expiresAt time.Time) (string, error) {
	claims := &UploadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   path,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Path:        path,
		ContentType: contentType,
		MaxSize:     maxSize,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(i.config.Secret))
}

// VerifyUpload validates a local upload token and returns its claims.
func (i *Issuer) VerifyUpload(tokenString string) (*UploadClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UploadClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(i.config.Secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*UploadClaims)
	if !ok || !token.Valid || claims.Path == "" || claims.Subject != claims.Path {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// MaxUploadSize returns the configured upload limit, 0 when unlimited.
func (i *Issuer) MaxUploadSize() int64 {
	return i.config.MaxUploadSize
}
