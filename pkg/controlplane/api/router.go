package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/certforge/certstore/internal/controlplane/api/auth"
	"github.com/certforge/certstore/internal/controlplane/api/handlers"
	apiMiddleware "github.com/certforge/certstore/internal/controlplane/api/middleware"
	"github.com/certforge/certstore/pkg/storage/service"
)

// RouterOptions tune NewRouter.
type RouterOptions struct {
	// JWT enables bearer token authentication when non-nil.
	JWT *auth.JWTService

	// AdminOnlyACL restricts protection and permission changes to admins.
	// Ignored without JWT.
	AdminOnlyACL bool

	// RequestTimeout bounds each request. Zero means 60s.
	RequestTimeout time.Duration
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Request context: server span plus a log context carrying request id and trace ids
//   - Request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (backends and databases)
//   - GET /public/* - Public file contents
//   - PUT /api/v1/storage/uploads/{token} - Local signed uploads
//   - /api/v1/storage/* - Storage operations (bearer token when enabled)
//
// svc may be nil, in which case only the health routes are mounted and
// readiness reports unhealthy.
func NewRouter(svc *service.Service, opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.RequestContext)
	r.Use(apiMiddleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	var checker handlers.HealthChecker
	if svc != nil {
		checker = svc
	}
	healthHandler := handlers.NewHealthHandler(checker)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	if svc == nil {
		return r
	}

	storageHandler := handlers.NewStorageHandler(svc)

	// Public files are served to anyone holding the URL
	r.Get("/public/*", storageHandler.ServePublic)
	r.Head("/public/*", storageHandler.ServePublic)

	r.Route("/api/v1/storage", func(r chi.Router) {
		// The token in the URL is the credential
		r.Put("/uploads/{token}", storageHandler.Upload)

		r.Group(func(r chi.Router) {
			if opts.JWT != nil {
				r.Use(apiMiddleware.Authenticate(opts.JWT))
			}

			// Queries
			r.Get("/children", storageHandler.Children)
			r.Post("/children/fetch", storageHandler.FetchChildren)
			r.Get("/files/info", storageHandler.FileInfo)
			r.Get("/folders/info", storageHandler.FolderInfo)
			r.Post("/files/list", storageHandler.ListFiles)
			r.Get("/files/search", storageHandler.SearchFiles)
			r.Get("/stats", storageHandler.Stats)

			// Usage registry
			r.Get("/usage", storageHandler.FileUsage)
			r.Post("/usage/check", storageHandler.CheckUsage)
			r.Post("/usage/register", storageHandler.RegisterUsage)
			r.Post("/usage/deregister", storageHandler.DeregisterUsage)
			r.Delete("/usage/references/{table}/{id}", storageHandler.DeregisterReference)

			// Mutations
			r.Post("/folders", storageHandler.CreateFolder)
			r.Delete("/files", storageHandler.DeleteFile)
			r.Post("/rename", storageHandler.Rename)
			r.Post("/uploads/signed-url", storageHandler.SignedUploadURL)

			// Batches
			r.Post("/items/delete", storageHandler.DeleteItems)
			r.Post("/items/move", storageHandler.MoveItems)
			r.Post("/items/copy", storageHandler.CopyItems)

			// Access control
			r.Group(func(r chi.Router) {
				if opts.JWT != nil && opts.AdminOnlyACL {
					r.Use(apiMiddleware.RequireRole(auth.RoleAdmin))
				}
				r.Post("/protection", storageHandler.SetProtection)
				r.Put("/permissions", storageHandler.UpdatePermissions)
			})
		})
	})

	return r
}
