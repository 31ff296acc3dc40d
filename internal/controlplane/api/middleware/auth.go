// Package middleware holds the chi middleware of the certstore API.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/certforge/certstore/internal/controlplane/api/auth"
	"github.com/certforge/certstore/internal/controlplane/api/handlers"
	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/internal/telemetry"
)

type claimsKey struct{}

// Claims returns the caller authenticated by Authenticate, or nil.
func Claims(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return c
}

// bearerToken returns the credential of an "Authorization: Bearer" header.
// The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// challenge writes a 401 with the RFC 6750 WWW-Authenticate header.
func challenge(w http.ResponseWriter, code, detail string) {
	value := `Bearer realm="certstore"`
	if code != "" {
		value += `, error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", value)
	handlers.Unauthorized(w, detail)
}

// Authenticate rejects requests without a valid access token. The caller
// becomes the actor of the request's log context, which the storage service
// records as the creator of new items.
func Authenticate(tokens *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				challenge(w, "", "bearer token required")
				return
			}

			claims, err := tokens.ValidateAccessToken(raw)
			if err != nil {
				logger.DebugCtx(r.Context(), "Rejected bearer token", logger.KeyError, err)
				detail := "invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					detail = "token has expired"
				}
				challenge(w, "invalid_token", detail)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			lc := logger.FromContext(ctx)
			if lc == nil {
				lc = &logger.LogContext{}
			}
			ctx = logger.WithContext(ctx, lc.WithActor(claims.Actor()))
			telemetry.SetAttributes(ctx, telemetry.Actor(claims.Actor()))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets through callers holding role. It must run after
// Authenticate.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := Claims(r.Context())
			switch {
			case claims == nil:
				challenge(w, "", "authentication required")
			case !claims.HasRole(role):
				handlers.Forbidden(w, role+" role required")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
