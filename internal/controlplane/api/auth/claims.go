// Package auth verifies the bearer tokens presented to the certstore API.
package auth

import "github.com/golang-jwt/jwt/v5"

// TokenType is the token_type claim. Only access tokens open the API;
// refresh tokens belong to the issuing application.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Claims identifies the caller of an API request. Tokens are minted by the
// application that owns the users; certstore only checks the signature and
// records the actor as the creator of new items.
type Claims struct {
	jwt.RegisteredClaims

	Username  string    `json:"username"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}

// Actor is the username, or the subject for tokens that carry none.
func (c *Claims) Actor() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Subject
}

func (c *Claims) IsAccessToken() bool {
	return c.TokenType == TokenTypeAccess
}

// HasRole reports whether the caller holds role. Admins hold every role.
func (c *Claims) HasRole(role string) bool {
	return c.Role == role || c.Role == RoleAdmin
}

func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
