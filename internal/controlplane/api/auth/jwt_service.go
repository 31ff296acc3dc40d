package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	minSecretLength = 32
	defaultTokenTTL = 15 * time.Minute
	// clockSkew tolerated between the issuing application and certstore.
	clockSkew = 30 * time.Second
)

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrInvalidTokenType    = errors.New("not an access token")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = fmt.Errorf("token secret must be at least %d characters", minSecretLength)
)

// JWTConfig configures HS256 token signing and checking.
type JWTConfig struct {
	// Secret is the HMAC key shared with the token issuer.
	Secret string

	// Issuer must match the iss claim when set.
	Issuer string

	// AccessTokenDuration is the lifetime GenerateToken uses when the caller
	// passes none. Default 15m.
	AccessTokenDuration time.Duration
}

// JWTService checks the bearer tokens of API requests. It can also mint
// tokens, which the admin CLI and tests use; in production they normally
// come from the application that owns the users.
type JWTService struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTService(config JWTConfig) (*JWTService, error) {
	if len(config.Secret) < minSecretLength {
		return nil, ErrInvalidSecretLength
	}
	ttl := config.AccessTokenDuration
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &JWTService{
		key:    []byte(config.Secret),
		issuer: config.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// GenerateToken signs an access token for username valid for ttl, or for
// the configured duration when ttl is not positive.
func (s *JWTService) GenerateToken(username, role string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	issued := s.now()
	expires := issued.Add(ttl)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Username:  username,
		Role:      role,
		TokenType: TokenTypeAccess,
	}).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrTokenSigningFailed, err)
	}
	return signed, expires, nil
}

func (s *JWTService) parser() *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(clockSkew),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	return jwt.NewParser(opts...)
}

// ValidateToken checks the signature, expiry and issuer of raw. Failures
// are ErrExpiredToken or ErrInvalidToken.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser().ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken is ValidateToken for API calls: refresh tokens are
// refused, a missing token_type counts as access, and the token must name
// a caller.
func (s *JWTService) ValidateAccessToken(raw string) (*Claims, error) {
	claims, err := s.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType == "" {
		claims.TokenType = TokenTypeAccess
	}
	if !claims.IsAccessToken() {
		return nil, ErrInvalidTokenType
	}
	if claims.Actor() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
