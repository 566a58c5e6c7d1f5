// Package auth validates bearer tokens issued by the identity provider.
// The ledger never issues tokens for end users; Sign exists for tooling and tests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "shopfloor/internal/core/context"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
	Leeway   time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:   secret,
		TokenTTL: 15 * time.Minute,
		Leeway:   30 * time.Second,
	}
}

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID  string   `json:"uid"`
	Name    string   `json:"name,omitempty"`
	Roles   []string `json:"roles"`
	IsAdmin bool     `json:"adm,omitempty"`
}

// ErrMissingSubject is returned for tokens without a user id.
var ErrMissingSubject = errors.New("token has no uid claim")

// JWTService validates HS256 tokens.
type JWTService struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTService creates a new JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	return &JWTService{config: config, parser: jwt.NewParser(opts...)}
}

// Sign issues a token for the given identity.
func (s *JWTService) Sign(userID, name string, roles []string, isAdmin bool) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.TokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:  userID,
		Name:    name,
		Roles:   roles,
		IsAdmin: isAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a token and returns the caller it identifies.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, ErrMissingSubject
	}

	return &appctx.UserContext{
		UserID:    userID,
		Name:      claims.Name,
		Roles:     claims.Roles,
		IsAdmin:   claims.IsAdmin,
		SessionID: claims.ID,
	}, nil
}
