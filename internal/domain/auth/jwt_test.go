package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, expiresAt, err := svc.Sign("u-1", "Ann", []string{"approver"}, false)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.UserID)
	assert.Equal(t, "Ann", user.Name)
	assert.Equal(t, []string{"approver"}, user.Roles)
	assert.False(t, user.IsAdmin)
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTService(DefaultJWTConfig("one")).Sign("u-1", "", nil, true)
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("two")).ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	cfg := DefaultJWTConfig("secret")
	cfg.TokenTTL = -time.Hour
	svc := NewJWTService(cfg)

	token, _, err := svc.Sign("u-1", "", nil, false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{UserID: "u-1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("secret")).ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTService_FallsBackToSubject(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u-9"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	user, err := NewJWTService(DefaultJWTConfig("secret")).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-9", user.UserID)
}

func TestJWTService_RequiresUser(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("secret")).ValidateToken(token)
	assert.ErrorIs(t, err, ErrMissingSubject)
}
