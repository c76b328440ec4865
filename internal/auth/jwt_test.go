package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greendrake/dunning/internal/auth"
)

const secret = "test-secret"

func TestGenerateAndValidateJWT(t *testing.T) {
	token, err := auth.GenerateJWT("ops-1", true, secret, time.Hour)
	require.NoError(t, err)

	claims, err := auth.ValidateJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "ops-1", claims.UserID)
	assert.Equal(t, "ops-1", claims.Subject)
	assert.True(t, claims.IsAdmin)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	token, err := auth.GenerateJWT("ops-1", true, secret, time.Hour)
	require.NoError(t, err)

	_, err = auth.ValidateJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateJWT_Expired(t *testing.T) {
	token, err := auth.GenerateJWT("ops-1", false, secret, -time.Minute)
	require.NoError(t, err)

	_, err = auth.ValidateJWT(token, secret)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestValidateJWT_RejectsNonHMAC(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{UserID: "x", IsAdmin: true}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.ValidateJWT(unsigned, secret)
	assert.Error(t, err)
}

func TestGenerateJWT_EmptySecret(t *testing.T) {
	_, err := auth.GenerateJWT("ops-1", true, "", time.Hour)
	assert.Error(t, err)
}
