package httpapi

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"karatpos/internal/domain"
)

const testSecret = "test-secret-key-at-least-32-chars-long"

func TestLoginIssuesParsableToken(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, "", []Account{{Username: "Sana", Password: "pw-123456", Role: RoleSales}})

	resp, err := auth.Login(domain.LoginRequest{Username: "sana", Password: "pw-123456"})
	require.NoError(t, err)
	assert.Equal(t, RoleSales, resp.Role)

	actor, err := auth.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{Username: "sana", Role: RoleSales}, actor)
}

func TestLoginAcceptsPreHashedPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw-123456"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := NewAuthManager(testSecret, time.Hour, "", []Account{{Username: "admin", Password: string(hash), Role: RoleAdmin}})

	_, err = auth.Login(domain.LoginRequest{Username: "admin", Password: "pw-123456"})
	assert.NoError(t, err)
	_, err = auth.Login(domain.LoginRequest{Username: "admin", Password: string(hash)})
	assert.Error(t, err)
}

func TestLoginSkipsIncompleteAccounts(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, "", []Account{{Username: "ghost", Role: RoleSales}})

	_, err := auth.Login(domain.LoginRequest{Username: "ghost", Password: ""})
	assert.Error(t, err)
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, "", nil)
	other := NewAuthManager("another-secret-key-at-least-32-chars", time.Hour, "", nil)

	token, err := other.sign("mallory", RoleAdmin, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = auth.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, "", nil)

	token, err := auth.sign("sana", RoleSales, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = auth.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsNoneAlgorithm(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, "", nil)

	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "mallory", ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             RoleAdmin,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.ParseToken(token)
	assert.Error(t, err)
}

func TestValidateManagerPIN(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, " 482913 ", nil)

	assert.True(t, auth.ValidateManagerPIN("482913"))
	assert.False(t, auth.ValidateManagerPIN("000000"))
	assert.False(t, auth.ValidateManagerPIN(""))

	unset := NewAuthManager(testSecret, time.Hour, "", nil)
	assert.False(t, unset.ValidateManagerPIN("482913"))
}
