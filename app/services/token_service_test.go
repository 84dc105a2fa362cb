// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService(t *testing.T) *TokenServiceImpl {
	t.Helper()
	svc, err := NewTokenService(
		time.Hour,
		15*time.Minute,
		"test-issuer",
		"test-audience",
		"test-secret-key-for-jwt-signing-32-chars",
	)
	require.NoError(t, err)
	return svc.(*TokenServiceImpl)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		secretKey   string
		expectError bool
	}{
		{name: "valid secret", secretKey: "test-secret-key-for-jwt-signing-32-chars"},
		{name: "missing secret key", secretKey: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(time.Hour, 15*time.Minute, "iss", "aud", tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	service := createTestTokenService(t)

	token, err := service.GenerateSessionToken(123)
	require.NoError(t, err)
	assert.Contains(t, token, "eyJ")

	claims, err := service.ValidateSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(123), claims.AccountID)
	assert.Equal(t, TokenTypeSession, claims.TokenType)
	assert.NotEmpty(t, claims.TokenID)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt))
}

func TestResetTokenLifetime(t *testing.T) {
	service := createTestTokenService(t)

	token, issued, err := service.GenerateResetToken(7)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, issued.ExpiresAt.Sub(issued.IssuedAt))

	claims, err := service.ValidateResetToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.AccountID)
	assert.Equal(t, issued.TokenID, claims.TokenID)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	service := createTestTokenService(t)

	session, err := service.GenerateSessionToken(1)
	require.NoError(t, err)
	reset, _, err := service.GenerateResetToken(1)
	require.NoError(t, err)

	_, err = service.ValidateResetToken(session)
	assert.ErrorIs(t, err, ErrTokenWrongType)

	_, err = service.ValidateSessionToken(reset)
	assert.ErrorIs(t, err, ErrTokenWrongType)
}

func TestExpiredResetTokenRejected(t *testing.T) {
	service := createTestTokenService(t)

	service.now = func() time.Time { return time.Now().UTC().Add(-16 * time.Minute) }
	token, _, err := service.GenerateResetToken(9)
	require.NoError(t, err)

	service.now = func() time.Time { return time.Now().UTC() }
	claims, err := service.ValidateResetToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Nil(t, claims)
}

func TestValidateSessionTokenRejectsGarbage(t *testing.T) {
	service := createTestTokenService(t)

	other, err := NewTokenService(time.Hour, 15*time.Minute, "test-issuer", "test-audience", "another-secret")
	require.NoError(t, err)
	foreign, err := other.GenerateSessionToken(5)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"account_id": 5,
		"token_type": TokenTypeSession,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "invalid token format", token: "invalid.token.format"},
		{name: "signed with another secret", token: foreign},
		{name: "none algorithm", token: unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateSessionToken(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
			assert.Nil(t, claims)
		})
	}
}

func TestValidateRejectsForeignIssuer(t *testing.T) {
	service := createTestTokenService(t)

	other, err := NewTokenService(time.Hour, 15*time.Minute, "someone-else", "test-audience", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)
	token, err := other.GenerateSessionToken(5)
	require.NoError(t, err)

	_, err = service.ValidateSessionToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
