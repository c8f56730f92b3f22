package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaker_AccessToken(t *testing.T) {
	maker := NewJWTMaker("test_secret_key_1234567890", 15*time.Minute, time.Hour)

	tests := []struct {
		name   string
		userID string
		email  string
	}{
		{name: "regular user", userID: "7f1c2a8e-0000-4000-8000-000000000001", email: "joao@example.com"},
		{name: "email with plus", userID: "7f1c2a8e-0000-4000-8000-000000000002", email: "maria+bulk@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, expiresAt, err := maker.GenerateAccessToken(tt.userID, tt.email)
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Second)

			claims, err := maker.ParseToken(token, PurposeAccess)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.Subject)
			assert.Equal(t, tt.email, claims.Email)
		})
	}
}

func TestMaker_ConfirmToken(t *testing.T) {
	maker := NewJWTMaker("secret", time.Minute, time.Hour)

	token, err := maker.GenerateConfirmToken("user-1", "a@b.c", "/dashboard")
	require.NoError(t, err)

	claims, err := maker.ParseToken(token, PurposeConfirm)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", claims.RedirectTo)
	assert.Equal(t, "user-1", claims.Subject)

	_, err = maker.ParseToken(token, PurposeAccess)
	assert.ErrorIs(t, err, ErrWrongPurpose)
}

func TestMaker_ParseToken_InvalidTokens(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	maker := NewJWTMaker(secretKey, 15*time.Minute, time.Hour)

	validToken, _, err := maker.GenerateAccessToken("user-1", "a@b.c")
	require.NoError(t, err)

	expired, _, err := NewJWTMaker(secretKey, -time.Hour, time.Hour).GenerateAccessToken("user-1", "a@b.c")
	require.NoError(t, err)

	wrongSecret, _, err := NewJWTMaker("wrong_secret_key", 15*time.Minute, time.Hour).GenerateAccessToken("user-1", "a@b.c")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: expired},
		{name: "wrong secret key", token: wrongSecret},
		{name: "tampered token", token: validToken + "tampered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token, PurposeAccess)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}
