package auth

import (
	"testing"
	"time"

	"github.com/donets/jtrack/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateToken("user-123", secret, time.Hour)
	require.NoError(t, err)

	got, err := GetUserIDFromToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", got)
}

func TestGetUserIDFromToken_Errors(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	expired, err := GenerateToken("u1", secret, -time.Second)
	require.NoError(t, err)
	valid, err := GenerateToken("u2", []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           "u3",
	})
	foreignTok, err := foreign.SignedString(secret)
	require.NoError(t, err)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	noUserTok, err := noUser.SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret []byte
		want   error
	}{
		{name: "expired", token: expired, secret: secret, want: common.ErrTokenExpired},
		{name: "wrong secret", token: valid, secret: []byte("wrong-secret"), want: common.ErrInvalidToken},
		{name: "malformed", token: "not.a.jwt", secret: secret, want: common.ErrInvalidToken},
		{name: "other issuer", token: foreignTok, secret: secret, want: common.ErrInvalidToken},
		{name: "missing user", token: noUserTok, secret: secret, want: common.ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GetUserIDFromToken(tt.token, tt.secret)
			require.ErrorIs(t, err, tt.want)
		})
	}
}
