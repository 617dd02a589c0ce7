package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignParseRoundTrip(t *testing.T) {
	signer := NewSigner("secret-a", time.Hour)

	token, err := signer.Sign("u1", "s1", TokenTypeAccess)
	require.NoError(t, err)

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "s1", claims.SessionID)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewSigner("secret-a", time.Hour).Sign("u1", "s1", TokenTypeAccess)
	require.NoError(t, err)

	_, err = NewSigner("secret-b", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := NewSigner("secret-a", -time.Minute).Sign("u1", "s1", TokenTypeAccess)
	require.NoError(t, err)

	_, err = NewSigner("secret-a", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseRejectsMissingSessionBinding(t *testing.T) {
	signer := NewSigner("secret-a", time.Hour)

	token, err := signer.Sign("u1", "", TokenTypeAccess)
	require.NoError(t, err)

	_, err = signer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := NewSigner("secret-a", time.Hour).Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
