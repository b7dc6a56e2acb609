package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthTokenRoundTrip(t *testing.T) {
	SetJWTSecret("segredo-de-teste")

	token, err := SignAuthToken("auth-1", time.Hour)
	require.NoError(t, err)

	sub, err := parseAuthToken(token)
	require.NoError(t, err)
	assert.Equal(t, "auth-1", sub)
}

func TestParseAuthTokenRejectsExpired(t *testing.T) {
	SetJWTSecret("segredo-de-teste")

	token, err := SignAuthToken("auth-1", -time.Minute)
	require.NoError(t, err)

	_, err = parseAuthToken(token)
	assert.Error(t, err)
}

func TestParseAuthTokenRejectsWrongSecret(t *testing.T) {
	SetJWTSecret("segredo-de-teste")
	token, err := SignAuthToken("auth-1", time.Hour)
	require.NoError(t, err)

	SetJWTSecret("outro-segredo")
	defer SetJWTSecret("segredo-de-teste")

	_, err = parseAuthToken(token)
	assert.Error(t, err)
}

func TestParseAuthTokenRejectsGarbage(t *testing.T) {
	SetJWTSecret("segredo-de-teste")
	_, err := parseAuthToken("nao-e-um-jwt")
	assert.Error(t, err)
}
