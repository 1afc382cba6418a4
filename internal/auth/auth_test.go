package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tenran/internal/auth"
)

func TestExchangeAndValidate(t *testing.T) {
	mgr, err := auth.NewManager("operator-key-123", "test-secret", time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := mgr.Exchange("operator-key-123", "curator-ui")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := mgr.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "curator-ui", claims.ClientName)
	assert.Equal(t, "tenran", claims.Issuer)
}

func TestExchangeRejectsWrongKey(t *testing.T) {
	mgr, err := auth.NewManager("operator-key-123", "test-secret", time.Hour)
	require.NoError(t, err)

	_, _, err = mgr.Exchange("wrong-key", "curator-ui")
	require.Error(t, err)
}

func TestNewManagerRequiresAPIKey(t *testing.T) {
	_, err := auth.NewManager("", "secret", time.Hour)
	require.Error(t, err)
}

func TestEphemeralSecret(t *testing.T) {
	a, err := auth.NewManager("key", "", time.Hour)
	require.NoError(t, err)
	b, err := auth.NewManager("key", "", time.Hour)
	require.NoError(t, err)

	// A token from one ephemeral-secret instance fails on another.
	token, _, err := a.Exchange("key", "client")
	require.NoError(t, err)
	_, err = b.Validate(token)
	require.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	mgr, err := auth.NewManager("key", "test-secret", -time.Minute)
	require.NoError(t, err)

	token, _, err := mgr.Exchange("key", "client")
	require.NoError(t, err)

	_, err = mgr.Validate(token)
	require.Error(t, err)
}

func TestValidateRejectsForeignAlgorithm(t *testing.T) {
	mgr, err := auth.NewManager("key", "test-secret", time.Hour)
	require.NoError(t, err)

	// A token signed with none must not validate.
	forged := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    "tenran",
		Audience:  jwt.ClaimStrings{"tenran"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tokenString, err := forged.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = mgr.Validate(tokenString)
	require.Error(t, err)
}
