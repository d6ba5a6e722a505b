package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken(domain.APIClient{ID: "pipeline-1", Role: domain.ClientRolePipeline})
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "pipeline-1", claims.ClientID)
	assert.Equal(t, domain.ClientRolePipeline, claims.Role)
	assert.Equal(t, "pipeline-1", claims.Subject)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken(
		domain.APIClient{ID: "pipeline-1", Role: domain.ClientRolePipeline})
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", 60).ParseToken(token)
	require.Error(t, err)
}

func TestTokenGarbageRejected(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)
	_, err := tm.ParseToken("not.a.token")
	require.Error(t, err)
}

func TestKeyVerifier(t *testing.T) {
	hash, err := HashKey("s3cret-key", 4)
	require.NoError(t, err)

	verifier, err := NewKeyVerifier([]string{"pipeline-1:pipeline:" + hash})
	require.NoError(t, err)

	client, err := verifier.Verify("pipeline-1", "s3cret-key")
	require.NoError(t, err)
	assert.Equal(t, "pipeline-1", client.ID)
	assert.Equal(t, domain.ClientRolePipeline, client.Role)

	_, err = verifier.Verify("pipeline-1", "wrong-key")
	assert.ErrorIs(t, err, ErrUnknownClient)

	_, err = verifier.Verify("nobody", "s3cret-key")
	assert.ErrorIs(t, err, ErrUnknownClient)
}

func TestKeyVerifierRejectsMalformedEntries(t *testing.T) {
	_, err := NewKeyVerifier([]string{"missing-role-and-hash"})
	require.Error(t, err)

	_, err = NewKeyVerifier([]string{"client:superuser:hash"})
	require.Error(t, err)
}
