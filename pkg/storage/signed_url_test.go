package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("ref-1", "ab/ref-1.png")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	refID, relPath, parsedExp, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "ref-1", refID)
	assert.Equal(t, "ab/ref-1.png", relPath)
	assert.Equal(t, expiresAt.Unix(), parsedExp.Unix())
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, _, err := signer.Generate("ref-1", "ab/ref-1.png")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	assert.Error(t, err)

	_, _, _, err = signer.Parse("not-a-token", false)
	assert.Error(t, err)
}

func TestSignedURLRejectsWrongSecret(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	other := NewSignedURLSigner("different", time.Hour)

	token, _, err := signer.Generate("ref-1", "ab/ref-1.png")
	require.NoError(t, err)

	_, _, _, err = other.Parse(token, false)
	assert.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	signer.ttl = -time.Hour // forces an already-expired token

	token, _, err := signer.Generate("ref-1", "ab/ref-1.png")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	assert.Error(t, err)

	refID, _, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "ref-1", refID)
}

func TestSignedURLRequiresSecret(t *testing.T) {
	signer := NewSignedURLSigner("", time.Hour)
	_, _, err := signer.Generate("ref-1", "ab/ref-1.png")
	assert.Error(t, err)
}
