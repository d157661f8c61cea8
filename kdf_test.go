package auth

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialHasher(t *testing.T) {
	ctx := context.Background()
	hasher := NewCredentialHasher(KDFConfig{Iterations: 10, SaltBytes: 32})

	t.Run("defaults fill zero fields", func(t *testing.T) {
		cfg := hasher.Config()
		assert.Equal(t, 10, cfg.Iterations)
		assert.Equal(t, DefaultKDFKeyLength, cfg.KeyLength)
		assert.Equal(t, DefaultKDFDigest, cfg.Digest)
		assert.Equal(t, 32, cfg.SaltBytes)
		assert.Greater(t, cfg.MaxConcurrent, 0)
	})

	t.Run("salt has configured entropy", func(t *testing.T) {
		salt, err := hasher.DeriveSalt()
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(salt)
		require.NoError(t, err)
		assert.Len(t, raw, 32)

		other, err := hasher.DeriveSalt()
		require.NoError(t, err)
		assert.NotEqual(t, salt, other)
	})

	t.Run("hash verifies", func(t *testing.T) {
		salt, err := hasher.DeriveSalt()
		require.NoError(t, err)

		hash, err := hasher.Hash(ctx, "correct horse", salt)
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(hash)
		require.NoError(t, err)
		assert.Len(t, raw, DefaultKDFKeyLength)

		ok, err := hasher.Verify(ctx, "correct horse", salt, hash)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = hasher.Verify(ctx, "wrong horse", salt, hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("same input is deterministic", func(t *testing.T) {
		a, err := hasher.Hash(ctx, "pw", "salt")
		require.NoError(t, err)
		b, err := hasher.Hash(ctx, "pw", "salt")
		require.NoError(t, err)
		assert.Equal(t, a, b)

		c, err := hasher.Hash(ctx, "pw", "other salt")
		require.NoError(t, err)
		assert.NotEqual(t, a, c)
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := hasher.Hash(ctx, "", "salt")
		requireTextCode(t, err, TextCodeEmptyPassword)

		ok, err := hasher.Verify(ctx, "", "salt", "c29tZQ==")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("undecodable stored hash never matches", func(t *testing.T) {
		ok, err := hasher.Verify(ctx, "pw", "salt", "%%not-base64%%")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("digest changes the key", func(t *testing.T) {
		sha256Hasher := NewCredentialHasher(KDFConfig{Iterations: 10, Digest: "sha256"})
		a, err := sha256Hasher.Hash(ctx, "pw", "salt")
		require.NoError(t, err)
		b, err := hasher.Hash(ctx, "pw", "salt")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestCredentialHasherHonoursContext(t *testing.T) {
	hasher := NewCredentialHasher(KDFConfig{Iterations: 10, MaxConcurrent: 1})

	// hold the only slot so the next derivation has to wait
	require.NoError(t, hasher.sem.Acquire(context.Background(), 1))
	defer hasher.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := hasher.Hash(ctx, "pw", "salt")
	require.Error(t, err)
}

func TestCredentialHasherKnownAnswer(t *testing.T) {
	ctx := context.Background()
	hasher := NewCredentialHasher(KDFConfig{
		Iterations: 1250,
		KeyLength:  64,
		Digest:     "sha512",
	})

	// the stored salt text is the KDF input, not its decoded bytes
	hash, err := hasher.Hash(ctx, "p1", "c2FsdA==")
	require.NoError(t, err)
	assert.Equal(t, "pFkqhZ6WCn6hMjQfhRIMuMgrSbQeu8WXKWWBNCaSmE6DO8hnB91zigfyt/riqlnI8mE4w3X2YLWEnlpOoRJ+dw==", hash)

	ok, err := hasher.Verify(ctx, "p1", "c2FsdA==", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}
