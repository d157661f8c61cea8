package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"hash"
	"runtime"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultKDFIterations = 1250
	DefaultKDFKeyLength  = 64
	DefaultKDFDigest     = "sha512"
	DefaultSaltBytes     = 2048
)

// KDFConfig holds the key derivation parameters. Changing any of them
// invalidates every stored hash.
type KDFConfig struct {
	Iterations    int    `json:"iterations"`
	KeyLength     int    `json:"key_length"`
	Digest        string `json:"digest"`
	SaltBytes     int    `json:"salt_bytes"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// DefaultKDFConfig returns the parameters stored hashes were created with.
func DefaultKDFConfig() KDFConfig {
	return KDFConfig{
		Iterations:    DefaultKDFIterations,
		KeyLength:     DefaultKDFKeyLength,
		Digest:        DefaultKDFDigest,
		SaltBytes:     DefaultSaltBytes,
		MaxConcurrent: runtime.NumCPU(),
	}
}

func (c KDFConfig) withDefaults() KDFConfig {
	def := DefaultKDFConfig()
	if c.Iterations <= 0 {
		c.Iterations = def.Iterations
	}
	if c.KeyLength <= 0 {
		c.KeyLength = def.KeyLength
	}
	if c.Digest == "" {
		c.Digest = def.Digest
	}
	if c.SaltBytes <= 0 {
		c.SaltBytes = def.SaltBytes
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = def.MaxConcurrent
	}
	return c
}

func (c KDFConfig) digest() func() hash.Hash {
	switch c.Digest {
	case "sha256":
		return sha256.New
	default:
		return sha512.New
	}
}

// CredentialHasher derives password hashes. Derivations are CPU bound and
// run at most MaxConcurrent at a time.
type CredentialHasher struct {
	config KDFConfig
	sem    *semaphore.Weighted
}

// NewCredentialHasher creates a hasher, filling zero fields with defaults.
func NewCredentialHasher(config KDFConfig) *CredentialHasher {
	config = config.withDefaults()
	return &CredentialHasher{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// Config returns the effective parameters.
func (h *CredentialHasher) Config() KDFConfig {
	return h.config
}

// DeriveSalt returns SaltBytes of random data, base64 encoded.
func (h *CredentialHasher) DeriveSalt() (string, error) {
	buf := make([]byte, h.config.SaltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random salt")
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Hash derives the base64 encoded key for password. The salt text itself is
// the KDF salt input.
func (h *CredentialHasher) Hash(ctx context.Context, password, salt string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	key, err := h.derive(ctx, password, salt)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Verify reports whether password hashes to stored under salt.
func (h *CredentialHasher) Verify(ctx context.Context, password, salt, stored string) (bool, error) {
	if password == "" || stored == "" {
		return false, nil
	}

	expected, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return false, nil
	}

	key, err := h.derive(ctx, password, salt)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func (h *CredentialHasher) derive(ctx context.Context, password, salt string) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled waiting for key derivation")
	}
	defer h.sem.Release(1)

	return pbkdf2.Key([]byte(password), []byte(salt), h.config.Iterations, h.config.KeyLength, h.config.digest()), nil
}
