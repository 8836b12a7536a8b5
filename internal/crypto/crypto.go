package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
)

const (
	DefaultSaltSize   = 8      // Salt size in bytes
	DefaultNonceSize  = 16     // AES-GCM nonce size used by the store
	DefaultKeyBits    = 256    // AES key length for derived keys
	TagSize           = 16     // AEAD authentication tag size
	DefaultIterations = 210000 // Default PBKDF2 iterations (OWASP minimum)
)

var (
	ErrAuthFailed           = errors.New("authentication failed")
	ErrInvalidCiphertext    = fmt.Errorf("%w: invalid ciphertext", ErrAuthFailed)
	ErrNotExtractable       = errors.New("key is not extractable")
	ErrInvalidUsage         = errors.New("key usage not permitted")
	ErrAlgorithmMismatch    = errors.New("algorithm does not match key")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrUnsupportedHash      = errors.New("unsupported hash")
	ErrInvalidKeySize       = errors.New("invalid key size")
	ErrEmptyKey             = errors.New("empty key material")
	ErrInvalidNonce         = errors.New("invalid nonce size")
)

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// NewSalt returns DefaultSaltSize random bytes.
func NewSalt() ([]byte, error) {
	return GenerateRandom(DefaultSaltSize)
}

// NewNonce returns DefaultNonceSize random bytes.
func NewNonce() ([]byte, error) {
	return GenerateRandom(DefaultNonceSize)
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
