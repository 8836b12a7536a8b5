// Package crypto provides the cryptographic building blocks for lockkv.
//
// Keys are opaque handles created by ImportKey or DeriveKey. Base keys
// (PBKDF2, HKDF, Argon2id) can only derive; derived keys can only
// encrypt and decrypt and are never extractable.
//
// Default parameters:
//   - PBKDF2-HMAC-SHA256, 210,000 iterations, 8-byte random salt
//   - AES-256-GCM with a 16-byte random nonce per encryption
//
// ChaCha20-Poly1305 is available as an alternative derivation target,
// and RSA-OAEP for callers holding asymmetric keys.
//
// Every authentication failure surfaces as ErrAuthFailed, so callers can
// tell a wrong key or tampered data apart from other failures with
// errors.Is.
package crypto
