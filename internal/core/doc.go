// Package core implements lockkv's encrypted key-value tables.
//
// An EncryptStorage maps plaintext keys to values through one bbolt table:
//   - Keys are stored as digests, never verbatim
//   - Values are AEAD ciphertext under a key derived from the secret and a per-table salt
//   - Each value has its own random nonce, stored at the digest of key + ".nonce"
//   - The salt lives at the digest of a fixed sentinel and survives Clear
//
// Reads that fail authentication (wrong secret, salt, iteration count or
// corrupted data) return an error matching ErrAuthFailed. A missing value
// is reported as not found, never as an error.
//
// Record addresses share one namespace. Setting key + ".nonce" replaces the
// nonce of key, which then fails authentication, and setting the key
// "__lockkv_salt__" replaces the salt of the whole table. Callers storing
// arbitrary keys should keep them out of both forms.
package core
