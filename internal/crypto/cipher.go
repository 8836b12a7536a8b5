package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher selects an encryption algorithm and carries its per-call parameters.
type Cipher interface {
	Algorithm() Algorithm
}

// AESGCM encrypts with AES in GCM mode. A nil Nonce on Encrypt asks for a
// fresh DefaultNonceSize nonce. KeyBits only matters as a DeriveKey target.
type AESGCM struct {
	KeyBits        int
	Nonce          []byte
	AdditionalData []byte
}

func (AESGCM) Algorithm() Algorithm { return AlgAESGCM }

// ChaCha20Poly1305 encrypts with ChaCha20-Poly1305, or XChaCha20-Poly1305
// when the nonce is 24 bytes long.
type ChaCha20Poly1305 struct {
	Nonce          []byte
	AdditionalData []byte
}

func (ChaCha20Poly1305) Algorithm() Algorithm { return AlgChaCha20Poly1305 }

// RSAOAEP encrypts with RSA-OAEP. It carries no nonce.
type RSAOAEP struct {
	Hash  Hash
	Label []byte
}

func (RSAOAEP) Algorithm() Algorithm { return AlgRSAOAEP }

// Encrypt encrypts data with key. A nil alg uses the key's own algorithm
// with a freshly generated nonce. The returned nonce is nil for algorithms
// that do not use one.
func Encrypt(data []byte, key *Key, alg Cipher) ([]byte, []byte, error) {
	if err := key.require(UsageEncrypt); err != nil {
		return nil, nil, err
	}
	if alg == nil {
		alg = defaultCipher(key)
	}
	if alg.Algorithm() != key.alg {
		return nil, nil, fmt.Errorf("%w: %s key with %s", ErrAlgorithmMismatch, key.alg, alg.Algorithm())
	}

	switch a := alg.(type) {
	case AESGCM:
		nonce := a.Nonce
		if nonce == nil {
			var err error
			if nonce, err = NewNonce(); err != nil {
				return nil, nil, err
			}
		}
		aead, err := newGCM(key.secret, len(nonce))
		if err != nil {
			return nil, nil, err
		}
		return aead.Seal(nil, nonce, data, a.AdditionalData), nonce, nil

	case ChaCha20Poly1305:
		nonce := a.Nonce
		if nonce == nil {
			var err error
			if nonce, err = GenerateRandom(chacha20poly1305.NonceSize); err != nil {
				return nil, nil, err
			}
		}
		aead, err := newChaCha(key.secret, len(nonce))
		if err != nil {
			return nil, nil, err
		}
		return aead.Seal(nil, nonce, data, a.AdditionalData), nonce, nil

	case RSAOAEP:
		newHash, err := a.Hash.New()
		if err != nil {
			return nil, nil, err
		}
		ct, err := rsa.EncryptOAEP(newHash(), rand.Reader, key.pub, data, a.Label)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encrypt: %w", err)
		}
		return ct, nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg.Algorithm())
	}
}

// Decrypt decrypts data produced by Encrypt with the key's default
// algorithm and the given nonce.
func Decrypt(data []byte, key *Key, nonce []byte) ([]byte, error) {
	switch key.alg {
	case AlgAESGCM:
		return DecryptWith(data, key, AESGCM{Nonce: nonce})
	case AlgChaCha20Poly1305:
		return DecryptWith(data, key, ChaCha20Poly1305{Nonce: nonce})
	default:
		return DecryptWith(data, key, defaultCipher(key))
	}
}

// DecryptWith decrypts data using a fully specified algorithm. Any mismatch
// between ciphertext, key, nonce or additional data yields ErrAuthFailed.
func DecryptWith(data []byte, key *Key, alg Cipher) ([]byte, error) {
	if err := key.require(UsageDecrypt); err != nil {
		return nil, err
	}
	if alg == nil {
		alg = defaultCipher(key)
	}
	if alg.Algorithm() != key.alg {
		return nil, fmt.Errorf("%w: %s key with %s", ErrAlgorithmMismatch, key.alg, alg.Algorithm())
	}

	switch a := alg.(type) {
	case AESGCM:
		if len(a.Nonce) == 0 || len(data) < TagSize {
			return nil, ErrInvalidCiphertext
		}
		aead, err := newGCM(key.secret, len(a.Nonce))
		if err != nil {
			return nil, err
		}
		plaintext, err := aead.Open(nil, a.Nonce, data, a.AdditionalData)
		if err != nil {
			return nil, ErrAuthFailed
		}
		return plaintext, nil

	case ChaCha20Poly1305:
		if len(a.Nonce) != chacha20poly1305.NonceSize && len(a.Nonce) != chacha20poly1305.NonceSizeX {
			return nil, ErrInvalidCiphertext
		}
		if len(data) < chacha20poly1305.Overhead {
			return nil, ErrInvalidCiphertext
		}
		aead, err := newChaCha(key.secret, len(a.Nonce))
		if err != nil {
			return nil, err
		}
		plaintext, err := aead.Open(nil, a.Nonce, data, a.AdditionalData)
		if err != nil {
			return nil, ErrAuthFailed
		}
		return plaintext, nil

	case RSAOAEP:
		newHash, err := a.Hash.New()
		if err != nil {
			return nil, err
		}
		plaintext, err := rsa.DecryptOAEP(newHash(), nil, key.priv, data, a.Label)
		if err != nil {
			return nil, ErrAuthFailed
		}
		return plaintext, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg.Algorithm())
	}
}

func defaultCipher(key *Key) Cipher {
	switch key.alg {
	case AlgChaCha20Poly1305:
		return ChaCha20Poly1305{}
	case AlgRSAOAEP:
		return RSAOAEP{}
	default:
		return AESGCM{}
	}
}

func newGCM(key []byte, nonceSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func newChaCha(key []byte, nonceSize int) (cipher.AEAD, error) {
	var (
		aead cipher.AEAD
		err  error
	)
	switch nonceSize {
	case chacha20poly1305.NonceSizeX:
		aead, err = chacha20poly1305.NewX(key)
	case chacha20poly1305.NonceSize:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %d bytes for %s", ErrInvalidNonce, nonceSize, AlgChaCha20Poly1305)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return aead, nil
}
