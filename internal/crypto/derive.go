package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// Argon2id defaults (RFC 9106 second recommended option).
const (
	DefaultArgon2Time    = 3
	DefaultArgon2Memory  = 64 * 1024
	DefaultArgon2Threads = 4
)

// KDF describes how a base key is stretched into a cipher key.
type KDF interface {
	Algorithm() Algorithm
	derive(secret []byte, size int) ([]byte, error)
}

// PBKDF2Params derives with PBKDF2-HMAC. Zero Iterations means DefaultIterations.
type PBKDF2Params struct {
	Hash       Hash
	Salt       []byte
	Iterations int
}

func (PBKDF2Params) Algorithm() Algorithm { return AlgPBKDF2 }

func (p PBKDF2Params) derive(secret []byte, size int) ([]byte, error) {
	newHash, err := p.Hash.New()
	if err != nil {
		return nil, err
	}
	iters := p.Iterations
	if iters <= 0 {
		iters = DefaultIterations
	}
	return pbkdf2.Key(secret, p.Salt, iters, size, newHash), nil
}

// HKDFParams derives with HKDF. It does no stretching and suits
// secrets that are already high-entropy.
type HKDFParams struct {
	Hash Hash
	Salt []byte
	Info []byte
}

func (HKDFParams) Algorithm() Algorithm { return AlgHKDF }

func (p HKDFParams) derive(secret []byte, size int) ([]byte, error) {
	newHash, err := p.Hash.New()
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(newHash, secret, p.Salt, p.Info), out); err != nil {
		return nil, fmt.Errorf("failed to expand key: %w", err)
	}
	return out, nil
}

// Argon2Params derives with Argon2id. Zero fields take the Default* values.
type Argon2Params struct {
	Salt    []byte
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

func (Argon2Params) Algorithm() Algorithm { return AlgArgon2id }

func (p Argon2Params) derive(secret []byte, size int) ([]byte, error) {
	t, m, th := p.Time, p.Memory, p.Threads
	if t == 0 {
		t = DefaultArgon2Time
	}
	if m == 0 {
		m = DefaultArgon2Memory
	}
	if th == 0 {
		th = DefaultArgon2Threads
	}
	return argon2.IDKey(secret, p.Salt, t, m, th, uint32(size)), nil
}

// DeriveKey derives a non-extractable cipher key from base. A nil target
// produces an AES-256-GCM key; zero usages mean encrypt|decrypt.
func DeriveKey(base *Key, kdf KDF, target Cipher, usages Usage) (*Key, error) {
	if err := base.require(UsageDeriveKey); err != nil {
		return nil, err
	}
	if kdf == nil {
		kdf = PBKDF2Params{}
	}
	if kdf.Algorithm() != base.alg {
		return nil, fmt.Errorf("%w: %s key with %s parameters", ErrAlgorithmMismatch, base.alg, kdf.Algorithm())
	}
	if target == nil {
		target = AESGCM{KeyBits: DefaultKeyBits}
	}

	var size int
	switch t := target.(type) {
	case AESGCM:
		bits := t.KeyBits
		if bits == 0 {
			bits = DefaultKeyBits
		}
		switch bits {
		case 128, 192, 256:
		default:
			return nil, fmt.Errorf("%w: %d bits for %s", ErrInvalidKeySize, bits, AlgAESGCM)
		}
		size = bits / 8
	case ChaCha20Poly1305:
		size = chacha20poly1305.KeySize
	default:
		return nil, fmt.Errorf("%w: cannot derive %s keys", ErrUnsupportedAlgorithm, target.Algorithm())
	}

	if usages == 0 {
		usages = UsageEncrypt | UsageDecrypt
	}
	if usages&^(UsageEncrypt|UsageDecrypt) != 0 {
		return nil, fmt.Errorf("%w: %s for derived key", ErrInvalidUsage, usages)
	}

	secret, err := kdf.derive(base.secret, size)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return &Key{alg: target.Algorithm(), usages: usages, secret: secret}, nil
}
