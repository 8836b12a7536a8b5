package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm names a key or cipher algorithm.
type Algorithm string

const (
	AlgPBKDF2           Algorithm = "PBKDF2"
	AlgHKDF             Algorithm = "HKDF"
	AlgArgon2id         Algorithm = "ARGON2ID"
	AlgAESGCM           Algorithm = "AES-GCM"
	AlgChaCha20Poly1305 Algorithm = "CHACHA20-POLY1305"
	AlgRSAOAEP          Algorithm = "RSA-OAEP"
)

// IsKDF reports whether keys of this algorithm are used for derivation only.
func (a Algorithm) IsKDF() bool {
	switch a {
	case AlgPBKDF2, AlgHKDF, AlgArgon2id:
		return true
	}
	return false
}

// Usage is a bit set of permitted key operations.
type Usage uint8

const (
	UsageEncrypt Usage = 1 << iota
	UsageDecrypt
	UsageDeriveKey
)

func (u Usage) String() string {
	var parts []string
	if u&UsageEncrypt != 0 {
		parts = append(parts, "encrypt")
	}
	if u&UsageDecrypt != 0 {
		parts = append(parts, "decrypt")
	}
	if u&UsageDeriveKey != 0 {
		parts = append(parts, "deriveKey")
	}
	return strings.Join(parts, "|")
}

// KeyFormat is the encoding of imported key material.
type KeyFormat int

const (
	FormatRaw   KeyFormat = iota // Raw bytes (passwords, symmetric keys)
	FormatPKCS8                  // DER PKCS#8 private key
	FormatPKIX                   // DER PKIX (SubjectPublicKeyInfo) public key
)

// ImportOptions controls ImportKey. The zero value imports raw
// bytes as a PBKDF2 base key usable for derivation only.
type ImportOptions struct {
	Format      KeyFormat
	Algorithm   Algorithm
	Usages      Usage
	Extractable bool
}

// Key is an opaque handle to key material. The material can only be
// read back with Export when the key was imported as extractable.
type Key struct {
	alg         Algorithm
	usages      Usage
	extractable bool
	secret      []byte
	priv        *rsa.PrivateKey
	pub         *rsa.PublicKey
}

// ImportKey wraps raw key material into a Key.
func ImportKey(raw []byte, opts ImportOptions) (*Key, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyKey
	}
	alg := opts.Algorithm
	if alg == "" {
		alg = AlgPBKDF2
	}

	k := &Key{alg: alg, usages: opts.Usages, extractable: opts.Extractable}

	switch alg {
	case AlgPBKDF2, AlgHKDF, AlgArgon2id:
		if opts.Format != FormatRaw {
			return nil, fmt.Errorf("%w: %s keys must be raw", ErrUnsupportedAlgorithm, alg)
		}
		if opts.Extractable {
			return nil, fmt.Errorf("%w: %s keys cannot be extractable", ErrInvalidUsage, alg)
		}
		if k.usages == 0 {
			k.usages = UsageDeriveKey
		}
		if k.usages&^UsageDeriveKey != 0 {
			return nil, fmt.Errorf("%w: %s supports deriveKey only", ErrInvalidUsage, alg)
		}
		k.secret = append([]byte(nil), raw...)

	case AlgAESGCM:
		if opts.Format != FormatRaw {
			return nil, fmt.Errorf("%w: %s keys must be raw", ErrUnsupportedAlgorithm, alg)
		}
		switch len(raw) {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("%w: %d bytes for %s", ErrInvalidKeySize, len(raw), alg)
		}
		if err := k.defaultUsages(UsageEncrypt | UsageDecrypt); err != nil {
			return nil, err
		}
		k.secret = append([]byte(nil), raw...)

	case AlgChaCha20Poly1305:
		if opts.Format != FormatRaw {
			return nil, fmt.Errorf("%w: %s keys must be raw", ErrUnsupportedAlgorithm, alg)
		}
		if len(raw) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("%w: %d bytes for %s", ErrInvalidKeySize, len(raw), alg)
		}
		if err := k.defaultUsages(UsageEncrypt | UsageDecrypt); err != nil {
			return nil, err
		}
		k.secret = append([]byte(nil), raw...)

	case AlgRSAOAEP:
		if err := k.importRSA(raw, opts.Format); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	return k, nil
}

func (k *Key) defaultUsages(allowed Usage) error {
	if k.usages == 0 {
		k.usages = allowed
	}
	if k.usages&^allowed != 0 {
		return fmt.Errorf("%w: %s for %s", ErrInvalidUsage, k.usages, k.alg)
	}
	return nil
}

func (k *Key) importRSA(raw []byte, format KeyFormat) error {
	switch format {
	case FormatPKCS8:
		parsed, err := x509.ParsePKCS8PrivateKey(raw)
		if err != nil {
			return fmt.Errorf("failed to parse private key: %w", err)
		}
		priv, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return fmt.Errorf("%w: private key is %T, not RSA", ErrUnsupportedAlgorithm, parsed)
		}
		k.priv = priv
		return k.defaultUsages(UsageDecrypt)
	case FormatPKIX:
		parsed, err := x509.ParsePKIXPublicKey(raw)
		if err != nil {
			return fmt.Errorf("failed to parse public key: %w", err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("%w: public key is %T, not RSA", ErrUnsupportedAlgorithm, parsed)
		}
		k.pub = pub
		return k.defaultUsages(UsageEncrypt)
	default:
		return fmt.Errorf("%w: RSA-OAEP keys must be PKCS8 or PKIX", ErrUnsupportedAlgorithm)
	}
}

// Algorithm returns the algorithm the key is bound to.
func (k *Key) Algorithm() Algorithm { return k.alg }

// Usages returns the permitted operations.
func (k *Key) Usages() Usage { return k.usages }

// Extractable reports whether Export may return the key material.
func (k *Key) Extractable() bool { return k.extractable }

// Allows reports whether every usage in u is permitted.
func (k *Key) Allows(u Usage) bool { return k.usages&u == u }

// Export returns a copy of the key material in the format it was imported in.
func (k *Key) Export() ([]byte, error) {
	if !k.extractable {
		return nil, ErrNotExtractable
	}
	switch {
	case k.priv != nil:
		return x509.MarshalPKCS8PrivateKey(k.priv)
	case k.pub != nil:
		return x509.MarshalPKIXPublicKey(k.pub)
	default:
		return append([]byte(nil), k.secret...), nil
	}
}

// Destroy clears the key material from memory. The key is unusable afterwards.
func (k *Key) Destroy() {
	ClearBytes(k.secret)
	k.secret = nil
	k.priv = nil
	k.pub = nil
}

func (k *Key) require(u Usage) error {
	if !k.Allows(u) {
		return fmt.Errorf("%w: %s key lacks %s", ErrInvalidUsage, k.alg, u)
	}
	if k.secret == nil && k.priv == nil && k.pub == nil {
		return fmt.Errorf("%w: key destroyed", ErrEmptyKey)
	}
	return nil
}
