package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Hash identifies a digest algorithm. The zero value is SHA256.
type Hash int

const (
	SHA256 Hash = iota
	SHA384
	SHA512
	SHA1
	SHA3_256
)

func (h Hash) String() string {
	switch h {
	case SHA256:
		return "SHA-256"
	case SHA384:
		return "SHA-384"
	case SHA512:
		return "SHA-512"
	case SHA1:
		return "SHA-1"
	case SHA3_256:
		return "SHA3-256"
	default:
		return fmt.Sprintf("Hash(%d)", int(h))
	}
}

// New returns the constructor for the hash, suitable for HMAC based KDFs.
func (h Hash) New() (func() hash.Hash, error) {
	switch h {
	case SHA256:
		return sha256.New, nil
	case SHA384:
		return sha512.New384, nil
	case SHA512:
		return sha512.New, nil
	case SHA1:
		return sha1.New, nil
	case SHA3_256:
		return sha3.New256, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHash, h)
	}
}

// Digest hashes data with the given algorithm.
func Digest(data []byte, h Hash) ([]byte, error) {
	newHash, err := h.New()
	if err != nil {
		return nil, err
	}
	d := newHash()
	d.Write(data)
	return d.Sum(nil), nil
}

// DigestHex hashes data and returns the digest as lowercase hex text.
// Used wherever a digest has to serve as a name (database files, tables).
func DigestHex(data []byte, h Hash) (string, error) {
	sum, err := Digest(data, h)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}
