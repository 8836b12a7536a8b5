package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/illarion/lockkv/internal/crypto"
	"github.com/illarion/lockkv/internal/storage"
)

const (
	DefaultDatabase = "lockkv"
	DefaultTable    = "store"

	// EnvDir overrides the data directory used by DefaultEngine.
	EnvDir = "LOCKKV_DIR"

	saltSentinel = "__lockkv_salt__"
	nonceSuffix  = ".nonce"
)

var (
	ErrNoSecret       = errors.New("secret required")
	ErrClosed         = errors.New("storage closed")
	ErrUnsupportedKey = errors.New("unsupported key")

	// ErrAuthFailed is returned by Get when a stored value cannot be
	// authenticated with the instance's key material.
	ErrAuthFailed = crypto.ErrAuthFailed
)

// Config configures an EncryptStorage. Only one of Secret or Key is required.
type Config struct {
	// Engine holds the database files. Nil means DefaultEngine.
	Engine *storage.Engine

	// Secret is imported as a derivation key of algorithm KDF.
	Secret []byte

	// Key replaces Secret with an already imported key. A derivation key
	// (PBKDF2, HKDF, Argon2id) is stretched with the stored salt; an AES-GCM
	// or ChaCha20-Poly1305 key is used as is.
	Key *crypto.Key

	Database string // default DefaultDatabase
	Table    string // default DefaultTable

	// Salt is written on first use of a table. A stored salt always wins.
	Salt []byte

	// Iterations is the PBKDF2 iteration count, or the Argon2id time cost.
	Iterations int

	Hash   crypto.Hash
	KDF    crypto.Algorithm // default PBKDF2
	Cipher crypto.Cipher    // derivation target, default AES-256-GCM
}

func (c *Config) normalize() error {
	if c.Key == nil && len(c.Secret) == 0 {
		return ErrNoSecret
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if _, err := c.Hash.New(); err != nil {
		return err
	}

	if c.Key != nil {
		switch alg := c.Key.Algorithm(); {
		case alg.IsKDF():
			if !c.Key.Allows(crypto.UsageDeriveKey) {
				return fmt.Errorf("%w: %s key without deriveKey usage", ErrUnsupportedKey, alg)
			}
			c.KDF = alg
		case alg == crypto.AlgAESGCM || alg == crypto.AlgChaCha20Poly1305:
			if !c.Key.Allows(crypto.UsageEncrypt | crypto.UsageDecrypt) {
				return fmt.Errorf("%w: %s key must allow encrypt and decrypt", ErrUnsupportedKey, alg)
			}
			c.KDF = ""
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedKey, alg)
		}
	} else {
		if c.KDF == "" {
			c.KDF = crypto.AlgPBKDF2
		}
		if !c.KDF.IsKDF() {
			return fmt.Errorf("%w: %s is not a key derivation algorithm", crypto.ErrUnsupportedAlgorithm, c.KDF)
		}
	}

	if c.Iterations <= 0 {
		switch c.KDF {
		case crypto.AlgArgon2id:
			c.Iterations = crypto.DefaultArgon2Time
		default:
			c.Iterations = crypto.DefaultIterations
		}
	}
	if c.Cipher == nil {
		c.Cipher = crypto.AESGCM{KeyBits: crypto.DefaultKeyBits}
	}

	if c.Engine == nil {
		engine, err := DefaultEngine()
		if err != nil {
			return err
		}
		c.Engine = engine
	}
	return nil
}

var (
	defaultEngineOnce sync.Once
	defaultEngine     *storage.Engine
	defaultEngineErr  error
)

// DefaultDir returns $LOCKKV_DIR, or lockkv under the user config directory.
func DefaultDir() (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(base, "lockkv"), nil
}

// DefaultEngine returns the process-wide engine over DefaultDir.
func DefaultEngine() (*storage.Engine, error) {
	defaultEngineOnce.Do(func() {
		dir, err := DefaultDir()
		if err != nil {
			defaultEngineErr = err
			return
		}
		defaultEngine, defaultEngineErr = storage.NewEngine(dir)
	})
	return defaultEngine, defaultEngineErr
}

type state int

const (
	stateOpen state = iota
	stateClosed
	stateDestroyed
)

// EncryptStorage is an encrypted key-value table. Keys are stored as
// digests and values as AEAD ciphertext with a per-entry nonce.
//
// Construction starts resolving the database, table, salt and key in the
// background. Every operation waits for that single resolution.
type EncryptStorage struct {
	cfg Config

	ready chan struct{}
	rc    *resolvedContext
	err   error

	mu    sync.RWMutex
	state state
}

// New validates cfg and starts resolution. It fails with ErrNoSecret when
// neither Secret nor Key is set.
func New(cfg Config) (*EncryptStorage, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)
	cfg.Salt = append([]byte(nil), cfg.Salt...)

	s := &EncryptStorage{
		cfg:   cfg,
		ready: make(chan struct{}),
	}
	go func() {
		defer close(s.ready)
		s.rc, s.err = resolve(&s.cfg)
		crypto.ClearBytes(s.cfg.Secret)
		if s.err != nil {
			log.Errorf("Failed to open %s/%s: %v", cfg.Database, cfg.Table, s.err)
		}
	}()
	return s, nil
}

// Ready waits for resolution and returns its error.
func (s *EncryptStorage) Ready(ctx context.Context) error {
	_, err := s.resolved(ctx)
	return err
}

func (s *EncryptStorage) resolved(ctx context.Context) (*resolvedContext, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.rc, nil
}

// do runs fn against the resolved context while holding the instance open.
func (s *EncryptStorage) do(ctx context.Context, fn func(rc *resolvedContext) error) error {
	rc, err := s.resolved(ctx)
	if err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != stateOpen {
		return ErrClosed
	}
	return fn(rc)
}

// Set encrypts value and stores it under key.
func (s *EncryptStorage) Set(ctx context.Context, key string, value []byte) error {
	return s.do(ctx, func(rc *resolvedContext) error {
		addr, nonceAddr, err := rc.addresses(key)
		if err != nil {
			return err
		}
		ciphertext, nonce, err := crypto.Encrypt(value, rc.entryKey, nil)
		if err != nil {
			return fmt.Errorf("failed to encrypt value: %w", err)
		}
		if err := rc.db.Put(rc.table, addr, ciphertext); err != nil {
			return fmt.Errorf("failed to store value: %w", err)
		}
		if err := rc.db.Put(rc.table, nonceAddr, nonce); err != nil {
			return fmt.Errorf("failed to store nonce: %w", err)
		}
		return nil
	})
}

// Get returns the value stored under key. found is false when there is no
// value. A value that fails authentication returns an error matching
// ErrAuthFailed.
func (s *EncryptStorage) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	err = s.do(ctx, func(rc *resolvedContext) error {
		addr, nonceAddr, err := rc.addresses(key)
		if err != nil {
			return err
		}
		ciphertext, err := rc.db.Get(rc.table, addr)
		if err != nil {
			return fmt.Errorf("failed to read value: %w", err)
		}
		if ciphertext == nil {
			return nil
		}
		nonce, err := rc.db.Get(rc.table, nonceAddr)
		if err != nil {
			return fmt.Errorf("failed to read nonce: %w", err)
		}
		if nonce == nil {
			log.Debugf("Value without nonce in %s/%s", s.cfg.Database, s.cfg.Table)
			return nil
		}
		plaintext, err := crypto.Decrypt(ciphertext, rc.entryKey, nonce)
		if err != nil {
			return fmt.Errorf("failed to decrypt value: %w", err)
		}
		value, found = plaintext, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// SetString stores value as UTF-8.
func (s *EncryptStorage) SetString(ctx context.Context, key, value string) error {
	return s.Set(ctx, key, crypto.Encode(value))
}

// GetString is Get for values stored with SetString.
func (s *EncryptStorage) GetString(ctx context.Context, key string) (string, bool, error) {
	value, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return "", found, err
	}
	return crypto.Decode(value), true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *EncryptStorage) Delete(ctx context.Context, key string) error {
	return s.do(ctx, func(rc *resolvedContext) error {
		addr, nonceAddr, err := rc.addresses(key)
		if err != nil {
			return err
		}
		if err := rc.db.Delete(rc.table, addr); err != nil {
			return fmt.Errorf("failed to delete value: %w", err)
		}
		if err := rc.db.Delete(rc.table, nonceAddr); err != nil {
			return fmt.Errorf("failed to delete nonce: %w", err)
		}
		return nil
	})
}

// Clear removes every entry. The salt record is kept in the same
// transaction, so instances resolving concurrently see the same salt.
func (s *EncryptStorage) Clear(ctx context.Context) error {
	return s.do(ctx, func(rc *resolvedContext) error {
		if err := rc.db.Clear(rc.table, rc.saltAddr); err != nil {
			return fmt.Errorf("failed to clear table: %w", err)
		}
		log.Debugf("Cleared %s/%s", s.cfg.Database, s.cfg.Table)
		return nil
	})
}

// Len returns the number of stored entries. A Set interrupted between its
// two writes leaves a lone record that counts as half an entry.
func (s *EncryptStorage) Len(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, func(rc *resolvedContext) error {
		records, err := rc.db.Count(rc.table)
		if err != nil {
			return err
		}
		salt, err := rc.db.Get(rc.table, rc.saltAddr)
		if err != nil {
			return err
		}
		if salt != nil {
			records--
		}
		n = records / 2
		return nil
	})
	return n, err
}

// Close releases the database connection. Data is kept and a new instance
// with the same configuration reads it back. Closing twice is a no-op.
func (s *EncryptStorage) Close(ctx context.Context) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return nil
	}
	s.state = stateClosed
	if s.err != nil {
		// Nothing was opened
		return nil
	}
	return s.rc.close()
}

// Destroy closes the instance and deletes its whole database, salt
// included. It fails while other connections to the database are open;
// the instance stays closed and Destroy may be retried.
func (s *EncryptStorage) Destroy(ctx context.Context) error {
	rc, err := s.resolved(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateDestroyed {
		return nil
	}
	if s.state == stateOpen {
		s.state = stateClosed
		if err := rc.close(); err != nil {
			return err
		}
	}

	if err := s.cfg.Engine.DeleteDatabase(rc.dbName); err != nil {
		return fmt.Errorf("failed to destroy database: %w", err)
	}
	s.state = stateDestroyed
	log.Infof("Destroyed database %s", s.cfg.Database)
	return nil
}
