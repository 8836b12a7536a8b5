package core

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/illarion/lockkv/internal/crypto"
	"github.com/illarion/lockkv/internal/storage"
)

// maxTableUpgrades bounds reopen attempts when other connections keep
// moving the database version while the table is being created.
const maxTableUpgrades = 3

// resolvedContext is everything an EncryptStorage needs after resolution.
// It is never modified once built.
type resolvedContext struct {
	db     *storage.DB
	dbName string // digest of the logical database name
	table  string // digest of the logical table name

	hash       crypto.Hash
	baseKey    *crypto.Key
	ownsBase   bool // baseKey was imported from a secret
	salt       []byte
	iterations int

	// entryKey encrypts every value. salt and iterations are fixed for the
	// lifetime of the context, so one derivation serves all calls.
	entryKey *crypto.Key
	saltAddr []byte
}

// StoreName returns the identifier a logical database or table name is
// stored under.
func StoreName(name string, h crypto.Hash) (string, error) {
	return crypto.DigestHex(crypto.Encode(name), h)
}

func resolve(cfg *Config) (*resolvedContext, error) {
	rc := &resolvedContext{
		hash:       cfg.Hash,
		iterations: cfg.Iterations,
	}

	var err error
	if rc.dbName, err = StoreName(cfg.Database, cfg.Hash); err != nil {
		return nil, err
	}
	if rc.table, err = StoreName(cfg.Table, cfg.Hash); err != nil {
		return nil, err
	}
	if rc.saltAddr, err = crypto.Digest(crypto.Encode(saltSentinel), cfg.Hash); err != nil {
		return nil, err
	}

	if cfg.Key != nil {
		rc.baseKey = cfg.Key
	} else {
		rc.baseKey, err = crypto.ImportKey(cfg.Secret, crypto.ImportOptions{Algorithm: cfg.KDF})
		if err != nil {
			return nil, fmt.Errorf("failed to import secret: %w", err)
		}
		rc.ownsBase = true
	}

	if rc.db, err = openTable(cfg.Engine, rc.dbName, rc.table); err != nil {
		return nil, err
	}

	if err := rc.resolveSalt(cfg.Salt); err != nil {
		rc.db.Close()
		return nil, err
	}

	if rc.entryKey, err = rc.deriveEntryKey(cfg.Cipher); err != nil {
		rc.db.Close()
		return nil, err
	}

	log.Debugf("Opened %s/%s (db %.12s, table %.12s)", cfg.Database, cfg.Table, rc.dbName, rc.table)
	return rc, nil
}

// openTable opens the database and makes sure the table exists. A table
// missing from an existing database is created by reopening at the next
// version so the upgrade hook runs.
func openTable(engine *storage.Engine, dbName, table string) (*storage.DB, error) {
	upgrade := func(tx *storage.UpgradeTx, oldVersion, newVersion uint32) error {
		log.Debugf("Creating table %.12s (version %d -> %d)", table, oldVersion, newVersion)
		return tx.CreateTable(table)
	}

	var version uint32
	for attempt := 0; ; attempt++ {
		db, err := engine.Open(dbName, version, upgrade)
		if err != nil {
			if errors.Is(err, storage.ErrVersionTooLow) && attempt < maxTableUpgrades {
				version = 0
				continue
			}
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		exists, err := db.HasTable(table)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if exists {
			return db, nil
		}

		version = db.Version() + 1
		db.Close()
		if attempt >= maxTableUpgrades {
			return nil, fmt.Errorf("failed to create table: %w", storage.ErrTableNotFound)
		}
	}
}

// resolveSalt reads the stored salt, writing salt (or a random one) when
// the table has none yet.
func (rc *resolvedContext) resolveSalt(salt []byte) error {
	candidate := salt
	if len(candidate) == 0 {
		var err error
		if candidate, err = crypto.NewSalt(); err != nil {
			return err
		}
	}

	stored, err := rc.db.GetOrPut(rc.table, rc.saltAddr, candidate)
	if err != nil {
		return fmt.Errorf("failed to resolve salt: %w", err)
	}
	if len(salt) > 0 && !bytes.Equal(stored, salt) {
		log.Warnf("Configured salt differs from the stored salt, using the stored one")
	}
	rc.salt = stored
	return nil
}

func (rc *resolvedContext) deriveEntryKey(target crypto.Cipher) (*crypto.Key, error) {
	var kdf crypto.KDF
	switch rc.baseKey.Algorithm() {
	case crypto.AlgPBKDF2:
		kdf = crypto.PBKDF2Params{Hash: rc.hash, Salt: rc.salt, Iterations: rc.iterations}
	case crypto.AlgHKDF:
		kdf = crypto.HKDFParams{Hash: rc.hash, Salt: rc.salt}
	case crypto.AlgArgon2id:
		kdf = crypto.Argon2Params{Salt: rc.salt, Time: uint32(rc.iterations)}
	default:
		// Cipher keys are used as is
		return rc.baseKey, nil
	}

	key, err := crypto.DeriveKey(rc.baseKey, kdf, target, crypto.UsageEncrypt|crypto.UsageDecrypt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// addresses returns the record keys of the value and the nonce of key.
func (rc *resolvedContext) addresses(key string) ([]byte, []byte, error) {
	addr, err := crypto.Digest(crypto.Encode(key), rc.hash)
	if err != nil {
		return nil, nil, err
	}
	nonceAddr, err := crypto.Digest(crypto.Encode(key+nonceSuffix), rc.hash)
	if err != nil {
		return nil, nil, err
	}
	return addr, nonceAddr, nil
}

func (rc *resolvedContext) close() error {
	if rc.entryKey != rc.baseKey {
		rc.entryKey.Destroy()
	}
	if rc.ownsBase {
		rc.baseKey.Destroy()
	}
	return rc.db.Close()
}
