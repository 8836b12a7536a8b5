package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/illarion/lockkv/internal/security"
	bolt "go.etcd.io/bbolt"
)

const (
	// dbExt is appended to a database name to form its file name.
	dbExt = ".db"

	// dbTimeout bounds how long Open waits for the bbolt file lock.
	dbTimeout = time.Second

	filePerm = 0600
	dirPerm  = 0700
)

var (
	ErrClosed        = errors.New("database connection closed")
	ErrDatabaseInUse = errors.New("database has open connections")
	ErrVersionTooLow = errors.New("requested version is lower than the stored version")
	ErrTableNotFound = errors.New("table not found")
	ErrInvalidName   = errors.New("invalid database name")
	ErrInvalidTable  = errors.New("invalid table name")
	ErrEngineClosed  = errors.New("storage engine closed")
	ErrUnavailable   = errors.New("database file could not be reopened")
)

// Internal bucket holding database metadata. Table names may not collide with it.
var (
	metaBucket  = []byte("__meta__")
	metaVersion = []byte("version")
	metaCreated = []byte("created")
)

// UpgradeFunc runs inside the write transaction that moves a database from
// oldVersion to newVersion. oldVersion is 0 for a new database.
type UpgradeFunc func(tx *UpgradeTx, oldVersion, newVersion uint32) error

// DatabaseInfo describes a database file in the data directory.
type DatabaseInfo struct {
	Name    string
	Version uint32
	Size    int64
}

// Engine manages the bbolt databases kept in one data directory.
// Connections to the same database share one bbolt handle.
type Engine struct {
	paths *security.PathValidator

	mu     sync.Mutex
	open   map[string]*handle
	closed bool
}

type handle struct {
	name string
	path string

	mu   sync.RWMutex // guards db during Compact
	db   *bolt.DB     // nil after a failed reopen
	refs int
}

// reopen opens the bbolt file of h again. The caller holds h.mu for writing.
func (h *handle) reopen() error {
	db, err := bolt.Open(h.path, filePerm, &bolt.Options{Timeout: dbTimeout})
	if err != nil {
		h.db = nil
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, h.name, err)
	}
	h.db = db
	return nil
}

// NewEngine opens (creating if needed) the data directory at dir.
func NewEngine(dir string) (*Engine, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	paths, err := security.New(dir)
	if err != nil {
		return nil, err
	}

	return &Engine{
		paths: paths,
		open:  make(map[string]*handle),
	}, nil
}

// Dir returns the absolute data directory path.
func (e *Engine) Dir() string {
	return e.paths.Dir()
}

// Close closes every open database handle and the engine itself.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	for name, h := range e.open {
		if h.db == nil {
			delete(e.open, name)
			continue
		}
		if err := h.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", name, err))
		}
		delete(e.open, name)
	}
	if err := e.paths.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) fileName(name string) (string, error) {
	if name == "" || strings.HasSuffix(name, ".compact") || strings.HasSuffix(name, ".backup") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	file := name + dbExt
	if err := e.paths.ValidateName(file); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return file, nil
}

// Open opens a connection to the named database, creating it when missing.
//
// Version 0 opens the database at its current version (1 for a new
// database). When version is greater than the stored version, upgrade runs
// in the same transaction that records the new version. A version lower
// than the stored one fails with ErrVersionTooLow.
func (e *Engine) Open(name string, version uint32, upgrade UpgradeFunc) (*DB, error) {
	file, err := e.fileName(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	h, ok := e.open[name]
	if !ok {
		path, err := e.paths.Path(file)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
		}
		db, err := bolt.Open(path, filePerm, &bolt.Options{Timeout: dbTimeout})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		h = &handle{name: name, path: path, db: db}
	}

	var current uint32
	h.mu.RLock()
	if h.db == nil {
		h.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, name)
	}
	err = h.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", metaBucket, err)
		}

		stored := decodeVersion(meta.Get(metaVersion))
		target := version
		if target == 0 {
			target = max(stored, 1)
		}
		if target < stored {
			return fmt.Errorf("%w: %d < %d", ErrVersionTooLow, target, stored)
		}
		current = target
		if target == stored {
			return nil
		}

		if stored == 0 {
			created, _ := time.Now().MarshalBinary()
			if err := meta.Put(metaCreated, created); err != nil {
				return err
			}
		}

		log.Debugf("Upgrading database %s from version %d to %d", name, stored, target)
		if upgrade != nil {
			if err := upgrade(&UpgradeTx{tx: tx}, stored, target); err != nil {
				return fmt.Errorf("upgrade to version %d failed: %w", target, err)
			}
		}
		return meta.Put(metaVersion, encodeVersion(target))
	})
	h.mu.RUnlock()
	if err != nil {
		if !ok {
			h.db.Close()
		}
		return nil, err
	}

	if !ok {
		e.open[name] = h
	}
	h.refs++

	return &DB{engine: e, h: h, version: current}, nil
}

// release drops one reference to h, closing the bbolt handle with the last one.
func (e *Engine) release(h *handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h.refs--
	if h.refs > 0 {
		return nil
	}

	if e.open[h.name] == h {
		delete(e.open, h.name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

// DeleteDatabase removes the named database file. It fails with
// ErrDatabaseInUse while connections are open. Deleting a database that
// does not exist is not an error.
func (e *Engine) DeleteDatabase(name string) error {
	file, err := e.fileName(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if h, ok := e.open[name]; ok && h.refs > 0 {
		return fmt.Errorf("%w: %s (%d)", ErrDatabaseInUse, name, h.refs)
	}

	if err := e.paths.RemoveInRoot(file); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}
	log.Debugf("Deleted database %s", name)
	return nil
}

// ListDatabases returns every database in the data directory.
func (e *Engine) ListDatabases() ([]DatabaseInfo, error) {
	entries, err := e.paths.ListInRoot()
	if err != nil {
		return nil, err
	}

	var infos []DatabaseInfo
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), dbExt)
		if !ok || name == "" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		version, err := e.storedVersion(name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, DatabaseInfo{Name: name, Version: version, Size: info.Size()})
	}
	return infos, nil
}

// storedVersion reads the version of a database, through the shared handle
// when it is open and with a short read-only open otherwise.
func (e *Engine) storedVersion(name string) (uint32, error) {
	e.mu.Lock()
	h, ok := e.open[name]
	e.mu.Unlock()

	read := func(tx *bolt.Tx) (uint32, error) {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			return 0, nil
		}
		return decodeVersion(meta.Get(metaVersion)), nil
	}

	var version uint32
	if ok {
		h.mu.RLock()
		defer h.mu.RUnlock()
		if h.db == nil {
			return 0, fmt.Errorf("%w: %s", ErrUnavailable, name)
		}
		err := h.db.View(func(tx *bolt.Tx) error {
			var err error
			version, err = read(tx)
			return err
		})
		return version, err
	}

	path, err := e.paths.Path(name + dbExt)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	db, err := bolt.Open(path, filePerm, &bolt.Options{Timeout: dbTimeout, ReadOnly: true})
	if err != nil {
		return 0, fmt.Errorf("failed to open database %s: %w", name, err)
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		var err error
		version, err = read(tx)
		return err
	})
	return version, err
}

// Compact rewrites the named database into a fresh file to reclaim space
// left by deleted records. Open connections keep working across the swap.
func (e *Engine) Compact(name string) error {
	db, err := e.Open(name, 0, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	h := db.h
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, name)
	}

	srcPath := h.path
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, filePerm, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = h.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})
	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := h.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		os.Remove(tmpPath)
		return errors.Join(fmt.Errorf("failed to backup original: %w", err), h.reopen())
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return errors.Join(fmt.Errorf("failed to replace database: %w", err), h.reopen())
	}
	os.Remove(backupPath)

	if err := h.reopen(); err != nil {
		return err
	}

	log.Debugf("Compacted database %s", name)
	return nil
}

func encodeVersion(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeVersion(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}
