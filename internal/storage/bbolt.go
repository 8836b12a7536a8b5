package storage

import (
	"bytes"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// UpgradeTx is the schema view handed to an UpgradeFunc.
type UpgradeTx struct {
	tx *bolt.Tx
}

// CreateTable creates a table if it does not exist yet.
func (u *UpgradeTx) CreateTable(name string) error {
	if err := validateTable(name); err != nil {
		return err
	}
	if _, err := u.tx.CreateBucketIfNotExists([]byte(name)); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return nil
}

func validateTable(name string) error {
	if name == "" || bytes.Equal([]byte(name), metaBucket) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	return nil
}

// DB is one connection to a database. Every call is its own bbolt
// transaction, so each call is atomic but sequences of calls are not.
type DB struct {
	engine  *Engine
	h       *handle
	version uint32

	mu     sync.RWMutex
	closed bool
}

// Version returns the version the connection was opened at.
func (d *DB) Version() uint32 {
	return d.version
}

// Close releases the connection. Data is left untouched.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.engine.release(d.h)
}

func (d *DB) view(fn func(tx *bolt.Tx) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	d.h.mu.RLock()
	defer d.h.mu.RUnlock()
	if d.h.db == nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, d.h.name)
	}
	return d.h.db.View(fn)
}

func (d *DB) update(fn func(tx *bolt.Tx) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	d.h.mu.RLock()
	defer d.h.mu.RUnlock()
	if d.h.db == nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, d.h.name)
	}
	return d.h.db.Update(fn)
}

func bucket(tx *bolt.Tx, table string) (*bolt.Bucket, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	b := tx.Bucket([]byte(table))
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return b, nil
}

// HasTable reports whether the table exists.
func (d *DB) HasTable(table string) (bool, error) {
	var exists bool
	err := d.view(func(tx *bolt.Tx) error {
		exists = tx.Bucket([]byte(table)) != nil
		return nil
	})
	return exists, err
}

// Tables lists the tables of the database.
func (d *DB) Tables() ([]string, error) {
	var tables []string
	err := d.view(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if !bytes.Equal(name, metaBucket) {
				tables = append(tables, string(name))
			}
			return nil
		})
	})
	return tables, err
}

// Get returns a copy of the value stored under key, or nil if there is none.
func (d *DB) Get(table string, key []byte) ([]byte, error) {
	var value []byte
	err := d.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, table)
		if err != nil {
			return err
		}
		// Make a copy since the slice is only valid during the transaction
		value = clone(b.Get(key))
		return nil
	})
	return value, err
}

// Put stores value under key, replacing any previous value.
func (d *DB) Put(table string, key, value []byte) error {
	return d.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, table)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
}

// GetOrPut returns the value stored under key. When there is none it
// stores value and returns it. Read and write share one transaction.
func (d *DB) GetOrPut(table string, key, value []byte) ([]byte, error) {
	var stored []byte
	err := d.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, table)
		if err != nil {
			return err
		}
		if existing := b.Get(key); existing != nil {
			stored = clone(existing)
			return nil
		}
		stored = clone(value)
		return b.Put(key, value)
	})
	return stored, err
}

// Delete removes key. Deleting a missing key is not an error.
func (d *DB) Delete(table string, key []byte) error {
	return d.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, table)
		if err != nil {
			return err
		}
		return b.Delete(key)
	})
}

// Clear removes every record of the table except the keys in keep, in one
// transaction. The table itself remains.
func (d *DB) Clear(table string, keep ...[]byte) error {
	return d.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, table)
		if err != nil {
			return err
		}
		kept := make(map[string][]byte, len(keep))
		for _, k := range keep {
			if v := b.Get(k); v != nil {
				kept[string(k)] = clone(v)
			}
		}

		name := []byte(table)
		if err := tx.DeleteBucket(name); err != nil {
			return fmt.Errorf("failed to clear bucket %s: %w", table, err)
		}
		if b, err = tx.CreateBucket(name); err != nil {
			return fmt.Errorf("failed to recreate bucket %s: %w", table, err)
		}
		for k, v := range kept {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of records in the table.
func (d *DB) Count(table string) (int, error) {
	var n int
	err := d.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, table)
		if err != nil {
			return err
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// ForEach calls fn for every record of the table in key order. The slices
// are only valid during the call.
func (d *DB) ForEach(table string, fn func(key, value []byte) error) error {
	return d.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, table)
		if err != nil {
			return err
		}
		return b.ForEach(fn)
	})
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
