// Package storage provides the persistent object store for lockkv on top
// of BBolt.
//
// An Engine owns a data directory. Each database is one BBolt file named
// after the database, and each table is a bucket inside it:
//   - __meta__: database version and creation time
//   - <table>: opaque key/value records
//
// Databases are versioned like IndexedDB: opening at a higher version runs
// an upgrade hook in the same transaction that stores the new version, and
// the hook is where tables get created.
//
// Connections to the same database share one BBolt handle, so several
// users in one process can work on a database at the same time. BBolt
// itself provides ACID transactions, file locking, and corruption
// detection; every DB method is a single transaction.
package storage
