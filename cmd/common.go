package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/illarion/lockkv/internal/core"
	"github.com/illarion/lockkv/internal/crypto"
	"github.com/illarion/lockkv/internal/keyring"
	"github.com/illarion/lockkv/internal/storage"
)

var errNotFound = errors.New("key not found")

// Options holds the flags shared by every command
type Options struct {
	Dir        string
	Database   string
	Table      string
	Iterations int
	Salt       string // hex
	KDF        string
	Cipher     string
	Verbose    bool
}

// RegisterFlags adds the shared flags to fs
func RegisterFlags(fs *flag.FlagSet) *Options {
	o := &Options{}
	fs.StringVar(&o.Dir, "dir", "", "Data directory (default $LOCKKV_DIR or the user config dir)")
	fs.StringVar(&o.Database, "db", core.DefaultDatabase, "Database name")
	fs.StringVar(&o.Table, "table", core.DefaultTable, "Table name")
	fs.IntVar(&o.Iterations, "iterations", 0, "Key derivation iterations (default depends on -kdf)")
	fs.StringVar(&o.Salt, "salt", "", "Hex salt used when the table is created")
	fs.StringVar(&o.KDF, "kdf", "pbkdf2", "Key derivation: pbkdf2, hkdf or argon2id")
	fs.StringVar(&o.Cipher, "cipher", "aes-gcm", "Value cipher: aes-gcm or chacha20-poly1305")
	fs.BoolVar(&o.Verbose, "v", false, "Verbose diagnostic logging to stderr")
	return o
}

// StoreID names the keyring entry for the selected store
func (o *Options) StoreID() string {
	return keyring.StoreID(o.Database, o.Table)
}

// Engine opens the data directory
func (o *Options) Engine() (*storage.Engine, error) {
	dir := o.Dir
	if dir == "" {
		var err error
		if dir, err = core.DefaultDir(); err != nil {
			return nil, err
		}
	}
	return storage.NewEngine(dir)
}

// DatabaseFile returns the on-disk name of the selected database
func (o *Options) DatabaseFile() (string, error) {
	return core.StoreName(o.Database, crypto.SHA256)
}

// Config builds a storage configuration from the flags and secret
func (o *Options) Config(engine *storage.Engine, secret []byte) (core.Config, error) {
	cfg := core.Config{
		Engine:     engine,
		Secret:     secret,
		Database:   o.Database,
		Table:      o.Table,
		Iterations: o.Iterations,
	}

	if o.Salt != "" {
		salt, err := hex.DecodeString(o.Salt)
		if err != nil {
			return cfg, fmt.Errorf("invalid -salt: %w", err)
		}
		cfg.Salt = salt
	}

	switch strings.ToLower(o.KDF) {
	case "", "pbkdf2":
		cfg.KDF = crypto.AlgPBKDF2
	case "hkdf":
		cfg.KDF = crypto.AlgHKDF
	case "argon2id", "argon2":
		cfg.KDF = crypto.AlgArgon2id
	default:
		return cfg, fmt.Errorf("unknown -kdf %q", o.KDF)
	}

	switch strings.ToLower(o.Cipher) {
	case "", "aes-gcm", "aes":
		cfg.Cipher = crypto.AESGCM{KeyBits: crypto.DefaultKeyBits}
	case "chacha20-poly1305", "chacha":
		cfg.Cipher = crypto.ChaCha20Poly1305{}
	default:
		return cfg, fmt.Errorf("unknown -cipher %q", o.Cipher)
	}

	return cfg, nil
}

// Session is an open store plus the engine behind it
type Session struct {
	Store  *core.EncryptStorage
	Engine *storage.Engine
}

// Close closes the store and the engine
func (s *Session) Close(ctx context.Context) {
	if err := s.Store.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s\n", err)
	}
	s.Engine.Close()
}

// OpenOrExit opens the selected store, exiting on error
func OpenOrExit(ctx context.Context, o *Options) *Session {
	engine, err := o.Engine()
	if err != nil {
		HandleError(err)
	}

	secret, err := GetSecret(o, "Enter secret: ")
	if err != nil {
		engine.Close()
		HandleError(err)
	}
	defer crypto.ClearBytes(secret)

	cfg, err := o.Config(engine, secret)
	if err != nil {
		engine.Close()
		HandleError(err)
	}

	store, err := core.New(cfg)
	if err != nil {
		engine.Close()
		HandleError(err)
	}
	if err := store.Ready(ctx); err != nil {
		engine.Close()
		HandleError(err)
	}

	return &Session{Store: store, Engine: engine}
}

// confirm asks a yes/no question, defaulting to no
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)

	var response string
	fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))

	return response == "y" || response == "yes"
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

// HandleError handles common errors consistently
func HandleError(err error) {
	switch {
	case errors.Is(err, core.ErrNoSecret):
		fmt.Fprintf(os.Stderr, "Error: secret required\n")
		fmt.Fprintf(os.Stderr, "Set %s or run 'lockkv keyring save'\n", EnvSecret)
	case errors.Is(err, core.ErrAuthFailed):
		fmt.Fprintf(os.Stderr, "Error: wrong secret, salt or iterations, or corrupted data\n")
	case errors.Is(err, errNotFound):
		fmt.Fprintf(os.Stderr, "Error: key not found\n")
	case errors.Is(err, storage.ErrDatabaseInUse):
		fmt.Fprintf(os.Stderr, "Error: database is in use by another process\n")
	case errors.Is(err, storage.ErrInvalidName):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Check the -db flag\n")
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(os.Stderr, "Interrupted\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}
