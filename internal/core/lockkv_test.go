package core

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/illarion/lockkv/internal/crypto"
	"github.com/illarion/lockkv/internal/storage"
)

// Keep derivation cheap in tests
const testIterations = 1000

func newTestEngine(t *testing.T) *storage.Engine {
	t.Helper()
	engine, err := storage.NewEngine(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func newTestStorage(t *testing.T, engine *storage.Engine, cfg Config) *EncryptStorage {
	t.Helper()
	cfg.Engine = engine
	if cfg.Secret == nil && cfg.Key == nil {
		cfg.Secret = []byte("k")
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = testIterations
	}

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Ready(context.Background()); err != nil {
		t.Fatalf("Resolution failed: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func mustSet(t *testing.T, s *EncryptStorage, key, value string) {
	t.Helper()
	if err := s.SetString(context.Background(), key, value); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

func mustGet(t *testing.T, s *EncryptStorage, key string) (string, bool) {
	t.Helper()
	value, found, err := s.GetString(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return value, found
}

func recordCount(t *testing.T, s *EncryptStorage) int {
	t.Helper()
	n, err := s.rc.db.Count(s.rc.table)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	return n
}

func TestNewRequiresSecret(t *testing.T) {
	engine := newTestEngine(t)

	for _, secret := range [][]byte{nil, {}} {
		if _, err := New(Config{Engine: engine, Secret: secret}); !errors.Is(err, ErrNoSecret) {
			t.Errorf("Expected ErrNoSecret for %q, got %v", secret, err)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	engine := newTestEngine(t)

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	rsaKey, err := crypto.ImportKey(der, crypto.ImportOptions{Format: crypto.FormatPKIX, Algorithm: crypto.AlgRSAOAEP})
	if err != nil {
		t.Fatalf("ImportKey failed: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"RSA key", Config{Key: rsaKey}, ErrUnsupportedKey},
		{"cipher as KDF", Config{Secret: []byte("k"), KDF: crypto.AlgAESGCM}, crypto.ErrUnsupportedAlgorithm},
		{"unknown hash", Config{Secret: []byte("k"), Hash: crypto.Hash(99)}, crypto.ErrUnsupportedHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Engine = engine
			if _, err := New(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestScenario(t *testing.T) {
	engine := newTestEngine(t)
	s := newTestStorage(t, engine, Config{Secret: []byte("k")})

	mustSet(t, s, "a", "1")
	mustSet(t, s, "b", "2")

	if v, found := mustGet(t, s, "a"); !found || v != "1" {
		t.Errorf("get(a) = %q, %v; want 1", v, found)
	}
	if v, found := mustGet(t, s, "b"); !found || v != "2" {
		t.Errorf("get(b) = %q, %v; want 2", v, found)
	}

	if err := s.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := mustGet(t, s, "a"); found {
		t.Error("a should be gone after delete")
	}
	if v, found := mustGet(t, s, "b"); !found || v != "2" {
		t.Errorf("get(b) = %q, %v; want 2", v, found)
	}

	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, found := mustGet(t, s, "b"); found {
		t.Error("b should be gone after clear")
	}
	if n := recordCount(t, s); n != 1 {
		t.Errorf("Expected only the salt record after clear, got %d records", n)
	}
}

func TestRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	s := newTestStorage(t, engine, Config{Secret: []byte("round trip")})
	ctx := context.Background()

	large := make([]byte, 1<<20)
	if _, err := rand.Read(large); err != nil {
		t.Fatalf("rand failed: %v", err)
	}

	tests := []struct {
		name  string
		key   string
		value []byte
	}{
		{"empty value", "empty", []byte{}},
		{"text", "greeting", []byte("hello world")},
		{"unicode key", "ключ 🔑", []byte("значение")},
		{"empty key", "", []byte("nameless")},
		{"binary", "bin", []byte{0x00, 0xFF, 0x10, 0x00}},
		{"large", "large", large},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Set(ctx, tt.key, tt.value); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, found, err := s.Get(ctx, tt.key)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !found {
				t.Fatal("Value not found")
			}
			if !bytes.Equal(got, tt.value) {
				t.Errorf("Data mismatch for %q", tt.key)
			}
		})
	}

	// Overwrite
	if err := s.Set(ctx, "greeting", []byte("bye")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, _ := mustGet(t, s, "greeting"); v != "bye" {
		t.Errorf("Overwrite not visible: got %q", v)
	}
}

func TestFreshNoncePerWrite(t *testing.T) {
	engine := newTestEngine(t)
	s := newTestStorage(t, engine, Config{})

	addr, nonceAddr, err := s.rc.addresses("k")
	if err != nil {
		t.Fatalf("addresses failed: %v", err)
	}

	var ciphertexts, nonces [][]byte
	for i := 0; i < 2; i++ {
		mustSet(t, s, "k", "same value")
		ct, _ := s.rc.db.Get(s.rc.table, addr)
		nonce, _ := s.rc.db.Get(s.rc.table, nonceAddr)
		if len(nonce) != crypto.DefaultNonceSize {
			t.Errorf("Expected %d byte nonce, got %d", crypto.DefaultNonceSize, len(nonce))
		}
		ciphertexts = append(ciphertexts, ct)
		nonces = append(nonces, nonce)
	}

	if bytes.Equal(nonces[0], nonces[1]) {
		t.Error("Nonce reused across writes")
	}
	if bytes.Equal(ciphertexts[0], ciphertexts[1]) {
		t.Error("Identical ciphertext for repeated writes")
	}
}

func TestCrossInstanceEquivalence(t *testing.T) {
	engine := newTestEngine(t)
	cfg := Config{Secret: []byte("shared"), Database: "db", Table: "t", Salt: []byte("saltsalt")}

	a := newTestStorage(t, engine, cfg)
	b := newTestStorage(t, engine, cfg)

	mustSet(t, a, "from-a", "A")
	mustSet(t, b, "from-b", "B")

	if v, found := mustGet(t, b, "from-a"); !found || v != "A" {
		t.Errorf("b read %q, %v; want A", v, found)
	}
	if v, found := mustGet(t, a, "from-b"); !found || v != "B" {
		t.Errorf("a read %q, %v; want B", v, found)
	}
}

func TestIsolationBySecret(t *testing.T) {
	engine := newTestEngine(t)

	a := newTestStorage(t, engine, Config{Secret: []byte("secret-a")})
	b := newTestStorage(t, engine, Config{Secret: []byte("secret-b")})

	mustSet(t, a, "k", "private")

	_, found, err := b.GetString(context.Background(), "k")
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed, got %v", err)
	}
	if found {
		t.Error("Value must not be reported as found")
	}
}

func TestIsolationByIterations(t *testing.T) {
	engine := newTestEngine(t)

	a := newTestStorage(t, engine, Config{Iterations: 1000})
	b := newTestStorage(t, engine, Config{Iterations: 1001})

	mustSet(t, a, "k", "v")

	if _, _, err := b.Get(context.Background(), "k"); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed, got %v", err)
	}
}

func TestStoredSaltWins(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	a := newTestStorage(t, engine, Config{Salt: []byte("salt-one")})
	mustSet(t, a, "k", "v")

	// A differing configured salt loses to the stored one
	b := newTestStorage(t, engine, Config{Salt: []byte("salt-two")})
	if !bytes.Equal(b.rc.salt, []byte("salt-one")) {
		t.Errorf("Expected stored salt, got %q", b.rc.salt)
	}
	if v, found := mustGet(t, b, "k"); !found || v != "v" {
		t.Errorf("Read with stored salt = %q, %v; want v", v, found)
	}

	// Replacing the stored salt breaks authentication for new instances
	if err := a.rc.db.Put(a.rc.table, a.rc.saltAddr, []byte("salt-three")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	c := newTestStorage(t, engine, Config{})
	if _, _, err := c.Get(ctx, "k"); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed, got %v", err)
	}
}

func TestRandomSaltPersisted(t *testing.T) {
	engine := newTestEngine(t)

	a := newTestStorage(t, engine, Config{})
	if len(a.rc.salt) != crypto.DefaultSaltSize {
		t.Errorf("Expected %d byte salt, got %d", crypto.DefaultSaltSize, len(a.rc.salt))
	}
	mustSet(t, a, "k", "v")
	a.Close(context.Background())

	b := newTestStorage(t, engine, Config{})
	if v, found := mustGet(t, b, "k"); !found || v != "v" {
		t.Errorf("Reopened read = %q, %v; want v", v, found)
	}
}

func TestIsolationByDatabaseAndTable(t *testing.T) {
	engine := newTestEngine(t)

	base := newTestStorage(t, engine, Config{Database: "db1", Table: "t1"})
	mustSet(t, base, "k", "v")

	tests := []struct {
		name string
		cfg  Config
	}{
		{"other table", Config{Database: "db1", Table: "t2"}},
		{"other database", Config{Database: "db2", Table: "t1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStorage(t, engine, tt.cfg)
			if _, found := mustGet(t, s, "k"); found {
				t.Error("Value leaked across stores")
			}
		})
	}

	// The second table in db1 was added by a version upgrade
	if got := base.rc.db.Version(); got != 1 {
		t.Errorf("Base connection version = %d, want 1", got)
	}
	tables, err := base.rc.db.Tables()
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if len(tables) != 2 {
		t.Errorf("Expected 2 tables in db1, got %d", len(tables))
	}
}

func TestNoPlaintextAtRest(t *testing.T) {
	engine := newTestEngine(t)
	s := newTestStorage(t, engine, Config{Database: "plain-db", Table: "plain-table"})

	mustSet(t, s, "visible-key", "visible-value")

	infos, err := engine.ListDatabases()
	if err != nil {
		t.Fatalf("ListDatabases failed: %v", err)
	}
	for _, info := range infos {
		if strings.Contains(info.Name, "plain") {
			t.Errorf("Database file named after logical name: %s", info.Name)
		}
	}

	tables, err := s.rc.db.Tables()
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	for _, table := range tables {
		if strings.Contains(table, "plain") {
			t.Errorf("Table named after logical name: %s", table)
		}
		err := s.rc.db.ForEach(table, func(k, v []byte) error {
			for _, needle := range []string{"visible-key", "visible-value"} {
				if bytes.Contains(k, []byte(needle)) || bytes.Contains(v, []byte(needle)) {
					return fmt.Errorf("found %q at rest", needle)
				}
			}
			return nil
		})
		if err != nil {
			t.Error(err)
		}
	}
}

func TestClearKeepsSalt(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	cfg := Config{Secret: []byte("k"), Salt: []byte("fixed-salt")}

	s := newTestStorage(t, engine, cfg)
	mustSet(t, s, "a", "1")
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Errorf("Len after clear = %d, want 0", n)
	}

	// The instance keeps working after clear
	mustSet(t, s, "b", "2")
	if v, found := mustGet(t, s, "b"); !found || v != "2" {
		t.Errorf("get(b) = %q, %v; want 2", v, found)
	}

	// And so does a fresh one with the same configuration
	fresh := newTestStorage(t, engine, cfg)
	mustSet(t, fresh, "c", "3")
	if v, found := mustGet(t, fresh, "c"); !found || v != "3" {
		t.Errorf("get(c) = %q, %v; want 3", v, found)
	}
	if v, found := mustGet(t, fresh, "b"); !found || v != "2" {
		t.Errorf("get(b) from fresh instance = %q, %v; want 2", v, found)
	}
}

func TestClearDuringResolution(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	s := newTestStorage(t, engine, Config{})

	for i := 0; i < 20; i++ {
		mustSet(t, s, "a", "1")

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Clear(ctx); err != nil {
				t.Errorf("Clear failed: %v", err)
			}
		}()
		other := newTestStorage(t, engine, Config{})
		wg.Wait()

		stored, err := s.rc.db.Get(s.rc.table, s.rc.saltAddr)
		if err != nil {
			t.Fatalf("Failed to read salt: %v", err)
		}
		if !bytes.Equal(stored, s.rc.salt) || !bytes.Equal(other.rc.salt, s.rc.salt) {
			t.Fatalf("Round %d: salt changed across clear", i)
		}

		key := fmt.Sprintf("k%d", i)
		mustSet(t, other, key, key)
		other.Close(ctx)

		fresh := newTestStorage(t, engine, Config{})
		if v, found := mustGet(t, fresh, key); !found || v != key {
			t.Fatalf("Round %d: get(%s) from fresh instance = %q, %v", i, key, v, found)
		}
		fresh.Close(ctx)
	}
}

func TestDelete(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	s := newTestStorage(t, engine, Config{})

	mustSet(t, s, "a", "1")
	mustSet(t, s, "b", "2")

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := mustGet(t, s, "a"); found {
		t.Error("a should be gone")
	}
	if v, found := mustGet(t, s, "b"); !found || v != "2" {
		t.Errorf("get(b) = %q, %v; want 2", v, found)
	}

	// Both records of a are gone
	if n := recordCount(t, s); n != 3 {
		t.Errorf("Expected 3 records (b, its nonce, salt), got %d", n)
	}

	if err := s.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Deleting a missing key should be a no-op: %v", err)
	}
}

func TestLen(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	s := newTestStorage(t, engine, Config{})

	for i := 0; i < 5; i++ {
		mustSet(t, s, fmt.Sprintf("k%d", i), "v")
	}
	mustSet(t, s, "k0", "overwritten")

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Len = %d, want 5", n)
	}
}

func TestMissingNonceIsNotFound(t *testing.T) {
	engine := newTestEngine(t)
	s := newTestStorage(t, engine, Config{})

	mustSet(t, s, "k", "v")
	_, nonceAddr, _ := s.rc.addresses("k")
	if err := s.rc.db.Delete(s.rc.table, nonceAddr); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, found := mustGet(t, s, "k"); found {
		t.Error("Value without nonce should be reported as not found")
	}
}

func TestCorruptedValue(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		corrupt func(ct, nonce []byte) (newCT, newNonce []byte)
	}{
		{"flipped ciphertext bit", func(ct, nonce []byte) ([]byte, []byte) {
			ct[0] ^= 0x01
			return ct, nonce
		}},
		{"truncated ciphertext", func(ct, nonce []byte) ([]byte, []byte) {
			return ct[:4], nonce
		}},
		{"wrong nonce", func(ct, nonce []byte) ([]byte, []byte) {
			nonce[0] ^= 0x01
			return ct, nonce
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStorage(t, engine, Config{Table: tt.name})
			mustSet(t, s, "k", "value")

			addr, nonceAddr, _ := s.rc.addresses("k")
			ct, _ := s.rc.db.Get(s.rc.table, addr)
			nonce, _ := s.rc.db.Get(s.rc.table, nonceAddr)
			ct, nonce = tt.corrupt(ct, nonce)
			s.rc.db.Put(s.rc.table, addr, ct)
			s.rc.db.Put(s.rc.table, nonceAddr, nonce)

			if _, _, err := s.Get(ctx, "k"); !errors.Is(err, ErrAuthFailed) {
				t.Errorf("Expected ErrAuthFailed, got %v", err)
			}
		})
	}
}

func TestCloseKeepsData(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	cfg := Config{Salt: []byte("salt")}

	s := newTestStorage(t, engine, cfg)
	mustSet(t, s, "k", "v")
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Errorf("Second Close should be a no-op: %v", err)
	}

	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Get, got %v", err)
	}
	if err := s.Set(ctx, "k", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Set, got %v", err)
	}
	if err := s.Clear(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Clear, got %v", err)
	}

	reopened := newTestStorage(t, engine, cfg)
	if v, found := mustGet(t, reopened, "k"); !found || v != "v" {
		t.Errorf("Reopened read = %q, %v; want v", v, found)
	}
}

func TestDestroy(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	cfg := Config{Database: "doomed", Salt: []byte("salt")}

	s := newTestStorage(t, engine, cfg)
	mustSet(t, s, "k", "v")

	// Destroy refuses while another connection is open
	other := newTestStorage(t, engine, cfg)
	if err := s.Destroy(ctx); !errors.Is(err, storage.ErrDatabaseInUse) {
		t.Fatalf("Expected ErrDatabaseInUse, got %v", err)
	}
	other.Close(ctx)

	// s is already closed by the failed Destroy, deletion can be retried
	if err := s.Destroy(ctx); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if err := s.Destroy(ctx); err != nil {
		t.Errorf("Second Destroy should be a no-op: %v", err)
	}
	if err := s.Set(ctx, "k", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Destroy, got %v", err)
	}

	infos, err := engine.ListDatabases()
	if err != nil {
		t.Fatalf("ListDatabases failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected no databases after destroy, got %d", len(infos))
	}

	fresh := newTestStorage(t, engine, cfg)
	if _, found := mustGet(t, fresh, "k"); found {
		t.Error("Value survived destroy")
	}
	if n := recordCount(t, fresh); n != 1 {
		t.Errorf("Expected only the salt record, got %d", n)
	}
}

func TestResolutionError(t *testing.T) {
	engine := newTestEngine(t)
	engine.Close()

	s, err := New(Config{Engine: engine, Secret: []byte("k"), Iterations: testIterations})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if err := s.Ready(ctx); !errors.Is(err, storage.ErrEngineClosed) {
		t.Errorf("Expected ErrEngineClosed from Ready, got %v", err)
	}
	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, storage.ErrEngineClosed) {
		t.Errorf("Expected ErrEngineClosed from Get, got %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Errorf("Close after failed resolution: %v", err)
	}
}

func TestReadyHonoursContext(t *testing.T) {
	engine := newTestEngine(t)
	s := newTestStorage(t, engine, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Resolution already finished, so either outcome is valid
	if err := s.Ready(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestAlternateKeys(t *testing.T) {
	engine := newTestEngine(t)

	aesKey, err := crypto.ImportKey(bytes.Repeat([]byte{7}, 32), crypto.ImportOptions{Algorithm: crypto.AlgAESGCM})
	if err != nil {
		t.Fatalf("ImportKey failed: %v", err)
	}
	hkdfKey, err := crypto.ImportKey([]byte("high-entropy-secret"), crypto.ImportOptions{Algorithm: crypto.AlgHKDF})
	if err != nil {
		t.Fatalf("ImportKey failed: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"sha512 pbkdf2", Config{Hash: crypto.SHA512}},
		{"sha3 digest", Config{Hash: crypto.SHA3_256}},
		{"chacha target", Config{Cipher: crypto.ChaCha20Poly1305{}}},
		{"aes128 target", Config{Cipher: crypto.AESGCM{KeyBits: 128}}},
		{"hkdf secret", Config{KDF: crypto.AlgHKDF}},
		{"hkdf key", Config{Key: hkdfKey}},
		{"argon2id", Config{KDF: crypto.AlgArgon2id, Iterations: 1}},
		{"raw aes key", Config{Key: aesKey}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Table = tt.name
			s := newTestStorage(t, engine, tt.cfg)
			mustSet(t, s, "k", tt.name)
			if v, found := mustGet(t, s, "k"); !found || v != tt.name {
				t.Errorf("Round trip = %q, %v", v, found)
			}

			// A second instance derives the same key
			again := newTestStorage(t, engine, tt.cfg)
			if v, found := mustGet(t, again, "k"); !found || v != tt.name {
				t.Errorf("Second instance read = %q, %v", v, found)
			}
		})
	}
}

func TestConcurrentOperations(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	s := newTestStorage(t, engine, Config{})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			if err := s.SetString(ctx, key, key); err != nil {
				errs <- err
				return
			}
			v, found, err := s.GetString(ctx, key)
			if err != nil {
				errs <- err
				return
			}
			if !found || v != key {
				errs <- fmt.Errorf("%s: got %q, %v", key, v, found)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	if n, _ := s.Len(ctx); n != 10 {
		t.Errorf("Len = %d, want 10", n)
	}
}

func TestDefaultDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDir, dir)

	got, err := DefaultDir()
	if err != nil {
		t.Fatalf("DefaultDir failed: %v", err)
	}
	if got != dir {
		t.Errorf("DefaultDir = %q, want %q", got, dir)
	}
}

func TestStoreName(t *testing.T) {
	a, err := StoreName("store", crypto.SHA256)
	if err != nil {
		t.Fatalf("StoreName failed: %v", err)
	}
	b, _ := StoreName("store", crypto.SHA256)
	c, _ := StoreName("other", crypto.SHA256)

	if a != b {
		t.Error("StoreName is not deterministic")
	}
	if a == c {
		t.Error("Different names share an identifier")
	}
	if len(a) != 64 || strings.Contains(a, "store") {
		t.Errorf("Unexpected identifier %q", a)
	}
}

func TestSharedAddressSpace(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	s := newTestStorage(t, engine, Config{})

	_, nonceAddr, err := s.rc.addresses("a")
	if err != nil {
		t.Fatalf("addresses failed: %v", err)
	}
	valueAddr, _, err := s.rc.addresses("a" + nonceSuffix)
	if err != nil {
		t.Fatalf("addresses failed: %v", err)
	}
	if !bytes.Equal(nonceAddr, valueAddr) {
		t.Fatal("Expected a.nonce to address the nonce of a")
	}
	saltAddr, _, _ := s.rc.addresses(saltSentinel)
	if !bytes.Equal(saltAddr, s.rc.saltAddr) {
		t.Fatal("Expected the sentinel key to address the salt")
	}

	// Overwriting the nonce of a breaks authentication of a
	mustSet(t, s, "a", "1")
	mustSet(t, s, "a"+nonceSuffix, "x")
	if _, _, err := s.Get(ctx, "a"); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed, got %v", err)
	}
}
