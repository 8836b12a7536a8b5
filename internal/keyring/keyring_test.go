package keyring

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestSecretLifecycle(t *testing.T) {
	keyring.MockInit()

	id := StoreID("lockkv", "store")
	if id != "lockkv/store" {
		t.Errorf("StoreID = %q", id)
	}

	if HasSecret(id) {
		t.Fatal("Secret should not exist yet")
	}
	if _, err := GetSecret(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := SaveSecret(id, []byte("s3cret")); err != nil {
		t.Fatalf("SaveSecret failed: %v", err)
	}
	if !HasSecret(id) {
		t.Error("Secret should exist after save")
	}
	secret, err := GetSecret(id)
	if err != nil {
		t.Fatalf("GetSecret failed: %v", err)
	}
	if string(secret) != "s3cret" {
		t.Errorf("Secret mismatch: got %q", secret)
	}

	if err := DeleteSecret(id); err != nil {
		t.Fatalf("DeleteSecret failed: %v", err)
	}
	if HasSecret(id) {
		t.Error("Secret should be gone after delete")
	}
	if err := DeleteSecret(id); err != nil {
		t.Errorf("Deleting a missing secret should be a no-op: %v", err)
	}
}
