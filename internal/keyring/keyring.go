package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "lockkv"

// ErrNotFound is returned when no secret is stored for a store.
var ErrNotFound = keyring.ErrNotFound

// StoreID names the keyring entry of a database/table pair
func StoreID(database, table string) string {
	return fmt.Sprintf("%s/%s", database, table)
}

// SaveSecret stores a secret in the OS keyring
func SaveSecret(storeID string, secret []byte) error {
	return keyring.Set(serviceName, storeID, string(secret))
}

// GetSecret retrieves a secret from the OS keyring
func GetSecret(storeID string) ([]byte, error) {
	secret, err := keyring.Get(serviceName, storeID)
	if err != nil {
		return nil, err
	}
	return []byte(secret), nil
}

// DeleteSecret removes a secret from the OS keyring. Deleting a missing
// secret is not an error.
func DeleteSecret(storeID string) error {
	if err := keyring.Delete(serviceName, storeID); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// HasSecret checks if a secret is stored in the keyring
func HasSecret(storeID string) bool {
	_, err := keyring.Get(serviceName, storeID)
	return err == nil
}
