package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/illarion/lockkv/internal/core"
	"github.com/illarion/lockkv/internal/crypto"
	"github.com/illarion/lockkv/internal/keyring"
	"golang.org/x/term"
)

// EnvSecret names the environment variable holding the store secret
const EnvSecret = "LOCKKV_SECRET"

var errSecretMismatch = errors.New("secrets do not match")

// GetSecret returns the secret for the selected store from $LOCKKV_SECRET,
// then the OS keyring, then a terminal prompt.
// The caller is responsible for calling crypto.ClearBytes on the returned secret
func GetSecret(o *Options, prompt string) ([]byte, error) {
	if env := os.Getenv(EnvSecret); env != "" {
		return []byte(env), nil
	}

	secret, err := keyring.GetSecret(o.StoreID())
	switch {
	case err == nil && len(secret) > 0:
		return secret, nil
	case err != nil && !errors.Is(err, keyring.ErrNotFound):
		fmt.Fprintf(os.Stderr, "warning: keyring unavailable: %s\n", err)
	}

	return promptSecret(prompt)
}

// promptSecret reads a secret from the terminal without echo. A piped
// stdin carries values, never the secret.
func promptSecret(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: stdin is not a terminal", core.ErrNoSecret)
	}

	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, core.ErrNoSecret
	}
	return secret, nil
}

// promptNewSecret asks for a secret twice and returns it when both match
func promptNewSecret() ([]byte, error) {
	secret, err := promptSecret("Enter secret: ")
	if err != nil {
		return nil, err
	}
	again, err := promptSecret("Confirm secret: ")
	if err != nil {
		crypto.ClearBytes(secret)
		return nil, err
	}
	defer crypto.ClearBytes(again)

	if !crypto.ConstantTimeCompare(secret, again) {
		crypto.ClearBytes(secret)
		return nil, errSecretMismatch
	}
	return secret, nil
}
