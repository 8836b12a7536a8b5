package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/lockkv/internal/core"
	"github.com/illarion/lockkv/internal/crypto"
	"github.com/illarion/lockkv/internal/keyring"
)

// KeyringSave saves the store secret to the OS keyring
func KeyringSave(ctx context.Context, o *Options) {
	secret, err := promptNewSecret()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(secret)

	// Make sure the store opens with these flags
	engine, err := o.Engine()
	if err != nil {
		HandleError(err)
	}
	defer engine.Close()

	cfg, err := o.Config(engine, secret)
	if err != nil {
		HandleError(err)
	}
	store, err := core.New(cfg)
	if err != nil {
		HandleError(err)
	}
	if err := store.Ready(ctx); err != nil {
		HandleError(err)
	}
	store.Close(ctx)

	if err := keyring.SaveSecret(o.StoreID(), secret); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Secret saved to keyring")
}

// KeyringDelete removes the store secret from the OS keyring
func KeyringDelete(o *Options) {
	if !keyring.HasSecret(o.StoreID()) {
		fmt.Println("No secret stored in keyring")
		return
	}

	if err := keyring.DeleteSecret(o.StoreID()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to remove from keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Secret removed from keyring")
}

// KeyringStatus checks if a secret is stored in the keyring
func KeyringStatus(o *Options) {
	if keyring.HasSecret(o.StoreID()) {
		fmt.Printf("Secret for %s: stored in keyring\n", o.StoreID())
	} else {
		fmt.Printf("Secret for %s: not stored\n", o.StoreID())
	}
}
