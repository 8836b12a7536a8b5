package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/lockkv/internal/keyring"
)

// Destroy deletes the whole database, every table and salt included
func Destroy(ctx context.Context, o *Options, force bool) {
	if !force && !confirm(fmt.Sprintf("Irreversibly delete database %s and all of its tables?", o.Database)) {
		fmt.Println("Cancelled")
		return
	}

	s := OpenOrExit(ctx, o)
	defer s.Engine.Close()

	if err := s.Store.Destroy(ctx); err != nil {
		HandleError(err)
	}

	if keyring.HasSecret(o.StoreID()) {
		if err := keyring.DeleteSecret(o.StoreID()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove secret from keyring: %s\n", err)
		}
	}

	fmt.Printf("✓ Destroyed database %s\n", o.Database)
}
