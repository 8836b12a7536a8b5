package cmd

import (
	"context"
	"fmt"
	"os"
)

// Remove deletes keys from the store
func Remove(ctx context.Context, o *Options, keys []string) {
	if len(keys) == 0 {
		fmt.Fprintf(os.Stderr, "Error: rm requires at least one key argument\n")
		fmt.Fprintf(os.Stderr, "Usage: lockkv rm <key> [key...]\n")
		os.Exit(1)
	}

	s := OpenOrExit(ctx, o)
	defer s.Close(ctx)

	for _, key := range keys {
		if err := s.Store.Delete(ctx, key); err != nil {
			HandleError(err)
		}
		fmt.Printf("✓ Removed %s\n", key)
	}
}
