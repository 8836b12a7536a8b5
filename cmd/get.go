package cmd

import (
	"context"
	"os"

	"github.com/illarion/lockkv/internal/crypto"
)

// Get writes a stored value to stdout
func Get(ctx context.Context, o *Options, key string) {
	s := OpenOrExit(ctx, o)
	defer s.Close(ctx)

	value, found, err := s.Store.Get(ctx, key)
	if err != nil {
		HandleError(err)
	}
	if !found {
		s.Close(ctx)
		HandleError(errNotFound)
	}
	defer crypto.ClearBytes(value)

	if _, err := os.Stdout.Write(value); err != nil {
		HandleError(err)
	}
}
