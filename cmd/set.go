package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/illarion/lockkv/internal/crypto"
)

// Set stores a value. It comes from the argument, a file, or stdin.
func Set(ctx context.Context, o *Options, key string, value []byte, file string) {
	switch {
	case value != nil && file != "":
		fmt.Fprintf(os.Stderr, "Error: give either a value or -f, not both\n")
		os.Exit(1)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			HandleError(fmt.Errorf("failed to read %s: %w", file, err))
		}
		value = data
	case value == nil:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			HandleError(fmt.Errorf("failed to read stdin: %w", err))
		}
		value = data
	}
	defer crypto.ClearBytes(value)

	s := OpenOrExit(ctx, o)
	defer s.Close(ctx)

	if err := s.Store.Set(ctx, key, value); err != nil {
		HandleError(err)
	}

	fmt.Fprintf(os.Stderr, "✓ Stored %s (%s)\n", key, formatSize(int64(len(value))))
}
