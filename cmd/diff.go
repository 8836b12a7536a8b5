package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/lockkv/internal/core"
	"github.com/illarion/lockkv/internal/crypto"
)

// Diff compares a stored value with a local file
func Diff(ctx context.Context, o *Options, key, file string) {
	local, err := os.ReadFile(file)
	if err != nil {
		HandleError(fmt.Errorf("failed to read %s: %w", file, err))
	}
	defer crypto.ClearBytes(local)

	s := OpenOrExit(ctx, o)
	defer s.Close(ctx)

	stored, found, err := s.Store.Get(ctx, key)
	if err != nil {
		HandleError(err)
	}
	if !found {
		s.Close(ctx)
		HandleError(errNotFound)
	}
	defer crypto.ClearBytes(stored)

	out := core.UnifiedDiff(key, stored, local)
	if out == "" {
		fmt.Printf("%s: unchanged\n", key)
		return
	}
	fmt.Print(out)

	if core.IsText(stored) && core.IsText(local) {
		added, removed := core.DiffStats(stored, local)
		fmt.Printf("\n%s: +%d -%d lines\n", key, added, removed)
	}
}
