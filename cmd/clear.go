package cmd

import (
	"context"
	"fmt"
)

// Clear removes every entry of the table, keeping its salt
func Clear(ctx context.Context, o *Options, force bool) {
	s := OpenOrExit(ctx, o)
	defer s.Close(ctx)

	n, err := s.Store.Len(ctx)
	if err != nil {
		HandleError(err)
	}
	if n == 0 {
		fmt.Println("Table is already empty")
		return
	}

	if !force && !confirm(fmt.Sprintf("Remove all %d entries from %s/%s?", n, o.Database, o.Table)) {
		fmt.Println("Cancelled")
		return
	}

	if err := s.Store.Clear(ctx); err != nil {
		HandleError(err)
	}
	fmt.Printf("✓ Cleared %d entries\n", n)
}
