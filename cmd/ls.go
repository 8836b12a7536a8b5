package cmd

import (
	"fmt"
)

// Ls lists the databases in the data directory
func Ls(o *Options) {
	engine, err := o.Engine()
	if err != nil {
		HandleError(err)
	}
	defer engine.Close()

	// No secret required
	infos, err := engine.ListDatabases()
	if err != nil {
		HandleError(err)
	}

	if len(infos) == 0 {
		fmt.Printf("No databases in %s\n", engine.Dir())
		return
	}

	current, err := o.DatabaseFile()
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Databases in %s:\n", engine.Dir())
	for _, info := range infos {
		marker := " "
		if info.Name == current {
			marker = "*"
		}
		fmt.Printf("  %s %.16s… v%d (%s)\n", marker, info.Name, info.Version, formatSize(info.Size))
	}
	fmt.Printf("\n* = %s\n", o.Database)
}
