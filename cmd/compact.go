package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/lockkv/internal/storage"
)

// Compact compacts the selected database to reclaim unused space
func Compact(o *Options) {
	engine, err := o.Engine()
	if err != nil {
		HandleError(err)
	}
	defer engine.Close()

	name, err := o.DatabaseFile()
	if err != nil {
		HandleError(err)
	}

	sizeBefore, ok := databaseSize(engine, name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: database %s does not exist\n", o.Database)
		os.Exit(1)
	}

	if err := engine.Compact(name); err != nil {
		HandleError(err)
	}

	sizeAfter, _ := databaseSize(engine, name)
	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}

func databaseSize(engine *storage.Engine, name string) (int64, bool) {
	infos, err := engine.ListDatabases()
	if err != nil {
		HandleError(err)
	}
	for _, info := range infos {
		if info.Name == name {
			return info.Size, true
		}
	}
	return 0, false
}
