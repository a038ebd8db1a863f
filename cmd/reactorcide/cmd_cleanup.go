package main

import (
	"flag"
	"fmt"

	"github.com/catalystcommunity/reactorcide/internal/sourceprep"
)

func cmdCleanup(args []string) int {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "print the removed workspace path")
	workDir := fs.String("work-dir", "", "override workspace root")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ws, err := sourceprep.DiscoverWithOverride(*workDir)
	if err != nil {
		return fatalf("%s", err)
	}
	if !ws.CleanupAllowed {
		return fatalf("cleanup is a no-op in container mode: %s is a mount", ws.Root)
	}
	if err := ws.Cleanup(); err != nil {
		return fatalf("%s", err)
	}
	if *verbose {
		fmt.Println("removed", ws.Root)
	}
	return 0
}
