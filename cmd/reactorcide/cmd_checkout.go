package main

import (
	"flag"

	"github.com/catalystcommunity/reactorcide/internal/config"
	"github.com/catalystcommunity/reactorcide/internal/logging"
	"github.com/catalystcommunity/reactorcide/internal/sourceprep"
)

func cmdCheckout(args []string) int {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	ref := fs.String("ref", "", "ref to check out after cloning")
	workDir := fs.String("work-dir", "", "override workspace root")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return fatalf("usage: reactorcide checkout <git-url> [--ref R] [--work-dir D]")
	}

	ws, err := sourceprep.DiscoverWithOverride(*workDir)
	if err != nil {
		return fatalf("%s", err)
	}
	log := logging.New()
	prep := sourceprep.New(ws, log)
	d := &config.JobDescriptor{SourceType: config.SourceGit, SourceURL: rest[0], SourceRef: *ref}
	if _, err := prep.PrepareUntrusted(d); err != nil {
		return fatalf("%s", err)
	}
	return 0
}
