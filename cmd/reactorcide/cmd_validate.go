package main

import (
	"flag"

	"github.com/catalystcommunity/reactorcide/internal/container"
	"github.com/catalystcommunity/reactorcide/internal/validate"
)

func cmdValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	df := bindDescriptorFlags(fs)
	checkFiles := fs.Bool("check-files", true, "probe the filesystem for workspace/code-dir existence")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	d, err := resolveDescriptor(fs, df)
	if err != nil {
		return fatalf("%s", err)
	}

	result := validate.Validate(d, validate.Options{
		CheckFiles:              *checkFiles,
		RequireContainerRuntime: container.UseContainer(d),
		WorkspaceRoot:           d.WorkDir,
	})

	var rows [][]string
	for _, e := range result.Errors {
		rows = append(rows, []string{"error", e.Field, e.Message, e.Suggestion})
	}
	for _, w := range result.Warnings {
		rows = append(rows, []string{"warning", w.Field, w.Message, w.Suggestion})
	}
	if len(rows) > 0 {
		printAlignedTable([]string{"kind", "field", "message", "suggestion"}, rows)
	}

	if !result.IsValid() {
		return 1
	}
	return 0
}
