// Command reactorcide is the runner-core CLI: run/eval a single CI job
// plus the supporting workspace, config, and git inspection subcommands.
//
// Grounded in _examples/Aureuma-si/tools/si/main.go + root_commands.go's
// string-keyed dispatch map, which the teacher prefers over a cobra-style
// command tree even though one other pack repo (kindling-sh-kindling)
// uses cobra — see SPEC_FULL.md for why the teacher's own idiom wins here.
package main

import (
	"fmt"
	"os"
)

type commandFunc func(args []string) int

var commands = map[string]commandFunc{
	"run":      cmdRun,
	"checkout": cmdCheckout,
	"copy":     cmdCopy,
	"cleanup":  cmdCleanup,
	"config":   cmdConfig,
	"validate": cmdValidate,
	"run-job":  cmdRunJob,
	"git":      cmdGit,
	"eval":     cmdEval,
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	name := os.Args[1]
	fn, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", name)
		usage()
		os.Exit(1)
	}
	os.Exit(fn(os.Args[2:]))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: reactorcide <command> [flags]")
	fmt.Fprintln(os.Stderr, "commands: run, checkout, copy, cleanup, config, validate, run-job, git, eval")
}

func fatalf(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return 1
}
