package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/catalystcommunity/reactorcide/internal/container"
	"github.com/catalystcommunity/reactorcide/internal/logging"
	"github.com/catalystcommunity/reactorcide/internal/orchestrator"
)

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	df := bindDescriptorFlags(fs)
	dryRun := fs.Bool("dry-run", false, "print the equivalent container invocation instead of running it")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	d, err := resolveDescriptor(fs, df)
	if err != nil {
		return fatalf("%s", err)
	}

	log := logging.New()
	defer log.Sync()

	if *dryRun {
		env := map[string]string{}
		if jobEnv, err := d.ParsedJobEnv(d.WorkDir); err == nil {
			for k, v := range jobEnv {
				env[k] = v
			}
		}
		for k, v := range d.ContainerEnv() {
			env[k] = v
		}
		plan := container.Plan{
			Env:           env,
			HostJobPath:   d.WorkDir,
			WorkspaceRoot: "/job",
			SecretsFile:   d.SecretsFile,
			WorkDir:       d.EffectiveJobDir(),
			Image:         d.RunnerImage,
			JobCommand:    []string{"sh", "-c", d.JobCommand},
		}
		fmt.Println(container.DryRunCommand(plan))
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := orchestrator.Run(ctx, d, d.PluginDir, log, os.Stdout, os.Stderr)
	if result.Err != nil {
		log.Error("run failed", result.Err)
	}
	return result.ExitCode
}
