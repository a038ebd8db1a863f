// Package orchestrator implements the run orchestrator (C12): the
// top-level pipeline composing the config resolver, plugin manager,
// source preparer, validator, container launcher, secret-registration
// server, and masker into the canonical lifecycle from spec.md §2.
package orchestrator

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/catalystcommunity/reactorcide/internal/config"
	"github.com/catalystcommunity/reactorcide/internal/container"
	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/logging"
	"github.com/catalystcommunity/reactorcide/internal/masker"
	"github.com/catalystcommunity/reactorcide/internal/plugin"
	"github.com/catalystcommunity/reactorcide/internal/secretsocket"
	"github.com/catalystcommunity/reactorcide/internal/sourceprep"
	"github.com/catalystcommunity/reactorcide/internal/validate"
)

// Result is what Run returns to the CLI layer: the exit code to propagate
// and, separately, any orchestration-level error (config/plugin failures
// that never reached a child process).
type Result struct {
	ExitCode int
	Err      error
}

// Run executes the full §2 "run" pipeline for a single job.
func Run(ctx context.Context, d *config.JobDescriptor, pluginDir string, log *logging.Logger, stdout, stderr io.Writer) Result {
	m := masker.New()
	mgr := plugin.NewManager(log)
	if err := mgr.LoadDir(pluginDir); err != nil {
		return Result{ExitCode: 1, Err: err}
	}

	pctx := plugin.NewContext(d)

	if err := mgr.Dispatch(plugin.PhasePreValidation, pctx); err != nil {
		return Result{ExitCode: 1, Err: err}
	}

	vr := validate.Validate(d, validate.Options{
		CheckFiles:              false,
		RequireContainerRuntime: container.UseContainer(d),
	})
	for _, w := range vr.Warnings {
		log.Warn("validation warning", "field", w.Field, "message", w.Message)
	}
	if !vr.IsValid() {
		for _, e := range vr.Errors {
			log.Error("validation error", errs.WithField(errs.KindValidation, e.Field, e.Message))
		}
		runCleanup(mgr, pctx, log)
		return Result{ExitCode: 1, Err: errs.New(errs.KindValidation, "configuration is invalid")}
	}

	if err := mgr.Dispatch(plugin.PhasePostValidation, pctx); err != nil {
		runCleanup(mgr, pctx, log)
		return Result{ExitCode: 1, Err: err}
	}

	ws, err := sourceprep.DiscoverWithOverride(d.WorkDir)
	if err != nil {
		return Result{ExitCode: 1, Err: errs.Wrap(errs.KindSource, "discovering workspace", err)}
	}
	pctx.JobPath = ws.Root

	if err := mgr.Dispatch(plugin.PhasePreSourcePrep, pctx); err != nil {
		runCleanupWithWorkspace(mgr, pctx, ws, log)
		return Result{ExitCode: 1, Err: err}
	}

	prep := sourceprep.New(ws, log)
	if _, err := prep.PrepareTrusted(d); err != nil && !errs.Is(err, errs.KindNotImplemented) {
		runCleanupWithWorkspace(mgr, pctx, ws, log)
		return Result{ExitCode: 1, Err: err}
	}
	if _, err := prep.PrepareUntrusted(d); err != nil && !errs.Is(err, errs.KindNotImplemented) {
		runCleanupWithWorkspace(mgr, pctx, ws, log)
		return Result{ExitCode: 1, Err: err}
	}

	if err := mgr.Dispatch(plugin.PhasePostSourcePrep, pctx); err != nil {
		runCleanupWithWorkspace(mgr, pctx, ws, log)
		return Result{ExitCode: 1, Err: err}
	}

	jobEnv, err := d.ParsedJobEnv(ws.Root)
	if err != nil {
		runCleanupWithWorkspace(mgr, pctx, ws, log)
		return Result{ExitCode: 1, Err: errs.Wrap(errs.KindConfig, "parsing job env", err)}
	}
	effectiveEnv := map[string]string{}
	for k, v := range jobEnv {
		effectiveEnv[k] = v
	}
	for k, v := range d.ContainerEnv() {
		effectiveEnv[k] = v
	}

	effectiveEnv, err = resolveSecretRefs(effectiveEnv, m, log)
	if err != nil {
		runCleanupWithWorkspace(mgr, pctx, ws, log)
		return Result{ExitCode: 1, Err: err}
	}

	seedMasker(d, m, effectiveEnv)

	sock := secretsocket.New(m, log)
	if err := sock.Start(); err != nil {
		runCleanupWithWorkspace(mgr, pctx, ws, log)
		return Result{ExitCode: 1, Err: err}
	}
	defer sock.Stop()

	pctx.EnvVars = map[string]string{}
	for k, v := range effectiveEnv {
		pctx.EnvVars[k] = v
	}
	pctx.EnvVars["REACTORCIDE_SECRETS_SOCKET"] = sock.SocketPath

	if err := mgr.Dispatch(plugin.PhasePreContainer, pctx); err != nil {
		runCleanupWithWorkspace(mgr, pctx, ws, log)
		return Result{ExitCode: 1, Err: err}
	}

	exitCode, execErr := execute(ctx, d, ws, pctx, m, log, stdout, stderr)

	if postErr := mgr.Dispatch(plugin.PhasePostContainer, pctx); postErr != nil && execErr == nil {
		execErr = postErr
	}

	runCleanupWithWorkspace(mgr, pctx, ws, log)

	if execErr != nil {
		return Result{ExitCode: 1, Err: execErr}
	}
	return Result{ExitCode: exitCode}
}

func execute(ctx context.Context, d *config.JobDescriptor, ws sourceprep.Workspace, pctx *plugin.Context, m *masker.Masker, log *logging.Logger, stdout, stderr io.Writer) (int, error) {
	if container.UseContainer(d) {
		runner, err := container.NewDockerRunner(log)
		if err != nil {
			return 0, err
		}
		defer runner.Close()

		plan := container.Plan{
			Env:           pctx.EnvVars,
			HostJobPath:   ws.Root,
			WorkspaceRoot: "/job",
			SecretsFile:   d.SecretsFile,
			SocketPath:    pctx.EnvVars["REACTORCIDE_SECRETS_SOCKET"],
			WorkDir:       d.EffectiveJobDir(),
			Image:         d.RunnerImage,
			JobCommand:    []string{"sh", "-c", d.JobCommand},
		}
		if fi, err := os.Stat(plan.SecretsFile); err == nil && !fi.IsDir() {
			plan.SecretsFileExists = true
		}
		if fi, err := os.Stat(plan.SocketPath); err == nil && !fi.IsDir() {
			plan.SocketExists = true
		}
		if limit, ok := pctx.Metadata["resource_limits"].(map[string]string); ok {
			plan.MemoryLimit = limit["memory"]
			plan.CPULimit = limit["cpus"]
		}
		return runner.Run(ctx, plan, m, stdout, stderr)
	}
	// Local execution runs on the host, so the container-relative job dir
	// (/job/...) is mapped onto the discovered workspace root.
	dir := d.EffectiveJobDir()
	if rel := strings.TrimPrefix(dir, "/job"); rel != dir && (rel == "" || strings.HasPrefix(rel, "/")) {
		dir = filepath.Join(ws.Root, rel)
	}
	return container.RunLocal(ctx, d.JobCommand, dir, pctx.EnvVars, m, stdout, log)
}

// seedMasker computes the §4.2 "secrets to mask" set for the run. In
// default-masking mode (secrets_list unset), the source of values is the
// job's own effective environment (parsed job_env plus REACTORCIDE_*
// exports), not the parent process's environment: the job never sees the
// orchestrator's own PATH/HOME/etc, and the point of default masking is
// to catch whatever the job itself was handed.
func seedMasker(d *config.JobDescriptor, m *masker.Masker, effectiveEnv map[string]string) {
	values, err := d.ParsedSecretsList(d.WorkDir, effectiveEnv)
	if err != nil {
		return
	}
	m.RegisterMany(values)
}

func runCleanup(mgr *plugin.Manager, pctx *plugin.Context, log *logging.Logger) {
	if err := mgr.Dispatch(plugin.PhaseCleanup, pctx); err != nil {
		log.Error("cleanup phase failed", err)
	}
}

func runCleanupWithWorkspace(mgr *plugin.Manager, pctx *plugin.Context, ws sourceprep.Workspace, log *logging.Logger) {
	runCleanup(mgr, pctx, log)
	if err := ws.Cleanup(); err != nil {
		log.Error("workspace cleanup failed", err)
	}
}
