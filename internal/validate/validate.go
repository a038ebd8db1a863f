// Package validate implements the validator (C8): static, filesystem, and
// runtime-availability checks over a resolved JobDescriptor, producing a
// batched ValidationResult rather than failing on the first problem.
//
// Grounded in _examples/Aureuma-si/tools/si's own preflight-check style
// (collect every finding into a report struct, then decide pass/fail once),
// and in spec.md §4.8/§3's ValidationResult shape.
package validate

import (
	"os"
	"os/exec"
	"strings"

	"github.com/catalystcommunity/reactorcide/internal/config"
)

// Finding is one {field, message, suggestion} record (§3).
type Finding struct {
	Field      string
	Message    string
	Suggestion string
}

// Result is the two ordered sequences plus the derived validity bit.
type Result struct {
	Errors   []Finding
	Warnings []Finding
}

func (r *Result) IsValid() bool { return len(r.Errors) == 0 }

func (r *Result) addError(field, message, suggestion string) {
	r.Errors = append(r.Errors, Finding{Field: field, Message: message, Suggestion: suggestion})
}

func (r *Result) addWarning(field, message, suggestion string) {
	r.Warnings = append(r.Warnings, Finding{Field: field, Message: message, Suggestion: suggestion})
}

// Options toggles the two switches named in §4.8.
type Options struct {
	CheckFiles              bool
	RequireContainerRuntime bool
	ContainerRuntime        string // binary name on PATH; defaults to "docker"
	WorkspaceRoot           string // for filesystem checks; "" skips them even if CheckFiles
}

// Validate runs every check named in §4.8 and returns a batched Result.
// It never returns an error itself — structural problems are findings, not
// Go errors — matching §7's "recoverable, collected in batches" design.
func Validate(d *config.JobDescriptor, opts Options) *Result {
	r := &Result{}

	checkRequiredFields(d, r)
	checkPaths(d, r)
	checkEnvBlock(d, r)
	checkImage(d, r)
	checkContainerRuntime(d, opts, r)
	if opts.CheckFiles {
		checkFilesystem(d, opts, r)
	}

	return r
}

func checkRequiredFields(d *config.JobDescriptor, r *Result) {
	if strings.TrimSpace(d.CodeDir) == "" {
		r.addError("code_dir", "code_dir is required", "set --code-dir or REACTORCIDE_CODE_DIR")
	}
	if strings.TrimSpace(d.JobCommand) == "" {
		r.addError("job_command", "job_command is required", "set --job-command or REACTORCIDE_JOB_COMMAND")
	}
}

func checkPaths(d *config.JobDescriptor, r *Result) {
	if d.CodeDir != "" && !strings.HasPrefix(d.CodeDir, "/job") {
		r.addError("code_dir", "must be absolute and rooted at /job", "use a path like /job/src")
	}
	jobDir := d.EffectiveJobDir()
	if jobDir != "" && !strings.HasPrefix(jobDir, "/job") {
		r.addError("job_dir", "must be absolute and rooted at /job", "use a path like /job/src")
	}
}

var sensitiveEnvKeys = map[string]struct{}{
	"PATH": {}, "HOME": {}, "USER": {},
}

const maxEnvValueLen = 1000

func checkEnvBlock(d *config.JobDescriptor, r *Result) {
	if strings.TrimSpace(d.JobEnv) == "" {
		return
	}
	env, err := d.ParsedJobEnv(workspaceRootFor(d))
	if err != nil {
		r.addError("job_env", err.Error(), "check the env block for malformed KEY=VALUE lines")
		return
	}
	for k, v := range env {
		if _, sensitive := sensitiveEnvKeys[k]; sensitive {
			r.addWarning("job_env", "overrides "+k, "overriding "+k+" can break the job environment in unexpected ways")
		}
		if len(v) > maxEnvValueLen {
			r.addWarning("job_env", k+" value exceeds 1000 characters", "consider passing large values via a file instead")
		}
	}
}

// workspaceRootFor is a placeholder root used only to validate a job_env
// block that happens to be a path rather than inline text; the validator
// itself is not responsible for discovering the real workspace.
func workspaceRootFor(d *config.JobDescriptor) string {
	if d.WorkDir != "" {
		return d.WorkDir
	}
	return "."
}

func checkImage(d *config.JobDescriptor, r *Result) {
	image := strings.TrimSpace(d.RunnerImage)
	if image == "" {
		return
	}
	if strings.Contains(image, " ") {
		r.addWarning("runner_image", "image name contains a space", "image references may not contain whitespace")
	}
	if !strings.Contains(image, ":") {
		r.addWarning("runner_image", "image has no explicit tag", "pin an explicit tag instead of relying on the registry default")
	} else if strings.HasSuffix(image, ":latest") {
		r.addWarning("runner_image", "image is pinned to :latest", "pin a specific, reproducible tag")
	}
}

func checkContainerRuntime(d *config.JobDescriptor, opts Options, r *Result) {
	if !opts.RequireContainerRuntime {
		return
	}
	runtime := opts.ContainerRuntime
	if runtime == "" {
		runtime = "docker"
	}
	if _, err := exec.LookPath(runtime); err != nil {
		r.addError("runner_image", runtime+" is not on PATH", "install "+runtime+" or run outside container mode")
	}
}

func checkFilesystem(d *config.JobDescriptor, opts Options, r *Result) {
	root := opts.WorkspaceRoot
	if root == "" {
		return
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		r.addError("work_dir", "workspace does not exist or is not a directory", "run source preparation before validating")
		return
	}
	if d.CodeDir != "" {
		codeDir := hostPath(root, d.CodeDir)
		if info, err := os.Stat(codeDir); err != nil || !info.IsDir() {
			r.addError("code_dir", "code directory is not readable", "verify source preparation populated "+d.CodeDir)
		}
	}
}

// hostPath maps a container-relative /job/... path onto the host workspace
// root for filesystem probing.
func hostPath(root, containerPath string) string {
	rel := strings.TrimPrefix(containerPath, "/job")
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return root
	}
	return root + "/" + rel
}
