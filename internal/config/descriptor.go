// Package config implements the config resolver (C1): merging defaults,
// process environment, and caller overrides into an immutable
// JobDescriptor, and the env-block parsing shared by several components.
//
// Grounded in _examples/Aureuma-si/tools/si/settings.go's TOML-backed
// Settings struct for the "defaults" tier, and in the REACTORCIDE_* env
// catalogue in spec.md §6.
package config

import (
	"strings"

	"github.com/catalystcommunity/reactorcide/internal/errs"
)

// SourceType enumerates the pluggable source-prep strategies (§4.7).
type SourceType string

const (
	SourceGit     SourceType = "git"
	SourceCopy    SourceType = "copy"
	SourceTarball SourceType = "tarball"
	SourceHg      SourceType = "hg"
	SourceSvn     SourceType = "svn"
	SourceNone    SourceType = "none"
)

// JobDescriptor is the immutable product of resolution (§3). Once
// constructed by Resolve it is never mutated; the values derived from it
// (parsed env, parsed secrets list) are computed on demand by
// ParsedJobEnv and ParsedSecretsList, on every call.
type JobDescriptor struct {
	CodeDir      string
	JobDir       string
	JobCommand   string
	RunnerImage  string
	JobEnv       string // raw inline text or a workspace-relative path
	SecretsList  *string // nil = unset (default masking), non-nil = explicit (incl. "")
	SecretsFile  string
	WorkDir      string // caller override of the workspace root; "" = autodetect

	SourceType SourceType
	SourceURL  string
	SourceRef  string

	CISourceType SourceType
	CISourceURL  string
	CISourceRef  string

	// Container forces container-mode execution even without RunnerImage.
	Container bool

	// PluginDir is an additional directory to load lifecycle plugins from.
	PluginDir string
}

// ParsedJobEnv parses JobEnv against the given workspace root.
func (d *JobDescriptor) ParsedJobEnv(workspaceRoot string) (map[string]string, error) {
	if strings.TrimSpace(d.JobEnv) == "" {
		return map[string]string{}, nil
	}
	return ParseEnv(d.JobEnv, workspaceRoot)
}

// ParsedSecretsList resolves the secrets_list field into a concrete list of
// literal secret values to mask, per §4.2's two-mode behavior. The caller
// supplies the environment map whose values are used for the "unset"
// default (the orchestrator passes the job's effective environment).
func (d *JobDescriptor) ParsedSecretsList(workspaceRoot string, processEnv map[string]string) ([]string, error) {
	if d.SecretsList == nil {
		// Unset: mask every non-REACTORCIDE_* environment value.
		out := make([]string, 0, len(processEnv))
		for k, v := range processEnv {
			if strings.HasPrefix(k, envPrefix) {
				continue
			}
			out = append(out, v)
		}
		return out, nil
	}
	raw := strings.TrimSpace(*d.SecretsList)
	if raw == "" {
		return nil, nil
	}
	// A comma-separated or separator-free value is an inline list; a
	// single value containing "/" is a workspace-restricted file path.
	if looksLikeWorkspacePath(raw) && !strings.Contains(raw, ",") && strings.Contains(raw, "/") {
		parsed, err := readWorkspaceFile(raw, workspaceRoot)
		if err != nil {
			return nil, err
		}
		raw = parsed
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// Validate checks the structural invariants named in §3: required fields
// non-empty, and code_dir / effective job_dir rooted at /job. The
// job_env and secrets_list paths are not checked here; they are
// workspace-restricted when parsed.
func (d *JobDescriptor) Validate() error {
	var missing []string
	if strings.TrimSpace(d.CodeDir) == "" {
		missing = append(missing, "code_dir")
	}
	if strings.TrimSpace(d.JobCommand) == "" {
		missing = append(missing, "job_command")
	}
	if len(missing) > 0 {
		return errs.Newf(errs.KindConfig, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if d.CodeDir != "" && !strings.HasPrefix(d.CodeDir, "/job") {
		return errs.WithField(errs.KindConfig, "code_dir", "must be absolute and rooted at /job")
	}
	jobDir := d.JobDir
	if jobDir == "" {
		jobDir = d.CodeDir
	}
	if !strings.HasPrefix(jobDir, "/job") {
		return errs.WithField(errs.KindConfig, "job_dir", "must be absolute and rooted at /job")
	}
	return nil
}

// EffectiveJobDir returns JobDir, defaulting to CodeDir when unset (§3).
func (d *JobDescriptor) EffectiveJobDir() string {
	if d.JobDir != "" {
		return d.JobDir
	}
	return d.CodeDir
}
