package config

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/catalystcommunity/reactorcide/internal/errs"
)

// fieldKey is the canonical lower_snake_case name for a descriptor field,
// used both as a TOML defaults-file key and to derive its REACTORCIDE_*
// environment variable name (§6's "fixed mapping between field names and
// REACTORCIDE_* env variable names").
type fieldKey string

const (
	fCodeDir      fieldKey = "code_dir"
	fJobDir       fieldKey = "job_dir"
	fJobCommand   fieldKey = "job_command"
	fRunnerImage  fieldKey = "runner_image"
	fJobEnv       fieldKey = "job_env"
	fSecretsList  fieldKey = "secrets_list"
	fSecretsFile  fieldKey = "secrets_file"
	fWorkDir      fieldKey = "work_dir"
	fSourceType   fieldKey = "source_type"
	fSourceURL    fieldKey = "source_url"
	fSourceRef    fieldKey = "source_ref"
	fCISourceType fieldKey = "ci_source_type"
	fCISourceURL  fieldKey = "ci_source_url"
	fCISourceRef  fieldKey = "ci_source_ref"
	fContainer    fieldKey = "container"
	fPluginDir    fieldKey = "plugin_dir"
)

func (k fieldKey) envVar() string {
	return envPrefix + strings.ToUpper(string(k))
}

// Defaults is the lowest-precedence tier, loaded from an optional TOML
// file named by REACTORCIDE_DEFAULTS_FILE (there is no command-line flag
// for it), mirroring the
// teacher's TOML-backed Settings (tools/si/settings.go) but scoped to the
// job-descriptor fields this runner actually resolves.
type Defaults struct {
	CodeDir      string `toml:"code_dir,omitempty"`
	JobDir       string `toml:"job_dir,omitempty"`
	JobCommand   string `toml:"job_command,omitempty"`
	RunnerImage  string `toml:"runner_image,omitempty"`
	JobEnv       string `toml:"job_env,omitempty"`
	SecretsList  string `toml:"secrets_list,omitempty"`
	SecretsFile  string `toml:"secrets_file,omitempty"`
	WorkDir      string `toml:"work_dir,omitempty"`
	SourceType   string `toml:"source_type,omitempty"`
	SourceURL    string `toml:"source_url,omitempty"`
	SourceRef    string `toml:"source_ref,omitempty"`
	CISourceType string `toml:"ci_source_type,omitempty"`
	CISourceURL  string `toml:"ci_source_url,omitempty"`
	CISourceRef  string `toml:"ci_source_ref,omitempty"`
	PluginDir    string `toml:"plugin_dir,omitempty"`
}

// LoadDefaults reads and parses a TOML defaults file. An empty path is not
// an error; it yields zero-value Defaults.
func LoadDefaults(path string) (Defaults, error) {
	var d Defaults
	if strings.TrimSpace(path) == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return d, errs.Wrap(errs.KindConfig, "reading defaults file", err)
	}
	if err := toml.Unmarshal(data, &d); err != nil {
		return d, errs.Wrap(errs.KindConfig, "parsing defaults file", err)
	}
	return d, nil
}

func (d Defaults) asMap() map[string]string {
	m := map[string]string{}
	set := func(k fieldKey, v string) {
		if v != "" {
			m[string(k)] = v
		}
	}
	set(fCodeDir, d.CodeDir)
	set(fJobDir, d.JobDir)
	set(fJobCommand, d.JobCommand)
	set(fRunnerImage, d.RunnerImage)
	set(fJobEnv, d.JobEnv)
	set(fSecretsList, d.SecretsList)
	set(fSecretsFile, d.SecretsFile)
	set(fWorkDir, d.WorkDir)
	set(fSourceType, d.SourceType)
	set(fSourceURL, d.SourceURL)
	set(fSourceRef, d.SourceRef)
	set(fCISourceType, d.CISourceType)
	set(fCISourceURL, d.CISourceURL)
	set(fCISourceRef, d.CISourceRef)
	set(fPluginDir, d.PluginDir)
	return m
}

var allFields = []fieldKey{
	fCodeDir, fJobDir, fJobCommand, fRunnerImage, fJobEnv, fSecretsList,
	fSecretsFile, fWorkDir, fSourceType, fSourceURL, fSourceRef,
	fCISourceType, fCISourceURL, fCISourceRef, fContainer, fPluginDir,
}

// Resolve merges defaults < processEnv < overrides into an immutable
// JobDescriptor, per §4.1's strict precedence. processEnv is used for
// field resolution only; §4.2's default-secrets scan runs later over the
// job's effective environment (see orchestrator.seedMasker).
//
// secrets_list is tri-state: if no tier mentions it at all the resulting
// descriptor's SecretsList stays nil (the "unset" default-masking mode);
// if processEnv or overrides set it — including to "" — SecretsList
// becomes non-nil. The defaults file counts only with a non-empty value:
// an empty secrets_list there is indistinguishable from an absent one.
func Resolve(defaults Defaults, processEnv map[string]string, overrides map[string]string) (*JobDescriptor, error) {
	merged := defaults.asMap()
	secretsListSet := merged[string(fSecretsList)] != ""

	for _, f := range allFields {
		if v, ok := processEnv[f.envVar()]; ok {
			merged[string(f)] = v
			if f == fSecretsList {
				secretsListSet = true
			}
		}
	}
	for k, v := range overrides {
		merged[k] = v
		if fieldKey(k) == fSecretsList {
			secretsListSet = true
		}
	}

	d := &JobDescriptor{
		CodeDir:      merged[string(fCodeDir)],
		JobDir:       merged[string(fJobDir)],
		JobCommand:   merged[string(fJobCommand)],
		RunnerImage:  merged[string(fRunnerImage)],
		JobEnv:       merged[string(fJobEnv)],
		SecretsFile:  merged[string(fSecretsFile)],
		WorkDir:      merged[string(fWorkDir)],
		SourceType:   SourceType(orDefault(merged[string(fSourceType)], string(SourceNone))),
		SourceURL:    merged[string(fSourceURL)],
		SourceRef:    merged[string(fSourceRef)],
		CISourceType: SourceType(orDefault(merged[string(fCISourceType)], string(SourceNone))),
		CISourceURL:  merged[string(fCISourceURL)],
		CISourceRef:  merged[string(fCISourceRef)],
		Container:    merged[string(fContainer)] == "true" || merged[string(fContainer)] == "1",
		PluginDir:    merged[string(fPluginDir)],
	}
	if secretsListSet {
		v := merged[string(fSecretsList)]
		d.SecretsList = &v
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ProcessEnvMap snapshots os.Environ() into a map, the form every other
// resolution helper expects.
func ProcessEnvMap() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		if idx := strings.Index(kv, "="); idx >= 0 {
			out[kv[:idx]] = kv[idx+1:]
		}
	}
	return out
}

// ContainerEnv computes the set of REACTORCIDE_* variables surfaced back
// into the container environment per §4.1, explicitly excluding the raw
// REACTORCIDE_JOB_ENV (the parsed fields are forwarded instead, to avoid
// double interpretation).
func (d *JobDescriptor) ContainerEnv() map[string]string {
	out := map[string]string{}
	add := func(k fieldKey, v string) {
		if v != "" {
			out[k.envVar()] = v
		}
	}
	add(fCodeDir, d.CodeDir)
	add(fJobDir, d.EffectiveJobDir())
	add(fJobCommand, d.JobCommand)
	add(fRunnerImage, d.RunnerImage)
	add(fSourceType, string(d.SourceType))
	add(fSourceURL, d.SourceURL)
	add(fSourceRef, d.SourceRef)
	add(fCISourceType, string(d.CISourceType))
	add(fCISourceURL, d.CISourceURL)
	add(fCISourceRef, d.CISourceRef)
	return out
}
