package main

import (
	"flag"

	"github.com/catalystcommunity/reactorcide/internal/config"
)

// descriptorFlags binds every §6 run-flag onto fs, returning the override
// map Resolve expects once fs.Parse has run. Every flag also has a
// REACTORCIDE_<UPPERCASE> environment equivalent, handled automatically
// because Resolve layers processEnv underneath these overrides.
type descriptorFlags struct {
	codeDir      *string
	jobDir       *string
	jobCommand   *string
	runnerImage  *string
	jobEnv       *string
	secretsList  *string
	secretsFile  *string
	workDir      *string
	pluginDir    *string
	sourceType   *string
	sourceURL    *string
	sourceRef    *string
	ciSourceType *string
	ciSourceURL  *string
	ciSourceRef  *string
	container    *bool
}

func bindDescriptorFlags(fs *flag.FlagSet) *descriptorFlags {
	d := &descriptorFlags{}
	d.codeDir = fs.String("code-dir", "", "absolute, /job-rooted code directory")
	d.jobDir = fs.String("job-dir", "", "absolute, /job-rooted working directory (defaults to code-dir)")
	d.jobCommand = fs.String("job-command", "", "shell command to run")
	d.runnerImage = fs.String("runner-image", "", "container image reference")
	d.jobEnv = fs.String("job-env", "", "inline KEY=VALUE block or workspace-relative path")
	d.secretsList = fs.String("secrets-list", "", "comma-separated secret values or workspace path; pass explicitly (incl. empty) to disable default masking")
	d.secretsFile = fs.String("secrets-file", "", "env-file to mount into the container")
	d.workDir = fs.String("work-dir", "", "override workspace root (defaults to autodetection)")
	d.pluginDir = fs.String("plugin-dir", "", "extra lifecycle plugin directory")
	d.sourceType = fs.String("source-type", "", "untrusted source type: git|copy|tarball|hg|svn|none")
	d.sourceURL = fs.String("source-url", "", "untrusted source URL or path")
	d.sourceRef = fs.String("source-ref", "", "untrusted source ref")
	d.ciSourceType = fs.String("ci-source-type", "", "trusted source type: git|copy|tarball|hg|svn|none")
	d.ciSourceURL = fs.String("ci-source-url", "", "trusted source URL or path")
	d.ciSourceRef = fs.String("ci-source-ref", "", "trusted source ref")
	d.container = fs.Bool("container", false, "force container-mode execution")
	return d
}

// overrides builds the Resolve override map from whichever flags the
// caller actually set (fs.Visit only visits flags explicitly passed).
func (d *descriptorFlags) overrides(fs *flag.FlagSet) map[string]string {
	out := map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "code-dir":
			out["code_dir"] = *d.codeDir
		case "job-dir":
			out["job_dir"] = *d.jobDir
		case "job-command":
			out["job_command"] = *d.jobCommand
		case "runner-image":
			out["runner_image"] = *d.runnerImage
		case "job-env":
			out["job_env"] = *d.jobEnv
		case "secrets-list":
			out["secrets_list"] = *d.secretsList
		case "secrets-file":
			out["secrets_file"] = *d.secretsFile
		case "work-dir":
			out["work_dir"] = *d.workDir
		case "plugin-dir":
			out["plugin_dir"] = *d.pluginDir
		case "source-type":
			out["source_type"] = *d.sourceType
		case "source-url":
			out["source_url"] = *d.sourceURL
		case "source-ref":
			out["source_ref"] = *d.sourceRef
		case "ci-source-type":
			out["ci_source_type"] = *d.ciSourceType
		case "ci-source-url":
			out["ci_source_url"] = *d.ciSourceURL
		case "ci-source-ref":
			out["ci_source_ref"] = *d.ciSourceRef
		case "container":
			if *d.container {
				out["container"] = "true"
			}
		}
	})
	return out
}

// resolveDescriptor is the common "parse flags, merge with env, validate"
// path shared by run/config/validate.
func resolveDescriptor(fs *flag.FlagSet, d *descriptorFlags) (*config.JobDescriptor, error) {
	processEnv := config.ProcessEnvMap()
	defaults, err := config.LoadDefaults(processEnv["REACTORCIDE_DEFAULTS_FILE"])
	if err != nil {
		return nil, err
	}
	return config.Resolve(defaults, processEnv, d.overrides(fs))
}
