package main

import (
	"flag"
	"fmt"
)

func cmdConfig(args []string) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	df := bindDescriptorFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	d, err := resolveDescriptor(fs, df)
	if err != nil {
		return fatalf("%s", err)
	}

	secretsList := "(unset: default masking of every non-REACTORCIDE_* env value)"
	if d.SecretsList != nil {
		secretsList = fmt.Sprintf("%q", *d.SecretsList)
	}

	rows := [][]string{
		{"code_dir", d.CodeDir},
		{"job_dir", d.EffectiveJobDir()},
		{"job_command", d.JobCommand},
		{"runner_image", d.RunnerImage},
		{"job_env", d.JobEnv},
		{"secrets_list", secretsList},
		{"secrets_file", d.SecretsFile},
		{"work_dir", d.WorkDir},
		{"plugin_dir", d.PluginDir},
		{"source_type", string(d.SourceType)},
		{"source_url", d.SourceURL},
		{"source_ref", d.SourceRef},
		{"ci_source_type", string(d.CISourceType)},
		{"ci_source_url", d.CISourceURL},
		{"ci_source_ref", d.CISourceRef},
		{"container", fmt.Sprintf("%v", d.Container)},
	}
	printAlignedTable([]string{"field", "value"}, rows)
	return 0
}
