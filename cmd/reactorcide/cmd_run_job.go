package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/catalystcommunity/reactorcide/internal/config"
	"github.com/catalystcommunity/reactorcide/internal/logging"
	"github.com/catalystcommunity/reactorcide/internal/orchestrator"
)

// jobFile is the on-disk JSON/YAML shape run-job accepts: the same field
// names as the env-var catalogue's descriptor fields, lower_snake_case.
type jobFile struct {
	CodeDir      string  `json:"code_dir" yaml:"code_dir"`
	JobDir       string  `json:"job_dir" yaml:"job_dir"`
	JobCommand   string  `json:"job_command" yaml:"job_command"`
	RunnerImage  string  `json:"runner_image" yaml:"runner_image"`
	JobEnv       string  `json:"job_env" yaml:"job_env"`
	SecretsList  *string `json:"secrets_list" yaml:"secrets_list"`
	SecretsFile  string  `json:"secrets_file" yaml:"secrets_file"`
	WorkDir      string  `json:"work_dir" yaml:"work_dir"`
	PluginDir    string  `json:"plugin_dir" yaml:"plugin_dir"`
	SourceType   string  `json:"source_type" yaml:"source_type"`
	SourceURL    string  `json:"source_url" yaml:"source_url"`
	SourceRef    string  `json:"source_ref" yaml:"source_ref"`
	CISourceType string  `json:"ci_source_type" yaml:"ci_source_type"`
	CISourceURL  string  `json:"ci_source_url" yaml:"ci_source_url"`
	CISourceRef  string  `json:"ci_source_ref" yaml:"ci_source_ref"`
	Container    bool    `json:"container" yaml:"container"`
}

func cmdRunJob(args []string) int {
	fs := flag.NewFlagSet("run-job", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return fatalf("usage: reactorcide run-job <job-file>")
	}

	data, err := os.ReadFile(rest[0])
	if err != nil {
		return fatalf("%s", err)
	}

	var jf jobFile
	if strings.HasSuffix(rest[0], ".json") {
		err = json.Unmarshal(data, &jf)
	} else {
		err = yaml.Unmarshal(data, &jf)
	}
	if err != nil {
		return fatalf("parsing job file: %s", err)
	}

	d := &config.JobDescriptor{
		CodeDir:      jf.CodeDir,
		JobDir:       jf.JobDir,
		JobCommand:   jf.JobCommand,
		RunnerImage:  jf.RunnerImage,
		JobEnv:       jf.JobEnv,
		SecretsList:  jf.SecretsList,
		SecretsFile:  jf.SecretsFile,
		WorkDir:      jf.WorkDir,
		PluginDir:    jf.PluginDir,
		SourceType:   config.SourceType(orDefault(jf.SourceType, string(config.SourceNone))),
		SourceURL:    jf.SourceURL,
		SourceRef:    jf.SourceRef,
		CISourceType: config.SourceType(orDefault(jf.CISourceType, string(config.SourceNone))),
		CISourceURL:  jf.CISourceURL,
		CISourceRef:  jf.CISourceRef,
		Container:    jf.Container,
	}
	if err := d.Validate(); err != nil {
		return fatalf("%s", err)
	}

	log := logging.New()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := orchestrator.Run(ctx, d, d.PluginDir, log, os.Stdout, os.Stderr)
	if result.Err != nil {
		log.Error("run-job failed", result.Err)
	}
	return result.ExitCode
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
