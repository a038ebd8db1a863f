// Package container implements the container launcher (C9): builds the
// equivalence-command argv for a docker invocation, runs it for real via
// the Docker Engine API, or executes the job command locally. Both
// execution paths stream output through the secret masker: the local path
// line by line, the docker path per demultiplexed log frame.
//
// Grounded in _examples/Aureuma-si/tools/si's process-launch helpers
// (cmd.go) for the local-exec shape, and in the pack's
// github.com/docker/docker/client SDK usage for real container launches
// (see DESIGN.md, C9).
package container

import (
	"fmt"
	"sort"
	"strings"
)

// Plan is the fully-resolved container invocation, built in the exact
// field order §4.9 pins for dry-run reproducibility.
type Plan struct {
	MemoryLimit  string // e.g. "512m"; empty if plugins set none
	CPULimit     string // e.g. "2"; empty if plugins set none
	Env          map[string]string
	HostJobPath  string
	WorkspaceRoot string // conventionally /job
	SecretsFile  string // host path; "" if absent
	SecretsFileExists bool
	SocketPath   string // host path to the secrets socket; "" if absent
	SocketExists bool
	WorkDir      string
	Image        string
	JobCommand   []string
	TrailingArgs []string
}

// Argv renders the exact docker argv in §4.9's pinned order. This is what
// --dry-run prints; a real launch does not execute it but issues the
// equivalent Docker Engine API calls (DockerRunner.Run).
func (p Plan) Argv() []string {
	argv := []string{"run", "--rm"}

	if p.MemoryLimit != "" {
		argv = append(argv, "--memory", p.MemoryLimit)
	}
	if p.CPULimit != "" {
		argv = append(argv, "--cpus", p.CPULimit)
	}

	for _, k := range sortedKeys(p.Env) {
		argv = append(argv, "-e", fmt.Sprintf("%s=%s", k, p.Env[k]))
	}

	argv = append(argv, "-v", fmt.Sprintf("%s:%s", p.HostJobPath, p.WorkspaceRoot))

	if p.SecretsFile != "" && p.SecretsFileExists {
		argv = append(argv, "--env-file", p.SecretsFile)
		argv = append(argv, "-v", p.SecretsFile+":/run/secrets/env:ro")
	}

	if p.SocketPath != "" && p.SocketExists {
		argv = append(argv, "-v", "/tmp:/tmp")
	}

	argv = append(argv, "-w", p.WorkDir)
	argv = append(argv, p.Image)
	argv = append(argv, p.JobCommand...)
	argv = append(argv, p.TrailingArgs...)

	return argv
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DryRunCommand renders Plan as the shell-quoted "docker ..." string the
// --dry-run flag prints, matching the teacher's quoting helper
// (tools/si/cmd.go's shellQuote idiom: wrap any arg containing whitespace
// or shell metacharacters in single quotes, escaping embedded quotes).
func DryRunCommand(p Plan) string {
	argv := append([]string{"docker"}, p.Argv()...)
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if strings.ContainsRune(" \t\n'\"$`\\;&|<>()*?[]{}#~!", r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
