package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/catalystcommunity/reactorcide/internal/errs"
)

const envPrefix = "REACTORCIDE_"

// ParseEnv accepts either raw multi-line "KEY=VALUE" text or a
// workspace-restricted path to a file holding the same, per §4.1. Lines are
// trimmed; blanks and "#"-comments are skipped; KEY=VALUE splits on the
// first "="; empty keys, missing "=", and unsafe paths fail.
func ParseEnv(text, workspaceRoot string) (map[string]string, error) {
	body := text
	if looksLikeWorkspacePath(text) {
		parsed, err := readWorkspaceFile(text, workspaceRoot)
		if err != nil {
			return nil, err
		}
		body = parsed
	}
	return parseEnvText(body)
}

func parseEnvText(body string) (map[string]string, error) {
	out := map[string]string{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			return nil, errs.Newf(errs.KindConfig, "invalid env line (missing '='): %q", line)
		}
		key := strings.TrimSpace(line[:idx])
		if key == "" {
			return nil, errs.Newf(errs.KindConfig, "invalid env line (empty key): %q", line)
		}
		value := strings.TrimSpace(line[idx+1:])
		out[key] = value
	}
	return out, nil
}

// FormatEnv renders an env map back to "KEY=VALUE" lines, sorted for
// determinism. Used by the round-trip testable property in §8.
func FormatEnv(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sortStrings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(env[k])
		b.WriteByte('\n')
	}
	return b.String()
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// looksLikeWorkspacePath heuristically distinguishes a file path from
// inline "KEY=VALUE" text: inline text contains "=" or a newline before
// any path-like content would; a bare path doesn't.
func looksLikeWorkspacePath(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "\n") || strings.Contains(s, "=") {
		return false
	}
	return true
}

// readWorkspaceFile enforces the workspace-restricted path rule: paths
// containing ".." or not rooted under workspaceRoot are rejected.
func readWorkspaceFile(path, workspaceRoot string) (string, error) {
	if strings.Contains(path, "..") {
		return "", errs.Newf(errs.KindConfig, "unsafe path (contains ..): %q", path)
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workspaceRoot, path)
	}
	cleanRoot := filepath.Clean(workspaceRoot)
	cleanAbs := filepath.Clean(abs)
	rootPrefix := strings.TrimSuffix(cleanRoot, string(filepath.Separator)) + string(filepath.Separator)
	if cleanAbs != cleanRoot && !strings.HasPrefix(cleanAbs, rootPrefix) {
		return "", errs.Newf(errs.KindConfig, "path %q escapes workspace %q", path, workspaceRoot)
	}
	data, err := os.ReadFile(cleanAbs)
	if err != nil {
		return "", errs.Wrap(errs.KindConfig, "reading env/secrets file", err)
	}
	return string(data), nil
}
