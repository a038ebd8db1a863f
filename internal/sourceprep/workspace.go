// Package sourceprep implements the source preparer (C7): materializing
// the untrusted (src/) and trusted (ci/) working trees via pluggable
// strategies, and the host-vs-container workspace discovery rule.
package sourceprep

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	containerMountPoint = "/job"
	containerEnvFlag    = "REACTORCIDE_IN_CONTAINER"
)

// Workspace describes the discovered job root and whether the caller may
// remove it on cleanup (§4.7, §9: "model as a single function returning a
// root path and a cleanup-allowed flag; every other path derivation goes
// through it").
type Workspace struct {
	Root           string
	CleanupAllowed bool
}

// Discover implements §4.7's host-vs-container detection: container mode
// is signaled either by REACTORCIDE_IN_CONTAINER=true or by /job existing,
// being writable, and the current directory being under it. Otherwise the
// workspace is ./job under the process's current working directory.
func Discover() (Workspace, error) {
	if strings.EqualFold(strings.TrimSpace(os.Getenv(containerEnvFlag)), "true") {
		return Workspace{Root: containerMountPoint, CleanupAllowed: false}, nil
	}
	if info, err := os.Stat(containerMountPoint); err == nil && info.IsDir() && isWritable(containerMountPoint) {
		if cwd, err := os.Getwd(); err == nil {
			if within(cwd, containerMountPoint) {
				return Workspace{Root: containerMountPoint, CleanupAllowed: false}, nil
			}
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return Workspace{}, err
	}
	return Workspace{Root: filepath.Join(cwd, "job"), CleanupAllowed: true}, nil
}

// DiscoverWithOverride honors an explicit --work-dir override ahead of
// autodetection.
func DiscoverWithOverride(override string) (Workspace, error) {
	if strings.TrimSpace(override) != "" {
		return Workspace{Root: override, CleanupAllowed: true}, nil
	}
	return Discover()
}

func isWritable(dir string) bool {
	probe := filepath.Join(dir, ".reactorcide-write-probe")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}

func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// Cleanup removes the workspace if permitted. No-op in container mode
// because the path is a bind mount, not a path this process owns (§3).
func (w Workspace) Cleanup() error {
	if !w.CleanupAllowed {
		return nil
	}
	normalizePermissions(w.Root)
	return os.RemoveAll(w.Root)
}

// UntrustedDir and TrustedDir are the canonical subtree names (§1, §4.7):
// src/ is untrusted, ci/ is trusted, and job-definition YAML may only be
// loaded from the trusted tree.
func (w Workspace) UntrustedDir() string { return filepath.Join(w.Root, "src") }
func (w Workspace) TrustedDir() string   { return filepath.Join(w.Root, "ci") }
