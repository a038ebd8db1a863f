package sourceprep

import (
	"os"
	"os/exec"
	"strings"

	"github.com/catalystcommunity/reactorcide/internal/errs"
)

// gitStrategy clones source_url into dest and checks out ref. If ref isn't
// reachable after the clone (a PR head SHA not on the default branch),
// it performs the §4.7 fetch-fallback: `git fetch origin <ref>:<ref>`
// followed by a re-checkout. Unset ref (§9.3 open-question decision): no
// --branch flag is passed and no checkout is attempted, so the clone
// tracks the remote's own default HEAD branch.
type gitStrategy struct{}

func (gitStrategy) Prepare(dest, url, ref string) error {
	if strings.TrimSpace(url) == "" {
		return errs.New(errs.KindSource, "git source requires source_url")
	}
	if err := os.MkdirAll(parentDir(dest), 0755); err != nil {
		return errs.Wrap(errs.KindSource, "creating parent directory", err)
	}
	if err := runGit("", "clone", url, dest); err != nil {
		return errs.Wrap(errs.KindSource, "git clone failed", err)
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if err := runGit(dest, "checkout", ref); err != nil {
		if fetchErr := runGit(dest, "fetch", "origin", ref+":"+ref); fetchErr != nil {
			return errs.Wrap(errs.KindSource, "git fetch-fallback failed", fetchErr)
		}
		if err := runGit(dest, "checkout", ref); err != nil {
			return errs.Wrap(errs.KindSource, "git checkout failed after fetch-fallback", err)
		}
	}
	return nil
}

func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func parentDir(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "."
	}
	return path[:i]
}
