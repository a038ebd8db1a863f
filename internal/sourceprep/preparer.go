package sourceprep

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/catalystcommunity/reactorcide/internal/config"
	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/logging"
)

// Strategy materializes one working tree at dest for (url, ref).
type Strategy interface {
	Prepare(dest, url, ref string) error
}

var strategies = map[config.SourceType]Strategy{
	config.SourceGit:     gitStrategy{},
	config.SourceCopy:    copyStrategy{},
	config.SourceTarball: notImplementedStrategy{config.SourceTarball},
	config.SourceHg:      notImplementedStrategy{config.SourceHg},
	config.SourceSvn:     notImplementedStrategy{config.SourceSvn},
}

// Preparer runs C7's two top-level operations against a discovered
// Workspace.
type Preparer struct {
	Workspace Workspace
	Log       *logging.Logger
}

func New(ws Workspace, log *logging.Logger) *Preparer {
	return &Preparer{Workspace: ws, Log: log.Named("sourceprep")}
}

// PrepareUntrusted materializes descriptor's untrusted source into src/.
// Returns "" (no error) when source_type is "none".
func (p *Preparer) PrepareUntrusted(d *config.JobDescriptor) (string, error) {
	return p.prepare(d.SourceType, p.Workspace.UntrustedDir(), d.SourceURL, d.SourceRef)
}

// PrepareTrusted materializes descriptor's trusted source into ci/. The
// trusted tree is the only one job-definition YAML may be loaded from and
// the only one CI scripts touching secrets may run from (§4.7) — this
// asymmetry is enforced by callers always using TrustedDir()/UntrustedDir()
// rather than any general-purpose "the workspace" accessor.
func (p *Preparer) PrepareTrusted(d *config.JobDescriptor) (string, error) {
	return p.prepare(d.CISourceType, p.Workspace.TrustedDir(), d.CISourceURL, d.CISourceRef)
}

func (p *Preparer) prepare(sourceType config.SourceType, dest, url, ref string) (string, error) {
	if sourceType == "" || sourceType == config.SourceNone {
		return "", nil
	}
	strategy, ok := strategies[sourceType]
	if !ok {
		return "", errs.Newf(errs.KindSource, "unknown source type: %s", sourceType)
	}
	if err := purge(dest); err != nil {
		return "", errs.Wrap(errs.KindSource, "purging destination", err)
	}
	if err := strategy.Prepare(dest, url, ref); err != nil {
		return "", err
	}
	return dest, nil
}

// purge removes dest if present, normalizing permissions first on a
// best-effort basis so removal succeeds even over read-only trees left by
// a prior checkout (§4.7).
func purge(dest string) error {
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return nil
	}
	normalizePermissions(dest)
	return os.RemoveAll(dest)
}

// normalizePermissions makes a best-effort pass to ensure dest is
// removable, for trees left read-only by a prior VCS checkout.
func normalizePermissions(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = os.Chmod(path, 0755)
		} else {
			_ = os.Chmod(path, 0644)
		}
		return nil
	})
}

type notImplementedStrategy struct {
	kind config.SourceType
}

func (n notImplementedStrategy) Prepare(dest, url, ref string) error {
	return &errs.Error{Kind: errs.KindNotImplemented, Message: "source strategy not implemented: " + string(n.kind)}
}
