package sourceprep

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/catalystcommunity/reactorcide/internal/errs"
)

// copyStrategy materializes a local directory tree at dest, used when
// source_type is "copy" and source_url names a path already present on
// the host (e.g. a pre-checked-out monorepo subdirectory). ref is ignored.
type copyStrategy struct{}

func (copyStrategy) Prepare(dest, url, ref string) error {
	if strings.TrimSpace(url) == "" {
		return errs.New(errs.KindSource, "copy source requires source_url")
	}
	info, err := os.Stat(url)
	if err != nil {
		return errs.Wrap(errs.KindSource, "stat source_url", err)
	}
	if !info.IsDir() {
		return errs.New(errs.KindSource, "copy source_url must be a directory")
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return errs.Wrap(errs.KindSource, "creating destination", err)
	}
	return copyTree(url, dest)
}

func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
