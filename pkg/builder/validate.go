package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wrightpm/wright/pkg/wrighterrors"
)

// validateFHS walks a package root and checks every entry and every
// absolute symlink target against the FHS whitelist (spec.md §4.7 step 8).
func (b *Builder) validateFHS(ctx context.Context, pkgName, root string) error {
	var paths []string
	err := filepath.Walk(root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		abs := "/" + filepath.ToSlash(rel)
		paths = append(paths, abs)
		if fi.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			if strings.HasPrefix(target, "/") {
				paths = append(paths, target)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("builder: walk package root for fhs validation: %w", err)
	}

	violations, err := b.FHS.CheckAll(ctx, paths)
	if err != nil {
		return fmt.Errorf("builder: fhs policy evaluation: %w", err)
	}
	if len(violations) > 0 {
		v := violations[0]
		return wrighterrors.New(wrighterrors.KindValidation,
			fmt.Sprintf("path %q is outside the FHS whitelist", v.Path), nil).
			WithPackage(pkgName).WithHint(v.Hint)
	}
	return nil
}
