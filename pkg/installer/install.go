package installer

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wrightpm/wright/pkg/archive"
	"github.com/wrightpm/wright/pkg/pkgdb"
	"github.com/wrightpm/wright/pkg/telemetry"
	"github.com/wrightpm/wright/pkg/version"
	"github.com/wrightpm/wright/pkg/wrighterrors"
)

// Install applies a .wright.tar.zst archive to the live root: replaces
// evaluation, conflicts evaluation, dependency evaluation, scratch
// extraction with shadow recording, backup-file handling, atomic move
// into place, post_install, and journal commit.
//
// Grounded on the teacher's pkg/providers/host apply-to-root primitives
// (move-into-place, ownership bookkeeping), generalized here from
// OpenFroyo's single-resource-kind apply to Wright's whole-archive
// install with a database-backed journal rather than an in-memory undo
// log.
func (in *Installer) Install(ctx context.Context, archivePath string, opts Options) (err error) {
	ctx, span := telemetry.StartInstallSpan(ctx, "install", archivePath)
	defer func() {
		telemetry.RecordInstall("install", err)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	f, err := os.Open(archivePath)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindValidation, "open archive", err)
	}
	defer f.Close()

	ar, err := archive.Open(f)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindValidation, "parse archive", err).WithLogPath(archivePath)
	}
	defer ar.Close()

	info := ar.Info
	name := info.Name

	if existing, err := in.Store.LookupByName(ctx, name); err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "lookup existing package", err).WithPackage(name)
	} else if existing != nil {
		return in.Upgrade(ctx, archivePath, opts)
	}

	replaces, conflicts := splitSpecialDeps(info.Dependencies)

	if !opts.NoDeps {
		if err := in.checkConflicts(ctx, name, conflicts); err != nil {
			return err
		}
		if err := in.checkDependencies(ctx, name, info.Dependencies); err != nil {
			return err
		}
	}

	txID := newTransactionID()
	tx, err := in.Store.BeginTx(ctx)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "begin install transaction", err).WithPackage(name)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := in.Store.RecordTransactionPending(ctx, tx, pkgdb.Transaction{
		ID: txID, Timestamp: time.Now(), Kind: pkgdb.TxInstall, PackageName: name,
		NewVersion: info.Version,
	}); err != nil {
		return wrighterrors.New(wrighterrors.KindJournal, "record pending install", err).WithPackage(name)
	}

	// replaces: remove superseded packages inside this same transaction.
	for _, r := range replaces {
		old, err := in.Store.LookupByName(ctx, r.Name)
		if err != nil {
			in.markRolledBack(ctx, txID)
			return wrighterrors.New(wrighterrors.KindDatabase, "lookup replaced package", err).WithPackage(name)
		}
		if old == nil {
			continue
		}
		if err := in.removeLocked(ctx, tx, r.Name); err != nil {
			in.markRolledBack(ctx, txID)
			return err
		}
	}

	scratch, err := os.MkdirTemp("", "wright-install-*")
	if err != nil {
		in.markRolledBack(ctx, txID)
		return wrighterrors.New(wrighterrors.KindCritical, "create scratch dir", err).WithPackage(name)
	}
	defer os.RemoveAll(scratch)

	hashes, err := ar.ExtractTo(scratch)
	if err != nil {
		in.markRolledBack(ctx, txID)
		return wrighterrors.New(wrighterrors.KindCritical, "extract archive", err).WithPackage(name)
	}

	moved, err := in.placeFiles(ctx, tx, name, scratch, info.BackupFiles, opts)
	if err != nil {
		in.undoMoved(moved)
		in.markRolledBack(ctx, txID)
		return err
	}

	bundle := pkgdb.InstallBundle{
		Package: pkgdb.Package{
			Name: name, Version: info.Version, Release: info.Release, Architecture: info.Architecture,
			Description: info.Description, License: info.License, UpstreamURL: info.UpstreamURL,
			Maintainer: info.Maintainer, InstallTimestamp: time.Now(), ArchiveHash: "",
			PreRemoveScript: info.PreRemove,
		},
	}
	var installSize int64
	for _, m := range moved {
		bundle.Files = append(bundle.Files, pkgdb.File{
			PackageName: name, Path: m.path, Kind: pkgdb.FileKind(m.entry.Kind),
			Mode: m.entry.Mode, Size: m.entry.Size, Hash: hashes[m.path], IsConfig: m.entry.IsConfig,
		})
		installSize += m.entry.Size
	}
	bundle.Package.InstallSize = installSize
	for _, d := range info.Dependencies {
		bundle.Dependencies = append(bundle.Dependencies, pkgdb.Dependency{
			PackageName: name, Kind: pkgdb.DependencyKind(d.Kind), DepName: d.Name, Operator: d.Operator, Version: d.Version,
		})
	}

	if err := in.Store.InsertPackage(ctx, tx, bundle); err != nil {
		in.undoMoved(moved)
		in.markRolledBack(ctx, txID)
		return wrighterrors.New(wrighterrors.KindDatabase, "insert package rows", err).WithPackage(name)
	}

	if err := in.Store.MarkTransactionCompleted(ctx, tx, txID); err != nil {
		in.undoMoved(moved)
		in.markRolledBack(ctx, txID)
		return wrighterrors.New(wrighterrors.KindJournal, "mark transaction completed", err).WithPackage(name)
	}

	if err := tx.Commit(); err != nil {
		in.undoMoved(moved)
		return wrighterrors.New(wrighterrors.KindDatabase, "commit install transaction", err).WithPackage(name)
	}
	committed = true

	if ar.Install != "" {
		in.runHook(ctx, name, "post_install", ar.Install)
	}
	return nil
}

type movedFile struct {
	path  string // destination path, absolute under in.Root
	entry archive.Entry
}

// placeFiles copies every scratch entry into the live root, recording
// shadow ownership when a path is already owned by a different package
// and routing backup-listed files that already exist on disk to a
// ".wnew" sibling instead of overwriting them (spec.md §4.11 "backup
// files").
func (in *Installer) placeFiles(ctx context.Context, tx *sql.Tx, name, scratch string, backupFiles []string, opts Options) ([]movedFile, error) {
	backup := make(map[string]bool, len(backupFiles))
	for _, b := range backupFiles {
		backup[b] = true
	}

	var moved []movedFile
	err := filepath.Walk(scratch, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == scratch {
			return nil
		}
		rel, err := filepath.Rel(scratch, p)
		if err != nil {
			return err
		}
		archivePath := "/" + filepath.ToSlash(rel)
		dest := filepath.Join(in.Root, archivePath)

		owner, err := in.Store.OwnerOfPath(ctx, archivePath)
		if err != nil {
			return fmt.Errorf("owner lookup for %s: %w", archivePath, err)
		}
		if owner != "" && owner != name {
			if !opts.Force {
				return wrighterrors.New(wrighterrors.KindConflict, "path already owned by another package", nil).
					WithPackage(name).WithHint(fmt.Sprintf("%s is owned by %s; pass --force to shadow-overwrite", archivePath, owner))
			}
			if err := in.Store.MarkFileAsShadow(ctx, tx, pkgdb.Shadow{Path: archivePath, OwningPackage: owner, OverwritingPackage: name}); err != nil {
				return fmt.Errorf("record shadow for %s: %w", archivePath, err)
			}
		}

		if fi.IsDir() {
			if err := os.MkdirAll(dest, fi.Mode()|0o700); err != nil {
				return fmt.Errorf("mkdir %s: %w", dest, err)
			}
			return nil
		}

		finalDest := dest
		if backup[archivePath] {
			if _, err := os.Lstat(dest); err == nil {
				finalDest = dest + ".wnew"
			}
		}
		if err := moveIntoPlace(p, finalDest, fi); err != nil {
			return fmt.Errorf("place %s: %w", archivePath, err)
		}
		moved = append(moved, movedFile{path: archivePath, entry: archive.Entry{Kind: kindOf(fi), Mode: uint32(fi.Mode().Perm()), Size: fi.Size()}})
		return nil
	})
	if err != nil {
		return moved, toInstallerErr(err, name)
	}
	return moved, nil
}

// moveIntoPlace renames src onto dest, unlinking any existing dest first
// so a running executable backed by the old inode keeps executing rather
// than crashing with ETXTBSY (spec.md §4.11 "unlink-before-overwrite for
// executables").
func moveIntoPlace(src, dest string, fi os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		_ = os.Remove(dest)
		return os.Symlink(target, dest)
	}
	_ = os.Remove(dest)
	if err := os.Rename(src, dest); err != nil {
		return copyThenRemove(src, dest)
	}
	return nil
}

func copyThenRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode())
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func kindOf(fi os.FileInfo) archive.EntryKind {
	switch {
	case fi.IsDir():
		return archive.KindDir
	case fi.Mode()&os.ModeSymlink != 0:
		return archive.KindSymlink
	default:
		return archive.KindRegular
	}
}

func (in *Installer) undoMoved(moved []movedFile) {
	for _, m := range moved {
		_ = os.Remove(filepath.Join(in.Root, m.path))
	}
}

func (in *Installer) markRolledBack(ctx context.Context, txID string) {
	if err := in.Store.MarkTransactionRolledBack(ctx, txID); err != nil {
		in.Log.Error().Err(err).Str("transaction", txID).Msg("failed to mark transaction rolled back")
	}
}

func toInstallerErr(err error, pkg string) error {
	if werr, ok := err.(*wrighterrors.Error); ok {
		return werr
	}
	return wrighterrors.New(wrighterrors.KindCritical, "place files", err).WithPackage(pkg)
}

func splitSpecialDeps(deps []archive.DependencyRef) (replaces, conflicts []archive.DependencyRef) {
	for _, d := range deps {
		switch pkgdb.DependencyKind(d.Kind) {
		case pkgdb.DepReplaces:
			replaces = append(replaces, d)
		case pkgdb.DepConflicts:
			conflicts = append(conflicts, d)
		}
	}
	return
}

func (in *Installer) checkConflicts(ctx context.Context, name string, conflicts []archive.DependencyRef) error {
	for _, c := range conflicts {
		if pkg, err := in.Store.LookupByName(ctx, c.Name); err == nil && pkg != nil {
			return wrighterrors.New(wrighterrors.KindConflict, "conflicting package is installed", nil).
				WithPackage(name).WithHint(fmt.Sprintf("%s conflicts with installed package %s", name, c.Name))
		}
	}
	return nil
}

// checkDependencies evaluates every runtime/link dependency against
// installed packages, provides-aliases, and assumed records (spec.md
// §4.11 "dependency evaluation... unless --nodeps").
func (in *Installer) checkDependencies(ctx context.Context, name string, deps []archive.DependencyRef) error {
	for _, d := range deps {
		if d.Kind != string(pkgdb.DepRuntime) && d.Kind != string(pkgdb.DepLink) {
			continue
		}
		var c *version.Constraint
		if op, ok := version.ParseOperator(d.Operator); ok {
			c = &version.Constraint{Operator: op, Version: d.Version}
		}
		if in.satisfiedByInstalled(ctx, d.Name, c) {
			continue
		}
		if a, err := in.Store.LookupAssumed(ctx, d.Name); err == nil && a != nil && c.Satisfies(a.Version) {
			continue
		}
		return wrighterrors.New(wrighterrors.KindDependency, "unsatisfied dependency", nil).
			WithPackage(name).WithHint(fmt.Sprintf("%s requires %s %s %s", name, d.Name, d.Operator, d.Version))
	}
	return nil
}

// satisfiedByInstalled checks the named package directly, then every
// installed package's "provides" aliases.
func (in *Installer) satisfiedByInstalled(ctx context.Context, depName string, c *version.Constraint) bool {
	if pkg, err := in.Store.LookupByName(ctx, depName); err == nil && pkg != nil && c.Satisfies(pkg.Version) {
		return true
	}
	providers, err := in.Store.EnumerateDependents(ctx, depName, pkgdb.DepProvides)
	if err != nil {
		return false
	}
	for _, p := range providers {
		if pkg, err := in.Store.LookupByName(ctx, p); err == nil && pkg != nil && c.Satisfies(pkg.Version) {
			return true
		}
	}
	return false
}

func (in *Installer) runHook(ctx context.Context, pkg, phase, script string) {
	if script == "" {
		return
	}
	if err := runShellHook(ctx, in.Root, script); err != nil {
		in.Log.Warn().Err(err).Str("package", pkg).Str("phase", phase).Msg("hook failed")
	}
}
