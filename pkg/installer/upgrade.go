package installer

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/wrightpm/wright/pkg/archive"
	"github.com/wrightpm/wright/pkg/pkgdb"
	"github.com/wrightpm/wright/pkg/telemetry"
	"github.com/wrightpm/wright/pkg/wrighterrors"
)

// Upgrade replaces an already-installed package with a newer archive:
// snapshot old files to a backup path first, remove files absent from the
// new version, and preserve backup-listed files rather than overwriting
// them in place.
func (in *Installer) Upgrade(ctx context.Context, archivePath string, opts Options) (err error) {
	ctx, span := telemetry.StartInstallSpan(ctx, "upgrade", archivePath)
	defer func() {
		telemetry.RecordInstall("upgrade", err)
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

	old, err := in.Store.LookupByName(ctx, name)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "lookup existing package", err).WithPackage(name)
	}
	if old == nil {
		return in.Install(ctx, archivePath, opts)
	}

	_, conflicts := splitSpecialDeps(info.Dependencies)
	if !opts.NoDeps {
		if err := in.checkConflicts(ctx, name, conflicts); err != nil {
			return err
		}
		if err := in.checkDependencies(ctx, name, info.Dependencies); err != nil {
			return err
		}
	}

	oldFiles, err := in.Store.FilesOf(ctx, name)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "list old files", err).WithPackage(name)
	}

	backupDir, err := os.MkdirTemp("", "wright-upgrade-backup-*")
	if err != nil {
		return wrighterrors.New(wrighterrors.KindCritical, "create backup dir", err).WithPackage(name)
	}
	defer os.RemoveAll(backupDir)
	if err := snapshotFiles(in.Root, backupDir, oldFiles); err != nil {
		return wrighterrors.New(wrighterrors.KindCritical, "snapshot old files", err).WithPackage(name)
	}

	txID := newTransactionID()
	tx, err := in.Store.BeginTx(ctx)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "begin upgrade transaction", err).WithPackage(name)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := in.Store.RecordTransactionPending(ctx, tx, pkgdb.Transaction{
		ID: txID, Timestamp: time.Now(), Kind: pkgdb.TxUpgrade, PackageName: name,
		OldVersion: old.Version, NewVersion: info.Version, BackupPath: backupDir,
	}); err != nil {
		return wrighterrors.New(wrighterrors.KindJournal, "record pending upgrade", err).WithPackage(name)
	}

	scratch, err := os.MkdirTemp("", "wright-upgrade-*")
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

	backupFiles := unionBackupLists(info.BackupFiles, oldFiles)
	moved, err := in.placeFiles(ctx, tx, name, scratch, backupFiles, Options{Force: true})
	if err != nil {
		in.restoreSnapshot(backupDir, oldFiles)
		in.markRolledBack(ctx, txID)
		return err
	}

	removeStaleFiles(in.Root, oldFiles, moved)

	if err := in.Store.RemovePackage(ctx, tx, name); err != nil {
		in.undoMoved(moved)
		in.markRolledBack(ctx, txID)
		return wrighterrors.New(wrighterrors.KindDatabase, "remove old package row", err).WithPackage(name)
	}

	bundle := pkgdb.InstallBundle{
		Package: pkgdb.Package{
			Name: name, Version: info.Version, Release: info.Release, Architecture: info.Architecture,
			Description: info.Description, License: info.License, UpstreamURL: info.UpstreamURL,
			Maintainer: info.Maintainer, InstallTimestamp: time.Now(),
			PreRemoveScript: info.PreRemove,
		},
	}
	var installSize int64
	for _, m := range moved {
		bundle.Files = append(bundle.Files, pkgdb.File{
			PackageName: name, Path: m.path, Kind: pkgdb.FileKind(m.entry.Kind),
			Mode: m.entry.Mode, Size: m.entry.Size, Hash: hashes[m.path],
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
		return wrighterrors.New(wrighterrors.KindDatabase, "insert upgraded package rows", err).WithPackage(name)
	}

	if err := in.Store.MarkTransactionCompleted(ctx, tx, txID); err != nil {
		in.undoMoved(moved)
		in.markRolledBack(ctx, txID)
		return wrighterrors.New(wrighterrors.KindJournal, "mark upgrade completed", err).WithPackage(name)
	}
	if err := tx.Commit(); err != nil {
		in.undoMoved(moved)
		return wrighterrors.New(wrighterrors.KindDatabase, "commit upgrade transaction", err).WithPackage(name)
	}
	committed = true

	if ar.Install != "" {
		in.runHook(ctx, name, "post_upgrade", ar.Install)
	}
	return nil
}

func snapshotFiles(root, backupDir string, files []pkgdb.File) error {
	for _, f := range files {
		if f.Kind != pkgdb.FileRegular {
			continue
		}
		src := filepath.Join(root, f.Path)
		dest := filepath.Join(backupDir, f.Path)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		data, err := os.ReadFile(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := os.WriteFile(dest, data, 0o600); err != nil {
			return err
		}
	}
	return nil
}

func (in *Installer) restoreSnapshot(backupDir string, files []pkgdb.File) {
	for _, f := range files {
		if f.Kind != pkgdb.FileRegular {
			continue
		}
		src := filepath.Join(backupDir, f.Path)
		dest := filepath.Join(in.Root, f.Path)
		data, err := os.ReadFile(src)
		if err != nil {
			continue
		}
		_ = os.WriteFile(dest, data, 0o600)
	}
}

// unionBackupLists merges the new archive's declared backup paths with
// every config file the old installation tracked, so a user's edited
// config is never silently clobbered by an upgrade.
func unionBackupLists(declared []string, oldFiles []pkgdb.File) []string {
	set := make(map[string]bool, len(declared))
	out := append([]string(nil), declared...)
	for _, d := range declared {
		set[d] = true
	}
	for _, f := range oldFiles {
		if f.IsConfig && !set[f.Path] {
			set[f.Path] = true
			out = append(out, f.Path)
		}
	}
	return out
}

// removeStaleFiles deletes paths the old package tracked that the new
// version no longer places (spec.md §4.11 "remove files absent in new
// version").
func removeStaleFiles(root string, oldFiles []pkgdb.File, moved []movedFile) {
	keep := make(map[string]bool, len(moved))
	for _, m := range moved {
		keep[m.path] = true
	}
	for _, f := range oldFiles {
		if keep[f.Path] {
			continue
		}
		_ = os.Remove(filepath.Join(root, f.Path))
	}
}
