package installer

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wrightpm/wright/pkg/pkgdb"
	"github.com/wrightpm/wright/pkg/telemetry"
	"github.com/wrightpm/wright/pkg/wrighterrors"
)

// Remove uninstalls a package: dependent checks (CRITICAL for a
// link-dependent without --force, an ordinary error for a runtime/build
// dependent without --force/--recursive), shadow-aware file deletion with
// ownership transfer to the most recent overwriter, and journaled
// database deletion.
func (in *Installer) Remove(ctx context.Context, name string, opts Options) (err error) {
	ctx, span := telemetry.StartInstallSpan(ctx, "remove", name)
	defer func() {
		telemetry.RecordInstall("remove", err)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	linkDependents, err := in.Store.EnumerateDependents(ctx, name, pkgdb.DepLink)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "enumerate link dependents", err).WithPackage(name)
	}
	if len(linkDependents) > 0 && !opts.Force {
		return wrighterrors.New(wrighterrors.KindCritical, "package has link dependents", nil).
			WithPackage(name).WithHint(fmt.Sprintf("%s is linked against by: %v; pass --force to remove anyway", name, linkDependents))
	}

	otherDependents, err := in.Store.EnumerateDependents(ctx, name, pkgdb.DepRuntime, pkgdb.DepBuild)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "enumerate dependents", err).WithPackage(name)
	}
	if len(otherDependents) > 0 && !opts.Force && !opts.Recursive {
		return wrighterrors.New(wrighterrors.KindDependency, "package has dependents", nil).
			WithPackage(name).WithHint(fmt.Sprintf("%s is required by: %v; pass --force or --recursive", name, otherDependents))
	}

	if !opts.Recursive {
		return in.removeOne(ctx, name)
	}

	order, err := in.leafFirstClosure(ctx, name)
	if err != nil {
		return err
	}
	for _, n := range order {
		if err := in.removeOne(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// leafFirstClosure collects name plus every transitive dependent, ordered
// so a dependent is removed before the package it depends on.
func (in *Installer) leafFirstClosure(ctx context.Context, name string) ([]string, error) {
	visited := map[string]bool{}
	var order []string
	var walk func(n string) error
	walk = func(n string) error {
		if visited[n] {
			return nil
		}
		visited[n] = true
		deps, err := in.Store.EnumerateDependents(ctx, n, pkgdb.DepRuntime, pkgdb.DepBuild, pkgdb.DepLink)
		if err != nil {
			return wrighterrors.New(wrighterrors.KindDatabase, "enumerate dependents", err).WithPackage(n)
		}
		sort.Strings(deps)
		for _, d := range deps {
			if err := walk(d); err != nil {
				return err
			}
		}
		order = append(order, n)
		return nil
	}
	if err := walk(name); err != nil {
		return nil, err
	}
	return order, nil
}

func (in *Installer) removeOne(ctx context.Context, name string) error {
	txID := newTransactionID()
	tx, err := in.Store.BeginTx(ctx)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "begin remove transaction", err).WithPackage(name)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	pkg, err := in.Store.LookupByName(ctx, name)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "lookup package", err).WithPackage(name)
	}
	if pkg == nil {
		return wrighterrors.New(wrighterrors.KindValidation, "package not installed", nil).WithPackage(name)
	}

	in.runHook(ctx, name, "pre_remove", pkg.PreRemoveScript)

	if err := in.Store.RecordTransactionPending(ctx, tx, pkgdb.Transaction{
		ID: txID, Timestamp: time.Now(), Kind: pkgdb.TxRemove, PackageName: name, OldVersion: pkg.Version,
	}); err != nil {
		return wrighterrors.New(wrighterrors.KindJournal, "record pending remove", err).WithPackage(name)
	}

	if err := in.removeLocked(ctx, tx, name); err != nil {
		in.markRolledBack(ctx, txID)
		return err
	}

	if err := in.Store.MarkTransactionCompleted(ctx, tx, txID); err != nil {
		in.markRolledBack(ctx, txID)
		return wrighterrors.New(wrighterrors.KindJournal, "mark remove completed", err).WithPackage(name)
	}
	if err := tx.Commit(); err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "commit remove transaction", err).WithPackage(name)
	}
	committed = true
	return nil
}

// removeLocked performs the file deletion and DB row removal for name
// inside an already-open transaction. It is shared by removeOne and by
// Install's "replaces" step.
func (in *Installer) removeLocked(ctx context.Context, tx *sql.Tx, name string) error {
	files, err := in.Store.FilesOf(ctx, name)
	if err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "list files", err).WithPackage(name)
	}

	// delete deepest paths first so directories empty out before rmdir.
	sort.Slice(files, func(i, j int) bool { return len(files[i].Path) > len(files[j].Path) })

	for _, f := range files {
		sh, err := in.Store.ShadowOf(ctx, f.Path)
		if err != nil {
			return wrighterrors.New(wrighterrors.KindDatabase, "lookup shadow", err).WithPackage(name)
		}
		if sh != nil && (sh.OverwritingPackage == name || sh.OwningPackage == name) {
			// path is shadowed: either this package's write shadowed the
			// original owner (content on disk belongs to the owner once
			// this package's row is gone) or this package is the original
			// owner and another package's write is currently shadowing it
			// (content on disk belongs to the overwriter). Either way the
			// live file must not be deleted; only the shadow row and
			// whichever package record is being removed changes.
			if err := in.Store.DeleteShadow(ctx, tx, f.Path); err != nil {
				return wrighterrors.New(wrighterrors.KindDatabase, "delete shadow", err).WithPackage(name)
			}
			continue
		}
		path := filepath.Join(in.Root, f.Path)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return wrighterrors.New(wrighterrors.KindCritical, "remove file", err).WithPackage(name)
		}
	}

	if err := in.Store.RemovePackage(ctx, tx, name); err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "remove package row", err).WithPackage(name)
	}
	return nil
}
