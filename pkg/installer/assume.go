package installer

import (
	"context"

	"github.com/wrightpm/wright/pkg/wrighterrors"
)

// Assume records an externally-provided package as satisfying dependency
// constraints without tracking any files (spec.md §4.11 "Assume/unassume
// ... idempotent upsert").
func (in *Installer) Assume(ctx context.Context, name, version string) error {
	if err := in.Store.Assume(ctx, name, version); err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "assume package", err).WithPackage(name)
	}
	return nil
}

// Unassume removes an assumed-package record. It refuses to touch a real
// (file-tracked) installed package: unassume only ever affects the
// assumed table (spec.md §4.11 "cannot remove real packages via
// unassume").
func (in *Installer) Unassume(ctx context.Context, name string) error {
	if pkg, err := in.Store.LookupByName(ctx, name); err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "lookup package", err).WithPackage(name)
	} else if pkg != nil {
		return wrighterrors.New(wrighterrors.KindValidation, "package is a real installed package, not an assumption", nil).WithPackage(name)
	}
	if err := in.Store.Unassume(ctx, name); err != nil {
		return wrighterrors.New(wrighterrors.KindDatabase, "unassume package", err).WithPackage(name)
	}
	return nil
}
