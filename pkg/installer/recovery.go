package installer

import (
	"context"
	"fmt"

	"github.com/wrightpm/wright/pkg/pkgdb"
)

// RecoverIncomplete rolls back every journal entry still marked pending,
// called once at process startup (spec.md §4.11 "crash-recovery at
// startup"). A pending entry means the process died between
// RecordTransactionPending and MarkTransactionCompleted; since neither
// install/upgrade/remove writes their final DB rows before that point,
// the only remaining cleanup is marking the journal entry rolled back so
// it stops showing up as in-flight. Files placed before the crash are
// left as-is: a subsequent install/upgrade of the same package will
// overwrite them, and doctor surfaces any orphaned shadow rows.
func (in *Installer) RecoverIncomplete(ctx context.Context) ([]pkgdb.Transaction, error) {
	pending, err := in.Store.ListIncompleteTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("installer: list incomplete transactions: %w", err)
	}
	for _, t := range pending {
		if err := in.Store.MarkTransactionRolledBack(ctx, t.ID); err != nil {
			return nil, fmt.Errorf("installer: mark transaction %s rolled back: %w", t.ID, err)
		}
		in.Log.Warn().Str("transaction", t.ID).Str("package", t.PackageName).Str("kind", string(t.Kind)).
			Msg("recovered incomplete transaction from previous run")
	}
	return pending, nil
}
