// Package installer implements the transactional install/upgrade/remove/
// assume/unassume/doctor operations of spec.md §4.11, funneling every
// mutation through pkgdb's transaction journal so a crash mid-operation
// leaves the live filesystem and the database either wholly pre-state or
// wholly post-state, never a mixture.
//
// Grounded on the teacher's pkg/providers/host (file move/ownership
// primitives over a live root) and pkg/stores transaction triple, adapted
// from OpenFroyo's generic resource-apply lifecycle to Wright's specific
// install/upgrade/remove state machine.
package installer

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wrightpm/wright/pkg/pkgdb"
)

// Installer drives install/upgrade/remove/assume/doctor against a live
// root.
type Installer struct {
	Log   zerolog.Logger
	Store *pkgdb.Store
	Root  string // live filesystem root, "/" in production
}

// Options carries the per-call switches spec.md §4.11 and §6 name.
type Options struct {
	Force     bool // bypass FileConflictError on shadow overlap
	NoDeps    bool // skip dependency evaluation
	Recursive bool // --recursive for remove: collect transitive dependents
}

func newTransactionID() string { return uuid.NewString() }
