// Package pkgdb is the durable record of installed packages, files,
// dependencies, transactions, and shadowing (spec.md §3 "Installed-package
// record", "Transaction journal"; §4.3). It is grounded on the teacher's
// pkg/stores.SQLiteStore: the same WAL-mode modernc.org/sqlite +
// golang-migrate embedded-migration setup, and a BeginTx entry point whose
// *sql.Tx callers commit or roll back directly, generalized from the
// teacher's run/plan-unit/resource-state schema to Wright's
// package/file/dependency/shadow/transaction/assumed schema.
package pkgdb

import "time"

// FileKind is the closed set of file kinds an archive entry may carry
// (spec.md §3).
type FileKind string

const (
	FileRegular FileKind = "regular"
	FileDir     FileKind = "dir"
	FileSymlink FileKind = "symlink"
	FileFifo    FileKind = "fifo"
	FileChar    FileKind = "char"
	FileBlock   FileKind = "block"
)

// DependencyKind mirrors plan.DependencyKind without importing the plan
// package, keeping pkgdb's schema independent of the plan parser.
type DependencyKind string

const (
	DepBuild     DependencyKind = "build"
	DepLink      DependencyKind = "link"
	DepRuntime   DependencyKind = "runtime"
	DepReplaces  DependencyKind = "replaces"
	DepConflicts DependencyKind = "conflicts"
	DepProvides  DependencyKind = "provides"
	DepOptional  DependencyKind = "optional"
)

// TransactionKind is the closed set of journal operation kinds.
type TransactionKind string

const (
	TxInstall TransactionKind = "install"
	TxUpgrade TransactionKind = "upgrade"
	TxRemove  TransactionKind = "remove"
	TxAssume  TransactionKind = "assume"
)

// TransactionStatus is the journal entry state machine (spec.md §4.11
// "pending -> {completed | rolled_back}").
type TransactionStatus string

const (
	TxPending    TransactionStatus = "pending"
	TxCompleted  TransactionStatus = "completed"
	TxRolledBack TransactionStatus = "rolled_back"
)

// Package is one installed-package row.
type Package struct {
	Name             string
	Version          string
	Release          int
	Architecture     string
	Description      string
	License          string
	UpstreamURL      string
	Maintainer       string
	InstallTimestamp time.Time
	InstallSize      int64
	ArchiveHash      string
	PreRemoveScript  string // run before Remove deletes this package's files
}

// File is one tracked file belonging to an installed package.
type File struct {
	PackageName string
	Path        string
	Kind        FileKind
	Mode        uint32
	Size        int64
	Hash        string
	IsConfig    bool
}

// Dependency is one dependency edge recorded for an installed package.
type Dependency struct {
	PackageName string
	Kind        DependencyKind
	DepName     string
	Operator    string
	Version     string
}

// Shadow records a file-ownership overlap created by --force installs
// (spec.md §3 "shadow records").
type Shadow struct {
	Path                string
	OwningPackage       string
	OverwritingPackage  string
}

// Transaction is one append-only journal row (spec.md §3 "Transaction
// journal").
type Transaction struct {
	ID          string
	Timestamp   time.Time
	Kind        TransactionKind
	PackageName string
	OldVersion  string
	NewVersion  string
	Status      TransactionStatus
	BackupPath  string
}

// Assumed is an externally-provided package satisfying constraints without
// file tracking (spec.md §3, §4.11 "Assume/unassume").
type Assumed struct {
	Name    string
	Version string
}

// InstallBundle is the atomic unit insert-package writes in one
// transaction: a package row, its files, and its dependency edges
// (spec.md §4.3 "insert-package (atomic bundle of package+files+deps)").
type InstallBundle struct {
	Package      Package
	Files        []File
	Dependencies []Dependency
}
