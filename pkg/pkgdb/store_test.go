package pkgdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(Config{Path: filepath.Join(dir, "wright.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleBundle(name string) InstallBundle {
	return InstallBundle{
		Package: Package{
			Name:             name,
			Version:          "1.0.0",
			Release:          1,
			Architecture:     "x86_64",
			Description:      "sample",
			License:          "MIT",
			InstallTimestamp: time.Unix(1700000000, 0).UTC(),
			InstallSize:      1024,
			ArchiveHash:      "deadbeef",
		},
		Files: []File{
			{PackageName: name, Path: "/usr/bin/" + name, Kind: FileRegular, Mode: 0o755, Size: 1024, Hash: "abc"},
		},
		Dependencies: []Dependency{
			{PackageName: name, Kind: DepRuntime, DepName: "glibc", Operator: ">=", Version: "2.38"},
		},
	}
}

func TestInsertAndLookupPackage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := s.InsertPackage(ctx, tx, sampleBundle("hello")); err != nil {
		t.Fatalf("InsertPackage: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	pkg, err := s.LookupByName(ctx, "hello")
	if err != nil {
		t.Fatalf("LookupByName: %v", err)
	}
	if pkg == nil || pkg.Version != "1.0.0" {
		t.Fatalf("unexpected package: %+v", pkg)
	}

	owner, err := s.OwnerOfPath(ctx, "/usr/bin/hello")
	if err != nil {
		t.Fatalf("OwnerOfPath: %v", err)
	}
	if owner != "hello" {
		t.Errorf("OwnerOfPath() = %q, want hello", owner)
	}
}

func TestRemovePackageCascadesFilesAndDeps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, _ := s.BeginTx(ctx)
	if err := s.InsertPackage(ctx, tx, sampleBundle("hello")); err != nil {
		t.Fatalf("InsertPackage: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx2, _ := s.BeginTx(ctx)
	if err := s.RemovePackage(ctx, tx2, "hello"); err != nil {
		t.Fatalf("RemovePackage: %v", err)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	pkg, err := s.LookupByName(ctx, "hello")
	if err != nil {
		t.Fatalf("LookupByName: %v", err)
	}
	if pkg != nil {
		t.Fatalf("expected package to be gone, got %+v", pkg)
	}
	files, err := s.FilesOf(ctx, "hello")
	if err != nil {
		t.Fatalf("FilesOf: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected cascade delete of files, got %v", files)
	}
}

func TestEnumerateDependents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, _ := s.BeginTx(ctx)
	if err := s.InsertPackage(ctx, tx, sampleBundle("hello")); err != nil {
		t.Fatalf("InsertPackage: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	dependents, err := s.EnumerateDependents(ctx, "glibc")
	if err != nil {
		t.Fatalf("EnumerateDependents: %v", err)
	}
	if len(dependents) != 1 || dependents[0] != "hello" {
		t.Errorf("EnumerateDependents() = %v", dependents)
	}

	none, err := s.EnumerateDependents(ctx, "glibc", DepLink)
	if err != nil {
		t.Fatalf("EnumerateDependents filtered: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no link dependents, got %v", none)
	}
}

func TestTransactionJournalLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	txn := Transaction{
		ID:          "txn-1",
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		Kind:        TxInstall,
		PackageName: "hello",
		NewVersion:  "1.0.0",
	}

	tx, _ := s.BeginTx(ctx)
	if err := s.RecordTransactionPending(ctx, tx, txn); err != nil {
		t.Fatalf("RecordTransactionPending: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	pending, err := s.ListIncompleteTransactions(ctx)
	if err != nil {
		t.Fatalf("ListIncompleteTransactions: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "txn-1" {
		t.Fatalf("unexpected pending set: %+v", pending)
	}

	tx2, _ := s.BeginTx(ctx)
	if err := s.MarkTransactionCompleted(ctx, tx2, "txn-1"); err != nil {
		t.Fatalf("MarkTransactionCompleted: %v", err)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	pending, err = s.ListIncompleteTransactions(ctx)
	if err != nil {
		t.Fatalf("ListIncompleteTransactions: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending transactions after completion, got %+v", pending)
	}
}

func TestShadowRecordRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, _ := s.BeginTx(ctx)
	sh := Shadow{Path: "/usr/share/doc/README", OwningPackage: "a", OverwritingPackage: "b"}
	if err := s.MarkFileAsShadow(ctx, tx, sh); err != nil {
		t.Fatalf("MarkFileAsShadow: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := s.ShadowOf(ctx, sh.Path)
	if err != nil {
		t.Fatalf("ShadowOf: %v", err)
	}
	if got == nil || got.OverwritingPackage != "b" {
		t.Fatalf("unexpected shadow: %+v", got)
	}
}

func TestAssumeUnassumeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Assume(ctx, "kernel-headers", "6.5"); err != nil {
		t.Fatalf("Assume: %v", err)
	}
	if err := s.Assume(ctx, "kernel-headers", "6.6"); err != nil {
		t.Fatalf("Assume (update): %v", err)
	}
	a, err := s.LookupAssumed(ctx, "kernel-headers")
	if err != nil {
		t.Fatalf("LookupAssumed: %v", err)
	}
	if a == nil || a.Version != "6.6" {
		t.Fatalf("unexpected assumed record: %+v", a)
	}

	if err := s.Unassume(ctx, "kernel-headers"); err != nil {
		t.Fatalf("Unassume: %v", err)
	}
	a, err = s.LookupAssumed(ctx, "kernel-headers")
	if err != nil {
		t.Fatalf("LookupAssumed after unassume: %v", err)
	}
	if a != nil {
		t.Errorf("expected nil after unassume, got %+v", a)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestStore(t)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
