package installer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wrightpm/wright/pkg/archive"
	"github.com/wrightpm/wright/pkg/pkgdb"
)

func newTestStore(t *testing.T) *pkgdb.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := pkgdb.New(pkgdb.Config{Path: filepath.Join(dir, "wright.db")})
	if err != nil {
		t.Fatalf("pkgdb.New: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func buildArchive(t *testing.T, info archive.Info, files map[string]string) []byte {
	t.Helper()
	src := t.TempDir()
	for path, content := range files {
		full := filepath.Join(src, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if _, _, err := archive.Pack(&buf, archive.PackInput{Root: src, Info: info}); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	return buf.Bytes()
}

func writeArchiveFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkg.wright.tar.zst")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestInstaller(t *testing.T, store *pkgdb.Store) (*Installer, string) {
	t.Helper()
	root := t.TempDir()
	return &Installer{Log: zerolog.Nop(), Store: store, Root: root}, root
}

func TestInstallWritesFilesAndPackageRow(t *testing.T) {
	store := newTestStore(t)
	in, root := newTestInstaller(t, store)
	ctx := context.Background()

	data := buildArchive(t, archive.Info{Name: "hello", Version: "1.0.0", Release: 1, Architecture: "x86_64"},
		map[string]string{"usr/bin/hello": "binary-content"})
	archivePath := writeArchiveFile(t, data)

	if err := in.Install(ctx, archivePath, Options{}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "usr/bin/hello")); err != nil {
		t.Errorf("expected file placed at root: %v", err)
	}
	pkg, err := store.LookupByName(ctx, "hello")
	if err != nil || pkg == nil {
		t.Fatalf("expected package row, err=%v pkg=%v", err, pkg)
	}
	if pkg.Version != "1.0.0" {
		t.Errorf("version = %q, want 1.0.0", pkg.Version)
	}
}

func TestInstallUnsatisfiedDependencyFails(t *testing.T) {
	store := newTestStore(t)
	in, _ := newTestInstaller(t, store)
	ctx := context.Background()

	data := buildArchive(t, archive.Info{
		Name: "app", Version: "1.0.0", Release: 1, Architecture: "x86_64",
		Dependencies: []archive.DependencyRef{{Kind: "runtime", Name: "libfoo", Operator: ">=", Version: "2.0"}},
	}, map[string]string{"usr/bin/app": "x"})
	archivePath := writeArchiveFile(t, data)

	err := in.Install(ctx, archivePath, Options{})
	if err == nil {
		t.Fatal("expected unsatisfied dependency error")
	}
}

func TestInstallNoDepsSkipsDependencyCheck(t *testing.T) {
	store := newTestStore(t)
	in, _ := newTestInstaller(t, store)
	ctx := context.Background()

	data := buildArchive(t, archive.Info{
		Name: "app", Version: "1.0.0", Release: 1, Architecture: "x86_64",
		Dependencies: []archive.DependencyRef{{Kind: "runtime", Name: "libfoo", Operator: ">=", Version: "2.0"}},
	}, map[string]string{"usr/bin/app": "x"})
	archivePath := writeArchiveFile(t, data)

	if err := in.Install(ctx, archivePath, Options{NoDeps: true}); err != nil {
		t.Fatalf("Install with NoDeps: %v", err)
	}
}

func TestInstallConflictingPackageFails(t *testing.T) {
	store := newTestStore(t)
	in, _ := newTestInstaller(t, store)
	ctx := context.Background()

	base := buildArchive(t, archive.Info{Name: "old", Version: "1.0.0", Release: 1, Architecture: "x86_64"},
		map[string]string{"usr/bin/old": "x"})
	if err := in.Install(ctx, writeArchiveFile(t, base), Options{}); err != nil {
		t.Fatalf("seed install: %v", err)
	}

	conflicting := buildArchive(t, archive.Info{
		Name: "new", Version: "1.0.0", Release: 1, Architecture: "x86_64",
		Dependencies: []archive.DependencyRef{{Kind: "conflicts", Name: "old"}},
	}, map[string]string{"usr/bin/new": "x"})

	err := in.Install(ctx, writeArchiveFile(t, conflicting), Options{})
	if err == nil {
		t.Fatal("expected conflict error")
	}
}

func TestInstallTwiceUpgrades(t *testing.T) {
	store := newTestStore(t)
	in, root := newTestInstaller(t, store)
	ctx := context.Background()

	v1 := buildArchive(t, archive.Info{Name: "hello", Version: "1.0.0", Release: 1, Architecture: "x86_64"},
		map[string]string{"usr/bin/hello": "v1"})
	if err := in.Install(ctx, writeArchiveFile(t, v1), Options{}); err != nil {
		t.Fatalf("install v1: %v", err)
	}

	v2 := buildArchive(t, archive.Info{Name: "hello", Version: "2.0.0", Release: 1, Architecture: "x86_64"},
		map[string]string{"usr/bin/hello": "v2"})
	if err := in.Install(ctx, writeArchiveFile(t, v2), Options{}); err != nil {
		t.Fatalf("install v2 (upgrade): %v", err)
	}

	pkg, err := store.LookupByName(ctx, "hello")
	if err != nil || pkg == nil || pkg.Version != "2.0.0" {
		t.Fatalf("expected version 2.0.0, got %+v err=%v", pkg, err)
	}
	content, err := os.ReadFile(filepath.Join(root, "usr/bin/hello"))
	if err != nil || string(content) != "v2" {
		t.Errorf("expected upgraded content v2, got %q err=%v", content, err)
	}
}

func TestUpgradeRemovesStaleFiles(t *testing.T) {
	store := newTestStore(t)
	in, root := newTestInstaller(t, store)
	ctx := context.Background()

	v1 := buildArchive(t, archive.Info{Name: "hello", Version: "1.0.0", Release: 1, Architecture: "x86_64"},
		map[string]string{"usr/bin/hello": "v1", "usr/share/hello/old-doc": "doc"})
	if err := in.Install(ctx, writeArchiveFile(t, v1), Options{}); err != nil {
		t.Fatalf("install v1: %v", err)
	}

	v2 := buildArchive(t, archive.Info{Name: "hello", Version: "2.0.0", Release: 1, Architecture: "x86_64"},
		map[string]string{"usr/bin/hello": "v2"})
	if err := in.Install(ctx, writeArchiveFile(t, v2), Options{}); err != nil {
		t.Fatalf("install v2: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "usr/share/hello/old-doc")); !os.IsNotExist(err) {
		t.Errorf("expected stale file removed, stat err=%v", err)
	}
}

func TestRemoveDeletesFilesAndRow(t *testing.T) {
	store := newTestStore(t)
	in, root := newTestInstaller(t, store)
	ctx := context.Background()

	data := buildArchive(t, archive.Info{Name: "hello", Version: "1.0.0", Release: 1, Architecture: "x86_64"},
		map[string]string{"usr/bin/hello": "x"})
	if err := in.Install(ctx, writeArchiveFile(t, data), Options{}); err != nil {
		t.Fatalf("install: %v", err)
	}

	if err := in.Remove(ctx, "hello", Options{}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "usr/bin/hello")); !os.IsNotExist(err) {
		t.Errorf("expected file removed, stat err=%v", err)
	}
	pkg, err := store.LookupByName(ctx, "hello")
	if err != nil {
		t.Fatalf("LookupByName: %v", err)
	}
	if pkg != nil {
		t.Errorf("expected package row removed, got %+v", pkg)
	}
}

func TestRemoveRefusesLinkDependentWithoutForce(t *testing.T) {
	store := newTestStore(t)
	in, _ := newTestInstaller(t, store)
	ctx := context.Background()

	lib := buildArchive(t, archive.Info{Name: "libfoo", Version: "1.0.0", Release: 1, Architecture: "x86_64"},
		map[string]string{"usr/lib/libfoo.so": "x"})
	if err := in.Install(ctx, writeArchiveFile(t, lib), Options{}); err != nil {
		t.Fatalf("install lib: %v", err)
	}
	app := buildArchive(t, archive.Info{
		Name: "app", Version: "1.0.0", Release: 1, Architecture: "x86_64",
		Dependencies: []archive.DependencyRef{{Kind: "link", Name: "libfoo"}},
	}, map[string]string{"usr/bin/app": "x"})
	if err := in.Install(ctx, writeArchiveFile(t, app), Options{NoDeps: true}); err != nil {
		t.Fatalf("install app: %v", err)
	}

	if err := in.Remove(ctx, "libfoo", Options{}); err == nil {
		t.Fatal("expected CRITICAL error removing a link-dependency without --force")
	}
	if err := in.Remove(ctx, "libfoo", Options{Force: true}); err != nil {
		t.Fatalf("Remove with Force: %v", err)
	}
}

func TestAssumeUnassumeRoundtrip(t *testing.T) {
	store := newTestStore(t)
	in, _ := newTestInstaller(t, store)
	ctx := context.Background()

	if err := in.Assume(ctx, "external-lib", "3.2.1"); err != nil {
		t.Fatalf("Assume: %v", err)
	}
	a, err := store.LookupAssumed(ctx, "external-lib")
	if err != nil || a == nil || a.Version != "3.2.1" {
		t.Fatalf("expected assumed record, got %+v err=%v", a, err)
	}
	if err := in.Unassume(ctx, "external-lib"); err != nil {
		t.Fatalf("Unassume: %v", err)
	}
	a, err = store.LookupAssumed(ctx, "external-lib")
	if err != nil || a != nil {
		t.Fatalf("expected assumed record gone, got %+v err=%v", a, err)
	}
}

func TestUnassumeRefusesRealPackage(t *testing.T) {
	store := newTestStore(t)
	in, _ := newTestInstaller(t, store)
	ctx := context.Background()

	data := buildArchive(t, archive.Info{Name: "hello", Version: "1.0.0", Release: 1, Architecture: "x86_64"},
		map[string]string{"usr/bin/hello": "x"})
	if err := in.Install(ctx, writeArchiveFile(t, data), Options{}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := in.Unassume(ctx, "hello"); err == nil {
		t.Fatal("expected error unassuming a real installed package")
	}
}

func TestDoctorReportsUnsatisfiedDependency(t *testing.T) {
	store := newTestStore(t)
	in, _ := newTestInstaller(t, store)
	ctx := context.Background()

	data := buildArchive(t, archive.Info{
		Name: "app", Version: "1.0.0", Release: 1, Architecture: "x86_64",
		Dependencies: []archive.DependencyRef{{Kind: "runtime", Name: "libfoo", Operator: ">=", Version: "2.0"}},
	}, map[string]string{"usr/bin/app": "x"})
	if err := in.Install(ctx, writeArchiveFile(t, data), Options{NoDeps: true}); err != nil {
		t.Fatalf("install: %v", err)
	}

	rep, err := in.Doctor(ctx)
	if err != nil {
		t.Fatalf("Doctor: %v", err)
	}
	if len(rep.UnsatisfiedDeps) != 1 {
		t.Errorf("expected 1 unsatisfied dependency, got %+v", rep.UnsatisfiedDeps)
	}
	if rep.IntegrityError != "" {
		t.Errorf("expected clean integrity check, got %q", rep.IntegrityError)
	}
}

func TestRecoverIncompleteMarksPendingRolledBack(t *testing.T) {
	store := newTestStore(t)
	in, _ := newTestInstaller(t, store)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := store.RecordTransactionPending(ctx, tx, pkgdb.Transaction{
		ID: "stale-tx", Kind: pkgdb.TxInstall, PackageName: "crashed-pkg",
	}); err != nil {
		t.Fatalf("RecordTransactionPending: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	recovered, err := in.RecoverIncomplete(ctx)
	if err != nil {
		t.Fatalf("RecoverIncomplete: %v", err)
	}
	if len(recovered) != 1 || recovered[0].ID != "stale-tx" {
		t.Fatalf("expected stale-tx recovered, got %+v", recovered)
	}

	pending, err := store.ListIncompleteTransactions(ctx)
	if err != nil {
		t.Fatalf("ListIncompleteTransactions: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending transactions after recovery, got %+v", pending)
	}
}

func TestVerifyDetectsModifiedAndMissingFiles(t *testing.T) {
	store := newTestStore(t)
	in, root := newTestInstaller(t, store)
	ctx := context.Background()

	data := buildArchive(t, archive.Info{Name: "hello", Version: "1.0.0", Release: 1, Architecture: "x86_64"},
		map[string]string{
			"usr/bin/hello": "original-content",
			"usr/bin/world": "untouched",
		})
	if err := in.Install(ctx, writeArchiveFile(t, data), Options{}); err != nil {
		t.Fatalf("install: %v", err)
	}

	if mismatches, err := in.Verify(ctx, "hello"); err != nil || len(mismatches) != 0 {
		t.Fatalf("expected clean verify before tampering, got mismatches=%+v err=%v", mismatches, err)
	}

	if err := os.WriteFile(filepath.Join(root, "usr/bin/hello"), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(root, "usr/bin/world")); err != nil {
		t.Fatal(err)
	}

	mismatches, err := in.Verify(ctx, "hello")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(mismatches) != 2 {
		t.Fatalf("expected 2 mismatches, got %+v", mismatches)
	}
	byPath := make(map[string]Mismatch, len(mismatches))
	for _, m := range mismatches {
		byPath[m.Path] = m
	}
	if m, ok := byPath["/usr/bin/hello"]; !ok || m.Kind != "modified" {
		t.Errorf("expected /usr/bin/hello modified, got %+v", byPath["/usr/bin/hello"])
	}
	if m, ok := byPath["/usr/bin/world"]; !ok || m.Kind != "missing" {
		t.Errorf("expected /usr/bin/world missing, got %+v", byPath["/usr/bin/world"])
	}
}

func TestRemoveRunsPreRemoveHook(t *testing.T) {
	store := newTestStore(t)
	in, root := newTestInstaller(t, store)
	ctx := context.Background()

	marker := filepath.Join(root, "pre-remove-ran")
	data := buildArchive(t, archive.Info{
		Name: "hello", Version: "1.0.0", Release: 1, Architecture: "x86_64",
		PreRemove: "touch " + marker,
	}, map[string]string{"usr/bin/hello": "x"})
	if err := in.Install(ctx, writeArchiveFile(t, data), Options{}); err != nil {
		t.Fatalf("install: %v", err)
	}

	if err := in.Remove(ctx, "hello", Options{}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("expected pre_remove hook to have run, stat err=%v", err)
	}
}
