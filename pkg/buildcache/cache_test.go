package buildcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wrightpm/wright/pkg/plan"
)

func TestKeyIsDeterministic(t *testing.T) {
	in := KeyInput{
		Name: "hello", Version: "1.0.0", Release: 1,
		Sources:   []plan.Source{{URI: "hello.c", SHA256: "SKIP"}},
		Lifecycle: map[string]plan.Stage{"compile": {Executor: "bash", Script: "gcc -o hello hello.c"}},
	}
	k1 := Key(in)
	k2 := Key(in)
	if k1 != k2 {
		t.Fatalf("Key() not deterministic: %q vs %q", k1, k2)
	}
}

func TestKeyChangesWithScript(t *testing.T) {
	base := KeyInput{
		Name: "hello", Version: "1.0.0", Release: 1,
		Lifecycle: map[string]plan.Stage{"compile": {Executor: "bash", Script: "gcc -o hello hello.c"}},
	}
	changed := base
	changed.Lifecycle = map[string]plan.Stage{"compile": {Executor: "bash", Script: "gcc -O2 -o hello hello.c"}}
	if Key(base) == Key(changed) {
		t.Fatal("expected different keys for different scripts")
	}
}

func TestResolveFlagComposition(t *testing.T) {
	cases := []struct {
		name string
		in   Flags
		want Decision
	}{
		{"default", Flags{}, Decision{true, true, true}},
		{"force", Flags{Force: true}, Decision{false, false, true}},
		{"clean", Flags{Clean: true}, Decision{false, false, true}},
		{"stage", Flags{Stage: true}, Decision{false, false, false}},
		{"mvp", Flags{IsMVP: true}, Decision{false, false, false}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Resolve(c.in)
			if got != c.want {
				t.Errorf("Resolve(%+v) = %+v, want %+v", c.in, got, c.want)
			}
		})
	}
}

func TestStoreWriteRestoreRoundtrip(t *testing.T) {
	cacheDir := t.TempDir()
	s := &Store{Dir: cacheDir}

	pkgDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(pkgDir, "usr", "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "usr", "bin", "hello"), []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}

	key := "abc123"
	if s.Exists(key) {
		t.Fatal("cache should not exist yet")
	}
	if err := s.Write(key, map[string]string{"pkg": pkgDir}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Exists(key) {
		t.Fatal("cache should exist after Write")
	}

	restoreDir := t.TempDir()
	if err := s.Restore(key, map[string]string{"pkg": restoreDir}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(restoreDir, "usr", "bin", "hello"))
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if string(data) != "bin" {
		t.Errorf("restored content = %q", data)
	}

	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists(key) {
		t.Fatal("cache should be gone after Delete")
	}
}
