package wrightcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wrightpm/wright/pkg/plan"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Build.Dockyards != DefaultConfig().Build.Dockyards {
		t.Errorf("expected default dockyards, got %d", cfg.Build.Dockyards)
	}
}

func TestParseConfigFillsOmittedFieldsFromDefaults(t *testing.T) {
	data := []byte(`
[build]
dockyards = 8

[paths]
hold_tree = "/srv/wright/plans"
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Build.Dockyards != 8 {
		t.Errorf("expected dockyards=8, got %d", cfg.Build.Dockyards)
	}
	if cfg.Paths.HoldTree != "/srv/wright/plans" {
		t.Errorf("expected overridden hold_tree, got %s", cfg.Paths.HoldTree)
	}
	def := DefaultConfig()
	if cfg.Paths.ComponentsDir != def.Paths.ComponentsDir {
		t.Errorf("expected default components_dir, got %s", cfg.Paths.ComponentsDir)
	}
	if cfg.Logging.Level != def.Logging.Level {
		t.Errorf("expected default logging level, got %s", cfg.Logging.Level)
	}
	if cfg.Telemetry.TraceExporter != def.Telemetry.TraceExporter {
		t.Errorf("expected default trace_exporter, got %s", cfg.Telemetry.TraceExporter)
	}
}

func TestParseConfigRejectsUnknownTopLevelKey(t *testing.T) {
	_, err := ParseConfig([]byte(`[bogus]
key = "value"
`))
	if err == nil {
		t.Fatal("expected error for unknown top-level table")
	}
}

func TestReposRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.toml")
	in := []RepoEntry{
		{Name: "core", URL: "https://example.invalid/core", Priority: 10},
		{Name: "extra", URL: "https://example.invalid/extra", Priority: 5},
	}
	if err := SaveRepos(path, in); err != nil {
		t.Fatalf("SaveRepos: %v", err)
	}
	out, err := LoadRepos(path)
	if err != nil {
		t.Fatalf("LoadRepos: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d repos, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("repo %d: expected %+v, got %+v", i, in[i], out[i])
		}
	}
}

func TestLoadReposMissingFileReturnsNil(t *testing.T) {
	repos, err := LoadRepos(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadRepos: %v", err)
	}
	if repos != nil {
		t.Errorf("expected nil repos for missing file, got %+v", repos)
	}
}

func TestLoadExecutorsAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "make.toml"), `
name = "make"
command = "/usr/bin/make"
args_prefix = ["-j4"]
`)
	defs, err := LoadExecutors(dir)
	if err != nil {
		t.Fatalf("LoadExecutors: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 executor, got %d", len(defs))
	}
	d := defs[0]
	if d.Name != "make" || d.Command != "/usr/bin/make" {
		t.Errorf("unexpected executor: %+v", d)
	}
	if d.Delivery != plan.DeliveryTempfile {
		t.Errorf("expected default delivery tempfile, got %s", d.Delivery)
	}
	if d.DefaultDockyard != plan.DockyardRelaxed {
		t.Errorf("expected default dockyard relaxed, got %s", d.DefaultDockyard)
	}
}

func TestLoadExecutorsRequiresName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.toml"), `command = "/bin/true"`)
	if _, err := LoadExecutors(dir); err == nil {
		t.Fatal("expected error for executor missing a name")
	}
}

func TestLoadAssemblies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "base.toml"), `
name = "base"
description = "minimal bootable system"
packages = ["glibc", "busybox"]
`)
	out, err := LoadAssemblies(dir)
	if err != nil {
		t.Fatalf("LoadAssemblies: %v", err)
	}
	if len(out) != 1 || out[0].Name != "base" || len(out[0].Packages) != 2 {
		t.Fatalf("unexpected assemblies: %+v", out)
	}
}

func TestLoadFHSPolicyMissingFileReturnsEmpty(t *testing.T) {
	src, err := LoadFHSPolicy(filepath.Join(t.TempDir(), "missing.rego"))
	if err != nil {
		t.Fatalf("LoadFHSPolicy: %v", err)
	}
	if src != "" {
		t.Errorf("expected empty policy source, got %q", src)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
