package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wrightpm/wright/pkg/plan"
)

func samplePlan() *plan.Plan {
	return &plan.Plan{
		Name: "hello", PlanVersion: "1.0.0", Release: 1, Architecture: "x86_64",
		Description: "hello world", License: "MIT",
		Dependencies: map[plan.DependencyKind][]plan.Dependency{
			plan.DepBuild: {{Name: "gcc"}},
		},
		Lifecycle: map[string]plan.Stage{
			"compile": {Executor: "bash", Script: "gcc -o hello hello.c"},
			"package": {Executor: "bash", Script: "install -Dm755 hello $PKG_DIR/usr/bin/hello"},
		},
		MVP: plan.MVPOverlay{
			Dependencies: map[plan.DependencyKind][]plan.Dependency{plan.DepBuild: {}},
		},
	}
}

func TestPrepareWorkspaceCreatesAllDirs(t *testing.T) {
	dir := t.TempDir()
	job := &Job{Plan: samplePlan(), BuildDir: dir}
	ws, err := prepareWorkspace(job)
	if err != nil {
		t.Fatalf("prepareWorkspace: %v", err)
	}
	for _, d := range []string{ws.Src, ws.Pkg, ws.Files, ws.Log} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("expected directory %s to exist", d)
		}
	}
}

func TestPrepareWorkspaceStageModePreservesSrc(t *testing.T) {
	dir := t.TempDir()
	job := &Job{Plan: samplePlan(), BuildDir: dir, Flags: Flags{Stage: true}}
	ws, err := prepareWorkspace(job)
	if err != nil {
		t.Fatalf("prepareWorkspace: %v", err)
	}
	marker := filepath.Join(ws.Src, "marker")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := prepareWorkspace(job); err != nil {
		t.Fatalf("second prepareWorkspace: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Error("expected src/ marker to survive stage-mode re-prepare")
	}
}

func TestVariableMapFillsRequiredKeys(t *testing.T) {
	job := &Job{Plan: samplePlan(), Arch: "x86_64", Phase: plan.PhaseFull}
	ws := Workspace{Src: "/ws/src", Pkg: "/ws/pkg", Files: "/ws/files"}
	vars := variableMap(job, ws, "/ws/src", nil, false)
	for _, key := range []string{"PKG_NAME", "PKG_VERSION", "PKG_RELEASE", "PKG_ARCH", "SRC_DIR", "BUILD_DIR", "PKG_DIR", "FILES_DIR", "CFLAGS", "CXXFLAGS", "WRIGHT_BUILD_PHASE"} {
		if _, ok := vars[key]; !ok {
			t.Errorf("missing variable %s", key)
		}
	}
	if vars["WRIGHT_BUILD_PHASE"] != "full" {
		t.Errorf("WRIGHT_BUILD_PHASE = %q", vars["WRIGHT_BUILD_PHASE"])
	}
}

func TestVariableMapMVPInjectsBootstrapWithout(t *testing.T) {
	job := &Job{Plan: samplePlan(), Arch: "x86_64", Phase: plan.PhaseMVP}
	ws := Workspace{Src: "/ws/src", Pkg: "/ws/pkg", Files: "/ws/files"}
	vars := variableMap(job, ws, "/ws/src", nil, false)
	if vars["WRIGHT_BOOTSTRAP_WITHOUT_gcc"] != "1" {
		t.Errorf("expected WRIGHT_BOOTSTRAP_WITHOUT_gcc=1, got vars=%+v", vars)
	}
}

func TestArchivesExistFalseWhenMissing(t *testing.T) {
	job := &Job{Plan: samplePlan(), Arch: "x86_64", ComponentsDir: t.TempDir()}
	if archivesExist(job) {
		t.Error("expected archivesExist to be false for empty components dir")
	}
}

func TestArchivesExistTrueWhenPresent(t *testing.T) {
	dir := t.TempDir()
	job := &Job{Plan: samplePlan(), Arch: "x86_64", ComponentsDir: dir}
	name := "hello-1.0.0-1-x86_64.wright.tar.zst"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !archivesExist(job) {
		t.Error("expected archivesExist to be true")
	}
}

func TestDefaultFetcherLocalCopy(t *testing.T) {
	src := filepath.Join(t.TempDir(), "hello.c")
	if err := os.WriteFile(src, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}
	destDir := t.TempDir()
	f := NewDefaultFetcher()
	path, err := f.Fetch(src, destDir, "hello")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fetched: %v", err)
	}
	if string(data) != "int main(){}" {
		t.Errorf("fetched content = %q", data)
	}
}

func TestResolveBuildDirSingleTopLevelDir(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(srcDir, "hello-1.0.0"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := resolveBuildDir(srcDir)
	if err != nil {
		t.Fatalf("resolveBuildDir: %v", err)
	}
	if got != filepath.Join(srcDir, "hello-1.0.0") {
		t.Errorf("resolveBuildDir() = %q", got)
	}
}

func TestResolveBuildDirFallsBackToSrcDir(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.c"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "b.c"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := resolveBuildDir(srcDir)
	if err != nil {
		t.Fatalf("resolveBuildDir: %v", err)
	}
	if got != srcDir {
		t.Errorf("resolveBuildDir() = %q, want %q", got, srcDir)
	}
}
