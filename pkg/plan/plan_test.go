package plan

import "testing"

const minimalPlan = `
name = "hello"
version = "1.0.0"
release = 1
architecture = "x86_64"
description = "a minimal plan"
license = "MIT"

sources = ["hello.c"]
sha256 = ["SKIP"]

[lifecycle.compile]
executor = "bash"
script = "gcc -o hello hello.c"

[lifecycle.package]
executor = "bash"
script = "install -Dm755 hello $PKG_DIR/usr/bin/hello"
`

func TestParseMinimalPlan(t *testing.T) {
	p, err := Parse([]byte(minimalPlan), "/tmp/hello")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Name != "hello" {
		t.Errorf("name = %q", p.Name)
	}
	if len(p.Sources) != 1 || p.Sources[0].SHA256 != "SKIP" {
		t.Errorf("sources not normalized: %+v", p.Sources)
	}
}

func TestParseRejectsUnknownTopLevelKey(t *testing.T) {
	bad := minimalPlan + "\nbogus_field = true\n"
	if _, err := Parse([]byte(bad), "/tmp/hello"); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestParseRejectsMismatchedShaCount(t *testing.T) {
	bad := `
name = "hello"
version = "1.0.0"
release = 1
architecture = "x86_64"
description = "d"
license = "MIT"
sources = ["a", "b"]
sha256 = ["SKIP"]
`
	if _, err := Parse([]byte(bad), "/tmp/hello"); err == nil {
		t.Fatal("expected sha256 count mismatch error")
	}
}

func TestValidateRejectsBadName(t *testing.T) {
	bad := `
name = "Hello-World"
version = "1.0.0"
release = 1
architecture = "x86_64"
description = "d"
license = "MIT"
`
	if _, err := Parse([]byte(bad), "/tmp"); err == nil {
		t.Fatal("expected name pattern violation")
	}
}

func TestValidateEmptySourcesIsValid(t *testing.T) {
	ok := `
name = "meta"
version = "1.0.0"
release = 1
architecture = "x86_64"
description = "d"
license = "MIT"

[lifecycle.package]
executor = "bash"
script = "true"
`
	if _, err := Parse([]byte(ok), "/tmp"); err != nil {
		t.Fatalf("empty sources should be valid: %v", err)
	}
}

func TestSubstituteLeavesUnknownLiteral(t *testing.T) {
	out := Substitute("gcc -o ${NAME} ${NAME}.c ${UNKNOWN}", map[string]string{"NAME": "hello"})
	want := "gcc -o hello hello.c ${UNKNOWN}"
	if out != want {
		t.Errorf("Substitute() = %q, want %q", out, want)
	}
}

func TestMergedDependenciesMVPReplacesKind(t *testing.T) {
	p := &Plan{
		Dependencies: map[DependencyKind][]Dependency{
			DepLink: {{Name: "harfbuzz"}},
		},
		MVP: MVPOverlay{
			Dependencies: map[DependencyKind][]Dependency{
				DepLink: {},
			},
		},
	}
	full := MergedDependencies(p, PhaseFull)
	if len(full[DepLink]) != 1 {
		t.Fatalf("full phase should keep main deps")
	}
	mvp := MergedDependencies(p, PhaseMVP)
	if len(mvp[DepLink]) != 0 {
		t.Fatalf("mvp phase should be emptied by overlay, got %+v", mvp[DepLink])
	}
}

func TestResolvedStageOrderDefault(t *testing.T) {
	p := &Plan{}
	order := ResolvedStageOrder(p)
	if order[0] != "fetch" || order[len(order)-1] != "post_package" {
		t.Errorf("unexpected default order: %v", order)
	}
}

func TestSplitNameCollisionRejected(t *testing.T) {
	bad := minimalPlan + "\n[split.hello]\ndescription=\"d\"\n[split.hello.package]\nexecutor=\"bash\"\nscript=\"true\"\n"
	if _, err := Parse([]byte(bad), "/tmp"); err == nil {
		t.Fatal("expected split name collision with main package to be rejected")
	}
}
