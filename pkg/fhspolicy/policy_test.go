package fhspolicy

import (
	"context"
	"testing"
)

func TestDefaultPolicyAllowsStandardPrefixes(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, "")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for _, p := range []string{"/usr/bin/hello", "/etc/hello.conf", "/var/lib/hello", "/bin/hello", "/opt/hello/bin"} {
		allowed, err := eng.Check(ctx, p)
		if err != nil {
			t.Fatalf("Check(%s): %v", p, err)
		}
		if !allowed {
			t.Errorf("expected %s to be allowed", p)
		}
	}
}

func TestDefaultPolicyRejectsOutsideTree(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, "")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	allowed, err := eng.Check(ctx, "/home/user/.bashrc")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if allowed {
		t.Error("expected /home path to be rejected")
	}
}

func TestCheckAllCollectsEveryViolation(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, "")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	violations, err := eng.CheckAll(ctx, []string{
		"/usr/bin/hello",
		"/home/user/hello",
		"/srv/hello",
	})
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d: %+v", len(violations), violations)
	}
	if violations[0].Path != "/home/user/hello" {
		t.Errorf("violations[0].Path = %q", violations[0].Path)
	}
	if violations[0].Hint == "" {
		t.Error("expected non-empty hint")
	}
}

func TestCustomPolicyOverridesDefault(t *testing.T) {
	ctx := context.Background()
	custom := `
package wright.fhs

default allow = false

allow {
	startswith(input.path, "/custom/")
}
`
	eng, err := NewEngine(ctx, custom)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	allowed, err := eng.Check(ctx, "/custom/thing")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !allowed {
		t.Error("expected custom policy to allow /custom/thing")
	}
	allowed, err = eng.Check(ctx, "/usr/bin/hello")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if allowed {
		t.Error("expected custom policy to reject /usr/bin/hello")
	}
}
