package dockyard

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDefaultMountsIncludesSystemDirs(t *testing.T) {
	binds := DefaultMounts()
	found := false
	for _, b := range binds {
		if b.Source == "/usr" && b.ReadOnly {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected read-only /usr bind, got %+v", binds)
	}
}

func TestUnshareFlagsPerLevel(t *testing.T) {
	if unshareFlags(LevelNone) != 0 {
		t.Errorf("LevelNone should unshare nothing")
	}
	relaxed := unshareFlags(LevelRelaxed)
	strict := unshareFlags(LevelStrict)
	if relaxed == 0 {
		t.Errorf("LevelRelaxed should unshare at least mount/pid/uts")
	}
	if strict&relaxed != relaxed {
		t.Errorf("LevelStrict should be a superset of LevelRelaxed flags")
	}
}

func TestSpecRoundtripsThroughJSON(t *testing.T) {
	spec := Spec{
		Level:    LevelRelaxed,
		Root:     "/tmp/dockyard-root",
		Hostname: "wright-sandbox",
		Binds:    []Bind{{Source: "/usr", Target: "/usr", ReadOnly: true}},
		Timeout:  30 * time.Second,
		Command:  "/bin/sh",
		Args:     []string{"-c", "true"},
	}
	data, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Spec
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Hostname != spec.Hostname || decoded.Timeout != spec.Timeout {
		t.Errorf("roundtrip mismatch: %+v", decoded)
	}
}

func TestIsReExecInitFalseByDefault(t *testing.T) {
	if IsReExecInit() {
		t.Errorf("test process should not look like a dockyard re-exec")
	}
}
