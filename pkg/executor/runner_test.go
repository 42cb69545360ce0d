package executor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wrightpm/wright/pkg/plan"
)

func TestDeliverScriptTempfileWritesExecutableFile(t *testing.T) {
	dir := t.TempDir()
	inv := Invocation{
		Stage: "compile",
		Executor: Definition{
			Command: "/bin/sh", ArgsPrefix: []string{"-e"},
			Delivery: plan.DeliveryTempfile, TempfileExt: ".sh",
		},
		Script: "echo hi",
	}
	command, args, cleanup, err := deliverScript(inv, dir)
	if err != nil {
		t.Fatalf("deliverScript: %v", err)
	}
	defer cleanup()

	if command != "/bin/sh" {
		t.Errorf("command = %q", command)
	}
	if len(args) != 2 || args[0] != "-e" {
		t.Fatalf("unexpected args: %v", args)
	}
	scriptPath := args[1]
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatalf("read tempfile: %v", err)
	}
	if string(data) != "echo hi" {
		t.Errorf("tempfile content = %q", data)
	}
	fi, err := os.Stat(scriptPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Mode()&0o100 == 0 {
		t.Errorf("expected tempfile to be executable, mode = %v", fi.Mode())
	}
}

func TestDeliverScriptStdinUsesExecutorArgsDirectly(t *testing.T) {
	inv := Invocation{
		Executor: Definition{Command: "/bin/sh", ArgsPrefix: []string{"-s"}, Delivery: plan.DeliveryStdin},
		Script:   "echo hi",
	}
	command, args, cleanup, err := deliverScript(inv, t.TempDir())
	if err != nil {
		t.Fatalf("deliverScript: %v", err)
	}
	defer cleanup()
	if command != "/bin/sh" || len(args) != 1 || args[0] != "-s" {
		t.Errorf("unexpected command/args: %q %v", command, args)
	}
}

func TestWriteStageLogHeaderFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log", "compile.log")
	inv := Invocation{Stage: "compile", WorkingDir: "/build/hello-1.0.0", Script: "gcc -o hello hello.c"}
	res := Result{ExitCode: 0, DurationMS: 1500, Stdout: "built\n", Stderr: ""}

	if err := writeStageLog(logPath, inv, res); err != nil {
		t.Fatalf("writeStageLog: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"=== Stage: compile ===",
		"=== Exit: 0 ===",
		"=== Duration: 1.500s ===",
		"=== Working dir: /build/hello-1.0.0 ===",
		"gcc -o hello hello.c",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("log missing %q:\n%s", want, text)
		}
	}
}

func TestTailStderrPrefersStderr(t *testing.T) {
	res := Result{Stdout: "out", Stderr: "line1\nline2\nline3"}
	got := TailStderr(res, 2)
	if got != "line2\nline3" {
		t.Errorf("TailStderr() = %q", got)
	}
}

func TestTailStderrFallsBackToStdout(t *testing.T) {
	res := Result{Stdout: "a\nb\nc", Stderr: ""}
	got := TailStderr(res, 2)
	if got != "b\nc" {
		t.Errorf("TailStderr() = %q", got)
	}
}
