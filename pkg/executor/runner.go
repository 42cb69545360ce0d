package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrightpm/wright/pkg/dockyard"
	"github.com/wrightpm/wright/pkg/plan"
)

// Runner drives one Invocation: it delivers the script body to the
// executor command (tempfile or stdin), runs it inside a prepared
// dockyard, and writes the per-stage log file with the header format
// spec.md §4.6 requires.
type Runner struct {
	Log zerolog.Logger
}

// DockyardFactory builds the dockyard.Spec for one invocation, given the
// resolved working directory and bind layout; supplied by the builder,
// which owns workspace/bind-layout knowledge.
type DockyardFactory func(inv Invocation, command string, args []string) dockyard.Spec

// Run executes inv via buildSpec and writes the combined log to logPath,
// returning the parsed Result.
func (r *Runner) Run(ctx context.Context, inv Invocation, scratchDir, logPath string, buildSpec DockyardFactory) (Result, error) {
	command, args, cleanup, err := deliverScript(inv, scratchDir)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	spec := buildSpec(inv, command, args)

	var stdout, stderr bytes.Buffer
	start := time.Now()
	res, err := dockyard.Run(ctx, r.Log, spec, &stdout, &stderr)
	if err != nil {
		return Result{}, fmt.Errorf("executor: run stage %s: %w", inv.Stage, err)
	}
	duration := time.Since(start)

	out := Result{
		ExitCode:   res.ExitCode,
		DurationMS: duration.Milliseconds(),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		TimedOut:   res.TimedOut,
	}

	if err := writeStageLog(logPath, inv, out); err != nil {
		return out, err
	}
	return out, nil
}

// deliverScript writes inv.Script to a tempfile or prepares it for
// stdin delivery, returning the command and arguments to invoke.
func deliverScript(inv Invocation, scratchDir string) (command string, args []string, cleanup func(), err error) {
	cleanup = func() {}
	switch inv.Executor.Delivery {
	case plan.DeliveryStdin:
		// The script body is piped via stdin by the dockyard's Command
		// wrapper; here we only assemble argv, prefixing the executor's
		// declared arguments.
		args = append(append([]string{}, inv.Executor.ArgsPrefix...))
		return inv.Executor.Command, args, cleanup, nil
	case plan.DeliveryTempfile:
		ext := inv.Executor.TempfileExt
		f, ferr := os.CreateTemp(scratchDir, "wright-stage-*"+ext)
		if ferr != nil {
			return "", nil, cleanup, fmt.Errorf("executor: create tempfile: %w", ferr)
		}
		path := f.Name()
		if _, werr := f.WriteString(inv.Script); werr != nil {
			f.Close()
			os.Remove(path)
			return "", nil, cleanup, fmt.Errorf("executor: write tempfile: %w", werr)
		}
		f.Close()
		if cerr := os.Chmod(path, 0o755); cerr != nil {
			os.Remove(path)
			return "", nil, cleanup, fmt.Errorf("executor: chmod tempfile: %w", cerr)
		}
		cleanup = func() { os.Remove(path) }
		args = append(append([]string{}, inv.Executor.ArgsPrefix...), path)
		return inv.Executor.Command, args, cleanup, nil
	default:
		return "", nil, cleanup, fmt.Errorf("executor: unknown delivery mode %q", inv.Executor.Delivery)
	}
}

// writeStageLog writes the fixed header plus script body and captured
// streams (spec.md §4.6): "=== Stage: NAME === / === Exit: CODE === /
// === Duration: Xs === / === Working dir: ... ===".
func writeStageLog(logPath string, inv Invocation, res Result) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("executor: mkdir log dir: %w", err)
	}
	f, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("executor: create log %s: %w", logPath, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "=== Stage: %s ===\n", inv.Stage)
	fmt.Fprintf(f, "=== Exit: %d ===\n", res.ExitCode)
	fmt.Fprintf(f, "=== Duration: %.3fs ===\n", float64(res.DurationMS)/1000)
	fmt.Fprintf(f, "=== Working dir: %s ===\n", inv.WorkingDir)
	fmt.Fprintln(f, "")
	fmt.Fprintln(f, inv.Script)
	fmt.Fprintln(f, "--- stdout ---")
	fmt.Fprintln(f, res.Stdout)
	fmt.Fprintln(f, "--- stderr ---")
	fmt.Fprintln(f, res.Stderr)
	return nil
}

// TailStderr returns the last n lines of stderr, or stdout if stderr is
// empty (spec.md §4.7 step 7: "the last 40 lines of stderr (or stdout if
// stderr empty) are surfaced").
func TailStderr(res Result, n int) string {
	text := res.Stderr
	if text == "" {
		text = res.Stdout
	}
	return tailLines(text, n)
}

func tailLines(s string, n int) string {
	lines := splitLines(s)
	if len(lines) <= n {
		return s
	}
	tail := lines[len(lines)-n:]
	out := ""
	for i, l := range tail {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
