package dockyard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Run prepares a dockyard per Spec and executes Spec.Command inside it,
// streaming stdout/stderr to the given writers. It implements spec.md
// §4.5's three isolation levels and falls back to direct execution if
// namespace creation fails.
func Run(ctx context.Context, log zerolog.Logger, spec Spec, stdout, stderr io.Writer) (Result, error) {
	start := time.Now()

	if spec.Level == LevelNone {
		return runDirect(ctx, spec, stdout, stderr, start)
	}

	res, err := runNamespaced(ctx, log, spec, stdout, stderr, start)
	if err != nil {
		log.Warn().Err(err).Str("level", string(spec.Level)).Msg("dockyard namespace setup failed, falling back to direct execution")
		direct, derr := runDirect(ctx, spec, stdout, stderr, start)
		direct.FellBackToDirect = true
		return direct, derr
	}
	return res, nil
}

// runNamespaced re-execs the current binary with the dockyard init
// sentinel so the child can Unshare its own namespaces before performing
// mount setup and finally exec-ing the real command.
func runNamespaced(ctx context.Context, log zerolog.Logger, spec Spec, stdout, stderr io.Writer, start time.Time) (Result, error) {
	self, err := os.Executable()
	if err != nil {
		return Result{}, fmt.Errorf("dockyard: resolve self executable: %w", err)
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return Result{}, fmt.Errorf("dockyard: marshal spec: %w", err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, self, ReExecSentinel)
	cmd.Env = append(os.Environ(), ReExecEnvVar+"="+string(specJSON))
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Unshareflags: unshareFlags(spec.Level),
		Cloneflags:   0,
		Setpgid:      true,
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("dockyard: start init re-exec: %w", err)
	}

	if len(spec.CPUSet) > 0 {
		if err := pinAffinity(cmd.Process.Pid, spec.CPUSet); err != nil {
			log.Warn().Err(err).Msg("dockyard: failed to pin CPU affinity")
		}
	}

	err = cmd.Wait()
	duration := time.Since(start)
	res := Result{Duration: duration}
	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = 137
		killProcessGroup(cmd.Process.Pid)
		return res, nil
	}
	res.ExitCode = exitCodeOf(err)
	return res, nil
}

// runDirect executes Spec.Command on the host with no namespace
// isolation but still applies rlimits, affinity, and the wall-clock
// deadline (spec.md §4.5 LevelNone, and the namespace-failure fallback
// path: "resource controls still apply").
func runDirect(ctx context.Context, spec Spec, stdout, stderr io.Writer, start time.Time) (Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Command, spec.Args...)
	cmd.Dir = spec.WorkingDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = envList(spec.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("dockyard: start direct command: %w", err)
	}

	if len(spec.CPUSet) > 0 {
		_ = pinAffinity(cmd.Process.Pid, spec.CPUSet)
	}
	if spec.MemoryLimitMB > 0 {
		lim := uint64(spec.MemoryLimitMB) * 1024 * 1024
		_ = unix.Prlimit(cmd.Process.Pid, unix.RLIMIT_AS, &unix.Rlimit{Cur: lim, Max: lim}, nil)
	}
	if spec.CPUTimeLimitS > 0 {
		lim := uint64(spec.CPUTimeLimitS)
		_ = unix.Prlimit(cmd.Process.Pid, unix.RLIMIT_CPU, &unix.Rlimit{Cur: lim, Max: lim}, nil)
	}

	err := cmd.Wait()
	duration := time.Since(start)
	res := Result{Duration: duration}
	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = 137
		killProcessGroup(cmd.Process.Pid)
		return res, nil
	}
	res.ExitCode = exitCodeOf(err)
	return res, nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func killProcessGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGTERM)
	time.Sleep(200 * time.Millisecond)
	_ = unix.Kill(-pid, unix.SIGKILL)
}

func unshareFlags(level Level) uintptr {
	switch level {
	case LevelRelaxed:
		return uintptr(unix.CLONE_NEWNS | unix.CLONE_NEWPID | unix.CLONE_NEWUTS)
	case LevelStrict:
		return uintptr(unix.CLONE_NEWNS | unix.CLONE_NEWPID | unix.CLONE_NEWUTS | unix.CLONE_NEWNET | unix.CLONE_NEWIPC)
	default:
		return 0
	}
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env)+1)
	out = append(out, os.Environ()...)
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func pinAffinity(pid int, cpus []int) error {
	var set unix.CPUSet
	set.Zero()
	for _, c := range cpus {
		set.Set(c)
	}
	return unix.SchedSetaffinity(pid, &set)
}

func applyRlimits(spec Spec) {
	if spec.MemoryLimitMB > 0 {
		lim := uint64(spec.MemoryLimitMB) * 1024 * 1024
		_ = unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: lim, Max: lim})
	}
	if spec.CPUTimeLimitS > 0 {
		lim := uint64(spec.CPUTimeLimitS)
		_ = unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: lim, Max: lim})
	}
}

// ensureDevNodes creates the minimal /dev entries spec.md §4.5 requires
// (null, zero, random, urandom, full) by bind-mounting them from the
// host rather than calling mknod, since the dockyard process does not
// run as a fully-privileged uid.
func ensureDevNodes(devRoot string) []Bind {
	nodes := []string{"null", "zero", "random", "urandom", "full"}
	binds := make([]Bind, 0, len(nodes))
	for _, n := range nodes {
		binds = append(binds, Bind{
			Source: filepath.Join("/dev", n), Target: filepath.Join("/dev", n),
			ReadOnly: false, Optional: true,
		})
	}
	_ = devRoot
	return binds
}
