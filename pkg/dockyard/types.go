// Package dockyard prepares and runs the namespace-isolated execution
// container a build stage runs in: a child process given its own mount,
// PID, and UTS namespaces (and, at the strict level, network and IPC
// namespaces too), a bind-mount layout rooted at the build workspace,
// pinned CPU affinity, and rlimits.
//
// Built on golang.org/x/sys/unix for low-level Linux primitives and the
// standard Go "self re-exec after Unshare" pattern: a child re-execs the
// calling binary with a __wright_dockyard_init__ sentinel argv[1] to
// perform mount/hostname setup from inside the new namespaces before
// exec-ing the executor's interpreter, mirroring how runc/Docker
// bootstrap containers without a separate init binary.
package dockyard

import "time"

// Level is the closed set of isolation levels spec.md §4.5 describes.
type Level string

const (
	LevelNone    Level = "none"
	LevelRelaxed Level = "relaxed"
	LevelStrict  Level = "strict"
)

// ReExecSentinel is the argv[1] marker a dockyard child uses to
// recognize it is the re-exec'd init step rather than the original
// wbuild invocation.
const ReExecSentinel = "__wright_dockyard_init__"

// ReExecEnvVar carries the marshaled Spec to the re-exec'd child via
// environment, since the argv[1] sentinel alone cannot carry structured
// data.
const ReExecEnvVar = "WRIGHT_DOCKYARD_SPEC"

// Bind is one bind-mount entry in the dockyard's mount layout.
type Bind struct {
	Source   string
	Target   string // relative to the dockyard root
	ReadOnly bool
	Optional bool // skip silently if Source does not exist
}

// Spec describes one dockyard instance to prepare (spec.md §4.5 "Mount
// layout").
type Spec struct {
	Level Level

	// Root is the directory that becomes "/" inside the dockyard
	// (relaxed/strict only); for LevelNone it is unused.
	Root string

	Binds []Bind

	// WorkingDir is relative to Root (or absolute on the host for
	// LevelNone).
	WorkingDir string

	Hostname string // spec.md: "wright-sandbox"

	CPUSet       []int // CPU IDs to pin via affinity
	MemoryLimitMB int64 // RLIMIT_AS, 0 = unlimited
	CPUTimeLimitS int64 // RLIMIT_CPU, 0 = unlimited
	Timeout       time.Duration // wall-clock deadline, 0 = none

	Env     map[string]string
	Command string
	Args    []string
}

// Result is the outcome of running one dockyard-wrapped process.
type Result struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
	// FellBackToDirect is true when namespace creation failed and the
	// dockyard fell back to direct host execution (spec.md §4.5 "a
	// warning is logged and the container falls back to direct
	// execution; resource controls still apply").
	FellBackToDirect bool
}

// DefaultMounts returns the spec.md §4.5 "relaxed + strict" read-only
// system binds, independent of the per-build binds (/build, /output,
// /files, /main-pkg) that the builder adds per job.
func DefaultMounts() []Bind {
	roDirs := []string{"/usr", "/bin", "/sbin", "/lib", "/lib64"}
	roFiles := []string{
		"/etc/resolv.conf", "/etc/hosts", "/etc/passwd", "/etc/group",
		"/etc/ld.so.conf", "/etc/ld.so.cache",
	}
	binds := make([]Bind, 0, len(roDirs)+len(roFiles))
	for _, d := range roDirs {
		binds = append(binds, Bind{Source: d, Target: d, ReadOnly: true, Optional: true})
	}
	for _, f := range roFiles {
		binds = append(binds, Bind{Source: f, Target: f, ReadOnly: true, Optional: true})
	}
	return binds
}
