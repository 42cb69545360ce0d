// Package resourcesched partitions the host's CPU budget across concurrently
// running dockyards (spec.md §4.10). It is consulted by the orchestrator
// when a job's stage is admitted and by the builder when it sets
// affinity/NPROC env for that stage's dockyard.
//
// Grounded on the teacher's pkg/engine/scheduler.go worker-admission pattern
// (a fixed-size resource pool handed out per in-flight unit), generalized
// from "one worker slot" to "a CPU count computed from currently active
// dockyards at the moment a stage launches".
package resourcesched

import (
	"runtime"
	"strconv"
	"sync"

	"github.com/wrightpm/wright/pkg/plan"
)

// Config mirrors wright.toml's build.* knobs (SPEC_FULL.md §3 config model).
type Config struct {
	MaxCPUs          int // build.max_cpus; 0 = unset
	NprocPerDockyard int // build.nproc_per_dockyard; 0 = unset (dynamic share)
}

// TotalBudget resolves the total CPU budget per spec.md §4.10: max_cpus if
// set, else available-4 (min 1). The full available count is never used
// as the budget.
func TotalBudget(cfg Config, availableCPUs int) int {
	if availableCPUs <= 0 {
		availableCPUs = runtime.NumCPU()
	}
	if cfg.MaxCPUs > 0 {
		return cfg.MaxCPUs
	}
	budget := availableCPUs - 4
	if budget < 1 {
		budget = 1
	}
	return budget
}

// Scheduler tracks currently active dockyards and computes each stage's
// locked-in CPU share at admission time.
type Scheduler struct {
	mu     sync.Mutex
	cfg    Config
	total  int
	active int
}

// New creates a Scheduler with the resolved total CPU budget.
func New(cfg Config, availableCPUs int) *Scheduler {
	return &Scheduler{cfg: cfg, total: TotalBudget(cfg, availableCPUs)}
}

// Share is a stage's resolved CPU assignment: the CPU count for NPROC/
// affinity purposes, and the extra env vars a build_type demands (e.g. Go's
// GOFLAGS/GOMAXPROCS).
type Share struct {
	CPUs int
	Env  map[string]string
}

// Admit registers one more active dockyard and computes its locked CPU
// share, applying the build_type modifier and per-plan jobs cap (spec.md
// §4.10). The share is locked for the stage's duration: later admissions do
// not retroactively shrink it, and this stage's admission does not
// retroactively shrink earlier ones (mirroring the spec's "this share is
// locked for the duration of the stage" rule).
func (s *Scheduler) Admit(buildType plan.BuildType, planJobs int) Share {
	s.mu.Lock()
	s.active++
	activeAtLaunch := s.active
	total := s.total
	s.mu.Unlock()

	share := total / activeAtLaunch
	if share < 1 {
		share = 1
	}
	if s.cfg.NprocPerDockyard > 0 {
		share = s.cfg.NprocPerDockyard
	}

	env := map[string]string{}
	switch buildType {
	case plan.BuildTypeSerial:
		share = 1
	case plan.BuildTypeHeavy:
		half := share / 2
		if half < 1 {
			half = 1
		}
		share = half
	case plan.BuildTypeGo:
		env["GOFLAGS"] = "-p=" + strconv.Itoa(share)
		env["GOMAXPROCS"] = strconv.Itoa(share)
	}

	if planJobs > 0 && share > planJobs {
		share = planJobs
	}
	return Share{CPUs: share, Env: env}
}

// Release marks one dockyard as finished, freeing its slot for future
// admissions' active-count calculation.
func (s *Scheduler) Release() {
	s.mu.Lock()
	if s.active > 0 {
		s.active--
	}
	s.mu.Unlock()
}

// CPUSet builds the affinity set for a Share: CPUs 0..n-1 of the host,
// sufficient for SchedSetaffinity purposes. Real pinning to specific cores
// across stages is a placement decision left to the dockyard; resourcesched
// only determines the count.
func CPUSet(share Share) []int {
	cpus := make([]int, share.CPUs)
	for i := range cpus {
		cpus[i] = i
	}
	return cpus
}
