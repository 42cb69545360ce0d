// Package builder runs the full per-package lifecycle described in
// spec.md §4.7: workspace preparation, skip gates, fetch/verify/extract,
// variable substitution, the hook-wrapped stage pipeline, FHS validation,
// and final packaging.
//
// Grounded on the teacher's pkg/engine "phase executor" shape (a struct
// holding the dependencies a unit of work needs, with one top-level Run
// method dispatching to private per-step methods) generalized from
// OpenFroyo's six fixed phases to Wright's plan-driven lifecycle stage
// list, and wired directly into pkg/executor, pkg/dockyard, pkg/buildcache,
// and pkg/fhspolicy.
package builder

import (
	"github.com/rs/zerolog"

	"github.com/wrightpm/wright/pkg/buildcache"
	"github.com/wrightpm/wright/pkg/executor"
	"github.com/wrightpm/wright/pkg/fhspolicy"
	"github.com/wrightpm/wright/pkg/plan"
)

// RunMode selects how the workspace is prepared (spec.md §4.7 step 1).
type RunMode string

const (
	// ModeDefault recreates every workspace directory.
	ModeDefault RunMode = "default"
	// ModeStage preserves src/ and recreates pkg/+log/ only.
	ModeStage RunMode = "stage"
)

// Flags carries the per-invocation switches spec.md §4.8 composes into a
// buildcache.Decision, plus the run-mode and scope selectors spec.md §4.7
// names.
type Flags struct {
	Force        bool
	Clean        bool
	Stage        bool
	StageNames   []string // effective lifecycle subset when Stage is set; nil = all
	IsMVP        bool
	NoDeps       bool
	SkipFHSCheck bool
}

func (f Flags) cacheFlags() buildcache.Flags {
	return buildcache.Flags{Force: f.Force, Clean: f.Clean, Stage: f.Stage, IsMVP: f.IsMVP}
}

func (f Flags) runMode() RunMode {
	if f.Stage {
		return ModeStage
	}
	return ModeDefault
}

// Fetcher obtains one source URI into cache/sources/, returning the local
// path. Fetch is a contract boundary (spec.md §4.7 step 3: "external to
// core, but contract"); DefaultFetcher below implements it for http(s) and
// local/git URIs.
type Fetcher interface {
	Fetch(uri, destDir, pkgName string) (localPath string, err error)
}

// Job is everything the builder needs to run one plan through one phase.
type Job struct {
	Plan         *plan.Plan
	Phase        plan.Phase
	Flags        Flags
	BuildDir     string // <build_dir> root, e.g. /tmp/wright-build
	ComponentsDir string // components dir: finished archives land here
	SourcesCache string // cache/sources
	CacheDir     string // cache/builds, consumed by buildcache.Store
	Arch         string
	GlobalCFlags string
	GlobalCXXFlags string
	NPROC        int // resolved CPU share for this job's stages (resourcesched.Share.CPUs)
	ExtraEnv     map[string]string // resourcesched build_type env (e.g. GOMAXPROCS)
	DockyardRoot string // chroot root for namespaced stages

	// CompileGate, if non-nil, is acquired before and released after the
	// stage conventionally named "compile" (spec.md §4.9 "Compile-stage
	// serialization": a capacity-1 semaphore shared across the whole run).
	CompileGate chan struct{}
}

// Result is the outcome of one Build call.
type Result struct {
	Skipped      bool
	CacheHit     bool
	MainArchive  string
	SplitArchives map[string]string
	StageLogs    []string
}

// Builder drives the full lifecycle for one Job.
type Builder struct {
	Log      zerolog.Logger
	Fetcher  Fetcher
	Runner   *executor.Runner
	Registry *executor.Registry
	Cache    *buildcache.Store
	FHS      *fhspolicy.Engine
}
