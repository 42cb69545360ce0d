// Package plan parses, validates, and canonicalizes Wright plan files: the
// declarative description of one source package, including its MVP
// bootstrap overlay and split sub-packages. See spec.md §3 "Plan" and
// SPEC_FULL.md §4.1.
package plan

import "fmt"

// DependencyKind enumerates the four-plus kinds of dependency edge a plan
// may declare.
type DependencyKind string

const (
	DepBuild     DependencyKind = "build"
	DepLink      DependencyKind = "link"
	DepRuntime   DependencyKind = "runtime"
	DepReplaces  DependencyKind = "replaces"
	DepConflicts DependencyKind = "conflicts"
	DepProvides  DependencyKind = "provides"
	DepOptional  DependencyKind = "optional"
)

// BuildType controls the NPROC modifier applied by the resource scheduler
// (SPEC_FULL.md §4.10).
type BuildType string

const (
	BuildTypeDefault BuildType = "default"
	BuildTypeMake    BuildType = "make"
	BuildTypeRust    BuildType = "rust"
	BuildTypeGo      BuildType = "go"
	BuildTypeHeavy   BuildType = "heavy"
	BuildTypeSerial  BuildType = "serial"
	BuildTypeCustom  BuildType = "custom"
)

// DockyardLevel is the closed set of isolation levels (spec.md §4.5).
type DockyardLevel string

const (
	DockyardNone    DockyardLevel = "none"
	DockyardRelaxed DockyardLevel = "relaxed"
	DockyardStrict  DockyardLevel = "strict"
)

// DeliveryMode is the closed set of ways a script reaches its executor
// process (spec.md §4.6).
type DeliveryMode string

const (
	DeliveryTempfile DeliveryMode = "tempfile"
	DeliveryStdin    DeliveryMode = "stdin"
)

// DefaultStageOrder is the default lifecycle pipeline (spec.md §4.1).
var DefaultStageOrder = []string{
	"fetch", "verify", "extract", "prepare", "configure", "compile",
	"check", "package", "post_package",
}

// Dependency is one dependency edge with an optional version constraint.
type Dependency struct {
	Name       string
	Operator   string // one of version.Operator's strings, or "" for unconstrained
	Version    string
}

// Source is one fetchable input with its integrity hash ("SKIP" for
// local/git entries per spec.md §3).
type Source struct {
	URI    string
	SHA256 string
}

// Stage is one lifecycle stage definition.
type Stage struct {
	Executor string
	Dockyard DockyardLevel
	Env      map[string]string
	Script   string
}

// Options carries the package-wide boolean switches, env injection, and
// resource caps (spec.md §3 "Options").
type Options struct {
	Strip        bool
	Static       bool
	Debug        bool
	CCache       bool
	Env          map[string]string
	BuildType    BuildType
	MemoryLimit  int // MB, 0 = unset
	CPUTimeLimit int // seconds, 0 = unset
	Timeout      int // seconds, 0 = unset
	Jobs         int // 0 = unset
	SkipFHSCheck bool
}

// Split is a sub-package produced from the same build.
type Split struct {
	Name         string
	Description  string
	Dependencies map[DependencyKind][]Dependency
	PackageStage Stage
	License      string // override, "" = inherit main
	Maintainer   string // override, "" = inherit main
}

// MVPOverlay replaces parts of the main plan during bootstrap passes
// (spec.md §3 "MVP dependency overlay", §4.1).
type MVPOverlay struct {
	Dependencies map[DependencyKind][]Dependency
	Lifecycle    map[string]Stage
}

// Plan is the normalized, validated form of one plan file.
type Plan struct {
	// Identity
	Name         string
	PlanVersion  string
	Release      int
	Architecture string

	// Metadata
	Description string
	License     string
	UpstreamURL string
	Maintainer  string

	Dependencies map[DependencyKind][]Dependency
	Sources      []Source

	Options Options

	Lifecycle     map[string]Stage
	CustomStages  []string // nil = use DefaultStageOrder

	Splits []Split

	MVP MVPOverlay

	PostInstall string
	PostUpgrade string
	PreRemove   string

	BackupFiles []string

	// Dir is the directory the plan file was loaded from; source-relative
	// paths are resolved against it.
	Dir string
}

// PlanError names the offending field and the rule it violates, per
// spec.md §4.1 "Validation failures produce a PlanError naming the field
// and rule."
type PlanError struct {
	Field string
	Rule  string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan: field %q violates rule %q", e.Field, e.Rule)
}

func newErr(field, rule string) *PlanError { return &PlanError{Field: field, Rule: rule} }
