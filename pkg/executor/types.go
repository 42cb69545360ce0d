// Package executor runs one build stage's script through a declared
// executor definition inside a prepared dockyard (spec.md §4.6).
//
// Grounded on the teacher's pkg/micro_runner definition/registry/runner
// shape: instead of a remote transport, Runner calls dockyard.Run to exec
// the executor process inside a prepared dockyard, and the stage log file
// is plain text (a fixed header, the script, then captured stdout and
// stderr).
package executor

import "github.com/wrightpm/wright/pkg/plan"

// Definition is a declared executor: an absolute command path, its
// argument prefix, and how the script body is delivered to it.
type Definition struct {
	Name            string
	Command         string
	ArgsPrefix      []string
	Delivery        plan.DeliveryMode
	TempfileExt     string
	RequiredPaths   []string
	DefaultDockyard plan.DockyardLevel
}

// Registry resolves executor names to their definitions, loaded from
// executors/*.toml by pkg/wrightcfg.
type Registry struct {
	defs map[string]Definition
}

func NewRegistry(defs []Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		r.defs[d.Name] = d
	}
	return r
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Invocation is one request to run a stage's script through an executor.
type Invocation struct {
	Stage      string
	Executor   Definition
	Script     string
	WorkingDir string
	Env        map[string]string
	Timeout    int // seconds; 0 = no deadline
}

// Result is the outcome of one stage invocation.
type Result struct {
	ExitCode   int
	DurationMS int64
	Stdout     string
	Stderr     string
	TimedOut   bool
}
