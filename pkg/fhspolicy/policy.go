// Package fhspolicy evaluates packaged file paths against the FHS
// whitelist (spec.md §4.7 step 8, and SPEC_FULL.md's resolution of the
// "FHS whitelist configurability" Open Question): every packaged entry
// and every absolute symlink target must resolve under an allowed
// prefix, or packaging fails with a ValidationError.
//
// Grounded directly on the teacher's pkg/policy engine: the same
// github.com/open-policy-agent/opa rego.New/rego.Module/rego.Query/
// rego.Input evaluation shape, narrowed from OpenFroyo's general
// resource/plan policy documents to a single compiled-in
// allowed_prefixes Rego data document (spec.md resolves the Open
// Question this way: the whitelist is a Rego data document, not a TOML
// list, so it is evaluated with the same engine as everything else in
// this package).
package fhspolicy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// defaultPolicy is the compiled-in FHS whitelist, consulted unless
// overridden by /etc/wright/fhs-policy.rego.
const defaultPolicy = `
package wright.fhs

default allow = false

allowed_prefixes := [
	"/usr/",
	"/etc/",
	"/var/",
	"/bin",
	"/sbin",
	"/opt/",
]

allow {
	some prefix
	prefix := allowed_prefixes[_]
	startswith(input.path, prefix)
}
`

// Input is evaluated per packaged file (and, separately, per absolute
// symlink target).
type Input struct {
	Path string `json:"path"`
}

// Violation describes one entry that failed FHS validation.
type Violation struct {
	Path string
	Hint string
}

// Engine evaluates packaged entries against the compiled FHS policy.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the FHS policy. If regoSource is empty, the
// compiled-in default policy is used.
func NewEngine(ctx context.Context, regoSource string) (*Engine, error) {
	if regoSource == "" {
		regoSource = defaultPolicy
	}
	r := rego.New(
		rego.Module("fhs-policy.rego", regoSource),
		rego.Query("data.wright.fhs.allow"),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("fhspolicy: compile policy: %w", err)
	}
	return &Engine{query: query}, nil
}

// Check evaluates one path and returns whether it is allowed.
func (e *Engine) Check(ctx context.Context, path string) (bool, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(Input{Path: path}))
	if err != nil {
		return false, fmt.Errorf("fhspolicy: evaluate %s: %w", path, err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := results[0].Expressions[0].Value.(bool)
	return allowed, nil
}

// CheckAll evaluates every path (regular entries and absolute symlink
// targets) and collects every violation, rather than failing on the
// first one, so the builder can report them all at once.
func (e *Engine) CheckAll(ctx context.Context, paths []string) ([]Violation, error) {
	var violations []Violation
	for _, p := range paths {
		allowed, err := e.Check(ctx, p)
		if err != nil {
			return nil, err
		}
		if !allowed {
			violations = append(violations, Violation{
				Path: p,
				Hint: hintFor(p),
			})
		}
	}
	return violations, nil
}

func hintFor(path string) string {
	switch {
	case len(path) >= 5 && path[:5] == "/home":
		return "install to /usr/bin or /opt, not /home"
	default:
		return "install to /usr/bin, /etc, /var, or /opt"
	}
}
