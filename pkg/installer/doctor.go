package installer

import (
	"context"
	"fmt"

	"github.com/wrightpm/wright/pkg/orchestrator"
	"github.com/wrightpm/wright/pkg/pkgdb"
	"github.com/wrightpm/wright/pkg/plan"
	"github.com/wrightpm/wright/pkg/version"
)

// Report is the read-only health summary doctor produces (SPEC_FULL.md
// "[SUPPLEMENT] Doctor command detail").
type Report struct {
	IntegrityError        string
	UnsatisfiedDeps       []string
	InstalledSetCycles    [][]string
	Shadows                []pkgdb.Shadow
	IncompleteTransactions []pkgdb.Transaction
}

// Doctor runs a read-only integrity probe over the installed-package
// database: a SQLite integrity check, an unsatisfied-dependency scan, a
// cycle scan of the installed dependency graph (reusing the
// orchestrator's Tarjan analyzer against the installed set rather than a
// plan graph), a shadow listing, and a crash-recovery journal scan.
func (in *Installer) Doctor(ctx context.Context) (Report, error) {
	var rep Report

	if err := in.Store.HealthCheck(ctx); err != nil {
		rep.IntegrityError = err.Error()
	}

	pkgs, err := in.Store.ListPackages(ctx)
	if err != nil {
		return rep, fmt.Errorf("installer: list packages: %w", err)
	}

	synthetic := make(map[string]*plan.Plan, len(pkgs))
	for _, p := range pkgs {
		synthetic[p.Name] = &plan.Plan{Name: p.Name, Dependencies: map[plan.DependencyKind][]plan.Dependency{}}
	}

	for _, p := range pkgs {
		deps, err := in.Store.DependenciesOf(ctx, p.Name)
		if err != nil {
			return rep, fmt.Errorf("installer: dependencies of %s: %w", p.Name, err)
		}
		for _, d := range deps {
			kind := plan.DependencyKind(d.Kind)
			synthetic[p.Name].Dependencies[kind] = append(synthetic[p.Name].Dependencies[kind], plan.Dependency{
				Name: d.DepName, Operator: d.Operator, Version: d.Version,
			})

			if kind != plan.DepRuntime && kind != plan.DepLink {
				continue
			}
			var c *version.Constraint
			if op, ok := version.ParseOperator(d.Operator); ok {
				c = &version.Constraint{Operator: op, Version: d.Version}
			}
			if in.satisfiedByInstalled(ctx, d.DepName, c) {
				continue
			}
			if a, err := in.Store.LookupAssumed(ctx, d.DepName); err == nil && a != nil && c.Satisfies(a.Version) {
				continue
			}
			rep.UnsatisfiedDeps = append(rep.UnsatisfiedDeps, fmt.Sprintf("%s requires %s %s %s", p.Name, d.DepName, d.Operator, d.Version))
		}
	}

	g := orchestrator.NewGraph(synthetic)
	for _, scc := range g.StronglyConnectedComponents() {
		if scc.IsCycle(g) {
			rep.InstalledSetCycles = append(rep.InstalledSetCycles, scc.Members)
		}
	}

	shadows, err := in.Store.AllShadows(ctx)
	if err != nil {
		return rep, fmt.Errorf("installer: list shadows: %w", err)
	}
	rep.Shadows = shadows

	incomplete, err := in.Store.ListIncompleteTransactions(ctx)
	if err != nil {
		return rep, fmt.Errorf("installer: list incomplete transactions: %w", err)
	}
	rep.IncompleteTransactions = incomplete

	return rep, nil
}
