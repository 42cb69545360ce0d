package orchestrator

import (
	"context"

	"github.com/wrightpm/wright/pkg/plan"
	"github.com/wrightpm/wright/pkg/pkgdb"
)

// ScopeFlags are the target-expansion scope selectors spec.md §4.9 names.
type ScopeFlags struct {
	Self       bool
	Deps       bool
	Dependents bool
	ForceDeps  bool // -D: adds already-installed deps
	ForceRev   bool // -R: adds runtime+build dependents in addition to link
	Depth      int  // 0 = unlimited
	Exact      bool // opts all expansion out
}

// Installed reports whether a package is already installed, consulted so
// --deps expansion can skip already-satisfied upstreams.
type Installed interface {
	IsInstalled(ctx context.Context, name string) bool
}

// dbInstalled adapts a pkgdb.Store to the Installed interface.
type dbInstalled struct{ store *pkgdb.Store }

func NewDBInstalled(store *pkgdb.Store) Installed { return &dbInstalled{store: store} }

func (d *dbInstalled) IsInstalled(ctx context.Context, name string) bool {
	pkg, err := d.store.LookupByName(ctx, name)
	return err == nil && pkg != nil
}

// ExpandTargets applies the scope flags to the user-named targets over the
// full plan set, returning the expanded set of package names to build
// (spec.md §4.9 "Target expansion").
func ExpandTargets(ctx context.Context, targets []string, all map[string]*plan.Plan, installed Installed, scope ScopeFlags) map[string]bool {
	selected := make(map[string]bool, len(targets))
	for _, t := range targets {
		selected[t] = true
	}

	if scope.Exact {
		return selected
	}

	defaultScope := !scope.Self && !scope.Deps && !scope.Dependents
	wantDeps := scope.Deps || defaultScope
	wantDependents := scope.Dependents

	if wantDeps {
		expandDeps(ctx, targets, all, installed, scope, selected)
	}
	if wantDependents {
		expandDependents(targets, all, scope, selected)
	}
	return selected
}

func expandDeps(ctx context.Context, targets []string, all map[string]*plan.Plan, installed Installed, scope ScopeFlags, selected map[string]bool) {
	visited := make(map[string]bool)
	var walk func(name string, depth int)
	walk = func(name string, depth int) {
		if visited[name] {
			return
		}
		visited[name] = true
		if scope.Depth > 0 && depth > scope.Depth {
			return
		}
		p, ok := all[name]
		if !ok {
			return
		}
		for _, kind := range []plan.DependencyKind{plan.DepBuild, plan.DepLink} {
			for _, d := range p.Dependencies[kind] {
				if _, ok := all[d.Name]; !ok {
					continue
				}
				alreadyInstalled := installed != nil && installed.IsInstalled(ctx, d.Name)
				if alreadyInstalled && !scope.ForceDeps {
					continue
				}
				selected[d.Name] = true
				walk(d.Name, depth+1)
			}
		}
	}
	for _, t := range targets {
		walk(t, 1)
	}
}

func expandDependents(targets []string, all map[string]*plan.Plan, scope ScopeFlags, selected map[string]bool) {
	// reverse index: name -> packages that depend on it, split by kind
	linkDependents := make(map[string][]string)
	otherDependents := make(map[string][]string)
	for name, p := range all {
		for _, d := range p.Dependencies[plan.DepLink] {
			linkDependents[d.Name] = append(linkDependents[d.Name], name)
		}
		for _, kind := range []plan.DependencyKind{plan.DepRuntime, plan.DepBuild} {
			for _, d := range p.Dependencies[kind] {
				otherDependents[d.Name] = append(otherDependents[d.Name], name)
			}
		}
	}

	visited := make(map[string]bool)
	var walk func(name string, depth int)
	walk = func(name string, depth int) {
		if visited[name] {
			return
		}
		visited[name] = true
		if scope.Depth > 0 && depth > scope.Depth {
			return
		}
		for _, dep := range linkDependents[name] {
			selected[dep] = true
			walk(dep, depth+1)
		}
		if scope.ForceRev {
			for _, dep := range otherDependents[name] {
				selected[dep] = true
				walk(dep, depth+1)
			}
		}
	}
	for _, t := range targets {
		walk(t, 1)
	}
}
