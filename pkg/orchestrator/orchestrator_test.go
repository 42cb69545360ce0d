package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wrightpm/wright/pkg/builder"
	"github.com/wrightpm/wright/pkg/plan"
)

func mkPlan(name string, linkDeps ...string) *plan.Plan {
	p := &plan.Plan{Name: name, Dependencies: map[plan.DependencyKind][]plan.Dependency{}}
	for _, d := range linkDeps {
		p.Dependencies[plan.DepLink] = append(p.Dependencies[plan.DepLink], plan.Dependency{Name: d})
	}
	return p
}

func TestSCCDetectsSimpleCycle(t *testing.T) {
	plans := map[string]*plan.Plan{
		"freetype": mkPlan("freetype", "harfbuzz"),
		"harfbuzz": mkPlan("harfbuzz", "freetype"),
	}
	g := NewGraph(plans)
	sccs := g.StronglyConnectedComponents()
	found := false
	for _, scc := range sccs {
		if scc.IsCycle(g) && len(scc.Members) == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a 2-member cycle, got %+v", sccs)
	}
}

func TestSCCNoFalseCycleOnDAG(t *testing.T) {
	plans := map[string]*plan.Plan{
		"a": mkPlan("a", "b"),
		"b": mkPlan("b", "c"),
		"c": mkPlan("c"),
	}
	g := NewGraph(plans)
	for _, scc := range g.StronglyConnectedComponents() {
		if scc.IsCycle(g) {
			t.Errorf("unexpected cycle reported in a DAG: %+v", scc)
		}
	}
}

func TestChooseMVPCandidatePrefersFewestRemovedEdges(t *testing.T) {
	freetype := mkPlan("freetype", "harfbuzz")
	freetype.MVP = plan.MVPOverlay{Dependencies: map[plan.DependencyKind][]plan.Dependency{plan.DepLink: {}}}
	harfbuzz := mkPlan("harfbuzz", "freetype")

	plans := map[string]*plan.Plan{"freetype": freetype, "harfbuzz": harfbuzz}
	g := NewGraph(plans)
	var cycle SCC
	for _, scc := range g.StronglyConnectedComponents() {
		if scc.IsCycle(g) {
			cycle = scc
		}
	}
	winner, err := ChooseMVPCandidate(g, cycle)
	if err != nil {
		t.Fatalf("ChooseMVPCandidate: %v", err)
	}
	if winner != "freetype" {
		t.Errorf("winner = %q, want freetype", winner)
	}
}

func TestChooseMVPCandidateFailsWithNoOverlay(t *testing.T) {
	plans := map[string]*plan.Plan{
		"a": mkPlan("a", "b"),
		"b": mkPlan("b", "a"),
	}
	g := NewGraph(plans)
	var cycle SCC
	for _, scc := range g.StronglyConnectedComponents() {
		if scc.IsCycle(g) {
			cycle = scc
		}
	}
	if _, err := ChooseMVPCandidate(g, cycle); err == nil {
		t.Fatal("expected error when no cycle member has a usable MVP overlay")
	}
}

func TestBuildScheduleOrdersMVPBeforeOthersAndFullLast(t *testing.T) {
	freetype := mkPlan("freetype", "harfbuzz")
	freetype.MVP = plan.MVPOverlay{Dependencies: map[plan.DependencyKind][]plan.Dependency{plan.DepLink: {}}}
	harfbuzz := mkPlan("harfbuzz", "freetype")

	plans := map[string]*plan.Plan{"freetype": freetype, "harfbuzz": harfbuzz}
	g := NewGraph(plans)
	selected := map[string]bool{"freetype": true, "harfbuzz": true}
	entries, err := BuildSchedule(g, selected, map[string]Cause{})
	if err != nil {
		t.Fatalf("BuildSchedule: %v", err)
	}

	var mvpIdx, harfbuzzIdx, fullIdx = -1, -1, -1
	for i, e := range entries {
		switch {
		case e.Label == LabelMVP && e.Name == "freetype":
			mvpIdx = i
		case e.Name == "harfbuzz":
			harfbuzzIdx = i
		case e.Label == LabelFull && e.Name == "freetype":
			fullIdx = i
		}
	}
	if mvpIdx == -1 || harfbuzzIdx == -1 || fullIdx == -1 {
		t.Fatalf("missing expected entries: %+v", entries)
	}
	if !(mvpIdx < harfbuzzIdx && harfbuzzIdx < fullIdx) {
		t.Errorf("expected order MVP < harfbuzz < FULL, got indices %d %d %d", mvpIdx, harfbuzzIdx, fullIdx)
	}
}

func TestBuildScheduleValidTopoOrderOnDAG(t *testing.T) {
	plans := map[string]*plan.Plan{
		"a": mkPlan("a", "b"),
		"b": mkPlan("b", "c"),
		"c": mkPlan("c"),
	}
	g := NewGraph(plans)
	selected := map[string]bool{"a": true, "b": true, "c": true}
	entries, err := BuildSchedule(g, selected, map[string]Cause{})
	if err != nil {
		t.Fatalf("BuildSchedule: %v", err)
	}
	pos := map[string]int{}
	for i, e := range entries {
		pos[e.Name] = i
	}
	if !(pos["c"] < pos["b"] && pos["b"] < pos["a"]) {
		t.Errorf("expected c before b before a, got %+v", pos)
	}
}

func TestExpandTargetsDefaultAddsMissingDeps(t *testing.T) {
	plans := map[string]*plan.Plan{
		"a": mkPlan("a", "b"),
		"b": mkPlan("b"),
	}
	sel := ExpandTargets(context.Background(), []string{"a"}, plans, nil, ScopeFlags{})
	if !sel["a"] || !sel["b"] {
		t.Errorf("expected a and b both selected, got %+v", sel)
	}
}

func TestExpandTargetsExactOptsOut(t *testing.T) {
	plans := map[string]*plan.Plan{
		"a": mkPlan("a", "b"),
		"b": mkPlan("b"),
	}
	sel := ExpandTargets(context.Background(), []string{"a"}, plans, nil, ScopeFlags{Exact: true})
	if len(sel) != 1 || !sel["a"] {
		t.Errorf("expected only a selected, got %+v", sel)
	}
}

type alwaysInstalled struct{}

func (alwaysInstalled) IsInstalled(ctx context.Context, name string) bool { return true }

func TestExpandTargetsSkipsAlreadyInstalledDeps(t *testing.T) {
	plans := map[string]*plan.Plan{
		"a": mkPlan("a", "b"),
		"b": mkPlan("b"),
	}
	sel := ExpandTargets(context.Background(), []string{"a"}, plans, alwaysInstalled{}, ScopeFlags{})
	if sel["b"] {
		t.Error("expected installed dep b to be skipped by default")
	}
}

func TestExpandTargetsForceDepsIncludesInstalled(t *testing.T) {
	plans := map[string]*plan.Plan{
		"a": mkPlan("a", "b"),
		"b": mkPlan("b"),
	}
	sel := ExpandTargets(context.Background(), []string{"a"}, plans, alwaysInstalled{}, ScopeFlags{ForceDeps: true})
	if !sel["b"] {
		t.Error("expected -D to include already-installed dep b")
	}
}

// TestSchedulerRunResolvesMVPCycleWithoutDeadlock runs the freetype/harfbuzz
// MVP cycle through the real worker pool: before entries carried a
// (Name, Phase) key, freetype's MVP and FULL entries collapsed onto one
// "freetype" bookkeeping slot and remaining counts came from the raw,
// un-pruned graph, so neither entry was ever admitted as ready.
func TestSchedulerRunResolvesMVPCycleWithoutDeadlock(t *testing.T) {
	freetype := mkPlan("freetype", "harfbuzz")
	freetype.MVP = plan.MVPOverlay{Dependencies: map[plan.DependencyKind][]plan.Dependency{plan.DepLink: {}}}
	harfbuzz := mkPlan("harfbuzz", "freetype")

	plans := map[string]*plan.Plan{"freetype": freetype, "harfbuzz": harfbuzz}
	g := NewGraph(plans)
	selected := map[string]bool{"freetype": true, "harfbuzz": true}
	entries, err := BuildSchedule(g, selected, map[string]Cause{})
	if err != nil {
		t.Fatalf("BuildSchedule: %v", err)
	}

	var ranOrder []string
	var mu sync.Mutex
	sched := &Scheduler{
		Dockyards: 2,
		RunJob: func(ctx context.Context, e JobEntry) (builder.Result, error) {
			mu.Lock()
			ranOrder = append(ranOrder, string(e.Label)+" "+e.Name)
			mu.Unlock()
			return builder.Result{}, nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	var results []RunResult
	var runErr error
	go func() {
		results, runErr = sched.Run(ctx, g, entries)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("Scheduler.Run deadlocked on the freetype/harfbuzz MVP cycle")
	}

	if runErr != nil {
		t.Fatalf("Scheduler.Run: %v", runErr)
	}
	if len(results) != len(entries) {
		t.Fatalf("got %d results, want %d", len(results), len(entries))
	}

	mvpIdx, harfbuzzIdx, fullIdx := -1, -1, -1
	for i, name := range ranOrder {
		switch name {
		case "MVP freetype":
			mvpIdx = i
		case "NEW harfbuzz":
			harfbuzzIdx = i
		case "FULL freetype":
			fullIdx = i
		}
	}
	if !(mvpIdx < harfbuzzIdx && harfbuzzIdx < fullIdx) {
		t.Errorf("expected freetype MVP before harfbuzz before freetype FULL, got run order %v", ranOrder)
	}
}
