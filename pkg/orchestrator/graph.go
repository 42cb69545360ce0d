// Package orchestrator expands user-named build targets into a complete
// job set, detects and resolves dependency cycles via MVP bootstrap
// passes, and schedules jobs across a bounded dockyard worker pool
// (spec.md §4.9, §4.10, §5).
//
// Grounded on the teacher's pkg/engine/dag.go (DAGBuilder: adjacency
// lists, Kahn's-algorithm level computation, DFS cycle detection)
// generalized from a single-pass plan-unit DAG to Wright's two-pass
// MVP/FULL scheduling, with Tarjan SCC analysis added because the
// teacher's DFS cycle detector only reports *a* cycle path, while Wright
// must enumerate full cycle membership to evaluate every member's MVP
// candidacy.
package orchestrator

import (
	"sort"

	"github.com/wrightpm/wright/pkg/plan"
	"github.com/wrightpm/wright/pkg/wrighterrors"
)

// Node is one package in the dependency graph under consideration.
type Node struct {
	Name string
	Plan *plan.Plan
}

// Graph is the directed dependency graph among selected packages: edges
// point from a package to the upstream package it depends on (build or
// link kind only — the edges that matter for build ordering and cycles).
type Graph struct {
	nodes map[string]*Node
	edges map[string][]string // name -> upstream dep names
}

// NewGraph builds the dependency graph from the given plans, considering
// only build and link dependency kinds as graph edges (spec.md §4.9
// "Cycle detection": "Build the directed dependency graph").
func NewGraph(plans map[string]*plan.Plan) *Graph {
	g := &Graph{nodes: make(map[string]*Node, len(plans)), edges: make(map[string][]string, len(plans))}
	for name, p := range plans {
		g.nodes[name] = &Node{Name: name, Plan: p}
	}
	for name, p := range plans {
		var deps []string
		for _, kind := range []plan.DependencyKind{plan.DepBuild, plan.DepLink} {
			for _, d := range p.Dependencies[kind] {
				if _, ok := plans[d.Name]; ok {
					deps = append(deps, d.Name)
				}
			}
		}
		g.edges[name] = deps
	}
	return g
}

// SCC is one strongly connected component.
type SCC struct {
	Members []string
}

// IsCycle reports whether this SCC constitutes a cycle: size >= 2, or a
// single member with a self-loop.
func (s SCC) IsCycle(g *Graph) bool {
	if len(s.Members) >= 2 {
		return true
	}
	if len(s.Members) == 1 {
		name := s.Members[0]
		for _, d := range g.edges[name] {
			if d == name {
				return true
			}
		}
	}
	return false
}

// tarjanState carries Tarjan's algorithm's working state.
type tarjanState struct {
	g       *Graph
	index   map[string]int
	low     map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    []SCC
}

// StronglyConnectedComponents computes every SCC of the graph via Tarjan's
// algorithm, in an order where a component's dependencies precede it
// (reverse discovery order, which Tarjan naturally produces).
func (g *Graph) StronglyConnectedComponents() []SCC {
	st := &tarjanState{
		g: g, index: make(map[string]int), low: make(map[string]int), onStack: make(map[string]bool),
	}
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic traversal order
	for _, name := range names {
		if _, visited := st.index[name]; !visited {
			st.strongconnect(name)
		}
	}
	return st.sccs
}

func (st *tarjanState) strongconnect(v string) {
	st.index[v] = st.counter
	st.low[v] = st.counter
	st.counter++
	st.stack = append(st.stack, v)
	st.onStack[v] = true

	deps := append([]string{}, st.g.edges[v]...)
	sort.Strings(deps)
	for _, w := range deps {
		if _, visited := st.index[w]; !visited {
			st.strongconnect(w)
			if st.low[w] < st.low[v] {
				st.low[v] = st.low[w]
			}
		} else if st.onStack[w] {
			if st.index[w] < st.low[v] {
				st.low[v] = st.index[w]
			}
		}
	}

	if st.low[v] == st.index[v] {
		var members []string
		for {
			n := len(st.stack) - 1
			w := st.stack[n]
			st.stack = st.stack[:n]
			st.onStack[w] = false
			members = append(members, w)
			if w == v {
				break
			}
		}
		sort.Strings(members)
		st.sccs = append(st.sccs, SCC{Members: members})
	}
}

// MVPCandidate is a cycle member whose mvp.dependencies overlay removes at
// least one cycle edge.
type MVPCandidate struct {
	Name         string
	RemovedEdges int
}

// ChooseMVPCandidate evaluates every member of a cycle and picks the
// deterministic winner: fewest removed edges, tiebreak name-ascending
// (spec.md §4.9 "Pick the candidate deterministically").
func ChooseMVPCandidate(g *Graph, cycle SCC) (string, error) {
	memberSet := make(map[string]bool, len(cycle.Members))
	for _, m := range cycle.Members {
		memberSet[m] = true
	}

	var candidates []MVPCandidate
	for _, name := range cycle.Members {
		node := g.nodes[name]
		if node == nil || node.Plan == nil || len(node.Plan.MVP.Dependencies) == 0 {
			continue
		}
		removed := removedCycleEdges(g, node.Plan, name, memberSet)
		if removed > 0 {
			candidates = append(candidates, MVPCandidate{Name: name, RemovedEdges: removed})
		}
	}

	if len(candidates) == 0 {
		return "", wrighterrors.New(wrighterrors.KindCycle, "cycle has no viable MVP candidate", nil).
			WithHint(formatCycle(cycle.Members))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RemovedEdges != candidates[j].RemovedEdges {
			return candidates[i].RemovedEdges < candidates[j].RemovedEdges
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0].Name, nil
}

// removedCycleEdges counts how many of name's current within-cycle edges
// the MVP overlay removes.
func removedCycleEdges(g *Graph, p *plan.Plan, name string, memberSet map[string]bool) int {
	mvpDeps := plan.MergedDependencies(p, plan.PhaseMVP)
	mvpTargets := make(map[string]bool)
	for _, kind := range []plan.DependencyKind{plan.DepBuild, plan.DepLink} {
		for _, d := range mvpDeps[kind] {
			mvpTargets[d.Name] = true
		}
	}

	removed := 0
	for _, dep := range g.edges[name] {
		if !memberSet[dep] {
			continue
		}
		if !mvpTargets[dep] {
			removed++
		}
	}
	return removed
}

func formatCycle(members []string) string {
	out := ""
	for i, m := range members {
		if i > 0 {
			out += " -> "
		}
		out += m
	}
	return out
}
