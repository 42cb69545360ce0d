package orchestrator

import (
	"sort"

	"github.com/wrightpm/wright/pkg/plan"
)

// Label is the cause annotation attached to one construction-plan entry.
type Label string

const (
	LabelNew         Label = "NEW"
	LabelLinkRebuild Label = "LINK-REBUILD"
	LabelRevRebuild  Label = "REV-REBUILD"
	LabelMVP         Label = "MVP"
	LabelFull        Label = "FULL"
)

// JobEntry is one emitted construction-plan entry.
type JobEntry struct {
	Name         string
	Label        Label
	Phase        plan.Phase
	ForceRebuild bool // FULL pass after an MVP bootstrap is always force-rebuilt
}

// Cause classifies why each selected package was included, for labeling.
type Cause string

const (
	CauseDirect       Cause = "direct"
	CauseLinkRebuild  Cause = "link-rebuild"
	CauseRevRebuild   Cause = "rev-rebuild"
)

// BuildSchedule computes the full ordered job list for the selected
// package set: cycle detection and MVP injection, then a topological
// ordering of the resulting job graph.
func BuildSchedule(g *Graph, selected map[string]bool, causes map[string]Cause) ([]JobEntry, error) {
	sccs := g.StronglyConnectedComponents()

	mvpOf := make(map[string]string)        // cycle member -> chosen MVP candidate name
	othersRemaining := make(map[string]int) // winner -> count of other selected cycle members not yet emitted
	for _, scc := range sccs {
		if !scc.IsCycle(g) {
			continue
		}
		inSelection := false
		for _, m := range scc.Members {
			if selected[m] {
				inSelection = true
				break
			}
		}
		if !inSelection {
			continue
		}
		winner, err := ChooseMVPCandidate(g, scc)
		if err != nil {
			return nil, err
		}
		for _, m := range scc.Members {
			mvpOf[m] = winner
		}
		count := 0
		for _, m := range scc.Members {
			if m != winner && selected[m] {
				count++
			}
		}
		othersRemaining[winner] = count
	}

	order := topoOrderRespectingMVP(g, selected, mvpOf)

	var entries []JobEntry
	emittedMVP := make(map[string]bool)
	for _, name := range order {
		if winner, isCycleMember := mvpOf[name]; isCycleMember && winner == name && !emittedMVP[name] {
			entries = append(entries, JobEntry{Name: name, Label: LabelMVP, Phase: plan.PhaseMVP})
			emittedMVP[name] = true
		}
	}

	// The winner's FULL pass must land strictly after every other member of
	// its cycle, not at the winner's own slot in the shared topo order: a
	// cycle member reachable only through the winner's MVP output still
	// needs its own FULL build before the winner rebuilds against the real
	// (non-MVP) version of it.
	pendingFull := make(map[string]bool)
	emitFull := func(name string) {
		entries = append(entries, JobEntry{Name: name, Label: LabelFull, Phase: plan.PhaseFull, ForceRebuild: true})
	}
	for _, name := range order {
		winner, isCycleMember := mvpOf[name]
		switch {
		case isCycleMember && winner == name:
			if othersRemaining[name] == 0 {
				emitFull(name)
			} else {
				pendingFull[name] = true
			}
		case isCycleMember:
			entries = append(entries, JobEntry{Name: name, Label: labelFor(causes[name]), Phase: plan.PhaseFull})
			othersRemaining[winner]--
			if othersRemaining[winner] == 0 && pendingFull[winner] {
				delete(pendingFull, winner)
				emitFull(winner)
			}
		default:
			entries = append(entries, JobEntry{Name: name, Label: labelFor(causes[name]), Phase: plan.PhaseFull})
		}
	}
	return entries, nil
}

func labelFor(c Cause) Label {
	switch c {
	case CauseLinkRebuild:
		return LabelLinkRebuild
	case CauseRevRebuild:
		return LabelRevRebuild
	default:
		return LabelNew
	}
}

// topoOrderRespectingMVP produces a topological order of the selected
// packages. Within a cycle, edges to the non-winning members are treated
// as satisfied by the winner's MVP pass, so the cycle does not block
// ordering; BuildSchedule defers the winner's own FULL entry until every
// other member of the cycle has been emitted.
func topoOrderRespectingMVP(g *Graph, selected map[string]bool, mvpOf map[string]string) []string {
	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	inDegree := make(map[string]int, len(names))
	adj := make(map[string][]string, len(names))
	for _, name := range names {
		inDegree[name] = 0
	}
	for _, name := range names {
		for _, dep := range g.edges[name] {
			if !selected[dep] || dep == name {
				continue
			}
			// An edge into a non-winning cycle member is satisfied by that
			// member's own (later) FULL pass; treat it as already-resolved by
			// excluding it here so it never blocks the winner from proceeding.
			if winner, ok := mvpOf[dep]; ok && winner != dep && mvpOf[name] == winner {
				continue
			}
			adj[dep] = append(adj[dep], name)
			inDegree[name]++
		}
	}

	var queue, order []string
	for _, name := range names {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		next := append([]string{}, adj[n]...)
		sort.Strings(next)
		for _, m := range next {
			inDegree[m]--
			if inDegree[m] == 0 {
				queue = append(queue, m)
				sort.Strings(queue)
			}
		}
	}
	if len(order) != len(names) {
		// Residual cycle not resolved by any MVP winner; fall back to
		// selection order rather than dropping packages silently.
		return names
	}
	return order
}
