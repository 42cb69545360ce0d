package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrightpm/wright/pkg/builder"
	"github.com/wrightpm/wright/pkg/plan"
	"github.com/wrightpm/wright/pkg/telemetry"
)

// JobRunner executes one JobEntry and returns its builder.Result.
type JobRunner func(ctx context.Context, entry JobEntry) (builder.Result, error)

// Scheduler drives a bounded pool of `Dockyards` workers: a job becomes
// ready once every predecessor among entries has completed, and a fatal
// error cancels the run.
//
// Grounded on the teacher's pkg/engine/scheduler.go ParallelScheduler: a
// work-channel-plus-WaitGroup worker pool reading ready units and reporting
// completion through a shared channel, generalized from level-by-level
// batches to continuous readiness tracking, since a job here becomes ready
// the instant its last predecessor finishes rather than only at a level
// boundary.
type Scheduler struct {
	Log       zerolog.Logger
	Dockyards int
	RunJob    JobRunner
}

// RunResult is one job's outcome.
type RunResult struct {
	Entry  JobEntry
	Result builder.Result
	Err    error
}

// entryKey identifies one schedule entry. Name alone is not unique: a
// cycle's MVP bootstrap emits two entries for the same package (its MVP
// pass and its later FULL pass), so every bookkeeping map below is keyed
// by (Name, Phase).
type entryKey struct {
	Name  string
	Phase plan.Phase
}

func keyOf(e JobEntry) entryKey { return entryKey{Name: e.Name, Phase: e.Phase} }

// Run executes entries respecting the dependency graph g: entries are
// admitted once every upstream dependency among entries has completed.
func (s *Scheduler) Run(ctx context.Context, g *Graph, entries []JobEntry) ([]RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dockyards := s.Dockyards
	if dockyards < 1 {
		dockyards = 1
	}

	entryIndex := make(map[entryKey]int, len(entries))
	for i, e := range entries {
		entryIndex[keyOf(e)] = i
	}

	// byName resolves a dependency referenced by package name to the
	// specific entry that actually satisfies it: the earliest (lowest
	// index) entry for that name. BuildSchedule always emits every MVP
	// entry before any cycle's deferred FULL entry, so for a cycle winner
	// this is always its MVP pass — anything depending on the winner's
	// name is satisfied by that interim build, the same build the
	// winner's own FULL pass waits to run after.
	byName := make(map[string]entryKey, len(entries))
	for _, e := range entries {
		k := keyOf(e)
		if existing, ok := byName[e.Name]; !ok || entryIndex[k] < entryIndex[existing] {
			byName[e.Name] = k
		}
	}

	// remaining and dependents are derived per-phase from each plan's own
	// merged dependency view (plan.MergedDependencies) — the same
	// MVP-aware pruning ChooseMVPCandidate uses to count removed cycle
	// edges — rather than the graph's raw, phase-blind edges.
	remaining := make(map[entryKey]int, len(entries))
	dependents := make(map[entryKey][]entryKey, len(entries))
	for _, e := range entries {
		k := keyOf(e)
		node := g.nodes[e.Name]
		count := 0
		if node != nil && node.Plan != nil {
			merged := plan.MergedDependencies(node.Plan, e.Phase)
			for _, kind := range []plan.DependencyKind{plan.DepBuild, plan.DepLink} {
				for _, d := range merged[kind] {
					depKey, ok := byName[d.Name]
					if !ok || depKey == k {
						continue
					}
					count++
					dependents[depKey] = append(dependents[depKey], k)
				}
			}
		}
		remaining[k] = count
	}

	var mu sync.Mutex
	results := make([]RunResult, 0, len(entries))
	var wg sync.WaitGroup
	sem := make(chan struct{}, dockyards)
	ready := make(chan JobEntry, len(entries))
	var fatalErr error
	done := make(map[entryKey]bool, len(entries))
	queuedSet := make(map[entryKey]bool, len(entries))

	var enqueue func()
	enqueue = func() {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range entries {
			k := keyOf(e)
			if !done[k] && remaining[k] == 0 && !queuedSet[k] {
				queuedSet[k] = true
				ready <- e
			}
		}
	}

	total := len(entries)
	settled := make(chan struct{}, total)
	enqueue()

	completedCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(done)
	}

loop:
	for completedCount() < total {
		select {
		case <-ctx.Done():
			break loop
		case e := <-ready:
			wg.Add(1)
			sem <- struct{}{}
			go func(entry JobEntry) {
				defer wg.Done()
				defer func() { <-sem }()

				k := keyOf(entry)

				mu.Lock()
				abort := fatalErr != nil
				mu.Unlock()
				if abort {
					mu.Lock()
					done[k] = true
					mu.Unlock()
					settled <- struct{}{}
					return
				}

				telemetry.RecordBuildStart(string(entry.Phase))
				spanCtx, span := telemetry.StartBuildSpan(ctx, entry.Name, string(entry.Phase))
				start := time.Now()
				res, err := s.RunJob(spanCtx, entry)
				telemetry.RecordBuildResult(string(entry.Phase), time.Since(start), err)
				if err != nil {
					span.RecordError(err)
				}
				span.End()

				mu.Lock()
				results = append(results, RunResult{Entry: entry, Result: res, Err: err})
				done[k] = true
				if err != nil && fatalErr == nil {
					fatalErr = fmt.Errorf("orchestrator: job %s (%s): %w", entry.Name, entry.Phase, err)
					cancel()
				}
				for _, dep := range dependents[k] {
					remaining[dep]--
				}
				mu.Unlock()

				enqueue()
				settled <- struct{}{}
			}(e)
		case <-settled:
			// a job finished without this goroutine being the one that
			// woke the select; loop re-checks completedCount()
		}
	}
	wg.Wait()

	if fatalErr != nil {
		return results, fatalErr
	}
	return results, nil
}
