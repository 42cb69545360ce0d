package builder

import (
	"context"
	"fmt"

	"github.com/wrightpm/wright/pkg/buildcache"
)

// Build runs the full lifecycle for job and returns its Result (spec.md
// §4.7). It implements, in order: skip gates, fetch/verify/extract, the
// hook-wrapped stage pipeline, FHS validation, and packaging.
func (b *Builder) Build(ctx context.Context, job *Job) (Result, error) {
	// Step 2: skip gates, in order.
	decision := buildcache.Resolve(job.Flags.cacheFlags())
	if decision.SkipIfArchiveExists && archivesExist(job) {
		return Result{Skipped: true}, nil
	}

	key := buildcache.Key(buildcache.KeyInput{
		Name: job.Plan.Name, Version: job.Plan.PlanVersion, Release: job.Plan.Release,
		Sources: job.Plan.Sources, Lifecycle: job.Plan.Lifecycle,
		GlobalCFlags: job.GlobalCFlags, GlobalCXXFlags: job.GlobalCXXFlags,
	})

	// Step 1: prepare workspace.
	ws, err := prepareWorkspace(job)
	if err != nil {
		return Result{}, err
	}

	if decision.ReadCache && b.Cache.Exists(key) {
		if err := b.Cache.Restore(key, ws.cacheRoots()); err != nil {
			return Result{}, fmt.Errorf("builder: restore cache: %w", err)
		}
		main, splits, err := b.collectCachedArchives(job, ws)
		if err != nil {
			return Result{}, err
		}
		return Result{CacheHit: true, MainArchive: main, SplitArchives: splits}, nil
	}

	if job.Flags.Clean {
		if err := b.Cache.Delete(key); err != nil {
			return Result{}, err
		}
	}

	// Steps 3-4: fetch + verify.
	localPaths, err := fetchAll(b.Fetcher, job)
	if err != nil {
		return Result{}, err
	}
	if err := verifySources(b.Fetcher, job, localPaths); err != nil {
		return Result{}, err
	}

	// Step 5: extract.
	buildDir, err := extractSources(job, ws, localPaths)
	if err != nil {
		return Result{}, err
	}

	// Steps 6-7: variable substitution happens per-stage inside runPipeline;
	// run the hook-wrapped pipeline.
	logs, err := b.runPipeline(ctx, job, ws, buildDir)
	if err != nil {
		return Result{StageLogs: logs}, err
	}

	// Step 8: FHS validation, unless skipped.
	if !job.Flags.SkipFHSCheck && !job.Plan.Options.SkipFHSCheck {
		if err := b.validateFHS(ctx, job.Plan.Name, ws.Pkg); err != nil {
			return Result{StageLogs: logs}, err
		}
		for _, sp := range job.Plan.Splits {
			if err := b.validateFHS(ctx, sp.Name, ws.SplitPkg[sp.Name]); err != nil {
				return Result{StageLogs: logs}, err
			}
		}
	}

	// Step 9: package.
	main, splits, err := b.packageAll(job, ws)
	if err != nil {
		return Result{StageLogs: logs}, err
	}

	if decision.WriteCache {
		if err := b.Cache.Write(key, ws.cacheRoots()); err != nil {
			return Result{}, fmt.Errorf("builder: write cache: %w", err)
		}
	}

	return Result{MainArchive: main, SplitArchives: splits, StageLogs: logs}, nil
}

// collectCachedArchives packages from a restored cache without re-entering
// the dockyard (spec.md §4.7 step 1: "a cache hit restores pkg/+log/ from
// the cache archive without entering the dockyard").
func (b *Builder) collectCachedArchives(job *Job, ws Workspace) (string, map[string]string, error) {
	return b.packageAll(job, ws)
}
