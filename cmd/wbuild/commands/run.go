package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wrightpm/wright/pkg/builder"
	"github.com/wrightpm/wright/pkg/installer"
	"github.com/wrightpm/wright/pkg/orchestrator"
	"github.com/wrightpm/wright/pkg/pkgdb"
	"github.com/wrightpm/wright/pkg/plan"
	"github.com/wrightpm/wright/pkg/resourcesched"
)

func newRunCommand() *cobra.Command {
	var (
		scope   orchestrator.ScopeFlags
		install bool
	)

	cmd := &cobra.Command{
		Use:   "run <package>...",
		Short: "Build one or more plans, resolving dependencies and cycles",
		Long: `run expands the named targets into a full construction plan: scope
flags pull in missing dependencies or dependents, cycles are broken by an
MVP bootstrap pass per strongly-connected component, and the resulting
jobs are scheduled across dockyard workers bounded by build.dockyards.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), args, scope, install)
		},
	}

	cmd.Flags().BoolVar(&scope.Self, "self", false, "keep only the named targets")
	cmd.Flags().BoolVar(&scope.Deps, "deps", false, "add missing upstream build+link dependencies")
	cmd.Flags().BoolVar(&scope.Dependents, "dependents", false, "add packages that link to a target")
	cmd.Flags().BoolVarP(&scope.ForceDeps, "force-deps", "D", false, "also add already-installed dependencies")
	cmd.Flags().BoolVarP(&scope.ForceRev, "force-dependents", "R", false, "also add runtime+build dependents")
	cmd.Flags().IntVar(&scope.Depth, "depth", 0, "bound cascade depth (0 = unlimited)")
	cmd.Flags().BoolVar(&scope.Exact, "exact", false, "opt all expansion out")
	cmd.Flags().BoolVar(&install, "install", false, "install each job's archives after it builds")

	return cmd
}

func runBuild(ctx context.Context, targets []string, scope orchestrator.ScopeFlags, install bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cache, err := loadPlans(cfg)
	if err != nil {
		return err
	}
	defer cache.Close()

	all := make(map[string]*plan.Plan)
	for _, p := range cache.All() {
		all[p.Name] = p
	}
	for _, t := range targets {
		if all[t] == nil {
			return fmt.Errorf("run: unknown plan %q", t)
		}
	}

	store, err := pkgdb.New(pkgdb.Config{Path: cfg.Paths.DBPath})
	if err != nil {
		return fmt.Errorf("run: open package database: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("run: migrate package database: %w", err)
	}

	var installed orchestrator.Installed = orchestrator.NewDBInstalled(store)
	selected := orchestrator.ExpandTargets(ctx, targets, all, installed, scope)

	g := orchestrator.NewGraph(all)
	causes := make(map[string]orchestrator.Cause, len(selected))
	for _, t := range targets {
		causes[t] = orchestrator.CauseDirect
	}
	entries, err := orchestrator.BuildSchedule(g, selected, causes)
	if err != nil {
		return fmt.Errorf("run: build schedule: %w", err)
	}

	for _, e := range entries {
		fmt.Printf("[%s] %s\n", e.Label, e.Name)
	}

	b, err := newBuilder(ctx, cfg)
	if err != nil {
		return err
	}

	sched := resourcesched.New(resourcesched.Config{
		MaxCPUs:          cfg.Build.MaxCPUs,
		NprocPerDockyard: cfg.Build.NprocPerDockyard,
	}, 0)
	compileGate := make(chan struct{}, 1)

	// Install operations are serialized behind one process-wide lock,
	// acquired after each job's archives are written.
	var installLock orchestrator.InstallLock
	in := &installer.Installer{Log: componentLogger("installer"), Store: store, Root: "/"}

	runJob := func(ctx context.Context, entry orchestrator.JobEntry) (builder.Result, error) {
		p := all[entry.Name]
		share := sched.Admit(p.Options.BuildType, p.Options.Jobs)
		defer sched.Release()

		job := &builder.Job{
			Plan:          p,
			Phase:         entry.Phase,
			Flags:         builder.Flags{Force: entry.ForceRebuild, IsMVP: entry.Phase == plan.PhaseMVP},
			BuildDir:      "/tmp/wright-build",
			ComponentsDir: cfg.Paths.ComponentsDir,
			SourcesCache:  filepath.Join(cfg.Paths.CacheDir, "sources"),
			CacheDir:      filepath.Join(cfg.Paths.CacheDir, "builds"),
			Arch:          arch,
			NPROC:         share.CPUs,
			ExtraEnv:      share.Env,
			DockyardRoot:  filepath.Join(cfg.Paths.CacheDir, "dockyard-root", entry.Name),
			CompileGate:   compileGate,
		}
		res, err := b.Build(ctx, job)
		if err != nil || !install || res.Skipped {
			return res, err
		}

		installLock.Acquire()
		defer installLock.Release()

		if res.MainArchive != "" {
			if err := in.Install(ctx, res.MainArchive, installer.Options{}); err != nil {
				return res, fmt.Errorf("install %s: %w", entry.Name, err)
			}
		}
		for split, archivePath := range res.SplitArchives {
			if err := in.Install(ctx, archivePath, installer.Options{}); err != nil {
				return res, fmt.Errorf("install split %s: %w", split, err)
			}
		}
		return res, nil
	}

	scheduler := &orchestrator.Scheduler{
		Log:       componentLogger("orchestrator"),
		Dockyards: cfg.Build.Dockyards,
		RunJob:    runJob,
	}

	results, err := scheduler.Run(ctx, g, entries)
	if err != nil {
		return err
	}
	for _, r := range results {
		switch {
		case r.Result.Skipped:
			fmt.Printf("%s: cache hit, skipped\n", r.Entry.Name)
		case r.Result.MainArchive != "":
			fmt.Printf("%s: %s\n", r.Entry.Name, r.Result.MainArchive)
		}
	}
	return nil
}
