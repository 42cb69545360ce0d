package builder

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/wrightpm/wright/pkg/dockyard"
	"github.com/wrightpm/wright/pkg/executor"
	"github.com/wrightpm/wright/pkg/plan"
	"github.com/wrightpm/wright/pkg/resourcesched"
	"github.com/wrightpm/wright/pkg/wrighterrors"
)

// runPipeline runs every stage in effective order, wrapping each with its
// pre_/post_ hooks, against the merged lifecycle for job.Phase (spec.md
// §4.7 step 7).
func (b *Builder) runPipeline(ctx context.Context, job *Job, ws Workspace, buildDir string) ([]string, error) {
	lifecycle := plan.MergedLifecycle(job.Plan, job.Phase)
	order := plan.ResolvedStageOrder(job.Plan)
	if job.Flags.Stage && len(job.Flags.StageNames) > 0 {
		order = job.Flags.StageNames
	}

	var logs []string
	vars := variableMap(job, ws, buildDir, nil, job.DockyardRoot != "")

	for _, stageName := range order {
		if hook, ok := plan.HookStage(lifecycle, "pre", stageName); ok {
			logPath, err := b.runStage(ctx, job, ws, "pre_"+stageName, hook, vars)
			if logPath != "" {
				logs = append(logs, logPath)
			}
			if err != nil {
				return logs, err
			}
		}
		if stage, ok := lifecycle[stageName]; ok {
			logPath, err := b.runStage(ctx, job, ws, stageName, stage, vars)
			if logPath != "" {
				logs = append(logs, logPath)
			}
			if err != nil {
				return logs, err
			}
		}
		if hook, ok := plan.HookStage(lifecycle, "post", stageName); ok {
			logPath, err := b.runStage(ctx, job, ws, "post_"+stageName, hook, vars)
			if logPath != "" {
				logs = append(logs, logPath)
			}
			if err != nil {
				return logs, err
			}
		}
	}
	return logs, nil
}

func (b *Builder) runStage(ctx context.Context, job *Job, ws Workspace, stageName string, stage plan.Stage, vars map[string]string) (string, error) {
	def, ok := b.Registry.Lookup(stage.Executor)
	if !ok {
		return "", wrighterrors.New(wrighterrors.KindBuild, fmt.Sprintf("unknown executor %q", stage.Executor), nil).
			WithPackage(job.Plan.Name).WithStage(stageName)
	}

	env := plan.SubstituteEnv(stage.Env, vars)
	for k, v := range job.ExtraEnv {
		env[k] = v
	}
	script := plan.Substitute(stage.Script, vars)

	level := stage.Dockyard
	if level == "" {
		level = def.DefaultDockyard
	}
	dockyardLevel := dockyard.Level(level)

	logPath := filepath.Join(ws.Log, stageName+".log")
	inv := executor.Invocation{
		Stage:      stageName,
		Executor:   def,
		Script:     script,
		WorkingDir: vars["BUILD_DIR"],
		Env:        env,
	}

	opts := job.Plan.Options
	var cpuSet []int
	if job.NPROC > 0 {
		cpuSet = resourcesched.CPUSet(resourcesched.Share{CPUs: job.NPROC})
	}
	timeout := time.Duration(opts.Timeout) * time.Second

	buildSpec := func(inv executor.Invocation, command string, args []string) dockyard.Spec {
		return dockyard.Spec{
			Level:         dockyardLevel,
			Root:          job.DockyardRoot,
			Binds:         stageBinds(job, ws),
			WorkingDir:    inv.WorkingDir,
			Env:           inv.Env,
			Command:       command,
			Args:          args,
			CPUSet:        cpuSet,
			MemoryLimitMB: int64(opts.MemoryLimit),
			CPUTimeLimitS: int64(opts.CPUTimeLimit),
			Timeout:       timeout,
		}
	}

	if stageName == "compile" && job.CompileGate != nil {
		job.CompileGate <- struct{}{}
		defer func() { <-job.CompileGate }()
	}

	res, err := b.Runner.Run(ctx, inv, ws.Root, logPath, buildSpec)
	if err != nil {
		return logPath, wrighterrors.New(wrighterrors.KindBuild, "stage execution failed", err).
			WithPackage(job.Plan.Name).WithStage(stageName).WithLogPath(logPath)
	}
	if res.TimedOut {
		return logPath, wrighterrors.New(wrighterrors.KindResource, "stage timed out", nil).
			WithPackage(job.Plan.Name).WithStage(stageName).WithLogPath(logPath).
			WithHint(executor.TailStderr(res, 40))
	}
	if res.ExitCode != 0 {
		return logPath, wrighterrors.New(wrighterrors.KindBuild, fmt.Sprintf("stage exited %d", res.ExitCode), nil).
			WithPackage(job.Plan.Name).WithStage(stageName).WithLogPath(logPath).
			WithHint(executor.TailStderr(res, 40))
	}
	return logPath, nil
}

// stageBinds assembles the dockyard bind layout for one stage: the
// workspace directories remapped onto the container-internal mount points
// named in spec.md §4.7 step 6, plus the default system mounts.
func stageBinds(job *Job, ws Workspace) []dockyard.Bind {
	binds := dockyard.DefaultMounts()
	binds = append(binds,
		dockyard.Bind{Source: ws.Src, Target: "/build"},
		dockyard.Bind{Source: ws.Pkg, Target: "/output"},
		dockyard.Bind{Source: ws.Files, Target: "/files"},
	)
	return binds
}
