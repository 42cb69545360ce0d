package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wrightpm/wright/pkg/archive"
	"github.com/wrightpm/wright/pkg/plan"
)

// packageAll constructs the main archive and each split's archive
// (spec.md §4.7 step 9), placing them in components dir.
func (b *Builder) packageAll(job *Job, ws Workspace) (main string, splits map[string]string, err error) {
	if err := os.MkdirAll(job.ComponentsDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("builder: mkdir components dir: %w", err)
	}

	mainInfo := archive.Info{
		Name:         job.Plan.Name,
		Version:      job.Plan.PlanVersion,
		Release:      job.Plan.Release,
		Architecture: job.Arch,
		Description:  job.Plan.Description,
		License:      job.Plan.License,
		UpstreamURL:  job.Plan.UpstreamURL,
		Maintainer:   job.Plan.Maintainer,
		Dependencies: depRefs(job.Plan.Dependencies),
		BackupFiles:  job.Plan.BackupFiles,
		PostInstall:  job.Plan.PostInstall,
		PostUpgrade:  job.Plan.PostUpgrade,
		PreRemove:    job.Plan.PreRemove,
	}
	main, err = b.packOne(job, mainInfo, ws.Pkg)
	if err != nil {
		return "", nil, err
	}

	splits = make(map[string]string, len(job.Plan.Splits))
	for _, sp := range job.Plan.Splits {
		license := sp.License
		if license == "" {
			license = job.Plan.License
		}
		maintainer := sp.Maintainer
		if maintainer == "" {
			maintainer = job.Plan.Maintainer
		}
		info := archive.Info{
			Name:         sp.Name,
			Version:      job.Plan.PlanVersion,
			Release:      job.Plan.Release,
			Architecture: job.Arch,
			Description:  sp.Description,
			License:      license,
			Maintainer:   maintainer,
			Dependencies: depRefs(sp.Dependencies),
			PostInstall:  sp.PackageStage.Script,
		}
		path, err := b.packOne(job, info, ws.SplitPkg[sp.Name])
		if err != nil {
			return "", nil, err
		}
		splits[sp.Name] = path
	}
	return main, splits, nil
}

func (b *Builder) packOne(job *Job, info archive.Info, root string) (string, error) {
	filename := archive.Filename(info.Name, info.Version, info.Release, info.Architecture)
	dest := filepath.Join(job.ComponentsDir, filename)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("builder: create archive %s: %w", dest, err)
	}
	defer f.Close()

	_, _, err = archive.Pack(f, archive.PackInput{Info: info, Root: root})
	if err != nil {
		return "", fmt.Errorf("builder: pack archive %s: %w", dest, err)
	}
	return dest, nil
}

func depRefs(deps map[plan.DependencyKind][]plan.Dependency) []archive.DependencyRef {
	var out []archive.DependencyRef
	for kind, list := range deps {
		for _, d := range list {
			out = append(out, archive.DependencyRef{
				Kind: string(kind), Name: d.Name, Operator: d.Operator, Version: d.Version,
			})
		}
	}
	return out
}

// archivesExist reports whether the main archive and every split archive
// already exist in components dir (spec.md §4.7 step 2, first skip gate).
func archivesExist(job *Job) bool {
	if _, err := os.Stat(filepath.Join(job.ComponentsDir,
		archive.Filename(job.Plan.Name, job.Plan.PlanVersion, job.Plan.Release, job.Arch))); err != nil {
		return false
	}
	for _, sp := range job.Plan.Splits {
		if _, err := os.Stat(filepath.Join(job.ComponentsDir,
			archive.Filename(sp.Name, job.Plan.PlanVersion, job.Plan.Release, job.Arch))); err != nil {
			return false
		}
	}
	return true
}
