package builder

import (
	"fmt"
	"path/filepath"

	"github.com/wrightpm/wright/pkg/plan"
)

// variableMap builds the fixed substitution values spec.md §4.7 step 6
// names. When running inside a dockyard, path variables are remapped to
// the container-internal mount points; outside one, they are the real
// workspace paths.
func variableMap(job *Job, ws Workspace, buildDir string, split *plan.Split, insideDockyard bool) map[string]string {
	vars := map[string]string{
		"PKG_NAME":          job.Plan.Name,
		"PKG_VERSION":       job.Plan.PlanVersion,
		"PKG_RELEASE":       fmt.Sprintf("%d", job.Plan.Release),
		"PKG_ARCH":          job.Arch,
		"CFLAGS":            job.GlobalCFlags,
		"CXXFLAGS":          job.GlobalCXXFlags,
		"WRIGHT_BUILD_PHASE": string(job.Phase),
	}

	if insideDockyard {
		vars["SRC_DIR"] = "/build"
		vars["BUILD_DIR"] = remapBuildDir(ws.Src, buildDir, "/build")
		vars["FILES_DIR"] = "/files"
		if split != nil {
			vars["PKG_DIR"] = "/output"
			vars["MAIN_PKG_DIR"] = "/main-pkg"
		} else {
			vars["PKG_DIR"] = "/output"
		}
	} else {
		vars["SRC_DIR"] = ws.Src
		vars["BUILD_DIR"] = buildDir
		vars["FILES_DIR"] = ws.Files
		if split != nil {
			vars["PKG_DIR"] = ws.SplitPkg[split.Name]
			vars["MAIN_PKG_DIR"] = ws.Pkg
		} else {
			vars["PKG_DIR"] = ws.Pkg
		}
	}

	deps := plan.MergedDependencies(job.Plan, job.Phase)
	mainDeps := job.Plan.Dependencies
	for _, d := range mainDeps[plan.DepBuild] {
		if !containsDep(deps[plan.DepBuild], d.Name) {
			vars["WRIGHT_BOOTSTRAP_WITHOUT_"+envSafe(d.Name)] = "1"
		}
	}
	for _, d := range mainDeps[plan.DepLink] {
		if !containsDep(deps[plan.DepLink], d.Name) {
			vars["WRIGHT_BOOTSTRAP_WITHOUT_"+envSafe(d.Name)] = "1"
		}
	}
	return vars
}

func containsDep(deps []plan.Dependency, name string) bool {
	for _, d := range deps {
		if d.Name == name {
			return true
		}
	}
	return false
}

func envSafe(name string) string {
	out := []byte(name)
	for i, c := range out {
		if !(c >= 'A' && c <= 'Z') && !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') {
			out[i] = '_'
		}
	}
	return string(out)
}

// remapBuildDir maps a resolved BUILD_DIR (a subdirectory of ws.Src, or
// ws.Src itself) onto the dockyard-internal /build mount point, preserving
// any subdirectory component.
func remapBuildDir(srcDir, buildDir, mountPoint string) string {
	if buildDir == srcDir {
		return mountPoint
	}
	rel, err := filepath.Rel(srcDir, buildDir)
	if err != nil || rel == "." {
		return mountPoint
	}
	return filepath.Join(mountPoint, rel)
}
