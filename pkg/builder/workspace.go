package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wrightpm/wright/pkg/plan"
)

// Workspace is the resolved set of directories for one job (spec.md §4.7
// step 1 and §6 "On-disk layout").
type Workspace struct {
	Root     string // <build_dir>/<name>-<version>
	Src      string
	Pkg      string
	Files    string
	Log      string
	SplitPkg map[string]string // split name -> pkg-<split> dir
}

func workspaceRoot(buildDir string, p *plan.Plan) string {
	return filepath.Join(buildDir, p.Name+"-"+p.PlanVersion)
}

// prepareWorkspace creates or recreates the job's directories according to
// the run mode: ModeDefault recreates everything; ModeStage preserves src/
// and recreates pkg/+log/ only.
func prepareWorkspace(job *Job) (Workspace, error) {
	root := workspaceRoot(job.BuildDir, job.Plan)
	ws := Workspace{
		Root:     root,
		Src:      filepath.Join(root, "src"),
		Pkg:      filepath.Join(root, "pkg"),
		Files:    filepath.Join(root, "files"),
		Log:      filepath.Join(root, "log"),
		SplitPkg: make(map[string]string, len(job.Plan.Splits)),
	}
	for _, sp := range job.Plan.Splits {
		ws.SplitPkg[sp.Name] = filepath.Join(root, "pkg-"+sp.Name)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return ws, fmt.Errorf("builder: mkdir workspace root: %w", err)
	}

	mode := job.Flags.runMode()
	if mode == ModeDefault {
		if err := os.RemoveAll(ws.Src); err != nil {
			return ws, fmt.Errorf("builder: clear src: %w", err)
		}
		if err := os.RemoveAll(ws.Files); err != nil {
			return ws, fmt.Errorf("builder: clear files: %w", err)
		}
	}
	if err := os.MkdirAll(ws.Src, 0o755); err != nil {
		return ws, err
	}

	if err := os.RemoveAll(ws.Pkg); err != nil {
		return ws, fmt.Errorf("builder: clear pkg: %w", err)
	}
	if err := os.RemoveAll(ws.Log); err != nil {
		return ws, fmt.Errorf("builder: clear log: %w", err)
	}
	if err := os.MkdirAll(ws.Pkg, 0o755); err != nil {
		return ws, err
	}
	if err := os.MkdirAll(ws.Log, 0o755); err != nil {
		return ws, err
	}
	if err := os.MkdirAll(ws.Files, 0o755); err != nil {
		return ws, err
	}
	for name, dir := range ws.SplitPkg {
		if err := os.RemoveAll(dir); err != nil {
			return ws, fmt.Errorf("builder: clear split %s pkg: %w", name, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ws, err
		}
	}
	return ws, nil
}

// cacheRoots returns the named roots the build cache captures: pkg/, log/,
// and each pkg-<split>/ (never src/), per spec.md §4.8.
func (ws Workspace) cacheRoots() map[string]string {
	roots := map[string]string{"pkg": ws.Pkg, "log": ws.Log}
	for name, dir := range ws.SplitPkg {
		roots["pkg-"+name] = dir
	}
	return roots
}
