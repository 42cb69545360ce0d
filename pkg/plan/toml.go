package plan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// tomlDependency mirrors one entry of a dependency list in the plan file.
type tomlDependency struct {
	Name     string `toml:"name"`
	Operator string `toml:"operator"`
	Version  string `toml:"version"`
}

// tomlStage mirrors one [lifecycle.<name>] table.
type tomlStage struct {
	Executor string            `toml:"executor"`
	Dockyard string            `toml:"dockyard"`
	Env      map[string]string `toml:"env"`
	Script   string            `toml:"script"`
}

// tomlOptions mirrors the [options] table.
type tomlOptions struct {
	Strip        bool              `toml:"strip"`
	Static       bool              `toml:"static"`
	Debug        bool              `toml:"debug"`
	CCache       bool              `toml:"ccache"`
	Env          map[string]string `toml:"env"`
	BuildType    string            `toml:"build_type"`
	MemoryLimit  int               `toml:"memory_limit"`
	CPUTimeLimit int               `toml:"cpu_time_limit"`
	Timeout      int               `toml:"timeout"`
	Jobs         int               `toml:"jobs"`
	SkipFHSCheck bool              `toml:"skip_fhs_check"`
}

// tomlSplit mirrors one [split.<name>] table.
type tomlSplit struct {
	Description  string                      `toml:"description"`
	Dependencies map[string][]tomlDependency `toml:"dependencies"`
	Package      tomlStage                   `toml:"package"`
	License      string                      `toml:"license"`
	Maintainer   string                      `toml:"maintainer"`
}

// tomlMVP mirrors the [mvp] overlay table.
type tomlMVP struct {
	Dependencies map[string][]tomlDependency `toml:"dependencies"`
	Lifecycle    map[string]tomlStage        `toml:"lifecycle"`
}

// tomlInstall mirrors the [install] table of live-root scripts.
type tomlInstall struct {
	PostInstall string `toml:"post_install"`
	PostUpgrade string `toml:"post_upgrade"`
	PreRemove   string `toml:"pre_remove"`
}

// tomlPlan is the raw, undecoded shape of a plan file. Unknown top-level
// keys are rejected by DisallowUnknownFields decoding (spec.md §4.1 "Unknown
// top-level keys are rejected").
type tomlPlan struct {
	Name         string                      `toml:"name"`
	Version      string                      `toml:"version"`
	Release      int                         `toml:"release"`
	Architecture string                      `toml:"architecture"`
	Description  string                      `toml:"description"`
	License      string                      `toml:"license"`
	URL          string                      `toml:"url"`
	Maintainer   string                      `toml:"maintainer"`
	Dependencies map[string][]tomlDependency `toml:"dependencies"`
	Sources      []string                    `toml:"sources"`
	SHA256       []string                    `toml:"sha256"`
	Options      tomlOptions                 `toml:"options"`
	Lifecycle    map[string]tomlStage        `toml:"lifecycle"`
	Stages       []string                    `toml:"stages"`
	Split        map[string]tomlSplit        `toml:"split"`
	MVP          tomlMVP                     `toml:"mvp"`
	Install      tomlInstall                 `toml:"install"`
	BackupFiles  []string                    `toml:"backup_files"`
}

// ParseFile reads a plan file from disk, decodes it strictly, and returns
// its normalized and validated form.
func ParseFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: reading %s: %w", path, err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes raw plan TOML bytes, using dir to resolve plan-relative
// local source paths.
func Parse(data []byte, dir string) (*Plan, error) {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var raw tomlPlan
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("plan: decode: %w", err)
	}
	if len(raw.SHA256) > 0 && len(raw.SHA256) != len(raw.Sources) {
		return nil, newErr("sha256", "count must equal sources count")
	}

	p := normalize(&raw, dir)
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func normalize(raw *tomlPlan, dir string) *Plan {
	p := &Plan{
		Name:         raw.Name,
		PlanVersion:  raw.Version,
		Release:      raw.Release,
		Architecture: raw.Architecture,
		Description:  raw.Description,
		License:      raw.License,
		UpstreamURL:  raw.URL,
		Maintainer:   raw.Maintainer,
		Dependencies: normalizeDeps(raw.Dependencies),
		Options:      normalizeOptions(raw.Options),
		Lifecycle:    normalizeStages(raw.Lifecycle),
		CustomStages: raw.Stages,
		PostInstall:  raw.Install.PostInstall,
		PostUpgrade:  raw.Install.PostUpgrade,
		PreRemove:    raw.Install.PreRemove,
		BackupFiles:  raw.BackupFiles,
		Dir:          dir,
		MVP: MVPOverlay{
			Dependencies: normalizeDeps(raw.MVP.Dependencies),
			Lifecycle:    normalizeStages(raw.MVP.Lifecycle),
		},
	}

	for i, uri := range raw.Sources {
		sha := "SKIP"
		if i < len(raw.SHA256) {
			sha = raw.SHA256[i]
		}
		p.Sources = append(p.Sources, Source{URI: uri, SHA256: sha})
	}

	for name, s := range raw.Split {
		p.Splits = append(p.Splits, Split{
			Name:         name,
			Description:  s.Description,
			Dependencies: normalizeDeps(s.Dependencies),
			PackageStage: normalizeStage(s.Package),
			License:      s.License,
			Maintainer:   s.Maintainer,
		})
	}

	return p
}

func normalizeDeps(raw map[string][]tomlDependency) map[DependencyKind][]Dependency {
	out := make(map[DependencyKind][]Dependency, len(raw))
	for kind, deps := range raw {
		list := make([]Dependency, 0, len(deps))
		for _, d := range deps {
			list = append(list, Dependency{Name: d.Name, Operator: d.Operator, Version: d.Version})
		}
		out[DependencyKind(kind)] = list
	}
	return out
}

func normalizeStage(s tomlStage) Stage {
	return Stage{
		Executor: s.Executor,
		Dockyard: DockyardLevel(s.Dockyard),
		Env:      s.Env,
		Script:   s.Script,
	}
}

func normalizeStages(raw map[string]tomlStage) map[string]Stage {
	out := make(map[string]Stage, len(raw))
	for name, s := range raw {
		out[name] = normalizeStage(s)
	}
	return out
}

func normalizeOptions(o tomlOptions) Options {
	bt := BuildType(o.BuildType)
	if bt == "" {
		bt = BuildTypeDefault
	}
	return Options{
		Strip:        o.Strip,
		Static:       o.Static,
		Debug:        o.Debug,
		CCache:       o.CCache,
		Env:          o.Env,
		BuildType:    bt,
		MemoryLimit:  o.MemoryLimit,
		CPUTimeLimit: o.CPUTimeLimit,
		Timeout:      o.Timeout,
		Jobs:         o.Jobs,
		SkipFHSCheck: o.SkipFHSCheck,
	}
}
