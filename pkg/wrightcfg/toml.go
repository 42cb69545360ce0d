package wrightcfg

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/wrightpm/wright/pkg/executor"
	"github.com/wrightpm/wright/pkg/plan"
)

type tomlBuild struct {
	Dockyards        int `toml:"dockyards"`
	MaxCPUs          int `toml:"max_cpus"`
	NprocPerDockyard int `toml:"nproc_per_dockyard"`
}

type tomlPaths struct {
	HoldTree      string `toml:"hold_tree"`
	ComponentsDir string `toml:"components_dir"`
	CacheDir      string `toml:"cache_dir"`
	DBPath        string `toml:"db_path"`
	LogDir        string `toml:"log_dir"`
}

type tomlNetwork struct {
	RetryCount int `toml:"retry_count"`
}

type tomlLogging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

type tomlTelemetry struct {
	MetricsAddr   string `toml:"metrics_addr"`
	TraceExporter string `toml:"trace_exporter"`
}

// tomlConfig is the raw, undecoded shape of wright.toml. Unknown
// top-level keys are rejected, matching plan.Parse's strict decoding.
type tomlConfig struct {
	Build     tomlBuild     `toml:"build"`
	Paths     tomlPaths     `toml:"paths"`
	Network   tomlNetwork   `toml:"network"`
	Logging   tomlLogging   `toml:"logging"`
	Telemetry tomlTelemetry `toml:"telemetry"`
}

// LoadConfig reads and decodes wright.toml from path. A missing file is not
// an error: DefaultConfig() is returned unchanged.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("wrightcfg: reading %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes raw wright.toml bytes, filling any omitted field with
// DefaultConfig's value.
func ParseConfig(data []byte) (*Config, error) {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var raw tomlConfig
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("wrightcfg: decode: %w", err)
	}

	def := DefaultConfig()
	cfg := &Config{
		Build: BuildConfig{
			Dockyards:        orInt(raw.Build.Dockyards, def.Build.Dockyards),
			MaxCPUs:          raw.Build.MaxCPUs,
			NprocPerDockyard: raw.Build.NprocPerDockyard,
		},
		Paths: PathsConfig{
			HoldTree:      orString(raw.Paths.HoldTree, def.Paths.HoldTree),
			ComponentsDir: orString(raw.Paths.ComponentsDir, def.Paths.ComponentsDir),
			CacheDir:      orString(raw.Paths.CacheDir, def.Paths.CacheDir),
			DBPath:        orString(raw.Paths.DBPath, def.Paths.DBPath),
			LogDir:        orString(raw.Paths.LogDir, def.Paths.LogDir),
		},
		Network: NetworkConfig{
			RetryCount: orInt(raw.Network.RetryCount, def.Network.RetryCount),
		},
		Logging: LoggingConfig{
			Level:  orString(raw.Logging.Level, def.Logging.Level),
			Format: orString(raw.Logging.Format, def.Logging.Format),
			Output: orString(raw.Logging.Output, def.Logging.Output),
		},
		Telemetry: TelemetryConfig{
			MetricsAddr:   raw.Telemetry.MetricsAddr,
			TraceExporter: orString(raw.Telemetry.TraceExporter, def.Telemetry.TraceExporter),
		},
	}
	return cfg, nil
}

func orString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func orInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

type tomlRepos struct {
	Repo []tomlRepoEntry `toml:"repo"`
}

type tomlRepoEntry struct {
	Name     string `toml:"name"`
	URL      string `toml:"url"`
	Priority int    `toml:"priority"`
}

// LoadRepos reads repos.toml, the remote plan repository list consumed by
// the out-of-scope repository-index generator (SPEC_FULL.md §3 "[AMBIENT]
// Config model"). wright only needs the schema to round-trip, so decoding
// is strict and the result can be handed straight back to SaveRepos.
func LoadRepos(path string) ([]RepoEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wrightcfg: reading %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw tomlRepos
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("wrightcfg: decode repos: %w", err)
	}

	repos := make([]RepoEntry, 0, len(raw.Repo))
	for _, r := range raw.Repo {
		repos = append(repos, RepoEntry{Name: r.Name, URL: r.URL, Priority: r.Priority})
	}
	return repos, nil
}

// SaveRepos marshals repos back to repos.toml's schema, the round-trip
// side of LoadRepos.
func SaveRepos(path string, repos []RepoEntry) error {
	raw := tomlRepos{Repo: make([]tomlRepoEntry, 0, len(repos))}
	for _, r := range repos {
		raw.Repo = append(raw.Repo, tomlRepoEntry{Name: r.Name, URL: r.URL, Priority: r.Priority})
	}
	data, err := toml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("wrightcfg: marshal repos: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

type tomlExecutor struct {
	Name            string   `toml:"name"`
	Command         string   `toml:"command"`
	ArgsPrefix      []string `toml:"args_prefix"`
	Delivery        string   `toml:"delivery"`
	TempfileExt     string   `toml:"tempfile_ext"`
	RequiredPaths   []string `toml:"required_paths"`
	DefaultDockyard string   `toml:"default_dockyard"`
}

// LoadExecutors parses every file in dir (executors/*.toml) into an
// executor.Definition, one definition per file (SPEC_FULL.md §2, §4.6).
func LoadExecutors(dir string) ([]executor.Definition, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("wrightcfg: glob %s: %w", dir, err)
	}

	defs := make([]executor.Definition, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("wrightcfg: reading %s: %w", p, err)
		}
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		var raw tomlExecutor
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("wrightcfg: decode %s: %w", p, err)
		}
		if raw.Name == "" {
			return nil, fmt.Errorf("wrightcfg: %s: executor name is required", p)
		}
		delivery := plan.DeliveryMode(raw.Delivery)
		if delivery == "" {
			delivery = plan.DeliveryTempfile
		}
		dockyard := plan.DockyardLevel(raw.DefaultDockyard)
		if dockyard == "" {
			dockyard = plan.DockyardRelaxed
		}
		defs = append(defs, executor.Definition{
			Name:            raw.Name,
			Command:         raw.Command,
			ArgsPrefix:      raw.ArgsPrefix,
			Delivery:        delivery,
			TempfileExt:     raw.TempfileExt,
			RequiredPaths:   raw.RequiredPaths,
			DefaultDockyard: dockyard,
		})
	}
	return defs, nil
}

type tomlAssembly struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Packages    []string `toml:"packages"`
}

// LoadAssemblies parses every file in dir (assemblies/*.toml) into an
// Assembly, one per file.
func LoadAssemblies(dir string) ([]Assembly, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("wrightcfg: glob %s: %w", dir, err)
	}

	out := make([]Assembly, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("wrightcfg: reading %s: %w", p, err)
		}
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		var raw tomlAssembly
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("wrightcfg: decode %s: %w", p, err)
		}
		if raw.Name == "" {
			return nil, fmt.Errorf("wrightcfg: %s: assembly name is required", p)
		}
		out = append(out, Assembly{Name: raw.Name, Description: raw.Description, Packages: raw.Packages})
	}
	return out, nil
}

// LoadFHSPolicy reads the optional Rego override for fhspolicy.NewEngine.
// A missing file is not an error: the empty string tells NewEngine to use
// its compiled-in default.
func LoadFHSPolicy(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("wrightcfg: reading %s: %w", path, err)
	}
	return string(data), nil
}
