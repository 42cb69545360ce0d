// Package wrightcfg loads wright's on-disk configuration: the global
// wright.toml, repos.toml, and the executors/*.toml and assemblies/*.toml
// directories under /etc/wright.
package wrightcfg

// Config is the parsed, defaulted form of wright.toml.
type Config struct {
	Build     BuildConfig
	Paths     PathsConfig
	Network   NetworkConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// BuildConfig is the [build] table: concurrency and CPU budget shared by
// the orchestrator and resource scheduler.
type BuildConfig struct {
	Dockyards        int // concurrent dockyard worker slots (orchestrator.Scheduler.Dockyards)
	MaxCPUs          int // resourcesched.Config.MaxCPUs; 0 = runtime.NumCPU() minus 4, at least 1
	NprocPerDockyard int // resourcesched.Config.NprocPerDockyard; 0 = dynamic share
}

// PathsConfig is the [paths] table: every on-disk location wright's
// runtime state lives under.
type PathsConfig struct {
	HoldTree      string // root containing all plans
	ComponentsDir string // unpacked split/component trees
	CacheDir      string // cache/sources and cache/builds live under here
	DBPath        string // pkgdb sqlite file
	LogDir        string
}

// NetworkConfig is the [network] table.
type NetworkConfig struct {
	RetryCount int // fetch retries before a Network error is treated as exhausted
}

// LoggingConfig is the [logging] table, passed directly to
// telemetry.NewLogger.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// TelemetryConfig is the [telemetry] table.
type TelemetryConfig struct {
	MetricsAddr   string // empty disables the metrics HTTP server
	TraceExporter string // "stdout" enables tracing; "none" or any other value disables it
}

// RepoEntry is one [[repo]] entry of repos.toml: a remote plan repository
// consumed by the out-of-scope repository-index generator. wright only
// round-trips this schema.
type RepoEntry struct {
	Name     string
	URL      string
	Priority int
}

// Assembly is a named group of plans buildable as one unit (spec.md
// glossary "Assembly"), loaded from one file under assemblies/*.toml.
type Assembly struct {
	Name        string
	Description string
	Packages    []string
}

// DefaultConfig returns wright's built-in defaults, matching spec.md's
// "On-disk layout" paths, used when wright.toml is absent or a table is
// omitted.
func DefaultConfig() *Config {
	return &Config{
		Build: BuildConfig{
			Dockyards:        4,
			MaxCPUs:          0,
			NprocPerDockyard: 0,
		},
		Paths: PathsConfig{
			HoldTree:      "/var/lib/wright/plans",
			ComponentsDir: "/var/lib/wright/components",
			CacheDir:      "/var/lib/wright/cache",
			DBPath:        "/var/lib/wright/db/packages.db",
			LogDir:        "/var/log/wright",
		},
		Network: NetworkConfig{
			RetryCount: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			MetricsAddr:   "",
			TraceExporter: "none",
		},
	}
}
