package plan

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wrightpm/wright/pkg/version"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_+.-]*$`)

// identityView is validated with struct tags for the fields validator can
// express cleanly; the cross-field invariants (sha256 count, checked in
// Parse; split name collisions and stage script presence, checked below)
// are checked by hand because
// struct tags cannot reach across slices of different lengths or sibling
// maps.
type identityView struct {
	Name         string `validate:"required,max=64"`
	Version      string `validate:"required"`
	Release      int    `validate:"min=1"`
	Architecture string `validate:"required"`
	Description  string `validate:"required"`
	License      string `validate:"required"`
}

var structValidator = validator.New()

// Validate checks every invariant spec.md §3 and §4.1 list and returns the
// first violation found as a *PlanError.
func Validate(p *Plan) error {
	if !namePattern.MatchString(p.Name) {
		return newErr("name", "must match [a-z0-9][a-z0-9_+.-]* and be non-empty")
	}
	if len(p.Name) > 64 {
		return newErr("name", "must be at most 64 characters")
	}

	iv := identityView{
		Name:         p.Name,
		Version:      p.PlanVersion,
		Release:      p.Release,
		Architecture: p.Architecture,
		Description:  p.Description,
		License:      p.License,
	}
	if err := structValidator.Struct(iv); err != nil {
		return newErr("identity/metadata", err.Error())
	}
	if !hasAlphanumeric(p.PlanVersion) {
		return newErr("version", "must contain at least one alphanumeric character")
	}

	for _, src := range p.Sources {
		if src.SHA256 != "SKIP" && len(src.SHA256) == 0 {
			return newErr("sources", "sha256 entry must be a hash or \"SKIP\"")
		}
		if isLocalPath(src.URI) {
			if strings.Contains(src.URI, "..") {
				return newErr("sources", "local source path may not escape the plan directory")
			}
		}
	}

	if err := validateOptions(&p.Options); err != nil {
		return err
	}

	if err := validateDependencies(p.Dependencies); err != nil {
		return err
	}
	if err := validateDependencies(p.MVP.Dependencies); err != nil {
		return err
	}

	names := map[string]bool{p.Name: true}
	for _, s := range p.Splits {
		if !isValidIdentifier(s.Name) {
			return newErr("split.name", "must be a valid identifier")
		}
		if names[s.Name] {
			return newErr("split.name", "must not collide with the main package or another split")
		}
		names[s.Name] = true
		if err := validateDependencies(s.Dependencies); err != nil {
			return err
		}
	}

	if err := validateStages(p); err != nil {
		return err
	}

	return nil
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func isLocalPath(uri string) bool {
	return !strings.HasPrefix(uri, "http://") &&
		!strings.HasPrefix(uri, "https://") &&
		!strings.HasPrefix(uri, "git+")
}

func isValidIdentifier(s string) bool {
	return namePattern.MatchString(s)
}

func validateOptions(o *Options) error {
	switch o.BuildType {
	case BuildTypeDefault, BuildTypeMake, BuildTypeRust, BuildTypeGo, BuildTypeHeavy, BuildTypeSerial, BuildTypeCustom:
	default:
		return newErr("options.build_type", "must be one of default|make|rust|go|heavy|serial|custom")
	}
	if o.MemoryLimit < 0 || o.CPUTimeLimit < 0 || o.Timeout < 0 || o.Jobs < 0 {
		return newErr("options", "resource caps must be non-negative")
	}
	return nil
}

func validateDependencies(deps map[DependencyKind][]Dependency) error {
	for kind, list := range deps {
		switch kind {
		case DepBuild, DepLink, DepRuntime, DepReplaces, DepConflicts, DepProvides, DepOptional:
		default:
			return newErr("dependencies", "unknown dependency kind "+string(kind))
		}
		for _, d := range list {
			if d.Name == "" {
				return newErr("dependencies."+string(kind), "name must be non-empty")
			}
			if d.Operator != "" {
				if _, ok := version.ParseOperator(d.Operator); !ok {
					return newErr("dependencies."+string(kind)+".operator", "must be one of >=,<=,>,<,=")
				}
			}
		}
	}
	return nil
}

// validateStages resolves the effective stage pipeline (default or custom)
// and checks every referenced, defined stage carries a non-empty script.
func validateStages(p *Plan) error {
	order := ResolvedStageOrder(p)
	for _, name := range order {
		if st, ok := p.Lifecycle[name]; ok {
			if strings.TrimSpace(st.Script) == "" && !isBuiltinStage(name) {
				return newErr("lifecycle."+name, "defined stage must have a non-empty script")
			}
			if st.Dockyard != "" {
				switch st.Dockyard {
				case DockyardNone, DockyardRelaxed, DockyardStrict:
				default:
					return newErr("lifecycle."+name+".dockyard", "must be one of none|relaxed|strict")
				}
			}
		}
	}
	for _, s := range p.Splits {
		if strings.TrimSpace(s.PackageStage.Script) == "" {
			return newErr("split."+s.Name+".package", "must have a non-empty script")
		}
	}
	return nil
}

// isBuiltinStage reports whether a stage name is one of the built-ins the
// builder implements itself (fetch/verify/extract) rather than requiring a
// user script (spec.md §4.7 steps 3-5).
func isBuiltinStage(name string) bool {
	switch name {
	case "fetch", "verify", "extract":
		return true
	default:
		return false
	}
}
