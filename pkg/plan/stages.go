package plan

// ResolvedStageOrder returns the effective stage pipeline: the plan's
// custom order verbatim if declared, else DefaultStageOrder (spec.md §4.1).
func ResolvedStageOrder(p *Plan) []string {
	if len(p.CustomStages) > 0 {
		return p.CustomStages
	}
	return DefaultStageOrder
}

// Phase selects which dependency/lifecycle view of the plan is in effect.
type Phase string

const (
	PhaseFull Phase = "full"
	PhaseMVP  Phase = "mvp"
)

// MergedDependencies returns the dependency set for the given phase: for
// PhaseFull the main dependencies; for PhaseMVP, p.MVP.Dependencies
// entirely replaces the main set for any kind present in the overlay,
// falling back to the main dependencies for kinds the overlay omits
// (spec.md §4.1).
func MergedDependencies(p *Plan, phase Phase) map[DependencyKind][]Dependency {
	if phase == PhaseFull || len(p.MVP.Dependencies) == 0 {
		return p.Dependencies
	}
	merged := make(map[DependencyKind][]Dependency, len(p.Dependencies))
	for k, v := range p.Dependencies {
		merged[k] = v
	}
	for k, v := range p.MVP.Dependencies {
		merged[k] = v
	}
	return merged
}

// MergedLifecycle returns the stage definitions for the given phase: for
// PhaseFull, p.Lifecycle; for PhaseMVP, p.MVP.Lifecycle entries overlaid on
// top of p.Lifecycle (spec.md §4.1 "mvp merges mvp.lifecycle over
// lifecycle").
func MergedLifecycle(p *Plan, phase Phase) map[string]Stage {
	if phase == PhaseFull || len(p.MVP.Lifecycle) == 0 {
		return p.Lifecycle
	}
	merged := make(map[string]Stage, len(p.Lifecycle))
	for k, v := range p.Lifecycle {
		merged[k] = v
	}
	for k, v := range p.MVP.Lifecycle {
		merged[k] = v
	}
	return merged
}

// HookStage looks up a pre_<stage> or post_<stage> hook in the merged
// lifecycle, returning ok=false if undefined.
func HookStage(lifecycle map[string]Stage, hook, stage string) (Stage, bool) {
	st, ok := lifecycle[hook+"_"+stage]
	return st, ok
}

// SplitByName finds a split by name, or nil if absent.
func (p *Plan) SplitByName(name string) *Split {
	for i := range p.Splits {
		if p.Splits[i].Name == name {
			return &p.Splits[i]
		}
	}
	return nil
}
