package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrightpm/wright/pkg/plan"
)

func newDepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <package>",
		Short: "Print a plan's declared dependencies by kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cache, err := loadPlans(cfg)
			if err != nil {
				return err
			}
			defer cache.Close()

			p := cache.Lookup(args[0])
			if p == nil {
				return fmt.Errorf("deps: unknown plan %q", args[0])
			}

			kinds := []plan.DependencyKind{
				plan.DepBuild, plan.DepLink, plan.DepRuntime,
				plan.DepReplaces, plan.DepConflicts, plan.DepProvides, plan.DepOptional,
			}
			for _, kind := range kinds {
				deps := p.Dependencies[kind]
				if len(deps) == 0 {
					continue
				}
				fmt.Printf("%s:\n", kind)
				for _, d := range deps {
					if d.Operator != "" {
						fmt.Printf("  %s %s %s\n", d.Name, d.Operator, d.Version)
					} else {
						fmt.Printf("  %s\n", d.Name)
					}
				}
			}
			return nil
		},
	}
}
