package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrightpm/wright/pkg/plan"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [package...]",
		Short: "Validate plans without building them",
		Long: `check normalizes and validates every named plan (or the whole hold
tree if none are named) the same way run does before scheduling a build,
reporting every malformed plan rather than stopping at the first one.`,
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

			targets := args
			if len(targets) == 0 {
				for _, p := range cache.All() {
					targets = append(targets, p.Name)
				}
			}

			var failures int
			for _, name := range targets {
				p := cache.Lookup(name)
				if p == nil {
					fmt.Printf("%s: not found\n", name)
					failures++
					continue
				}
				if err := plan.Validate(p); err != nil {
					fmt.Printf("%s: %v\n", name, err)
					failures++
					continue
				}
				fmt.Printf("%s: ok\n", name)
			}
			if failures > 0 {
				return fmt.Errorf("check: %d plan(s) failed validation", failures)
			}
			return nil
		},
	}
}
