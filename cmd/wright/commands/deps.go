package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDepsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps <package>",
		Short: "List dependency and dependent edges for an installed package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			deps, err := store.DependenciesOf(ctx, name)
			if err != nil {
				return fmt.Errorf("deps %s: %w", name, err)
			}
			for _, d := range deps {
				fmt.Printf("depends  %-10s %s %s %s\n", d.Kind, d.DepName, d.Operator, d.Version)
			}

			dependents, err := store.EnumerateDependents(ctx, name)
			if err != nil {
				return fmt.Errorf("deps %s: dependents: %w", name, err)
			}
			for _, d := range dependents {
				fmt.Printf("dependent            %s\n", d)
			}
			return nil
		},
	}
	return cmd
}
