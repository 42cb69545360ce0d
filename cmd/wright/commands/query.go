package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <package>",
		Short: "Show detailed information for one installed package",
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

			p, err := store.LookupByName(ctx, name)
			if err != nil {
				return fmt.Errorf("query %s: %w", name, err)
			}
			if p == nil {
				return fmt.Errorf("query %s: not installed", name)
			}

			deps, err := store.DependenciesOf(ctx, name)
			if err != nil {
				return fmt.Errorf("query %s: dependencies: %w", name, err)
			}

			fmt.Printf("Name         : %s\n", p.Name)
			fmt.Printf("Version      : %s-%d\n", p.Version, p.Release)
			fmt.Printf("Architecture : %s\n", p.Architecture)
			fmt.Printf("Description  : %s\n", p.Description)
			fmt.Printf("License      : %s\n", p.License)
			fmt.Printf("Installed    : %s (%d bytes)\n", p.InstallTimestamp.Format("2006-01-02 15:04:05"), p.InstallSize)
			fmt.Printf("Archive hash : %s\n", p.ArchiveHash)
			for _, d := range deps {
				fmt.Printf("Depends (%s): %s %s %s\n", d.Kind, d.DepName, d.Operator, d.Version)
			}
			return nil
		},
	}
	return cmd
}
