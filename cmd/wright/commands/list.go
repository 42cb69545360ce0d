package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			pkgs, err := store.ListPackages(ctx)
			if err != nil {
				return fmt.Errorf("list packages: %w", err)
			}
			for _, p := range pkgs {
				fmt.Printf("%-30s %s-%d\n", p.Name, p.Version, p.Release)
			}
			return nil
		},
	}
	return cmd
}
