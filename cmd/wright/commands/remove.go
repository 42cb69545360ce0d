package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrightpm/wright/pkg/installer"
)

func newRemoveCommand() *cobra.Command {
	var (
		force     bool
		recursive bool
	)

	cmd := &cobra.Command{
		Use:   "remove <package>...",
		Short: "Remove installed packages",
		Long: `Remove runs pre_remove on the live root, then deletes every tracked file
that is not currently shadowed by another package (shadowed files transfer
ownership to the most recent overwriter instead). A package with installed
link dependents aborts with a CRITICAL error unless --force.`,
		Args: cobra.MinimumNArgs(1),
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

			in := newInstaller(store)
			opts := installer.Options{Force: force, Recursive: recursive}

			for _, name := range args {
				in.Log.Info().Str("package", name).Msg("removing package")
				if err := in.Remove(ctx, name, opts); err != nil {
					return fmt.Errorf("remove %s: %w", name, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "remove despite link-dependent protection")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "also remove transitive dependents")

	return cmd
}
