package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrightpm/wright/pkg/installer"
)

func newSysupgradeCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sysupgrade <archive>...",
		Short: "Upgrade every package named by the given archives in one pass",
		Long: `sysupgrade applies upgrade to a batch of archives in the order given,
stopping at the first failure so the reported exit code reflects the
first-failing package, matching wbuild run's batch semantics.`,
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
			opts := installer.Options{Force: force}

			for _, archivePath := range args {
				in.Log.Info().Str("archive", archivePath).Msg("sysupgrade: upgrading package")
				if err := in.Upgrade(ctx, archivePath, opts); err != nil {
					return fmt.Errorf("sysupgrade %s: %w", archivePath, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "allow file-ownership overlap (records a shadow)")

	return cmd
}
