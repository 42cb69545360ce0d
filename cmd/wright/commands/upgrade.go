package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrightpm/wright/pkg/installer"
)

func newUpgradeCommand() *cobra.Command {
	var (
		force  bool
		noDeps bool
	)

	cmd := &cobra.Command{
		Use:   "upgrade <archive>...",
		Short: "Upgrade installed packages from newer archives",
		Long: `Upgrade snapshots the existing package's files into the transaction's
backup path, then runs the same placement logic as install. Files the old
version carried but the new one drops are removed; backup-listed files keep
their live content with the new default written to <path>.wnew.`,
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
			opts := installer.Options{Force: force, NoDeps: noDeps}

			for _, archivePath := range args {
				in.Log.Info().Str("archive", archivePath).Msg("upgrading package")
				if err := in.Upgrade(ctx, archivePath, opts); err != nil {
					return fmt.Errorf("upgrade %s: %w", archivePath, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "allow file-ownership overlap (records a shadow)")
	cmd.Flags().BoolVar(&noDeps, "nodeps", false, "skip dependency evaluation")

	return cmd
}
