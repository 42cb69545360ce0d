package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrightpm/wright/pkg/installer"
)

func newInstallCommand() *cobra.Command {
	var (
		force  bool
		noDeps bool
	)

	cmd := &cobra.Command{
		Use:   "install <archive>...",
		Short: "Install one or more wright.tar.zst archives",
		Long: `Install unpacks each archive into the live root within a single durable
transaction per package: replaces are evaluated first, dependencies are
checked (unless --nodeps), files are placed with shadow and backup-file
handling, then post_install runs on the live root.`,
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
				in.Log.Info().Str("archive", archivePath).Msg("installing package")
				if err := in.Install(ctx, archivePath, opts); err != nil {
					return fmt.Errorf("install %s: %w", archivePath, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "allow file-ownership overlap (records a shadow)")
	cmd.Flags().BoolVar(&noDeps, "nodeps", false, "skip dependency evaluation")

	return cmd
}
