package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <package>...",
		Short: "Check installed files against the checksums recorded at install time",
		Long: `verify recomputes the SHA-256 of every regular file a package owns and
reports any that are missing or modified since install. With no arguments,
every installed package is checked.`,
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

			names := args
			if len(names) == 0 {
				pkgs, err := store.ListPackages(ctx)
				if err != nil {
					return fmt.Errorf("verify: list packages: %w", err)
				}
				for _, p := range pkgs {
					names = append(names, p.Name)
				}
			}

			mismatchTotal := 0
			for _, name := range names {
				mismatches, err := in.Verify(ctx, name)
				if err != nil {
					return fmt.Errorf("verify %s: %w", name, err)
				}
				for _, m := range mismatches {
					fmt.Printf("%s: %s %s\n", name, m.Kind, m.Path)
				}
				mismatchTotal += len(mismatches)
			}
			if mismatchTotal > 0 {
				return fmt.Errorf("verify: %d file mismatch(es) found", mismatchTotal)
			}
			return nil
		},
	}
	return cmd
}
