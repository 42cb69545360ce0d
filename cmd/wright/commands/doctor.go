package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a read-only integrity check over the installed-package database",
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
			rep, err := in.Doctor(ctx)
			if err != nil {
				return fmt.Errorf("doctor: %w", err)
			}

			if rep.IntegrityError != "" {
				fmt.Printf("integrity error: %s\n", rep.IntegrityError)
			} else {
				fmt.Println("integrity check: ok")
			}
			for _, d := range rep.UnsatisfiedDeps {
				fmt.Printf("unsatisfied dependency: %s\n", d)
			}
			for _, cycle := range rep.InstalledSetCycles {
				fmt.Printf("dependency cycle: %v\n", cycle)
			}
			for _, s := range rep.Shadows {
				fmt.Printf("shadow: %s (owner=%s overwriter=%s)\n", s.Path, s.OwningPackage, s.OverwritingPackage)
			}
			for _, t := range rep.IncompleteTransactions {
				fmt.Printf("incomplete transaction: %s %s %s\n", t.ID, t.Kind, t.PackageName)
			}
			return nil
		},
	}
	return cmd
}
