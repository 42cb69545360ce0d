package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAssumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assume <package> <version>",
		Short: "Record an externally-provided package as satisfying dependency constraints",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, version := args[0], args[1]

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
			if err := in.Assume(ctx, name, version); err != nil {
				return fmt.Errorf("assume %s: %w", name, err)
			}
			return nil
		},
	}
	return cmd
}

func newUnassumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unassume <package>",
		Short: "Delete an assumed-package record",
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

			in := newInstaller(store)
			if err := in.Unassume(ctx, name); err != nil {
				return fmt.Errorf("unassume %s: %w", name, err)
			}
			return nil
		},
	}
	return cmd
}
