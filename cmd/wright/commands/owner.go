package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOwnerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner <path>",
		Short: "Show which installed package owns a live file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			name, err := store.OwnerOfPath(ctx, path)
			if err != nil {
				return fmt.Errorf("owner %s: %w", path, err)
			}
			fmt.Println(name)
			return nil
		},
	}
	return cmd
}
