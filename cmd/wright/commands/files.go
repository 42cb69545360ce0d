package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files <package>",
		Short: "List files owned by an installed package",
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

			files, err := store.FilesOf(ctx, name)
			if err != nil {
				return fmt.Errorf("files %s: %w", name, err)
			}
			for _, f := range files {
				fmt.Println(f.Path)
			}
			return nil
		},
	}
	return cmd
}
