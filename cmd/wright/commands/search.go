package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wrightpm/wright/pkg/plan"
)

func newSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search plans in the hold tree by name substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.ToLower(args[0])

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cache, err := plan.NewCache(cfg.Paths.HoldTree)
			if err != nil {
				return fmt.Errorf("search: load hold tree: %w", err)
			}
			defer cache.Close()

			for _, p := range cache.All() {
				if strings.Contains(strings.ToLower(p.Name), term) {
					fmt.Printf("%-30s %s\n", p.Name, p.PlanVersion)
				}
			}
			return nil
		},
	}
	return cmd
}
