package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wrightpm/wright/pkg/builder"
)

func newFetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <package>...",
		Short: "Fetch and verify a plan's sources without building",
		Long: `fetch runs only the fetch step of the build pipeline: each declared
source URI is pulled into cache/sources and checked against its SHA256
(entries marked "SKIP" are trusted as-is, per local/git sources).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cache, err := loadPlans(cfg)
			if err != nil {
				return err
			}
			defer cache.Close()

			fetcher := builder.NewDefaultFetcher()
			destDir := filepath.Join(cfg.Paths.CacheDir, "sources")

			for _, name := range args {
				p := cache.Lookup(name)
				if p == nil {
					return fmt.Errorf("fetch: unknown plan %q", name)
				}
				for _, src := range p.Sources {
					localPath, err := fetcher.Fetch(src.URI, destDir, p.Name)
					if err != nil {
						return fmt.Errorf("fetch %s (%s): %w", p.Name, src.URI, err)
					}
					if src.SHA256 != "SKIP" {
						got, err := hashSourceFile(localPath)
						if err != nil {
							return fmt.Errorf("fetch %s (%s): hash: %w", p.Name, src.URI, err)
						}
						if got != src.SHA256 {
							return fmt.Errorf("fetch %s (%s): sha256 mismatch: got %s want %s", p.Name, src.URI, got, src.SHA256)
						}
					}
					fmt.Printf("%s: %s -> %s\n", p.Name, src.URI, localPath)
				}
			}
			return nil
		},
	}
}
