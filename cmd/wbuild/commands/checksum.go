package commands

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newChecksumCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "checksum <package>...",
		Short: "Print or verify SHA256 hashes for a plan's fetched sources",
		Long: `checksum hashes every source already present in cache/sources for the
named plans. A source declared "SKIP" in the plan is reported but never
checked, matching the builder's own treatment of local/git entries.`,
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

			sourcesDir := filepath.Join(cfg.Paths.CacheDir, "sources")
			var mismatches int
			for _, name := range args {
				p := cache.Lookup(name)
				if p == nil {
					return fmt.Errorf("checksum: unknown plan %q", name)
				}
				for _, src := range p.Sources {
					if src.SHA256 == "SKIP" {
						fmt.Printf("%s: %s SKIP\n", p.Name, src.URI)
						continue
					}
					localPath, err := findSource(sourcesDir, p.Name, src.URI)
					if err != nil {
						fmt.Printf("%s: %s not fetched\n", p.Name, src.URI)
						mismatches++
						continue
					}
					got, err := hashSourceFile(localPath)
					if err != nil {
						return fmt.Errorf("checksum %s: %w", localPath, err)
					}
					if got != src.SHA256 {
						fmt.Printf("%s: %s MISMATCH want=%s got=%s\n", p.Name, src.URI, src.SHA256, got)
						mismatches++
						continue
					}
					fmt.Printf("%s: %s ok\n", p.Name, src.URI)
				}
			}
			if mismatches > 0 {
				return fmt.Errorf("checksum: %d source(s) missing or mismatched", mismatches)
			}
			return nil
		},
	}
}

// findSource locates a previously fetched source under the
// <pkg-name>-<uri-basename> name builder.DefaultFetcher gives http and
// local sources.
func findSource(sourcesDir, pkgName, uri string) (string, error) {
	candidate := filepath.Join(sourcesDir, pkgName+"-"+filepath.Base(uri))
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("no fetched source found for %s", uri)
	}
	return candidate, nil
}

func hashSourceFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
