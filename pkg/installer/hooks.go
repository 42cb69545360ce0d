package installer

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/wrightpm/wright/pkg/dockyard"
)

// runShellHook executes a post_install/post_upgrade/pre_remove script
// outside any dockyard (spec.md §4.11 "hook execution outside any
// dockyard"), since these scripts run against the live root rather than a
// build workspace.
func runShellHook(ctx context.Context, root, script string) error {
	f, err := os.CreateTemp("", "wright-hook-*.sh")
	if err != nil {
		return fmt.Errorf("installer: create hook scratch file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return fmt.Errorf("installer: write hook script: %w", err)
	}
	f.Close()
	if err := os.Chmod(f.Name(), 0o700); err != nil {
		return fmt.Errorf("installer: chmod hook script: %w", err)
	}

	spec := dockyard.Spec{
		Level:      dockyard.LevelNone,
		WorkingDir: root,
		Command:    "/bin/sh",
		Args:       []string{f.Name()},
	}
	var stdout, stderr bytes.Buffer
	res, err := dockyard.Run(ctx, zerolog.Nop(), spec, &stdout, &stderr)
	if err != nil {
		return fmt.Errorf("installer: run hook: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("installer: hook exited %d: %s", res.ExitCode, stderr.String())
	}
	return nil
}
