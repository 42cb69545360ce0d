package dockyard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// IsReExecInit reports whether the current process was re-exec'd to
// perform dockyard init (spec.md §4.5's "self re-exec after Unshare"
// step), recognized by argv[1] carrying ReExecSentinel.
func IsReExecInit() bool {
	return len(os.Args) > 1 && os.Args[1] == ReExecSentinel
}

// RunReExecInit is the entry point cmd/wbuild's main calls when
// IsReExecInit is true: it reads the Spec from the environment, performs
// mount/hostname setup from inside the namespaces Unshare already
// created for this process, then execs the target command. It never
// returns on success.
func RunReExecInit() error {
	raw := os.Getenv(ReExecEnvVar)
	if raw == "" {
		return fmt.Errorf("dockyard: missing %s in re-exec environment", ReExecEnvVar)
	}
	var spec Spec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return fmt.Errorf("dockyard: unmarshal spec: %w", err)
	}
	return setupAndExec(spec)
}

func setupAndExec(spec Spec) error {
	if spec.Hostname != "" {
		if err := unix.Sethostname([]byte(spec.Hostname)); err != nil {
			return fmt.Errorf("dockyard: sethostname: %w", err)
		}
	}

	if err := prepareMounts(spec); err != nil {
		return err
	}

	if err := unix.Chroot(spec.Root); err != nil {
		return fmt.Errorf("dockyard: chroot %s: %w", spec.Root, err)
	}
	workdir := spec.WorkingDir
	if workdir == "" {
		workdir = "/"
	}
	if err := os.Chdir(workdir); err != nil {
		return fmt.Errorf("dockyard: chdir %s: %w", workdir, err)
	}

	applyRlimits(spec)

	// Best-effort: drop the ability to regain privileges post-chroot.
	_ = unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)

	env := envList(spec.Env)
	argv := append([]string{spec.Command}, spec.Args...)
	return syscall.Exec(spec.Command, argv, env)
}

// prepareMounts binds the system directories, per-job directories, and
// minimal /dev/proc/tmp into spec.Root (spec.md §4.5 "Mount layout").
func prepareMounts(spec Spec) error {
	if err := os.MkdirAll(spec.Root, 0o755); err != nil {
		return fmt.Errorf("dockyard: mkdir root %s: %w", spec.Root, err)
	}

	binds := append([]Bind{}, spec.Binds...)
	binds = append(binds, ensureDevNodes(filepath.Join(spec.Root, "dev"))...)

	for _, b := range binds {
		if err := bindMount(spec.Root, b); err != nil {
			if b.Optional {
				continue
			}
			return err
		}
	}

	if err := mountTmpfs(filepath.Join(spec.Root, "tmp")); err != nil {
		return err
	}
	if err := mountProc(filepath.Join(spec.Root, "proc")); err != nil {
		return err
	}
	return nil
}

func bindMount(root string, b Bind) error {
	if _, err := os.Stat(b.Source); err != nil {
		if b.Optional {
			return nil
		}
		return fmt.Errorf("dockyard: bind source %s: %w", b.Source, err)
	}
	target := filepath.Join(root, b.Target)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("dockyard: mkdir bind target %s: %w", target, err)
	}
	if fi, err := os.Stat(b.Source); err == nil && fi.IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("dockyard: mkdir bind dir %s: %w", target, err)
		}
	} else {
		f, err := os.OpenFile(target, os.O_CREATE, 0o644)
		if err != nil {
			return fmt.Errorf("dockyard: create bind target file %s: %w", target, err)
		}
		f.Close()
	}

	flags := uintptr(unix.MS_BIND)
	if err := unix.Mount(b.Source, target, "", flags, ""); err != nil {
		return fmt.Errorf("dockyard: bind mount %s -> %s: %w", b.Source, target, err)
	}
	if b.ReadOnly {
		if err := unix.Mount("", target, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
			return fmt.Errorf("dockyard: remount ro %s: %w", target, err)
		}
	}
	return nil
}

func mountTmpfs(target string) error {
	if err := os.MkdirAll(target, 0o1777); err != nil {
		return fmt.Errorf("dockyard: mkdir tmp %s: %w", target, err)
	}
	return unix.Mount("tmpfs", target, "tmpfs", 0, "mode=1777")
}

func mountProc(target string) error {
	if err := os.MkdirAll(target, 0o555); err != nil {
		return fmt.Errorf("dockyard: mkdir proc %s: %w", target, err)
	}
	return unix.Mount("proc", target, "proc", 0, "")
}
