// Package buildcache computes build-cache keys and implements the
// flag-composition skip/restore logic of spec.md §4.8.
//
// Grounded on the teacher's pkg/stores content-hash conventions (SHA-256
// over a canonical input list) generalized from OpenFroyo's fact-hash
// inputs to Wright's {name, version, release, sources, lifecycle
// scripts, global flags} input set, and on pkg/archive for restoring and
// writing the cache archive itself.
package buildcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/wrightpm/wright/pkg/archive"
	"github.com/wrightpm/wright/pkg/plan"
)

// KeyInput is the canonical set of values hashed into a build-cache key
// (spec.md §4.7 step 2: "SHA-256 of {name, version, release, every
// source URI+checksum, every resolved lifecycle script and its
// executor, global CFLAGS/CXXFLAGS}").
type KeyInput struct {
	Name         string
	Version      string
	Release      int
	Sources      []plan.Source
	Lifecycle    map[string]plan.Stage
	GlobalCFlags string
	GlobalCXXFlags string
}

// Key computes the deterministic cache key for one build.
func Key(in KeyInput) string {
	h := sha256.New()
	fmt.Fprintf(h, "name=%s\nversion=%s\nrelease=%d\n", in.Name, in.Version, in.Release)

	sources := append([]plan.Source{}, in.Sources...)
	sort.Slice(sources, func(i, j int) bool { return sources[i].URI < sources[j].URI })
	for _, s := range sources {
		fmt.Fprintf(h, "source=%s|%s\n", s.URI, s.SHA256)
	}

	stageNames := make([]string, 0, len(in.Lifecycle))
	for name := range in.Lifecycle {
		stageNames = append(stageNames, name)
	}
	sort.Strings(stageNames)
	for _, name := range stageNames {
		st := in.Lifecycle[name]
		fmt.Fprintf(h, "stage=%s|executor=%s|dockyard=%s|script=%s\n", name, st.Executor, st.Dockyard, st.Script)
	}

	fmt.Fprintf(h, "cflags=%s\ncxxflags=%s\n", in.GlobalCFlags, in.GlobalCXXFlags)
	return hex.EncodeToString(h.Sum(nil))
}

// Flags composes the skip/cache-read/cache-write decision table of
// spec.md §4.8.
type Flags struct {
	Force   bool
	Clean   bool
	Stage   bool // a --stage run is in effect
	IsMVP   bool
}

// Decision is the resolved behavior for one build invocation.
type Decision struct {
	SkipIfArchiveExists bool
	ReadCache           bool
	WriteCache          bool
}

// Resolve implements spec.md §4.8's flag composition table.
func Resolve(f Flags) Decision {
	if f.Stage || f.IsMVP {
		return Decision{SkipIfArchiveExists: false, ReadCache: false, WriteCache: false}
	}
	if f.Force {
		return Decision{SkipIfArchiveExists: false, ReadCache: false, WriteCache: true}
	}
	if f.Clean {
		return Decision{SkipIfArchiveExists: false, ReadCache: false, WriteCache: true}
	}
	return Decision{SkipIfArchiveExists: true, ReadCache: true, WriteCache: true}
}

// Store manages cache archives on disk, keyed by the SHA-256 Key.
type Store struct {
	Dir string
}

func (s *Store) path(key string) string {
	return filepath.Join(s.Dir, key+".cache.tar.zst")
}

// Exists reports whether a cache entry for key is present.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// Delete removes the cache entry for key (spec.md §4.8 "--clean deletes
// the cache entry for a key before building").
func (s *Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("buildcache: delete %s: %w", key, err)
	}
	return nil
}

// Write packs pkgRoot, logRoot, and each split's package root into one
// cache archive (spec.md §4.8: "captures pkg/, log/, and each
// pkg-<split>/, never src/").
func (s *Store) Write(key string, roots map[string]string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("buildcache: mkdir cache dir: %w", err)
	}
	staging, err := os.MkdirTemp("", "wright-cache-stage-*")
	if err != nil {
		return fmt.Errorf("buildcache: mkdir staging: %w", err)
	}
	defer os.RemoveAll(staging)

	for name, root := range roots {
		if err := copyTree(root, filepath.Join(staging, name)); err != nil {
			return err
		}
	}

	f, err := os.Create(s.path(key))
	if err != nil {
		return fmt.Errorf("buildcache: create cache archive: %w", err)
	}
	defer f.Close()

	_, _, err = archive.Pack(f, archive.PackInput{
		Info: archive.Info{Name: "cache-" + key, Version: "0", Release: 0, Architecture: "any", Description: "build cache", License: "N/A"},
		Root: staging,
	})
	if err != nil {
		return fmt.Errorf("buildcache: pack cache archive: %w", err)
	}
	return nil
}

// Restore unpacks a cache archive back into the given roots, keyed by
// the same names used in Write.
func (s *Store) Restore(key string, roots map[string]string) error {
	f, err := os.Open(s.path(key))
	if err != nil {
		return fmt.Errorf("buildcache: open cache archive: %w", err)
	}
	defer f.Close()

	r, err := archive.Open(f)
	if err != nil {
		return fmt.Errorf("buildcache: open archive reader: %w", err)
	}
	defer r.Close()

	scratch, err := os.MkdirTemp("", "wright-cache-restore-*")
	if err != nil {
		return fmt.Errorf("buildcache: mkdir scratch: %w", err)
	}
	defer os.RemoveAll(scratch)

	if _, err := r.ExtractTo(scratch); err != nil {
		return fmt.Errorf("buildcache: extract cache archive: %w", err)
	}

	for name, root := range roots {
		src := filepath.Join(scratch, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyTree(src, root); err != nil {
			return err
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			return os.MkdirAll(target, fi.Mode())
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode())
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}
